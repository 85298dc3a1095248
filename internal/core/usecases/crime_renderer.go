package usecases

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/pintfinder/internal/core/domain"
	"github.com/samirrijal/pintfinder/internal/core/ports"
)

const (
	CrimeSourceID         = "crimes"
	CrimeClusterLayer     = "crime-clusters"
	CrimeCountLayer       = "crime-cluster-count"
	CrimeUnclusteredLayer = "crime-unclustered"

	crimeClusterMaxZoom = 14
	crimeClusterRadius  = 50
)

// clusterSteps is the cluster circle size table: counts below each
// threshold get the paired radius, larger counts get the final radius.
var clusterSteps = []struct {
	below  int
	radius int
}{
	{100, 20},
	{750, 40},
}

const clusterRadiusMax = 50

// ClusterRadiusFor returns the circle radius for a cluster of count points.
func ClusterRadiusFor(count int) int {
	for _, s := range clusterSteps {
		if count < s.below {
			return s.radius
		}
	}
	return clusterRadiusMax
}

// clusterRadiusExpr is the same table as a step expression for the browser.
func clusterRadiusExpr() []any {
	expr := []any{"step", []any{"get", "point_count"}, clusterSteps[0].radius}
	for i, s := range clusterSteps {
		next := clusterRadiusMax
		if i+1 < len(clusterSteps) {
			next = clusterSteps[i+1].radius
		}
		expr = append(expr, s.below, next)
	}
	return expr
}

// CrimeStyle parameterizes the crime overlay colours.
type CrimeStyle struct {
	ClusterColor string
	PointColor   string
	PointRadius  float64
}

func DefaultCrimeStyle() CrimeStyle {
	return CrimeStyle{ClusterColor: "#51bbd6", PointColor: "#ff0000", PointRadius: 5}
}

// CrimeOverlayRenderer draws incidents as a clustered point layer.
type CrimeOverlayRenderer struct {
	style CrimeStyle
}

func NewCrimeOverlayRenderer(style CrimeStyle) *CrimeOverlayRenderer {
	return &CrimeOverlayRenderer{style: style}
}

// Render replaces the crime source and its layers on surface.
func (r *CrimeOverlayRenderer) Render(ctx context.Context, surface ports.MapSurface, incidents []domain.CrimeIncident) error {
	if !surface.Live() {
		return domain.ErrSurfaceDisposed
	}

	fc := IncidentsToGeoJSON(incidents)

	if err := surface.RemoveSource(ctx, CrimeSourceID); err != nil {
		return fmt.Errorf("remove crime source: %w", err)
	}
	if err := surface.AddSource(ctx, domain.Source{
		ID:             CrimeSourceID,
		Data:           fc,
		Cluster:        true,
		ClusterMaxZoom: crimeClusterMaxZoom,
		ClusterRadius:  crimeClusterRadius,
	}); err != nil {
		return fmt.Errorf("add crime source: %w", err)
	}

	layers := []domain.Layer{
		{
			ID:     CrimeClusterLayer,
			Type:   "circle",
			Source: CrimeSourceID,
			Filter: []any{"has", "point_count"},
			Paint: map[string]any{
				"circle-color":  r.style.ClusterColor,
				"circle-radius": clusterRadiusExpr(),
			},
		},
		{
			ID:     CrimeCountLayer,
			Type:   "symbol",
			Source: CrimeSourceID,
			Filter: []any{"has", "point_count"},
			Layout: map[string]any{
				"text-field": "{point_count_abbreviated}",
				"text-font":  []string{"DIN Offc Pro Medium", "Arial Unicode MS Bold"},
				"text-size":  12,
			},
			Paint: map[string]any{"text-color": "#ffffff"},
		},
		{
			ID:     CrimeUnclusteredLayer,
			Type:   "circle",
			Source: CrimeSourceID,
			Filter: []any{"!", []any{"has", "point_count"}},
			Paint: map[string]any{
				"circle-color":  r.style.PointColor,
				"circle-radius": r.style.PointRadius,
			},
			Popup:       &domain.LayerPopup{Label: "Crime Category: ", Property: "category"},
			HoverCursor: "pointer",
		},
	}
	for _, l := range layers {
		if err := surface.AddLayer(ctx, l); err != nil {
			return fmt.Errorf("add layer %s: %w", l.ID, err)
		}
	}
	return nil
}

// IncidentsToGeoJSON builds the point collection behind the crime source.
func IncidentsToGeoJSON(incidents []domain.CrimeIncident) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, inc := range incidents {
		f := geojson.NewFeature(orb.Point{inc.Location.Lng, inc.Location.Lat})
		f.Properties["category"] = inc.Category
		if inc.ID != 0 {
			f.Properties["id"] = inc.ID
		}
		if inc.Month != "" {
			f.Properties["month"] = inc.Month
		}
		if inc.Street != "" {
			f.Properties["street"] = inc.Street
		}
		fc.Append(f)
	}
	return fc
}
