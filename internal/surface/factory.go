package surface

import (
	"context"

	"github.com/samirrijal/pintfinder/internal/core/domain"
	"github.com/samirrijal/pintfinder/internal/core/ports"
)

// Factory initializes handles with shared map options. It implements
// ports.SurfaceFactory.
type Factory struct {
	Views     ports.ViewRegistry
	Publisher ports.SurfacePublisher
	Options   domain.MapOptions
}

func (f *Factory) NewSurface(ctx context.Context, view string, center domain.Coordinate) (ports.ViewSurface, error) {
	h, err := Initialize(ctx, f.Views, f.Publisher, view, center, f.Options)
	if err != nil {
		return nil, err
	}
	return h, nil
}
