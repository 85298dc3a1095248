package policeuk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samirrijal/pintfinder/internal/core/domain"
)

const sampleCrimes = `[
	{"category":"burglary","location_type":"Force","location":{"latitude":"51.425812","street":{"id":1,"name":"On or near High Street"},"longitude":"-0.565912"},"id":115000001,"month":"2024-01"},
	{"category":"violent-crime","location":{"latitude":"not-a-number","street":{"name":"x"},"longitude":"-0.5"},"id":115000002,"month":"2024-01"},
	{"category":"shoplifting","location":{"latitude":"51.4301","street":{"name":"On or near Station Road"},"longitude":"-0.5702"},"id":115000003,"month":"2024-01"}
]`

func TestFetchIncidents(t *testing.T) {
	var gotPath, gotDate, gotLat, gotLng string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotDate = r.URL.Query().Get("date")
		gotLat = r.URL.Query().Get("lat")
		gotLng = r.URL.Query().Get("lng")
		_, _ = w.Write([]byte(sampleCrimes))
	}))
	defer srv.Close()

	c := New(srv.URL, 15, time.Second)
	got, err := c.FetchIncidents(context.Background(), domain.Coordinate{Lng: -0.5658, Lat: 51.4258}, "2024-01", "all-crime")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if gotPath != "/crimes-street/all-crime" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotDate != "2024-01" || gotLat != "51.4258" || gotLng != "-0.5658" {
		t.Errorf("unexpected query date=%s lat=%s lng=%s", gotDate, gotLat, gotLng)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 valid incidents, got %d", len(got))
	}
	first := got[0]
	if first.Category != "burglary" || first.Location.Lat != 51.425812 || first.Location.Lng != -0.565912 {
		t.Errorf("unexpected incident %+v", first)
	}
	if first.Street != "On or near High Street" || first.ID != 115000001 {
		t.Errorf("unexpected incident details %+v", first)
	}
}

func TestFetchIncidents_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) }},
		{"bad json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"oops"`)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := New(srv.URL, 15, time.Second).FetchIncidents(context.Background(), domain.Coordinate{}, "2024-01", "all-crime")
			if !errors.Is(err, domain.ErrCrimeFeed) {
				t.Fatalf("expected ErrCrimeFeed, got %v", err)
			}
		})
	}
}

func TestFetchIncidents_CancelledWhileRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(srv.URL, 0.001, time.Second)
	if _, err := c.FetchIncidents(context.Background(), domain.Coordinate{}, "2024-01", "all-crime"); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.FetchIncidents(ctx, domain.Coordinate{}, "2024-01", "all-crime"); !errors.Is(err, domain.ErrCrimeFeed) {
		t.Fatalf("expected ErrCrimeFeed while rate limited, got %v", err)
	}
}
