package workflows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/pintfinder/internal/core/domain"
	"github.com/samirrijal/pintfinder/internal/core/usecases"
)

var origin = domain.Coordinate{Lng: -0.5658, Lat: 51.4258}

// countingFeed is the crime feed behind the cache.
type countingFeed struct {
	mu    sync.Mutex
	calls int
}

func (f *countingFeed) FetchIncidents(_ context.Context, _ domain.Coordinate, _, _ string) ([]domain.CrimeIncident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return []domain.CrimeIncident{
		{Category: "burglary", Location: origin},
		{Category: "anti-social-behaviour", Location: origin},
	}, nil
}

func (f *countingFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func TestEnrichmentWorkflow_WarmsSubmitQuery(t *testing.T) {
	feed := &countingFeed{}
	cache := &memCache{data: make(map[string][]byte)}
	defaults := usecases.CrimeDefaults{Month: "2024-01", Category: "all-crime", CacheTTL: time.Hour}

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(EnrichmentWorkflow)
	env.RegisterActivity(&EnrichmentActivities{Crimes: usecases.NewCrimeService(feed, cache, defaults)})

	env.ExecuteWorkflow(EnrichmentWorkflow, NewEnrichmentInput("s1", origin))

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var res EnrichmentResult
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatalf("result: %v", err)
	}
	if res.Incidents != 2 || feed.count() != 1 {
		t.Fatalf("expected 2 incidents from one feed call, got %+v after %d calls", res, feed.count())
	}

	// A submit from the same origin, in another process sharing the cache,
	// asks for the default month and category and must not reach the feed.
	api := usecases.NewCrimeService(feed, cache, defaults)
	got := api.FetchIncidents(context.Background(), origin, "", "")
	if len(got) != 2 {
		t.Errorf("expected 2 cached incidents, got %d", len(got))
	}
	if feed.count() != 1 {
		t.Errorf("expected the warmed cache to serve the submit, feed called %d times", feed.count())
	}
}

func TestEnrichmentWorkflow_InvalidOrigin(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(EnrichmentWorkflow)
	env.RegisterActivity(&EnrichmentActivities{Crimes: usecases.NewCrimeService(&countingFeed{}, nil, usecases.CrimeDefaults{})})

	env.ExecuteWorkflow(EnrichmentWorkflow, EnrichmentInput{Session: "s1", Lng: 200, Lat: 0})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if env.GetWorkflowError() == nil {
		t.Fatal("expected workflow error for an invalid origin")
	}
}
