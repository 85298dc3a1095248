package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/pintfinder/internal/core/domain"
)

// EnrichmentInput is the input for the enrichment workflow.
type EnrichmentInput struct {
	Session string
	Lng     float64
	Lat     float64
}

// EnrichmentResult reports what the workflow warmed.
type EnrichmentResult struct {
	Incidents int
}

func NewEnrichmentInput(session string, origin domain.Coordinate) EnrichmentInput {
	return EnrichmentInput{Session: session, Lng: origin.Lng, Lat: origin.Lat}
}

// EnrichmentWorkflow warms the crime cache around a freshly picked origin,
// so the submit that follows draws its overlay from cache instead of
// waiting on the feed.
func EnrichmentWorkflow(ctx workflow.Context, input EnrichmentInput) (EnrichmentResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting enrichment workflow", "session", input.Session, "lng", input.Lng, "lat", input.Lat)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var res EnrichmentResult
	if err := workflow.ExecuteActivity(ctx, "WarmCrimeCache", input.Lng, input.Lat).Get(ctx, &res.Incidents); err != nil {
		logger.Warn("crime cache not warmed", "error", err)
		return res, err
	}

	logger.Info("Enrichment finished", "incidents", res.Incidents)
	return res, nil
}
