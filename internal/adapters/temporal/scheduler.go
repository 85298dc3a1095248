// Package temporaladapter starts enrichment workflows on a Temporal cluster.
package temporaladapter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/pintfinder/internal/core/domain"
	"github.com/samirrijal/pintfinder/internal/workflows"
)

// workflowStarter is the part of client.Client the scheduler uses.
type workflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// Scheduler implements ports.EnrichmentScheduler.
type Scheduler struct {
	client    workflowStarter
	taskQueue string
}

func NewScheduler(c client.Client, taskQueue string) *Scheduler {
	return &Scheduler{client: c, taskQueue: taskQueue}
}

// ScheduleEnrichment starts an enrichment workflow for origin and returns
// without waiting for it.
func (s *Scheduler) ScheduleEnrichment(ctx context.Context, session string, origin domain.Coordinate) error {
	if err := origin.Validate(); err != nil {
		return err
	}
	input := workflows.NewEnrichmentInput(session, origin)
	opts := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("enrich-%s-%s", session, uuid.NewString()),
		TaskQueue: s.taskQueue,
	}
	if _, err := s.client.ExecuteWorkflow(ctx, opts, workflows.EnrichmentWorkflow, input); err != nil {
		return fmt.Errorf("start enrichment: %w", err)
	}
	return nil
}
