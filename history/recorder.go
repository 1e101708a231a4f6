package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/go-kratos/stepgraph/graph"
)

// Execute runs executor with initial and saves the outcome to store under
// workflow. The run's result is returned unchanged; a failure to save is
// returned only when the run itself succeeded.
func Execute(ctx context.Context, store Store, workflow string, executor *graph.Executor, initial graph.State) (graph.State, *Record, error) {
	record := &Record{
		ID:        uuid.NewString(),
		Workflow:  workflow,
		Input:     initial.Clone(),
		StartedAt: time.Now(),
	}
	final, runErr := executor.Execute(ctx, initial)
	record.Duration = time.Since(record.StartedAt)
	if runErr != nil {
		record.Status = graph.StatusFailed
		record.Error = runErr.Error()
	} else {
		record.Status = graph.StatusCompleted
		record.Output = final
	}
	// Save even when the run was canceled.
	saveErr := store.Save(context.WithoutCancel(ctx), record)
	if runErr != nil {
		return nil, record, runErr
	}
	if saveErr != nil {
		return final, record, saveErr
	}
	return final, record, nil
}
