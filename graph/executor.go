package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a node or of a whole run.
type Status string

const (
	// StatusPending marks a node scheduled to run next.
	StatusPending Status = "pending"
	// StatusRunning marks a node whose handler is executing.
	StatusRunning Status = "running"
	// StatusAwaitingJoin marks a fork waiting for all branches of its cohort.
	StatusAwaitingJoin Status = "awaiting_join"
	// StatusCompleted marks a finished node or a run that reached End.
	StatusCompleted Status = "completed"
	// StatusFailed marks a node or run that stopped with an error.
	StatusFailed Status = "failed"
)

// Executor runs a compiled graph. It holds no per-run state and may be used by
// several goroutines at once; every call to Execute gets its own Task.
type Executor struct {
	plan           *Plan
	parallel       bool
	maxConcurrency int
	timeout        time.Duration
	logger         *slog.Logger
}

func newExecutor(plan *Plan, g *Graph) *Executor {
	return &Executor{
		plan:           plan,
		parallel:       g.parallel,
		maxConcurrency: g.maxConcurrency,
		timeout:        g.timeout,
		logger:         g.logger,
	}
}

// Plan returns the compiled plan.
func (e *Executor) Plan() *Plan {
	return e.plan
}

// Execute runs the graph from its entry point until End is reached and returns
// the final state. Fields missing from initial take their schema defaults.
func (e *Executor) Execute(ctx context.Context, initial State) (State, error) {
	state, err := e.initialState(initial)
	if err != nil {
		return nil, err
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	task := &Task{
		executor: e,
		runID:    uuid.NewString(),
	}
	logger := e.logger.With(slog.String("run_id", task.runID))
	task.logger = logger

	started := time.Now()
	logger.InfoContext(ctx, "run started", slog.String("entry", e.plan.entry))
	final, err := task.execute(ctx, state)
	if err != nil {
		err = e.classify(ctx, err)
		logger.ErrorContext(ctx, "run finished",
			slog.String("status", string(StatusFailed)),
			slog.Duration("duration", time.Since(started)),
			slog.Any("error", err),
		)
		return nil, err
	}
	logger.InfoContext(ctx, "run finished",
		slog.String("status", string(StatusCompleted)),
		slog.Duration("duration", time.Since(started)),
	)
	return final, nil
}

// initialState layers the caller's values over the schema defaults.
func (e *Executor) initialState(initial State) (State, error) {
	schema := e.plan.schema
	state := schema.Defaults()
	keys := make([]string, 0, len(initial))
	for k := range initial {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		v := copySlice(initial[k])
		if err := schema.check(k, v); err != nil {
			return nil, &FieldError{Field: k, Err: err}
		}
		state[k] = v
	}
	return state, nil
}

// classify turns context errors caused by the run deadline or cancellation into
// the public error types.
func (e *Executor) classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &TimeoutError{Timeout: e.timeout, Err: err}
	case errors.Is(ctx.Err(), context.Canceled):
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("graph: run canceled: %w", err)
		}
	}
	return err
}
