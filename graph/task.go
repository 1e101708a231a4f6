package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// branch is the line of control a chain of nodes runs on. The main line owns
// the run state directly; a cohort branch starts from the pre-fork snapshot and
// additionally records its writes in order so they can be replayed at the join.
type branch struct {
	fork    string
	state   State
	tracked bool
	writes  []State
}

// Task holds the per-run context of one Execute call.
type Task struct {
	executor *Executor
	runID    string
	logger   *slog.Logger
}

func (t *Task) execute(ctx context.Context, state State) (State, error) {
	root := &branch{state: state}
	if err := t.runChain(ctx, t.executor.plan.entry, End, root); err != nil {
		return nil, err
	}
	return root.state, nil
}

// runChain executes nodes one after another starting at node until stop or End
// is reached.
func (t *Task) runChain(ctx context.Context, node, stop string, b *branch) error {
	for node != stop && node != End {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.status(ctx, node, StatusPending, b)
		delta, err := t.executeNode(ctx, node, b)
		if err != nil {
			t.status(ctx, node, StatusFailed, b, slog.Any("error", err))
			return err
		}
		if err := t.commit(node, b, delta); err != nil {
			t.status(ctx, node, StatusFailed, b, slog.Any("error", err))
			return err
		}
		t.status(ctx, node, StatusCompleted, b)
		if node, err = t.next(ctx, node, b); err != nil {
			return err
		}
	}
	return nil
}

func (t *Task) executeNode(ctx context.Context, node string, b *branch) (State, error) {
	handler := t.executor.plan.handlers[node]
	if handler == nil {
		return nil, fmt.Errorf("graph: node %s handler missing", node)
	}
	nodeCtx := NewNodeContext(ctx, &NodeContext{Name: node, RunID: t.runID, Fork: b.fork})
	t.status(ctx, node, StatusRunning, b)
	delta, err := invoke(nodeCtx, handler, b.state.Clone())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		return nil, &NodeExecutionError{Node: node, Fork: b.fork, Err: err}
	}
	return delta, nil
}

// invoke calls the handler and returns as soon as either the handler finishes
// or ctx is done, so a handler ignoring cancellation cannot stall the run.
func invoke(ctx context.Context, handler Handler, state State) (State, error) {
	return guard(ctx, func() (State, error) {
		return handler(ctx, state)
	})
}

// guard runs fn on its own goroutine, turning a panic into an error and giving
// up once ctx is done.
func guard[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn()
		done <- result{value: v, err: err}
	}()
	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// commit merges a node's delta into the branch.
func (t *Task) commit(node string, b *branch, delta State) error {
	schema := t.executor.plan.schema
	state, err := ApplyDelta(schema, b.state, delta)
	if err != nil {
		return withNode(err, node)
	}
	if b.tracked && len(delta) > 0 {
		b.writes = append(b.writes, delta)
	}
	b.state = state
	return nil
}

// next resolves the node that follows node, running its cohort first when node
// is a fork.
func (t *Task) next(ctx context.Context, node string, b *branch) (string, error) {
	plan := t.executor.plan
	if next, ok := plan.next[node]; ok {
		return next, nil
	}
	if co, ok := plan.cohorts[node]; ok {
		if err := t.fanOut(ctx, co, b); err != nil {
			return "", err
		}
		return co.join, nil
	}
	if cond, ok := plan.conditionals[node]; ok {
		label, err := t.route(ctx, node, cond.router, b)
		if err != nil {
			return "", err
		}
		target, ok := cond.routes[label]
		if !ok {
			return "", &RoutingError{Node: node, Label: label}
		}
		t.logger.DebugContext(ctx, "route selected",
			slog.String("node", node),
			slog.String("label", label),
			slog.String("target", target),
		)
		return target, nil
	}
	return "", &GraphValidationError{Node: node, Reason: "node has no outgoing edges"}
}

// route asks the router of node for a label under the same protection node
// handlers get.
func (t *Task) route(ctx context.Context, node string, router Router, b *branch) (string, error) {
	state := b.state.Clone()
	label, err := guard(ctx, func() (string, error) {
		return router(ctx, state), nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return "", err
		}
		return "", &NodeExecutionError{Node: node, Fork: b.fork, Err: fmt.Errorf("router: %w", err)}
	}
	return label, nil
}

// fanOut runs every branch of the cohort from the same snapshot and merges
// their contributions into b in declaration order once all have finished.
func (t *Task) fanOut(ctx context.Context, co *cohort, b *branch) error {
	t.status(ctx, co.fork, StatusAwaitingJoin, b,
		slog.Any("branches", co.members),
		slog.String("join", co.join),
	)
	snapshot := b.state.Clone()
	branches := make([]*branch, len(co.members))
	run := func(ctx context.Context, i int) error {
		br := &branch{fork: co.fork, state: snapshot.Clone(), tracked: true}
		if err := t.runChain(ctx, co.members[i], co.join, br); err != nil {
			return err
		}
		branches[i] = br
		return nil
	}

	if t.executor.parallel {
		// A failed branch keeps unstarted siblings from launching; running ones
		// finish on ctx and their results are dropped.
		var (
			eg     errgroup.Group
			failed atomic.Bool
		)
		if t.executor.maxConcurrency > 0 {
			eg.SetLimit(t.executor.maxConcurrency)
		}
		for i := range co.members {
			eg.Go(func() error {
				if failed.Load() {
					return nil
				}
				if err := run(ctx, i); err != nil {
					failed.Store(true)
					return err
				}
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
	} else {
		for i := range co.members {
			if err := run(ctx, i); err != nil {
				return err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	schema := t.executor.plan.schema
	state := b.state
	for i, br := range branches {
		for _, w := range br.writes {
			var err error
			if state, err = ApplyDelta(schema, state, w); err != nil {
				return withNode(err, co.members[i])
			}
		}
	}
	if b.tracked {
		for _, br := range branches {
			b.writes = append(b.writes, br.writes...)
		}
	}
	b.state = state
	t.logger.DebugContext(ctx, "cohort joined",
		slog.String("fork", co.fork),
		slog.String("join", co.join),
	)
	return nil
}

func (t *Task) status(ctx context.Context, node string, status Status, b *branch, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("node", node), slog.String("status", string(status)))
	if b.fork != "" {
		attrs = append(attrs, slog.String("fork", b.fork))
	}
	t.logger.LogAttrs(ctx, slog.LevelDebug, "node status", attrs...)
}

func withNode(err error, node string) error {
	var fe *FieldError
	if errors.As(err, &fe) && fe.Node == "" {
		fe.Node = node
	}
	return err
}
