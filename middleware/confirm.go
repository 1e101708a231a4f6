package middleware

import (
	"context"
	"errors"

	"github.com/go-kratos/stepgraph/graph"
)

var (
	// ErrConfirmDenied is returned when confirmation middleware denies execution.
	ErrConfirmDenied = errors.New("confirmation denied")
)

// ConfirmFunc is a callback used by the confirmation middleware
// to decide whether a node should run. It returns true to allow
// execution, false to deny, and may return an error to abort.
type ConfirmFunc func(ctx context.Context, node string, state graph.State) (bool, error)

// Confirm returns a Middleware that invokes the provided confirmation
// callback before delegating to the next Handler. If confirmation is
// denied, it returns ErrConfirmDenied and the run fails at that node.
// If the callback returns an error, that error is propagated.
func Confirm(confirm ConfirmFunc) graph.Middleware {
	return func(next graph.Handler) graph.Handler {
		return func(ctx context.Context, state graph.State) (graph.State, error) {
			var node string
			if nc, ok := graph.FromNodeContext(ctx); ok {
				node = nc.Name
			}
			ok, err := confirm(ctx, node, state)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrConfirmDenied
			}
			return next(ctx, state)
		}
	}
}
