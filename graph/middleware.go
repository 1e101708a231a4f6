package graph

import "context"

// Handler is the body of a node. It receives a private copy of the current state
// and returns the fields it wants to write; the engine merges them according to
// the schema. Handlers must not keep or mutate references reachable from the
// incoming state (slices, maps, pointers).
type Handler func(ctx context.Context, state State) (State, error)

// Router selects the next node by label after its node has run. It sees the
// state with the node's own update already merged.
type Router func(ctx context.Context, state State) string

// Middleware is a function that wraps a Handler with additional functionality.
type Middleware func(Handler) Handler

// ChainMiddlewares composes middlewares into one, applying them in order.
// The first middleware becomes the outermost wrapper.
func ChainMiddlewares(mws ...Middleware) Middleware {
	return func(next Handler) Handler {
		h := next
		for i := len(mws) - 1; i >= 0; i-- { // apply in reverse to make mws[0] outermost
			h = mws[i](h)
		}
		return h
	}
}
