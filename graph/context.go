package graph

import "context"

type ctxNodeKey struct{}

// NodeContext describes the node a handler is running as.
type NodeContext struct {
	// Name of the running node.
	Name string
	// RunID identifies the invocation the node belongs to.
	RunID string
	// Fork names the node that started the cohort this node runs in, if any.
	Fork string
}

// NewNodeContext returns a new context with the given NodeContext.
func NewNodeContext(ctx context.Context, node *NodeContext) context.Context {
	return context.WithValue(ctx, ctxNodeKey{}, node)
}

// FromNodeContext retrieves the NodeContext from the context, if present.
func FromNodeContext(ctx context.Context) (*NodeContext, bool) {
	node, ok := ctx.Value(ctxNodeKey{}).(*NodeContext)
	return node, ok
}
