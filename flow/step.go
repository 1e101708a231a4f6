package flow

import (
	"errors"

	"github.com/go-kratos/stepgraph/graph"
)

// Step is a named node body used by the workflow builders.
type Step struct {
	Name    string
	Handler graph.Handler
}

// NewStep returns a Step.
func NewStep(name string, handler graph.Handler) Step {
	return Step{Name: name, Handler: handler}
}

// builder collects every error raised while wiring a graph so callers get the
// whole list at once.
type builder struct {
	g    *graph.Graph
	errs []error
}

func newBuilder(opts ...graph.Option) *builder {
	return &builder{g: graph.NewGraph(opts...)}
}

func (b *builder) node(s Step) {
	b.add(b.g.AddNode(s.Name, s.Handler))
}

func (b *builder) edge(from, to string) {
	b.add(b.g.AddEdge(from, to))
}

func (b *builder) entry(name string) {
	b.add(b.g.SetEntryPoint(name))
}

func (b *builder) add(err error) {
	if err != nil {
		b.errs = append(b.errs, err)
	}
}

func (b *builder) build() (*graph.Graph, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	return b.g, nil
}
