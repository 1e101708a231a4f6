package flow

import (
	"errors"

	"github.com/go-kratos/stepgraph/graph"
)

// Sequential wires steps into a chain: each step runs after the previous one and
// the last one finishes the run.
func Sequential(steps []Step, opts ...graph.Option) (*graph.Graph, error) {
	if len(steps) == 0 {
		return nil, errors.New("flow: sequential needs at least one step")
	}
	b := newBuilder(opts...)
	for _, s := range steps {
		b.node(s)
	}
	for i := 0; i < len(steps)-1; i++ {
		b.edge(steps[i].Name, steps[i+1].Name)
	}
	b.edge(steps[len(steps)-1].Name, graph.End)
	b.entry(steps[0].Name)
	return b.build()
}
