package flow

import (
	"errors"

	"github.com/go-kratos/stepgraph/graph"
)

// Parallel wires a distributor that fans out to every branch and a synthesizer
// that joins them. Branch results merge in the order branches are listed.
func Parallel(distributor Step, branches []Step, synthesizer Step, opts ...graph.Option) (*graph.Graph, error) {
	if len(branches) < 2 {
		return nil, errors.New("flow: parallel needs at least two branches")
	}
	b := newBuilder(opts...)
	b.node(distributor)
	for _, s := range branches {
		b.node(s)
	}
	b.node(synthesizer)
	for _, s := range branches {
		b.edge(distributor.Name, s.Name)
		b.edge(s.Name, synthesizer.Name)
	}
	b.edge(synthesizer.Name, graph.End)
	b.entry(distributor.Name)
	return b.build()
}
