package flow

import (
	"errors"

	"github.com/go-kratos/stepgraph/graph"
)

// Route binds a router label to the step it selects.
type Route struct {
	Label string
	Step  Step
}

// Branch wires a router step followed by a conditional dispatch: condition picks
// one of the routes and the selected step finishes the run.
func Branch(router Step, condition graph.Router, routes []Route, opts ...graph.Option) (*graph.Graph, error) {
	if len(routes) == 0 {
		return nil, errors.New("flow: branch needs at least one route")
	}
	b := newBuilder(opts...)
	b.node(router)
	targets := make(map[string]string, len(routes))
	for _, r := range routes {
		if _, ok := targets[r.Label]; ok {
			b.add(errors.New("flow: duplicate route label " + r.Label))
			continue
		}
		b.node(r.Step)
		b.edge(r.Step.Name, graph.End)
		targets[r.Label] = r.Step.Name
	}
	b.add(b.g.AddConditionalEdges(router.Name, condition, targets))
	b.entry(router.Name)
	return b.build()
}
