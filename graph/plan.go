package graph

import "slices"

// cohort is the set of branches started by one fork and the node they join on.
type cohort struct {
	fork    string
	members []string
	join    string
	// beyond holds the nodes that only run after the join.
	beyond map[string]bool
}

// Plan is the immutable, validated form of a Graph.
type Plan struct {
	entry        string
	order        []string
	handlers     map[string]Handler
	next         map[string]string
	conditionals map[string]*conditionalEdges
	cohorts      map[string]*cohort
	schema       *Schema
}

// Entry returns the entry node.
func (p *Plan) Entry() string {
	return p.entry
}

// Nodes returns the node names in declaration order.
func (p *Plan) Nodes() []string {
	return slices.Clone(p.order)
}

// Successors returns the possible next nodes of node. End is included when the
// node can finish the run.
func (p *Plan) Successors(node string) []string {
	if next, ok := p.next[node]; ok {
		return []string{next}
	}
	if co, ok := p.cohorts[node]; ok {
		return slices.Clone(co.members)
	}
	if cond, ok := p.conditionals[node]; ok {
		return routeTargets(cond)
	}
	return nil
}

// Cohort reports the branches started by fork and their join node.
func (p *Plan) Cohort(fork string) (members []string, join string, ok bool) {
	co, ok := p.cohorts[fork]
	if !ok {
		return nil, "", false
	}
	return slices.Clone(co.members), co.join, true
}

// Schema returns the state schema the plan was compiled with.
func (p *Plan) Schema() *Schema {
	return p.schema
}

// routeTargets returns the distinct targets of a dispatch ordered by label.
func routeTargets(cond *conditionalEdges) []string {
	labels := make([]string, 0, len(cond.routes))
	for label := range cond.routes {
		labels = append(labels, label)
	}
	slices.Sort(labels)
	targets := make([]string, 0, len(labels))
	for _, label := range labels {
		to := cond.routes[label]
		if !slices.Contains(targets, to) {
			targets = append(targets, to)
		}
	}
	return targets
}
