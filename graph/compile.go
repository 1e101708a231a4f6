package graph

import (
	"fmt"
	"slices"
	"strings"
)

// Compile validates the graph and compiles it into an Executor.
// The graph must have an entry point, every node must have an outgoing edge or
// a conditional dispatch, the topology must be acyclic with every node reachable
// from the entry, and every fan-out must have a common join node.
func (g *Graph) Compile() (*Executor, error) {
	plan, err := g.plan()
	if err != nil {
		return nil, err
	}
	return newExecutor(plan, g), nil
}

func (g *Graph) plan() (*Plan, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	if err := g.ensureAcyclic(); err != nil {
		return nil, err
	}
	if err := g.ensureReachable(); err != nil {
		return nil, err
	}
	cohorts, err := g.detectCohorts()
	if err != nil {
		return nil, err
	}
	plan := &Plan{
		entry:        g.entryPoint,
		order:        slices.Clone(g.order),
		handlers:     make(map[string]Handler, len(g.nodes)),
		next:         make(map[string]string),
		conditionals: make(map[string]*conditionalEdges, len(g.conditionals)),
		cohorts:      cohorts,
		schema:       g.schema,
	}
	for _, name := range g.order {
		handler := g.nodes[name]
		if len(g.middlewares) > 0 {
			handler = ChainMiddlewares(g.middlewares...)(handler)
		}
		plan.handlers[name] = handler
		if edges := g.edges[name]; len(edges) == 1 {
			plan.next[name] = edges[0]
		}
		if cond, ok := g.conditionals[name]; ok {
			plan.conditionals[name] = cond
		}
	}
	if err := plan.checkRegions(); err != nil {
		return nil, err
	}
	return plan, nil
}

// validate ensures the graph configuration is correct before compiling.
func (g *Graph) validate() error {
	if g.entryPoint == "" {
		return &GraphValidationError{Reason: "entry point not set"}
	}
	for _, name := range g.order {
		edges, cond := g.edges[name], g.conditionals[name]
		switch {
		case len(edges) > 0 && cond != nil:
			return &GraphValidationError{Node: name, Reason: "node has both unconditional and conditional edges"}
		case len(edges) == 0 && cond == nil:
			return &GraphValidationError{Node: name, Reason: "node has no outgoing edges; route it to End to finish the run"}
		}
	}
	return nil
}

// successors lists the possible next nodes of a node, End included.
func (g *Graph) successors(node string) []string {
	if cond, ok := g.conditionals[node]; ok {
		return routeTargets(cond)
	}
	return g.edges[node]
}

// ensureAcyclic verifies that the graph does not contain directed cycles.
func (g *Graph) ensureAcyclic() error {
	const (
		stateUnvisited = iota
		stateVisiting
		stateVisited
	)
	states := make(map[string]int, len(g.nodes))
	stack := make([]string, 0, len(g.nodes))

	var visit func(string) error
	visit = func(node string) error {
		states[node] = stateVisiting
		stack = append(stack, node)

		for _, next := range g.successors(node) {
			if next == End {
				continue
			}
			switch states[next] {
			case stateVisiting:
				cycleStart := slices.Index(stack, next)
				cycle := append(slices.Clone(stack[cycleStart:]), next)
				return &GraphValidationError{Node: next, Reason: fmt.Sprintf("cycles are not supported (cycle: %s)", strings.Join(cycle, " -> "))}
			case stateUnvisited:
				if err := visit(next); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		states[node] = stateVisited
		return nil
	}

	for _, name := range g.order {
		if states[name] == stateUnvisited {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// ensureReachable verifies that every node can be reached from the entry and
// that the entry can reach End.
func (g *Graph) ensureReachable() error {
	dist := g.distances(g.entryPoint)
	for _, name := range g.order {
		if _, ok := dist[name]; !ok {
			return &GraphValidationError{Node: name, Reason: "node is not reachable from entry point " + g.entryPoint}
		}
	}
	if _, ok := dist[End]; !ok {
		return &GraphValidationError{Node: g.entryPoint, Reason: "no path from the entry point reaches End"}
	}
	return nil
}

// distances runs a BFS from node and returns the hop count to every reachable
// node. End is reported but never expanded.
func (g *Graph) distances(node string) map[string]int {
	dist := map[string]int{node: 0}
	queue := []string{node}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == End {
			continue
		}
		for _, next := range g.successors(current) {
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = dist[current] + 1
			queue = append(queue, next)
		}
	}
	return dist
}

// detectCohorts groups the targets of every fan-out node and finds the node
// they join on: the common successor with the smallest sum of distances.
func (g *Graph) detectCohorts() (map[string]*cohort, error) {
	cohorts := make(map[string]*cohort)
	for _, fork := range g.order {
		members := g.edges[fork]
		if len(members) < 2 {
			continue
		}
		if slices.Contains(members, End) {
			return nil, &GraphValidationError{Node: fork, Reason: "fan-out edges cannot target End"}
		}
		dists := make([]map[string]int, len(members))
		for i, member := range members {
			dists[i] = g.distances(member)
			for _, other := range members {
				if other == member {
					continue
				}
				if _, ok := dists[i][other]; ok {
					return nil, &GraphValidationError{Node: fork, Reason: fmt.Sprintf("branch %s reaches sibling branch %s", member, other)}
				}
			}
		}
		join, best := "", -1
		for _, candidate := range g.order {
			sum := 0
			for _, dist := range dists {
				d, ok := dist[candidate]
				if !ok {
					sum = -1
					break
				}
				sum += d
			}
			if sum < 0 {
				continue
			}
			if best < 0 || sum < best {
				join, best = candidate, sum
			}
		}
		if join == "" {
			return nil, &UnmatchedForkError{Fork: fork, Members: slices.Clone(members)}
		}
		beyond := make(map[string]bool)
		for node := range g.distances(join) {
			if node != join && node != End {
				beyond[node] = true
			}
		}
		cohorts[fork] = &cohort{fork: fork, members: slices.Clone(members), join: join, beyond: beyond}
	}
	return cohorts, nil
}

// checkRegions walks every execution path and verifies that each branch stays
// inside its cohort until it reaches the cohort's join.
func (p *Plan) checkRegions() error {
	seen := make(map[string]bool)
	return p.walkRegion(p.entry, End, nil, nil, seen)
}

// walkRegion follows the paths from node until stop. Inside a branch, co is the
// cohort the branch belongs to and outer lists the joins of enclosing cohorts.
func (p *Plan) walkRegion(node, stop string, co *cohort, outer []string, seen map[string]bool) error {
	for node != stop && node != End {
		if slices.Contains(outer, node) {
			return &GraphValidationError{Node: node, Reason: "branch reaches the join of an enclosing cohort before its own join"}
		}
		if co != nil && co.beyond[node] {
			return &GraphValidationError{Node: node, Reason: fmt.Sprintf("branch of fork %s skips its join %s", co.fork, co.join)}
		}
		key := node + "\x00" + stop + "\x00" + strings.Join(outer, "\x00")
		if seen[key] {
			return nil
		}
		seen[key] = true

		if inner, ok := p.cohorts[node]; ok {
			joins := slices.Clone(outer)
			if stop != End {
				joins = append(joins, stop)
			}
			for _, member := range inner.members {
				if err := p.walkRegion(member, inner.join, inner, joins, seen); err != nil {
					return err
				}
			}
			node = inner.join
			continue
		}
		if cond, ok := p.conditionals[node]; ok {
			for _, target := range routeTargets(cond) {
				if err := p.walkRegion(target, stop, co, outer, seen); err != nil {
					return err
				}
			}
			return nil
		}
		node = p.next[node]
	}
	return nil
}
