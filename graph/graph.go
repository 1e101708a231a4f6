package graph

import (
	"io"
	"log/slog"
	"maps"
	"time"
)

// End is the terminal marker. Routing a node to End finishes the run.
const End = "__end__"

// Option configures the Graph behavior.
type Option func(*Graph)

// WithSchema declares the state channels of the graph. Without a schema every
// field is accepted and overwritten on write.
func WithSchema(schema *Schema) Option {
	return func(g *Graph) {
		g.schema = schema
	}
}

// WithParallel toggles parallel fan-out execution. Defaults to true.
// When disabled, cohort branches run one after another in declaration order;
// the merge result is the same.
func WithParallel(enabled bool) Option {
	return func(g *Graph) {
		g.parallel = enabled
	}
}

// WithMaxConcurrency limits how many branches of one cohort run at once.
// Zero means unlimited.
func WithMaxConcurrency(n int) Option {
	return func(g *Graph) {
		g.maxConcurrency = n
	}
}

// WithTimeout bounds every run of the compiled graph. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Graph) {
		g.timeout = d
	}
}

// WithMiddleware sets a global middleware applied to all node handlers.
func WithMiddleware(ms ...Middleware) Option {
	return func(g *Graph) {
		g.middlewares = ms
	}
}

// WithLogger sets the logger used for run and node lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// conditionalEdges is the single routing dispatch attached to a node.
type conditionalEdges struct {
	router Router
	routes map[string]string
}

// Graph represents a directed graph of processing nodes under construction.
// It is compiled into an Executor once the definition is complete.
type Graph struct {
	nodes          map[string]Handler
	order          []string
	edges          map[string][]string
	conditionals   map[string]*conditionalEdges
	entryPoint     string
	schema         *Schema
	parallel       bool
	maxConcurrency int
	timeout        time.Duration
	middlewares    []Middleware
	logger         *slog.Logger
}

// NewGraph creates a new empty Graph.
func NewGraph(opts ...Option) *Graph {
	g := &Graph{
		nodes:        make(map[string]Handler),
		edges:        make(map[string][]string),
		conditionals: make(map[string]*conditionalEdges),
		parallel:     true,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// AddNode registers a named node with its handler.
func (g *Graph) AddNode(name string, handler Handler) error {
	if name == "" {
		return &GraphValidationError{Reason: "node name must not be empty"}
	}
	if name == End {
		return &GraphValidationError{Node: name, Reason: "name is reserved for the terminal marker"}
	}
	if handler == nil {
		return &GraphValidationError{Node: name, Reason: "handler must not be nil"}
	}
	if _, ok := g.nodes[name]; ok {
		return &DuplicateNodeError{Node: name}
	}
	g.nodes[name] = handler
	g.order = append(g.order, name)
	return nil
}

// AddEdge adds an unconditional edge. Several edges from the same node fan out
// to parallel branches. to may be End.
func (g *Graph) AddEdge(from, to string) error {
	if _, ok := g.nodes[from]; !ok {
		return &UnknownNodeError{Node: from}
	}
	if err := g.checkTarget(to); err != nil {
		return err
	}
	for _, existing := range g.edges[from] {
		if existing == to {
			return nil
		}
	}
	g.edges[from] = append(g.edges[from], to)
	return nil
}

// AddConditionalEdges attaches a router to from. After from runs, the router's
// label is looked up in routes to pick the single next node. Targets may be End.
func (g *Graph) AddConditionalEdges(from string, router Router, routes map[string]string) error {
	if _, ok := g.nodes[from]; !ok {
		return &UnknownNodeError{Node: from}
	}
	if router == nil {
		return &GraphValidationError{Node: from, Reason: "router must not be nil"}
	}
	if len(routes) == 0 {
		return &GraphValidationError{Node: from, Reason: "conditional edges need at least one route"}
	}
	if _, ok := g.conditionals[from]; ok {
		return &GraphValidationError{Node: from, Reason: "node already has conditional edges"}
	}
	for _, to := range routes {
		if err := g.checkTarget(to); err != nil {
			return err
		}
	}
	g.conditionals[from] = &conditionalEdges{
		router: router,
		routes: maps.Clone(routes),
	}
	return nil
}

// SetEntryPoint marks a node as the entry point.
func (g *Graph) SetEntryPoint(start string) error {
	if _, ok := g.nodes[start]; !ok {
		return &UnknownNodeError{Node: start}
	}
	g.entryPoint = start
	return nil
}

func (g *Graph) checkTarget(to string) error {
	if to == End {
		return nil
	}
	if _, ok := g.nodes[to]; !ok {
		return &UnknownNodeError{Node: to}
	}
	return nil
}
