// Package demo holds the sample workflows shipped with the stepgraph CLI.
// Node bodies are placeholders standing in for model calls.
package demo

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/go-kratos/stepgraph/flow"
	"github.com/go-kratos/stepgraph/graph"
)

// SampleText is the default original_text of every workflow.
const SampleText = "Large language models are powerful AI systems trained on vast amounts of text data. " +
	"They can generate human-like text, translate languages, write different kinds of creative content, " +
	"and answer your questions in an informative way."

// State fields shared by the workflows.
const (
	FieldOriginalText = "original_text"
	FieldSummary      = "summary"
	FieldTranslation  = "translation"
	FieldDecider      = "decider"
	FieldResultText   = "result_text"
	FieldCurrentStep  = "current_step"
	FieldInt          = "int"
)

// Workflow is a named graph definition.
type Workflow struct {
	Name        string
	Description string
	// UsesDecider reports whether the workflow reads the decider field.
	UsesDecider bool
	build       func(opts ...graph.Option) (*graph.Graph, error)
}

// Build returns a fresh graph for the workflow. The workflow schema is applied
// before opts.
func (w Workflow) Build(opts ...graph.Option) (*graph.Graph, error) {
	return w.build(opts...)
}

// Initial returns the initial state of the workflow with overrides applied.
func (w Workflow) Initial(overrides graph.State) graph.State {
	state := graph.State{FieldOriginalText: SampleText}
	for k, v := range overrides {
		state[k] = v
	}
	return state
}

var workflows = map[string]Workflow{
	"chaining": {
		Name:        "chaining",
		Description: "summarize the text, then translate the summary",
		build:       Chaining,
	},
	"parallelization": {
		Name:        "parallelization",
		Description: "summarize and translate in parallel, then synthesize",
		build:       Parallelization,
	},
	"routing": {
		Name:        "routing",
		Description: "route to summarize or translate depending on decider",
		UsesDecider: true,
		build:       Routing,
	},
}

// Workflows returns every workflow ordered by name.
func Workflows() []Workflow {
	out := make([]Workflow, 0, len(workflows))
	for _, name := range names() {
		out = append(out, workflows[name])
	}
	return out
}

// Lookup returns the named workflow.
func Lookup(name string) (Workflow, error) {
	w, ok := workflows[name]
	if !ok {
		return Workflow{}, fmt.Errorf("demo: unknown workflow %q (available: %v)", name, names())
	}
	return w, nil
}

func names() []string {
	out := make([]string, 0, len(workflows))
	for name := range workflows {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Schema returns the state schema of the branching workflows.
func Schema() *graph.Schema {
	return graph.MustSchema(baseFields()...)
}

// ChainingSchema returns the state schema of the chaining workflow, where
// summary and translation hold text.
func ChainingSchema() *graph.Schema {
	return graph.MustSchema(
		graph.Field{Name: FieldOriginalText, Type: &jsonschema.Schema{Type: "string"}},
		graph.Field{Name: FieldSummary, Type: &jsonschema.Schema{Type: "string"}},
		graph.Field{Name: FieldTranslation, Type: &jsonschema.Schema{Type: "string"}},
		graph.Field{Name: FieldCurrentStep, Type: &jsonschema.Schema{Type: "string"}, Default: "initial"},
		graph.Field{Name: FieldInt, Type: &jsonschema.Schema{Type: "integer"}},
	)
}

func baseFields() []graph.Field {
	return []graph.Field{
		{Name: FieldOriginalText, Type: &jsonschema.Schema{Type: "string"}},
		{Name: FieldSummary, Type: &jsonschema.Schema{Type: "boolean"}},
		{Name: FieldTranslation, Type: &jsonschema.Schema{Type: "boolean"}},
		{Name: FieldDecider, Type: &jsonschema.Schema{Type: "number"}},
		{Name: FieldResultText, Type: &jsonschema.Schema{Type: "string"}, Policy: graph.Append},
	}
}

// Chaining runs summarize then translate.
func Chaining(opts ...graph.Option) (*graph.Graph, error) {
	return flow.Sequential([]flow.Step{
		flow.NewStep("summarize", summarizeText),
		flow.NewStep("translate", translateText),
	}, withSchema(ChainingSchema(), opts)...)
}

// Parallelization fans out to summarize and translate and joins on synthesize.
func Parallelization(opts ...graph.Option) (*graph.Graph, error) {
	return flow.Parallel(
		flow.NewStep("distribute", greet),
		[]flow.Step{
			flow.NewStep("summarize", summarize),
			flow.NewStep("translate", translate),
		},
		flow.NewStep("synthesize", synthesize),
		withSchema(Schema(), opts)...,
	)
}

// Routing sends the run to summarize when decider is above 0.5 and to
// translate otherwise.
func Routing(opts ...graph.Option) (*graph.Graph, error) {
	return flow.Branch(
		flow.NewStep("route", greet),
		decide,
		[]flow.Route{
			{Label: "summarize", Step: flow.NewStep("summarize", summarize)},
			{Label: "translate", Step: flow.NewStep("translate", translate)},
		},
		withSchema(Schema(), opts)...,
	)
}

func withSchema(schema *graph.Schema, opts []graph.Option) []graph.Option {
	return append([]graph.Option{graph.WithSchema(schema)}, opts...)
}

func greet(ctx context.Context, state graph.State) (graph.State, error) {
	return graph.State{FieldResultText: "This is"}, nil
}

func decide(ctx context.Context, state graph.State) string {
	if d, _ := state[FieldDecider].(float64); d > 0.5 {
		return "summarize"
	}
	return "translate"
}

func summarize(ctx context.Context, state graph.State) (graph.State, error) {
	return graph.State{
		FieldSummary:    true,
		FieldResultText: "Not acceptable",
	}, nil
}

func translate(ctx context.Context, state graph.State) (graph.State, error) {
	return graph.State{
		FieldTranslation: true,
		FieldResultText:  "Not good",
	}, nil
}

func synthesize(ctx context.Context, state graph.State) (graph.State, error) {
	return nil, nil
}

func summarizeText(ctx context.Context, state graph.State) (graph.State, error) {
	return graph.State{
		FieldTranslation: "ji",
		FieldSummary:     "Summarized version",
		FieldInt:         4,
	}, nil
}

func translateText(ctx context.Context, state graph.State) (graph.State, error) {
	return graph.State{
		FieldTranslation: "Translated version",
		FieldSummary:     "Hi",
		FieldInt:         8,
	}, nil
}
