package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-kratos/stepgraph/graph"
)

func textSchema() *graph.Schema {
	return graph.MustSchema(
		graph.Field{Name: "text", Type: &jsonschema.Schema{Type: "string"}, Policy: graph.Append},
		graph.Field{Name: "pick", Type: &jsonschema.Schema{Type: "string"}},
	)
}

func appendText(text string, delay time.Duration) graph.Handler {
	return func(ctx context.Context, state graph.State) (graph.State, error) {
		time.Sleep(delay)
		return graph.State{"text": text}, nil
	}
}

func run(t *testing.T, g *graph.Graph, initial graph.State) graph.State {
	t.Helper()
	executor, err := g.Compile()
	require.NoError(t, err)
	final, err := executor.Execute(context.Background(), initial)
	require.NoError(t, err)
	return final
}

func TestSequential(t *testing.T) {
	g, err := Sequential([]Step{
		NewStep("a", appendText("a", 0)),
		NewStep("b", appendText("b", 0)),
		NewStep("c", appendText("c", 0)),
	}, graph.WithSchema(textSchema()))
	require.NoError(t, err)

	final := run(t, g, nil)
	assert.Equal(t, "abc", final["text"])
}

func TestSequentialErrors(t *testing.T) {
	_, err := Sequential(nil)
	require.Error(t, err)

	_, err = Sequential([]Step{NewStep("a", appendText("a", 0)), NewStep("a", appendText("a", 0))})
	var dup *graph.DuplicateNodeError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a", dup.Node)
}

func TestParallel(t *testing.T) {
	g, err := Parallel(
		NewStep("distribute", appendText("<", 0)),
		[]Step{
			NewStep("first", appendText("1", 20*time.Millisecond)),
			NewStep("second", appendText("2", 0)),
			NewStep("third", appendText("3", 10*time.Millisecond)),
		},
		NewStep("synthesize", appendText(">", 0)),
		graph.WithSchema(textSchema()),
	)
	require.NoError(t, err)

	executor, err := g.Compile()
	require.NoError(t, err)
	members, join, ok := executor.Plan().Cohort("distribute")
	require.True(t, ok)
	assert.Equal(t, []string{"first", "second", "third"}, members)
	assert.Equal(t, "synthesize", join)

	final, err := executor.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "<123>", final["text"])
}

func TestParallelNeedsBranches(t *testing.T) {
	_, err := Parallel(NewStep("d", appendText("", 0)), []Step{NewStep("only", appendText("", 0))}, NewStep("s", appendText("", 0)))
	require.Error(t, err)
}

func TestBranch(t *testing.T) {
	build := func() *graph.Graph {
		g, err := Branch(
			NewStep("route", appendText("->", 0)),
			func(ctx context.Context, state graph.State) string {
				return state["pick"].(string)
			},
			[]Route{
				{Label: "left", Step: NewStep("go_left", appendText("L", 0))},
				{Label: "right", Step: NewStep("go_right", appendText("R", 0))},
			},
			graph.WithSchema(textSchema()),
		)
		require.NoError(t, err)
		return g
	}

	assert.Equal(t, "->L", run(t, build(), graph.State{"pick": "left"})["text"])
	assert.Equal(t, "->R", run(t, build(), graph.State{"pick": "right"})["text"])

	executor, err := build().Compile()
	require.NoError(t, err)
	_, err = executor.Execute(context.Background(), graph.State{"pick": "up"})
	var routing *graph.RoutingError
	require.ErrorAs(t, err, &routing)
	assert.Equal(t, "up", routing.Label)
}

func TestBranchErrorsAreJoined(t *testing.T) {
	_, err := Branch(
		NewStep("route", appendText("", 0)),
		nil,
		[]Route{
			{Label: "x", Step: NewStep("x", appendText("x", 0))},
			{Label: "x", Step: NewStep("y", appendText("y", 0))},
		},
	)
	require.Error(t, err)
	var invalid *graph.GraphValidationError
	require.True(t, errors.As(err, &invalid))
	assert.Contains(t, err.Error(), "duplicate route label x")
	assert.Contains(t, err.Error(), "router must not be nil")
}
