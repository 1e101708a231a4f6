package demo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-kratos/stepgraph/graph"
)

func execute(t *testing.T, name string, overrides graph.State) graph.State {
	t.Helper()
	w, err := Lookup(name)
	require.NoError(t, err)
	g, err := w.Build()
	require.NoError(t, err)
	executor, err := g.Compile()
	require.NoError(t, err)
	final, err := executor.Execute(context.Background(), w.Initial(overrides))
	require.NoError(t, err)
	return final
}

func TestChaining(t *testing.T) {
	final := execute(t, "chaining", nil)
	assert.Equal(t, SampleText, final[FieldOriginalText])
	assert.Equal(t, "Hi", final[FieldSummary])
	assert.Equal(t, "Translated version", final[FieldTranslation])
	assert.Equal(t, 8, final[FieldInt])
	assert.Equal(t, "initial", final[FieldCurrentStep])
}

func TestChainingSummarizeOutput(t *testing.T) {
	delta, err := summarizeText(context.Background(), graph.State{FieldOriginalText: SampleText})
	require.NoError(t, err)
	assert.Equal(t, graph.State{
		FieldTranslation: "ji",
		FieldSummary:     "Summarized version",
		FieldInt:         4,
	}, delta)
}

func TestParallelization(t *testing.T) {
	for i := 0; i < 10; i++ {
		final := execute(t, "parallelization", nil)
		assert.Equal(t, "This isNot acceptableNot good", final[FieldResultText])
		assert.Equal(t, true, final[FieldSummary])
		assert.Equal(t, true, final[FieldTranslation])
	}
}

func TestRouting(t *testing.T) {
	high := execute(t, "routing", graph.State{FieldDecider: 0.9})
	assert.Equal(t, "This isNot acceptable", high[FieldResultText])
	assert.Equal(t, true, high[FieldSummary])
	assert.Equal(t, false, high[FieldTranslation])

	low := execute(t, "routing", graph.State{FieldDecider: -0.3})
	assert.Equal(t, "This isNot good", low[FieldResultText])
	assert.Equal(t, false, low[FieldSummary])
	assert.Equal(t, true, low[FieldTranslation])
}

func TestLookup(t *testing.T) {
	_, err := Lookup("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chaining")

	var names []string
	for _, w := range Workflows() {
		names = append(names, w.Name)
	}
	assert.Equal(t, []string{"chaining", "parallelization", "routing"}, names)
}
