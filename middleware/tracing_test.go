package middleware

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/go-kratos/stepgraph/graph"
)

func newRecorder() (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	exporter := tracetest.NewInMemoryExporter()
	return exporter, sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
}

func attrValue(attrs []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range attrs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingSpansPerNode(t *testing.T) {
	exporter, tp := newRecorder()
	g := graph.NewGraph(graph.WithMiddleware(Tracing(WithTracerProvider(tp))))
	write := func(field string) graph.Handler {
		return func(context.Context, graph.State) (graph.State, error) {
			return graph.State{field: true}, nil
		}
	}
	_ = g.AddNode("fork", write("forked"))
	_ = g.AddNode("left", write("left"))
	_ = g.AddNode("right", write("right"))
	_ = g.AddNode("join", write("joined"))
	_ = g.AddEdge("fork", "left")
	_ = g.AddEdge("fork", "right")
	_ = g.AddEdge("left", "join")
	_ = g.AddEdge("right", "join")
	_ = g.AddEdge("join", graph.End)
	_ = g.SetEntryPoint("fork")
	executor, err := g.Compile()
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if _, err := executor.Execute(context.Background(), nil); err != nil {
		t.Fatalf("run error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 4 {
		t.Fatalf("expected 4 spans, got %d", len(spans))
	}
	byName := make(map[string]tracetest.SpanStub, len(spans))
	runIDs := make(map[string]struct{})
	for _, span := range spans {
		byName[span.Name] = span
		if span.Status.Code != codes.Ok {
			t.Fatalf("span %s: unexpected status %v", span.Name, span.Status)
		}
		v, ok := attrValue(span.Attributes, AttrRunID)
		if !ok {
			t.Fatalf("span %s: missing run id", span.Name)
		}
		runIDs[v.AsString()] = struct{}{}
	}
	if len(runIDs) != 1 {
		t.Fatalf("expected one run id across spans, got %v", runIDs)
	}
	left, ok := byName["node left"]
	if !ok {
		t.Fatalf("missing span for left: %v", byName)
	}
	if v, ok := attrValue(left.Attributes, AttrFork); !ok || v.AsString() != "fork" {
		t.Fatalf("expected fork attribute on left, got %v", left.Attributes)
	}
	if _, ok := attrValue(byName["node join"].Attributes, AttrFork); ok {
		t.Fatalf("join must not carry a fork attribute")
	}
}

func TestTracingRecordsErrors(t *testing.T) {
	exporter, tp := newRecorder()
	boom := errors.New("boom")
	h := Tracing(WithTracerProvider(tp))(func(context.Context, graph.State) (graph.State, error) {
		return nil, boom
	})
	ctx := graph.NewNodeContext(context.Background(), &graph.NodeContext{Name: "fail", RunID: "run-1"})
	if _, err := h(ctx, graph.State{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error || spans[0].Status.Description != "boom" {
		t.Fatalf("unexpected status: %v", spans[0].Status)
	}
	if len(spans[0].Events) == 0 {
		t.Fatalf("expected the error to be recorded as an event")
	}
}

func TestTracingWithoutNodeContext(t *testing.T) {
	exporter, tp := newRecorder()
	h := Tracing(WithTracerProvider(tp))(func(context.Context, graph.State) (graph.State, error) {
		return nil, nil
	})
	if _, err := h(context.Background(), graph.State{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(exporter.GetSpans()); n != 0 {
		t.Fatalf("expected no spans outside a run, got %d", n)
	}
}
