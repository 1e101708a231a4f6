package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-kratos/stepgraph/graph"
)

const (
	traceScope = "stepgraph"
)

// Span attribute keys.
const (
	AttrNode  = attribute.Key("stepgraph.node")
	AttrRunID = attribute.Key("stepgraph.run_id")
	AttrFork  = attribute.Key("stepgraph.fork")
)

// TraceOption defines options for tracing middleware
type TraceOption func(*tracing)

type tracing struct {
	tracer trace.Tracer
}

// WithTracerProvider sets a custom TracerProvider for the tracing middleware
func WithTracerProvider(tp trace.TracerProvider) TraceOption {
	return func(t *tracing) {
		t.tracer = tp.Tracer(traceScope)
	}
}

// Tracing returns a middleware that wraps every node invocation in an
// OpenTelemetry span named after the node.
func Tracing(opts ...TraceOption) graph.Middleware {
	t := &tracing{
		tracer: otel.GetTracerProvider().Tracer(traceScope),
	}
	for _, o := range opts {
		o(t)
	}
	return func(next graph.Handler) graph.Handler {
		return func(ctx context.Context, state graph.State) (graph.State, error) {
			nc, ok := graph.FromNodeContext(ctx)
			if !ok {
				return next(ctx, state)
			}
			ctx, span := t.start(ctx, nc)
			delta, err := next(ctx, state)
			t.end(span, delta, err)
			return delta, err
		}
	}
}

func (t *tracing) start(ctx context.Context, nc *graph.NodeContext) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("node %s", nc.Name))
	span.SetAttributes(
		AttrNode.String(nc.Name),
		AttrRunID.String(nc.RunID),
	)
	if nc.Fork != "" {
		span.SetAttributes(AttrFork.String(nc.Fork))
	}
	return ctx, span
}

func (t *tracing) end(span trace.Span, delta graph.State, err error) {
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, codes.Ok.String())
	span.SetAttributes(attribute.StringSlice("stepgraph.writes", writtenFields(delta)))
}
