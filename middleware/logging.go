package middleware

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/go-kratos/stepgraph/graph"
)

// Logging returns a middleware that logs every node invocation with its
// duration and the fields it wrote. Failures are logged at Warn; the run
// itself reports them.
func Logging(logger *slog.Logger) graph.Middleware {
	return func(next graph.Handler) graph.Handler {
		return func(ctx context.Context, state graph.State) (graph.State, error) {
			attrs := []slog.Attr{}
			if nc, ok := graph.FromNodeContext(ctx); ok {
				attrs = append(attrs, slog.String("node", nc.Name), slog.String("run_id", nc.RunID))
				if nc.Fork != "" {
					attrs = append(attrs, slog.String("fork", nc.Fork))
				}
			}
			started := time.Now()
			delta, err := next(ctx, state)
			attrs = append(attrs, slog.Duration("duration", time.Since(started)))
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
				logger.LogAttrs(ctx, slog.LevelWarn, "node failed", attrs...)
				return nil, err
			}
			attrs = append(attrs, slog.Any("writes", writtenFields(delta)))
			logger.LogAttrs(ctx, slog.LevelInfo, "node done", attrs...)
			return delta, nil
		}
	}
}

func writtenFields(delta graph.State) []string {
	fields := make([]string, 0, len(delta))
	for k := range delta {
		fields = append(fields, k)
	}
	slices.Sort(fields)
	return fields
}
