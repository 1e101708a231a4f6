package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-kratos/stepgraph/graph"
)

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := graph.NewNodeContext(context.Background(), &graph.NodeContext{Name: "summarize", RunID: "run-1", Fork: "distribute"})

	h := Logging(logger)(func(context.Context, graph.State) (graph.State, error) {
		return graph.State{"summary": true, "result_text": "x"}, nil
	})
	if _, err := h(ctx, graph.State{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid log line %q: %v", buf.String(), err)
	}
	if entry["msg"] != "node done" || entry["node"] != "summarize" || entry["run_id"] != "run-1" || entry["fork"] != "distribute" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
	writes, _ := entry["writes"].([]any)
	if len(writes) != 2 || writes[0] != "result_text" || writes[1] != "summary" {
		t.Fatalf("unexpected writes: %v", entry["writes"])
	}
}

func TestLoggingFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	boom := errors.New("boom")

	h := Logging(logger)(func(context.Context, graph.State) (graph.State, error) {
		return nil, boom
	})
	if _, err := h(context.Background(), graph.State{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, `msg="node failed"`) || !strings.Contains(out, "error=boom") {
		t.Fatalf("unexpected log output: %s", out)
	}
}
