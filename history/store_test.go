package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-kratos/stepgraph/graph"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, db, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return store
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": newTestSQLiteStore(t),
	}
}

func record(id, workflow string, status graph.Status, started time.Time) *Record {
	return &Record{
		ID:        id,
		Workflow:  workflow,
		Status:    status,
		Input:     graph.State{"original_text": "hello", "decider": 0.75},
		Output:    graph.State{"result_text": "This is", "summary": true},
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
	}
}

func TestStore_SaveGet(t *testing.T) {
	ctx := context.Background()
	started := time.Unix(1700000000, 42)
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			want := record("run-1", "routing", graph.StatusCompleted, started)
			require.NoError(t, store.Save(ctx, want))

			got, err := store.Get(ctx, "run-1")
			require.NoError(t, err)
			assert.Equal(t, "routing", got.Workflow)
			assert.Equal(t, graph.StatusCompleted, got.Status)
			assert.True(t, got.StartedAt.Equal(started))
			assert.Equal(t, 1500*time.Millisecond, got.Duration)
			assert.Equal(t, "hello", got.Input["original_text"])
			assert.Equal(t, 0.75, got.Input["decider"])
			assert.Equal(t, true, got.Output["summary"])
			assert.Empty(t, got.Error)

			_, err = store.Get(ctx, "missing")
			assert.True(t, errors.Is(err, ErrRecordNotFound))

			err = store.Save(ctx, record("run-1", "routing", graph.StatusFailed, started))
			assert.True(t, errors.Is(err, ErrDuplicateRecord))
		})
	}
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	base := time.Unix(1700000000, 0)
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save(ctx, record("a", "chaining", graph.StatusCompleted, base)))
			failed := record("b", "routing", graph.StatusFailed, base.Add(time.Second))
			failed.Output = nil
			failed.Error = "graph: node route: boom"
			require.NoError(t, store.Save(ctx, failed))
			require.NoError(t, store.Save(ctx, record("c", "routing", graph.StatusCompleted, base.Add(2*time.Second))))

			all, err := store.List(ctx, Filter{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, []string{"a", "b", "c"}, ids(all))

			routing, err := store.List(ctx, Filter{Workflow: "routing"})
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "c"}, ids(routing))

			failures, err := store.List(ctx, Filter{Status: graph.StatusFailed})
			require.NoError(t, err)
			require.Len(t, failures, 1)
			assert.Equal(t, "graph: node route: boom", failures[0].Error)
			assert.Nil(t, failures[0].Output)

			limited, err := store.List(ctx, Filter{Limit: 2})
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ids(limited))
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := record("x", "chaining", graph.StatusCompleted, time.Now())
	require.NoError(t, store.Save(ctx, r))
	r.Output["summary"] = false

	got, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, true, got.Output["summary"])
}

func TestCodec(t *testing.T) {
	data, err := EncodeState(graph.State{"steps": []string{"a", "b"}, "n": 3})
	require.NoError(t, err)
	s, err := DecodeState(data)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, s["steps"])
	assert.Equal(t, float64(3), s["n"])

	empty, err := EncodeState(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = EncodeState(graph.State{"ch": make(chan int)})
	require.Error(t, err)
	_, err = DecodeState([]byte("{"))
	require.Error(t, err)
}

func ids(records []*Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}
