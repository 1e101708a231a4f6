// Package history records finished workflow runs.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/go-kratos/stepgraph/graph"
)

var (
	// ErrRecordNotFound is returned when a run record is not found.
	ErrRecordNotFound = errors.New("history: record not found")
	// ErrDuplicateRecord is returned when a record with the same ID was already saved.
	ErrDuplicateRecord = errors.New("history: duplicate record")
)

// Record describes one finished run.
type Record struct {
	ID        string
	Workflow  string
	Status    graph.Status
	Input     graph.State
	Output    graph.State
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

// Filter is used to select records from a store.
// Empty string / zero status mean "no filter" for that field.
type Filter struct {
	Workflow string
	Status   graph.Status
	// Limit caps the number of records returned. Zero means no limit.
	Limit int
}

func (f Filter) match(r *Record) bool {
	if f.Workflow != "" && r.Workflow != f.Workflow {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

// Store persists run records. Records are listed oldest first.
type Store interface {
	Save(ctx context.Context, r *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, filter Filter) ([]*Record, error)
}
