package history

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-kratos/stepgraph/graph"
)

// SQLiteStore is a Store backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). OpenSQLite registers and opens it.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore initializes the required schema in the given database and
// returns a new SQLiteStore.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			workflow TEXT NOT NULL,
			status TEXT NOT NULL,
			input BLOB,
			output BLOB,
			error TEXT,
			started_at INTEGER NOT NULL,
			duration INTEGER NOT NULL
		);`,
	)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS runs_workflow ON runs (workflow, started_at);`)
	return err
}

// Save inserts r.
func (s *SQLiteStore) Save(ctx context.Context, r *Record) error {
	input, err := EncodeState(r.Input)
	if err != nil {
		return err
	}
	output, err := EncodeState(r.Output)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, workflow, status, input, output, error, started_at, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.Workflow,
		string(r.Status),
		input,
		output,
		r.Error,
		r.StartedAt.UnixNano(),
		int64(r.Duration),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicateRecord
	}
	return err
}

// Get returns the record with the given ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workflow, status, input, output, error, started_at, duration
		FROM runs
		WHERE id = ?`,
		id,
	)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	return r, err
}

// List returns the records matching filter, oldest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*Record, error) {
	query := `
		SELECT id, workflow, status, input, output, error, started_at, duration
		FROM runs`
	var args []any
	var clauses []string

	if filter.Workflow != "" {
		clauses = append(clauses, "workflow = ?")
		args = append(args, filter.Workflow)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(clauses) > 0 {
		query = query + " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at, rowid"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		r         Record
		status    string
		input     []byte
		output    []byte
		errStr    sql.NullString
		startedAt int64
		duration  int64
	)
	if err := row.Scan(&r.ID, &r.Workflow, &status, &input, &output, &errStr, &startedAt, &duration); err != nil {
		return nil, err
	}
	r.Status = graph.Status(status)
	r.StartedAt = time.Unix(0, startedAt)
	r.Duration = time.Duration(duration)
	r.Error = errStr.String

	var err error
	if r.Input, err = DecodeState(input); err != nil {
		return nil, err
	}
	if r.Output, err = DecodeState(output); err != nil {
		return nil, err
	}
	return &r, nil
}
