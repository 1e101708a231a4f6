package history

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens the SQLite database at path and prepares it for run records.
// Use ":memory:" for a throwaway database. The caller closes the returned DB.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, *sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, err
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	store, err := NewSQLiteStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, db, nil
}
