// Package postgres persists the search index in Postgres, answering queries
// from an in-memory copy hydrated at open.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"elncore/internal/infra/index/memory"
	"elncore/internal/search"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ search.Index = (*Index)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/elncore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Index writes every change through to Postgres.
type Index struct {
	*memory.Index
	db *sql.DB
	mu sync.Mutex
}

// Open connects to dsn (defaultDSN when empty), ensures the entries table
// and loads its rows.
func Open(ctx context.Context, dsn string) (*Index, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureEntriesTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	entries, err := loadEntries(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	mem := memory.New()
	mem.Import(entries)
	return &Index{Index: mem, db: db}, nil
}

func ensureEntriesTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS entries (
		entry_key TEXT PRIMARY KEY,
		upload_id TEXT NOT NULL,
		entry_id TEXT NOT NULL,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure entries table: %w", err)
	}
	return nil
}

func loadEntries(ctx context.Context, db *sql.DB) ([]search.Entry, error) {
	rows, err := db.QueryContext(ctx, `SELECT entry_key, payload FROM entries`)
	if err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []search.Entry
	for rows.Next() {
		var key string
		var payload []byte
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		var e search.Entry
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

// Put upserts e.
func (i *Index) Put(ctx context.Context, e search.Entry) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	if _, err := i.db.ExecContext(ctx, `INSERT INTO entries(entry_key,upload_id,entry_id,payload) VALUES($1,$2,$3,$4) ON CONFLICT(entry_key) DO UPDATE SET payload=EXCLUDED.payload`,
		memory.Key(e.UploadID, e.EntryID), e.UploadID, e.EntryID, payload); err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}
	return i.Index.Put(ctx, e)
}

// Delete removes an entry.
func (i *Index) Delete(ctx context.Context, uploadID, entryID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, err := i.db.ExecContext(ctx, `DELETE FROM entries WHERE entry_key = $1`, memory.Key(uploadID, entryID)); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return i.Index.Delete(ctx, uploadID, entryID)
}

// Close closes the connection pool.
func (i *Index) Close() error {
	_ = i.Index.Close()
	return i.db.Close()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (i *Index) DB() *sql.DB { return i.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
