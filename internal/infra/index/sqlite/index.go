// Package sqlite persists the search index in a single SQLite table and
// answers queries from an in-memory copy loaded at open.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"elncore/internal/infra/index/memory"
	"elncore/internal/search"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ search.Index = (*Index)(nil)

// Index writes every change through to SQLite.
type Index struct {
	*memory.Index
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open opens or creates the index database at path.
func Open(path string) (*Index, error) {
	if path == "" {
		path = "elncore-index.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		entry_key TEXT PRIMARY KEY,
		upload_id TEXT NOT NULL,
		entry_id TEXT NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create entries table: %w", err)
	}
	idx := &Index{Index: memory.New(), db: db, path: path}
	if err := idx.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func (i *Index) load() error {
	rows, err := i.db.Query(`SELECT entry_key, payload FROM entries`)
	if err != nil {
		return fmt.Errorf("select entries: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var entries []search.Entry
	for rows.Next() {
		var key string
		var payload []byte
		if err := rows.Scan(&key, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		var e search.Entry
		if err := json.Unmarshal(payload, &e); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate entries: %w", err)
	}
	i.Import(entries)
	return nil
}

// Put upserts e in the table and the in-memory copy.
func (i *Index) Put(ctx context.Context, e search.Entry) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	if _, err := i.db.ExecContext(ctx, `INSERT INTO entries(entry_key, upload_id, entry_id, payload) VALUES(?,?,?,?)
		ON CONFLICT(entry_key) DO UPDATE SET payload=excluded.payload`,
		memory.Key(e.UploadID, e.EntryID), e.UploadID, e.EntryID, payload); err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}
	return i.Index.Put(ctx, e)
}

// Delete removes an entry from the table and the in-memory copy.
func (i *Index) Delete(ctx context.Context, uploadID, entryID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, err := i.db.ExecContext(ctx, `DELETE FROM entries WHERE entry_key = ?`, memory.Key(uploadID, entryID)); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return i.Index.Delete(ctx, uploadID, entryID)
}

// Close closes the database.
func (i *Index) Close() error {
	_ = i.Index.Close()
	return i.db.Close()
}

// DB exposes the underlying database for tests.
func (i *Index) DB() *sql.DB { return i.db }

// Path returns the database path.
func (i *Index) Path() string { return i.path }
