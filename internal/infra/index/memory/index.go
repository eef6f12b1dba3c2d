// Package memory provides an in-memory search index used for tests, the CLI
// default and as the read side of the SQL-backed indexes.
package memory

import (
	"context"
	"sync"

	"elncore/internal/search"
)

// Compile-time contract assertion.
var _ search.Index = (*Index)(nil)

// Key identifies an entry across uploads.
func Key(uploadID, entryID string) string { return uploadID + "/" + entryID }

// Index keeps entries in a map guarded by a RWMutex.
type Index struct {
	mu      sync.RWMutex
	entries map[string]search.Entry
	closed  bool
}

// New returns an empty index.
func New() *Index {
	return &Index{entries: make(map[string]search.Entry)}
}

// Put inserts or replaces e.
func (i *Index) Put(_ context.Context, e search.Entry) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return search.ErrClosed
	}
	i.entries[Key(e.UploadID, e.EntryID)] = cloneEntry(e)
	return nil
}

// Search returns the matches of q ordered by upload id then entry id.
func (i *Index) Search(_ context.Context, q search.Query) (search.Response, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return search.Response{}, search.ErrClosed
	}
	var matches []search.Entry
	for _, e := range i.entries {
		if q.Matches(e) {
			matches = append(matches, cloneEntry(e))
		}
	}
	search.SortEntries(matches)
	return search.Limit(q, matches), nil
}

// Delete removes an entry. Missing entries are ignored.
func (i *Index) Delete(_ context.Context, uploadID, entryID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return search.ErrClosed
	}
	delete(i.entries, Key(uploadID, entryID))
	return nil
}

// Len returns the number of indexed entries.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// Import replaces the content with entries.
func (i *Index) Import(entries []search.Entry) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries = make(map[string]search.Entry, len(entries))
	for _, e := range entries {
		i.entries[Key(e.UploadID, e.EntryID)] = cloneEntry(e)
	}
}

// Close marks the index closed.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	return nil
}

func cloneEntry(e search.Entry) search.Entry {
	e.SectionTypes = append([]string(nil), e.SectionTypes...)
	e.LabIDs = append([]string(nil), e.LabIDs...)
	e.SearchQuantities = append([]string(nil), e.SearchQuantities...)
	return e
}
