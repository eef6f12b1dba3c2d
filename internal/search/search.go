// Package search defines the search collaborator the ingest pipeline
// indexes entries into and resolves lab_id references against.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"elncore/pkg/domain"
)

// ErrClosed is returned by indexes used after Close.
var ErrClosed = errors.New("search index closed")

// Entry is the indexed view of one processed archive entry.
type Entry struct {
	UploadID string `json:"upload_id"`
	EntryID  string `json:"entry_id"`
	Mainfile string `json:"mainfile"`
	// SectionType is the type of the entry's data section.
	SectionType string `json:"section_type"`
	// SectionTypes is SectionType followed by its ancestors; queries match any.
	SectionTypes     []string `json:"section_types"`
	LabIDs           []string `json:"lab_ids"`
	SearchQuantities []string `json:"search_quantities"`
}

// Reference returns the archive reference of the entry.
func (e Entry) Reference() domain.Reference {
	return domain.Reference{Ref: fmt.Sprintf("../uploads/%s/archive/%s#data", e.UploadID, e.EntryID)}
}

// HasType reports whether the entry is one of types. No types matches all.
func (e Entry) HasType(types ...string) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		for _, have := range e.SectionTypes {
			if want == have {
				return true
			}
		}
	}
	return false
}

// HasLabID reports whether labID is among the entry's lab ids.
func (e Entry) HasLabID(labID string) bool {
	for _, id := range e.LabIDs {
		if id == labID {
			return true
		}
	}
	return false
}

// EntryFor builds the index entry of sec stored as entryID in uploadID.
func EntryFor(uploadID, entryID, mainfile string, sec *domain.Section) Entry {
	e := Entry{
		UploadID:         uploadID,
		EntryID:          entryID,
		Mainfile:         mainfile,
		SectionType:      sec.Type(),
		SectionTypes:     append([]string{sec.Type()}, sec.Definition().Ancestors...),
		SearchQuantities: sec.SearchQuantities(),
	}
	if id := sec.Str("lab_id"); id != "" {
		e.LabIDs = []string{id}
	}
	return e
}

// Query selects entries. Empty fields do not restrict.
type Query struct {
	SectionTypes []string
	LabID        string
	UploadID     string
	// Limit caps Data; Total still counts every match. Zero means no cap.
	Limit int
}

// Matches reports whether e satisfies q.
func (q Query) Matches(e Entry) bool {
	if q.UploadID != "" && e.UploadID != q.UploadID {
		return false
	}
	if q.LabID != "" && !e.HasLabID(q.LabID) {
		return false
	}
	return e.HasType(q.SectionTypes...)
}

// Response mirrors the host search response: a total plus the hits.
type Response struct {
	Total int     `json:"total"`
	Data  []Entry `json:"data"`
}

// Index stores entries and answers queries. Data is ordered by upload id
// then entry id.
type Index interface {
	Put(ctx context.Context, e Entry) error
	Search(ctx context.Context, q Query) (Response, error)
	Delete(ctx context.Context, uploadID, entryID string) error
	Close() error
}

// SortEntries orders entries by upload id then entry id.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].UploadID != entries[j].UploadID {
			return entries[i].UploadID < entries[j].UploadID
		}
		return entries[i].EntryID < entries[j].EntryID
	})
}

// Limit applies q.Limit to a sorted match list.
func Limit(q Query, matches []Entry) Response {
	resp := Response{Total: len(matches), Data: matches}
	if q.Limit > 0 && len(matches) > q.Limit {
		resp.Data = matches[:q.Limit]
	}
	return resp
}
