package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"elncore/internal/search"
)

func TestIndexPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "index.db")
	idx, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	e := search.Entry{UploadID: "u1", EntryID: "e1", SectionType: "Substrate",
		SectionTypes: []string{"Substrate", "CompositeSystem"}, LabIDs: []string{"SUB1"}}
	if err := idx.Put(ctx, e); err != nil {
		t.Fatalf("put: %v", err)
	}
	e.Mainfile = "sub.archive.yaml"
	if err := idx.Put(ctx, e); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := idx.Put(ctx, search.Entry{UploadID: "u1", EntryID: "e2", SectionTypes: []string{"ThinFilm"}, LabIDs: []string{"F"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := idx.Delete(ctx, "u1", "e2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if reopened.Path() != path {
		t.Fatalf("unexpected path %s", reopened.Path())
	}
	resp, err := reopened.Search(ctx, search.Query{LabID: "SUB1", SectionTypes: []string{"CompositeSystem"}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if resp.Total != 1 || resp.Data[0].Mainfile != "sub.archive.yaml" {
		t.Fatalf("expected upserted entry, got %+v", resp)
	}
	if reopened.Len() != 1 {
		t.Fatalf("deleted entry came back: %d entries", reopened.Len())
	}
}
