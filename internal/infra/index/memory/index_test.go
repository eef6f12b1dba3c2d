package memory

import (
	"context"
	"errors"
	"testing"

	"elncore/internal/search"
)

func entry(upload, id, typ, labID string) search.Entry {
	return search.Entry{UploadID: upload, EntryID: id, SectionType: typ, SectionTypes: []string{typ, "Entity"}, LabIDs: []string{labID}}
}

func TestIndexPutSearchDelete(t *testing.T) {
	ctx := context.Background()
	idx := New()
	for _, e := range []search.Entry{
		entry("u2", "b", "Substrate", "SUB1"),
		entry("u1", "z", "Substrate", "SUB1"),
		entry("u1", "a", "ThinFilm", "F1"),
	} {
		if err := idx.Put(ctx, e); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	resp, err := idx.Search(ctx, search.Query{LabID: "SUB1", SectionTypes: []string{"Substrate"}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if resp.Total != 2 || resp.Data[0].UploadID != "u1" || resp.Data[1].UploadID != "u2" {
		t.Fatalf("unexpected order: %+v", resp)
	}
	resp, _ = idx.Search(ctx, search.Query{SectionTypes: []string{"Entity"}, Limit: 1})
	if resp.Total != 3 || len(resp.Data) != 1 {
		t.Fatalf("limit not applied: %+v", resp)
	}
	if err := idx.Delete(ctx, "u1", "z"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if idx.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", idx.Len())
	}
}

func TestIndexReturnsCopies(t *testing.T) {
	ctx := context.Background()
	idx := New()
	e := entry("u", "e", "Substrate", "S")
	_ = idx.Put(ctx, e)
	e.LabIDs[0] = "changed"
	resp, _ := idx.Search(ctx, search.Query{LabID: "S"})
	if resp.Total != 1 {
		t.Fatalf("stored entry aliased caller slice")
	}
}

func TestIndexClosed(t *testing.T) {
	idx := New()
	_ = idx.Close()
	if err := idx.Put(context.Background(), entry("u", "e", "T", "L")); !errors.Is(err, search.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := idx.Search(context.Background(), search.Query{}); !errors.Is(err, search.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
