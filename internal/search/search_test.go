package search_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elncore/internal/errs"
	"elncore/internal/infra/index/memory"
	"elncore/internal/search"
	"elncore/pkg/domain/schema"
)

func TestEntryForCollectsTypesAndLabIDs(t *testing.T) {
	reg := schema.MustNew()
	sub := reg.MustNew(schema.Substrate).MustSet("lab_id", "SUB1").MustSet("name", "sapphire")

	e := search.EntryFor("u1", "eid", "sub.archive.yaml", sub)
	assert.Equal(t, schema.Substrate, e.SectionType)
	assert.Contains(t, e.SectionTypes, schema.CompositeSystem)
	assert.Equal(t, []string{"SUB1"}, e.LabIDs)
	assert.Contains(t, e.SearchQuantities, "lab_id=SUB1")
	assert.Equal(t, "../uploads/u1/archive/eid#data", e.Reference().Ref)
	assert.True(t, e.HasType())
	assert.False(t, e.HasType(schema.ThinFilm))
}

func TestResolver(t *testing.T) {
	ctx := context.Background()
	idx := memory.New()
	put := func(upload, id, typ, labID string) {
		require.NoError(t, idx.Put(ctx, search.Entry{UploadID: upload, EntryID: id, SectionTypes: []string{typ}, LabIDs: []string{labID}}))
	}
	put("u1", "a", schema.Substrate, "SUB1")
	put("u2", "b", schema.Substrate, "DUP")
	put("u1", "c", schema.Substrate, "DUP")
	r := search.NewResolver(idx)

	t.Run("hit", func(t *testing.T) {
		ref, err := r.Resolve(ctx, "SUB1", schema.Substrate)
		require.NoError(t, err)
		assert.Equal(t, "../uploads/u1/archive/a#data", ref.Ref)
		assert.Equal(t, "SUB1", ref.LabID)
	})
	t.Run("miss yields stub", func(t *testing.T) {
		ref, err := r.Resolve(ctx, "NOPE", schema.Substrate)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrReferenceNotFound))
		assert.Equal(t, errs.Warning, errs.ClassOf(err))
		assert.False(t, ref.Resolved())
		assert.Equal(t, "NOPE", ref.LabID)
	})
	t.Run("type filter", func(t *testing.T) {
		_, err := r.Resolve(ctx, "SUB1", schema.ThinFilm)
		assert.ErrorIs(t, err, errs.ErrReferenceNotFound)
	})
	t.Run("duplicates pick first", func(t *testing.T) {
		ref, err := r.Resolve(ctx, "DUP")
		assert.ErrorIs(t, err, errs.ErrDuplicateEntry)
		assert.Equal(t, "../uploads/u1/archive/c#data", ref.Ref)
	})
	t.Run("empty lab id", func(t *testing.T) {
		ref, err := r.Resolve(ctx, "")
		require.NoError(t, err)
		assert.True(t, ref.IsZero())
	})
	t.Run("exists in upload", func(t *testing.T) {
		ok, err := r.ExistsInUpload(ctx, "u2", "DUP", schema.Substrate)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = r.ExistsInUpload(ctx, "u2", "SUB1")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestResolverIndexFailureIsWarning(t *testing.T) {
	idx := memory.New()
	require.NoError(t, idx.Close())
	ref, err := search.NewResolver(idx).Resolve(context.Background(), "X")
	assert.ErrorIs(t, err, errs.ErrReferenceNotFound)
	assert.Equal(t, "X", ref.LabID)
	_, err = search.NewResolver(idx).ExistsInUpload(context.Background(), "u", "X")
	assert.ErrorIs(t, err, search.ErrClosed)
}
