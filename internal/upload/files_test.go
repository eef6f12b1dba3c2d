package upload

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elncore/internal/archive"
	"elncore/internal/blob"
)

func TestRawFiles(t *testing.T) {
	ctx := context.Background()
	f := New(blob.NewMemory())

	require.NoError(t, f.WriteRaw(ctx, "u1", "b.txt", []byte("B"), false))
	require.NoError(t, f.WriteRaw(ctx, "u1", "a/c.dat", []byte("C"), false))
	require.NoError(t, f.WriteRaw(ctx, "u2", "x.txt", []byte("X"), false))
	assert.Error(t, f.WriteRaw(ctx, "u1", "b.txt", []byte("B2"), false))
	require.NoError(t, f.WriteRaw(ctx, "u1", "b.txt", []byte("B2"), true))

	names, err := f.ListRaw(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/c.dat", "b.txt"}, names)

	data, err := f.ReadRaw(ctx, "u1", "b.txt")
	require.NoError(t, err)
	assert.Equal(t, "B2", string(data))

	_, err = f.ReadRaw(ctx, "u1", "missing")
	assert.ErrorIs(t, err, archive.ErrNotExist)

	ok, err := f.RawExists(ctx, "u1", "a/c.dat")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.Upload("u2").RawExists(ctx, "a/c.dat")
	require.NoError(t, err)
	assert.False(t, ok)

	rc, err := f.Upload("u2").OpenRaw(ctx, "x.txt")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "X", string(b))

	ids, err := f.ListUploads(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, ids)
}

func TestEntries(t *testing.T) {
	ctx := context.Background()
	f := New(blob.NewMemory())
	require.NoError(t, f.PutEntry(ctx, "u1", "abc", []byte("data: {}\n")))
	require.NoError(t, f.PutEntry(ctx, "u1", "abc", []byte("data: {a: 1}\n")))
	got, err := f.GetEntry(ctx, "u1", "abc")
	require.NoError(t, err)
	assert.Equal(t, "data: {a: 1}\n", string(got))
	_, err = f.GetEntry(ctx, "u1", "nope")
	assert.ErrorIs(t, err, archive.ErrNotExist)

	names, err := f.ListRaw(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Equal(t, "uploads/u1/archive/abc.yaml", EntryKey("u1", "abc"))
	assert.Equal(t, "application/yaml", contentType("x.archive.yaml"))
}
