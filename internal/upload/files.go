// Package upload is the raw-file collaborator: the raw files and processed
// entries of uploads, stored in a blob store.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"sort"
	"strings"

	"elncore/internal/archive"
	"elncore/internal/blob"
)

const uploadsPrefix = "uploads/"

// Files reads and writes upload files in a blob store.
type Files struct {
	store blob.Store
}

// New wraps store.
func New(store blob.Store) *Files {
	return &Files{store: store}
}

// Store returns the underlying blob store.
func (f *Files) Store() blob.Store { return f.store }

// RawKey is the blob key of a raw file.
func RawKey(uploadID, name string) string {
	return uploadsPrefix + uploadID + "/raw/" + strings.TrimPrefix(name, "/")
}

// EntryKey is the blob key of a processed entry.
func EntryKey(uploadID, entryID string) string {
	return uploadsPrefix + uploadID + "/archive/" + entryID + ".yaml"
}

func contentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"):
		return "application/yaml"
	case strings.HasSuffix(name, ".json"):
		return "application/json"
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// OpenRaw opens a raw file; archive.ErrNotExist if missing.
func (f *Files) OpenRaw(ctx context.Context, uploadID, name string) (io.ReadCloser, error) {
	_, rc, err := f.store.Get(ctx, RawKey(uploadID, name))
	if errors.Is(err, blob.ErrNotFound) {
		return nil, fmt.Errorf("upload.OpenRaw: %s: %w", name, archive.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("upload.OpenRaw: %s: %w", name, err)
	}
	return rc, nil
}

// ReadRaw returns the content of a raw file; archive.ErrNotExist if missing.
func (f *Files) ReadRaw(ctx context.Context, uploadID, name string) ([]byte, error) {
	rc, err := f.OpenRaw(ctx, uploadID, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("upload.ReadRaw: %s: %w", name, err)
	}
	return data, nil
}

// RawExists reports whether a raw file exists.
func (f *Files) RawExists(ctx context.Context, uploadID, name string) (bool, error) {
	_, err := f.store.Head(ctx, RawKey(uploadID, name))
	if errors.Is(err, blob.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("upload.RawExists: %s: %w", name, err)
	}
	return true, nil
}

// WriteRaw stores a raw file. Without overwrite an existing file is an error.
func (f *Files) WriteRaw(ctx context.Context, uploadID, name string, data []byte, overwrite bool) error {
	_, err := f.store.Put(ctx, RawKey(uploadID, name), bytes.NewReader(data), blob.PutOptions{
		ContentType: contentType(name),
		Overwrite:   overwrite,
	})
	if err != nil {
		return fmt.Errorf("upload.WriteRaw: %s: %w", name, err)
	}
	return nil
}

// ListRaw returns the raw file names of an upload in key order.
func (f *Files) ListRaw(ctx context.Context, uploadID string) ([]string, error) {
	prefix := RawKey(uploadID, "")
	infos, err := f.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("upload.ListRaw: %w", err)
	}
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		out = append(out, strings.TrimPrefix(info.Key, prefix))
	}
	sort.Strings(out)
	return out, nil
}

// ListUploads returns the ids of all uploads holding raw files.
func (f *Files) ListUploads(ctx context.Context) ([]string, error) {
	infos, err := f.store.List(ctx, uploadsPrefix)
	if err != nil {
		return nil, fmt.Errorf("upload.ListUploads: %w", err)
	}
	seen := map[string]bool{}
	var out []string
	for _, info := range infos {
		rest := strings.TrimPrefix(info.Key, uploadsPrefix)
		id, _, ok := strings.Cut(rest, "/")
		if ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// PutEntry stores the processed entry of a mainfile, replacing earlier results.
func (f *Files) PutEntry(ctx context.Context, uploadID, entryID string, data []byte) error {
	_, err := f.store.Put(ctx, EntryKey(uploadID, entryID), bytes.NewReader(data), blob.PutOptions{
		ContentType: "application/yaml",
		Overwrite:   true,
	})
	if err != nil {
		return fmt.Errorf("upload.PutEntry: %s: %w", entryID, err)
	}
	return nil
}

// GetEntry returns a processed entry; archive.ErrNotExist if missing.
func (f *Files) GetEntry(ctx context.Context, uploadID, entryID string) ([]byte, error) {
	_, rc, err := f.store.Get(ctx, EntryKey(uploadID, entryID))
	if errors.Is(err, blob.ErrNotFound) {
		return nil, fmt.Errorf("upload.GetEntry: %s: %w", entryID, archive.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("upload.GetEntry: %s: %w", entryID, err)
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// Scoped binds Files to one upload.
type Scoped struct {
	files    *Files
	uploadID string
}

// Upload returns the files of uploadID.
func (f *Files) Upload(uploadID string) Scoped {
	return Scoped{files: f, uploadID: uploadID}
}

// OpenRaw opens a raw file of the bound upload.
func (s Scoped) OpenRaw(ctx context.Context, name string) (io.ReadCloser, error) {
	return s.files.OpenRaw(ctx, s.uploadID, name)
}

// RawExists reports whether the bound upload has a raw file.
func (s Scoped) RawExists(ctx context.Context, name string) (bool, error) {
	return s.files.RawExists(ctx, s.uploadID, name)
}
