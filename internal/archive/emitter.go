package archive

import (
	"context"
	"errors"
	"fmt"

	"elncore/internal/errs"
	"elncore/pkg/domain"
)

// ErrNotExist is returned by RawStore.ReadRaw for missing files.
var ErrNotExist = errors.New("raw file does not exist")

// RawStore is the raw-file side of an upload the emitter writes into.
type RawStore interface {
	ReadRaw(ctx context.Context, uploadID, name string) ([]byte, error)
	WriteRaw(ctx context.Context, uploadID, name string, data []byte, overwrite bool) error
}

// Outcome of an emission.
type Outcome string

const (
	Written     Outcome = "written"
	Unchanged   Outcome = "unchanged"
	Conflict    Outcome = "conflict"
	Overwritten Outcome = "overwritten"
)

// Emitter writes auxiliary archive entries of one upload idempotently.
type Emitter struct {
	store     RawStore
	uploadID  string
	overwrite bool
	// AfterWrite runs for every written or overwritten file, before Emit
	// returns, so the new entry is processed before its referrer.
	AfterWrite func(ctx context.Context, fileName string) error
	// Observe is called with the outcome of every emission.
	Observe func(Outcome)
}

// NewEmitter builds an emitter for uploadID.
func NewEmitter(store RawStore, uploadID string, overwrite bool) *Emitter {
	return &Emitter{store: store, uploadID: uploadID, overwrite: overwrite}
}

// UploadID returns the upload the emitter writes into.
func (e *Emitter) UploadID() string { return e.uploadID }

// Reference returns the reference fileName has in the upload.
func (e *Emitter) Reference(fileName string) domain.Reference {
	return ReferenceTo(e.uploadID, fileName)
}

// Emit serializes sec into fileName. An existing file with equal content is
// left alone; unequal content is reported as ArchiveConflict and kept unless
// the emitter overwrites. The reference is returned in every case.
func (e *Emitter) Emit(ctx context.Context, sec *domain.Section, fileName string) (domain.Reference, error) {
	ref := e.Reference(fileName)
	outcome, err := e.emit(ctx, sec, fileName)
	if e.Observe != nil && outcome != "" {
		e.Observe(outcome)
	}
	return ref, err
}

func (e *Emitter) emit(ctx context.Context, sec *domain.Section, fileName string) (Outcome, error) {
	f := FormatOf(fileName)
	data, err := Marshal(Document(sec), f)
	if err != nil {
		return "", errs.WrapFatal(err, "archive", "emit")
	}
	existing, err := e.store.ReadRaw(ctx, e.uploadID, fileName)
	switch {
	case errors.Is(err, ErrNotExist):
		if err := e.store.WriteRaw(ctx, e.uploadID, fileName, data, false); err != nil {
			return "", fmt.Errorf("archive.emit: write %s: %w", fileName, err)
		}
		return Written, e.after(ctx, fileName)
	case err != nil:
		return "", fmt.Errorf("archive.emit: read %s: %w", fileName, err)
	}

	same, err := sameContent(existing, data, f)
	if err != nil {
		return "", err
	}
	if same {
		return Unchanged, nil
	}
	if !e.overwrite {
		return Conflict, errs.Errorf(errs.ErrArchiveConflict, "archive", "emit",
			"%s exists with different content", fileName)
	}
	if err := e.store.WriteRaw(ctx, e.uploadID, fileName, data, true); err != nil {
		return "", fmt.Errorf("archive.emit: overwrite %s: %w", fileName, err)
	}
	return Overwritten, e.after(ctx, fileName)
}

func (e *Emitter) after(ctx context.Context, fileName string) error {
	if e.AfterWrite == nil {
		return nil
	}
	return e.AfterWrite(ctx, fileName)
}

func sameContent(existing, fresh []byte, f Format) (bool, error) {
	old, err := Unmarshal(existing, f)
	if err != nil {
		// An unreadable existing file never equals a fresh one.
		return false, nil
	}
	cur, err := Unmarshal(fresh, f)
	if err != nil {
		return false, errs.WrapFatal(err, "archive", "emit")
	}
	return Equal(old, cur), nil
}

func isFatal(err error) bool { return errs.IsFatal(err) }
