package pluginapi

import (
	"context"
	"io"
	"time"

	"elncore/pkg/domain"
)

// Logger is the structured logger handed to plugins.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// RawFiles reads the raw files of the current upload.
type RawFiles interface {
	OpenRaw(ctx context.Context, name string) (io.ReadCloser, error)
	RawExists(ctx context.Context, name string) (bool, error)
}

// Emitter writes auxiliary archive entries into the current upload.
type Emitter interface {
	// Emit serializes sec into the raw file fileName and returns its reference.
	// Existing equal content is left untouched.
	Emit(ctx context.Context, sec *domain.Section, fileName string) (domain.Reference, error)
	// Reference returns the reference fileName will have, without writing.
	Reference(fileName string) domain.Reference
}

// Resolver looks up indexed entries by lab_id.
type Resolver interface {
	// Resolve returns the reference of the entry with labID among sectionTypes.
	// A miss yields a stub carrying only the lab_id.
	Resolve(ctx context.Context, labID string, sectionTypes ...string) domain.Reference
	// ExistsInUpload reports whether the current upload already holds an
	// entry with labID among sectionTypes.
	ExistsInUpload(ctx context.Context, labID string, sectionTypes ...string) (bool, error)
}

// Context is what a parser or normalizer sees of the file being processed.
type Context interface {
	RawFiles
	Emitter
	Resolver
	UploadID() string
	Mainfile() string
	Schema() *domain.SchemaRegistry
	Logger() Logger
	Now() time.Time
	// Report records a non-fatal problem. Its kind and class are read from err.
	Report(err error)
}
