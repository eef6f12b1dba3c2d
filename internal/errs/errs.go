// Package errs defines the ingestion error kinds and their classification.
// Non-fatal kinds are recorded as diagnostics and ingestion continues; only
// fatal errors abort a parse.
package errs

import (
	"errors"
	"fmt"
)

// Class is the propagation policy of an error.
type Class int

const (
	// Warning errors are logged and ingestion continues.
	Warning Class = iota
	// Error errors are logged, the affected item is skipped.
	Error
	// Fatal errors abort the parse and propagate to the caller.
	Fatal
)

// String returns the string representation of Class.
func (c Class) String() string {
	switch c {
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error kinds.
var (
	ErrFileGrammar       = errors.New("file grammar violation")
	ErrUnknownUnit       = errors.New("unknown unit")
	ErrMissingColumn     = errors.New("missing required column")
	ErrReferenceNotFound = errors.New("reference not found")
	ErrDuplicateEntry    = errors.New("duplicate entry")
	ErrArchiveConflict   = errors.New("archive conflict")
	ErrParseFatal        = errors.New("parse failed")
	ErrNoParser          = errors.New("no matching parser")
	ErrInvalidArchive    = errors.New("archive does not match schema")
	ErrNormalize         = errors.New("normalization failed")
)

// Kinds lists the sentinel kinds in a stable order.
var Kinds = []error{
	ErrFileGrammar, ErrUnknownUnit, ErrMissingColumn, ErrReferenceNotFound,
	ErrDuplicateEntry, ErrArchiveConflict, ErrParseFatal, ErrNoParser, ErrInvalidArchive, ErrNormalize,
}

// DefaultClass maps a kind to its propagation policy.
func DefaultClass(kind error) Class {
	switch {
	case errors.Is(kind, ErrParseFatal), errors.Is(kind, ErrNoParser):
		return Fatal
	case errors.Is(kind, ErrMissingColumn), errors.Is(kind, ErrArchiveConflict), errors.Is(kind, ErrNormalize):
		return Error
	default:
		return Warning
	}
}

// ClassifiedError wraps an error with its class and the component/operation
// that produced it.
type ClassifiedError struct {
	Class     Class
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface.
func (ce *ClassifiedError) Error() string {
	prefix := ce.Component
	if ce.Operation != "" {
		prefix += "." + ce.Operation
	}
	msg := ce.Message
	if msg == "" && ce.Err != nil {
		msg = ce.Err.Error()
	} else if ce.Err != nil {
		msg = msg + ": " + ce.Err.Error()
	}
	if prefix == "" {
		return msg
	}
	return prefix + ": " + msg
}

// Unwrap returns the underlying error.
func (ce *ClassifiedError) Unwrap() error { return ce.Err }

// Wrap creates a standardized error following "component.op: action failed: %w".
func Wrap(err error, component, op, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, op, action, err)
}

// New classifies kind with a formatted message.
func New(class Class, kind error, component, op, format string, args ...any) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       kind,
		Message:   fmt.Sprintf(format, args...),
		Component: component,
		Operation: op,
	}
}

// Fatalf builds a fatal ParseFatal error.
func Fatalf(component, op, format string, args ...any) error {
	return New(Fatal, ErrParseFatal, component, op, format, args...)
}

// WrapFatal classifies err as fatal. ParseFatal is attached unless err
// already carries a kind.
func WrapFatal(err error, component, op string) error {
	if err == nil {
		return nil
	}
	if KindOf(err) == nil {
		err = fmt.Errorf("%w: %w", ErrParseFatal, err)
	}
	return &ClassifiedError{Class: Fatal, Err: err, Component: component, Operation: op}
}

// ClassOf returns the class of err: the ClassifiedError class if present,
// else the default class of its kind.
func ClassOf(err error) Class {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	if k := KindOf(err); k != nil {
		return DefaultClass(k)
	}
	return Fatal
}

// IsFatal reports whether err must abort the parse.
func IsFatal(err error) bool {
	return err != nil && ClassOf(err) == Fatal
}

// KindOf returns the sentinel kind carried by err, or nil.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range Kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// KindName returns a short stable name for the kind, suitable for metrics
// labels and log keys.
func KindName(kind error) string {
	switch kind {
	case ErrFileGrammar:
		return "FileGrammarViolation"
	case ErrUnknownUnit:
		return "UnknownUnit"
	case ErrMissingColumn:
		return "MissingRequiredColumn"
	case ErrReferenceNotFound:
		return "ReferenceNotFound"
	case ErrDuplicateEntry:
		return "DuplicateEntry"
	case ErrArchiveConflict:
		return "ArchiveConflict"
	case ErrParseFatal:
		return "ParseFatal"
	case ErrNoParser:
		return "NoParser"
	case ErrInvalidArchive:
		return "InvalidArchive"
	case ErrNormalize:
		return "NormalizationFailed"
	default:
		return "Unknown"
	}
}

// LineError attaches a 1-based source line to an error.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

// Unwrap returns the underlying error.
func (e *LineError) Unwrap() error { return e.Err }

// AtLine wraps err with line.
func AtLine(err error, line int) error {
	if err == nil {
		return nil
	}
	return &LineError{Line: line, Err: err}
}

// LineOf returns the line attached to err, or 0.
func LineOf(err error) int {
	var le *LineError
	if errors.As(err, &le) {
		return le.Line
	}
	return 0
}

// Warnf builds a warning of kind.
func Warnf(kind error, component, op, format string, args ...any) error {
	return New(Warning, kind, component, op, format, args...)
}

// Errorf builds an error-class diagnostic of kind.
func Errorf(kind error, component, op, format string, args ...any) error {
	return New(Error, kind, component, op, format, args...)
}
