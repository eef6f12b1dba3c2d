package domain

import "fmt"

// Severity captures how a diagnostic affects ingestion.
type Severity string

const (
	// SeverityWarning is logged, ingestion continues unchanged.
	SeverityWarning Severity = "warning"
	// SeverityError is logged, the affected item is skipped.
	SeverityError Severity = "error"
	// SeverityFatal aborts the parse.
	SeverityFatal Severity = "fatal"
)

// Diagnostic reports one non-fatal problem found while ingesting a file.
type Diagnostic struct {
	Kind     string
	Severity Severity
	Message  string
	File     string
	Line     int
}

func (d Diagnostic) String() string {
	loc := d.File
	if d.Line > 0 {
		loc = fmt.Sprintf("%s:%d", d.File, d.Line)
	}
	if loc == "" {
		return fmt.Sprintf("%s %s: %s", d.Severity, d.Kind, d.Message)
	}
	return fmt.Sprintf("%s %s %s: %s", loc, d.Severity, d.Kind, d.Message)
}

// Result aggregates diagnostics of a parse.
type Result struct {
	Diagnostics []Diagnostic
}

// Add appends a diagnostic.
func (r *Result) Add(d Diagnostic) {
	r.Diagnostics = append(r.Diagnostics, d)
}

// Merge appends diagnostics from another result.
func (r *Result) Merge(other Result) {
	if len(other.Diagnostics) == 0 {
		return
	}
	r.Diagnostics = append(r.Diagnostics, other.Diagnostics...)
}

// HasFatal returns true if the result contains fatal diagnostics.
func (r Result) HasFatal() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityFatal {
			return true
		}
	}
	return false
}

// Count returns the number of diagnostics of kind.
func (r Result) Count(kind string) int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Kind == kind {
			n++
		}
	}
	return n
}
