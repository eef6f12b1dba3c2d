package core

import (
	"context"
	"io"
	"time"

	"elncore/internal/archive"
	"elncore/internal/errs"
	"elncore/pkg/domain"
	"elncore/pkg/pluginapi"
)

var _ pluginapi.Context = (*fileContext)(nil)

// EmittedFile records one auxiliary archive written by a parse.
type EmittedFile struct {
	Name    string `json:"name"`
	Outcome string `json:"outcome"`
}

// fileContext is what a parser and the normalizers of one mainfile see.
type fileContext struct {
	svc      *Service
	run      *run
	uploadID string
	mainfile string
	depth    int
	emitter  *archive.Emitter

	outcome archive.Outcome
	emitted []EmittedFile
	diags   []domain.Diagnostic
}

func (s *Service) newContext(r *run, uploadID, mainfile string, depth int) *fileContext {
	c := &fileContext{svc: s, run: r, uploadID: uploadID, mainfile: mainfile, depth: depth}
	c.emitter = archive.NewEmitter(s.files, uploadID, s.overwrite)
	c.emitter.Observe = func(o archive.Outcome) { c.outcome = o }
	c.emitter.AfterWrite = c.processEmitted
	return c
}

func (c *fileContext) OpenRaw(ctx context.Context, name string) (io.ReadCloser, error) {
	return c.svc.files.OpenRaw(ctx, c.uploadID, name)
}

func (c *fileContext) RawExists(ctx context.Context, name string) (bool, error) {
	return c.svc.files.RawExists(ctx, c.uploadID, name)
}

// Emit writes sec through the idempotent emitter. Conflicts and failures
// to process the emitted file are reported, not returned.
func (c *fileContext) Emit(ctx context.Context, sec *domain.Section, fileName string) (domain.Reference, error) {
	c.outcome = ""
	ref, err := c.emitter.Emit(ctx, sec, fileName)
	if c.outcome != "" {
		c.emitted = append(c.emitted, EmittedFile{Name: fileName, Outcome: string(c.outcome)})
		if ao, ok := c.svc.metrics.(ArchiveObserver); ok {
			ao.ObserveArchive(string(c.outcome))
		}
	}
	if err != nil {
		if errs.IsFatal(err) {
			return ref, err
		}
		c.Report(err)
	}
	// Unchanged files may predate the index; make sure they are searchable.
	if c.outcome == archive.Unchanged && !c.run.done(c.uploadID, fileName) {
		if perr := c.processEmitted(ctx, fileName); perr != nil {
			c.Report(perr)
		}
	}
	return ref, nil
}

func (c *fileContext) processEmitted(ctx context.Context, fileName string) error {
	if c.depth >= c.svc.maxDepth {
		c.svc.logger.Warn("emitted archive not processed, nesting too deep",
			"upload_id", c.uploadID, "mainfile", c.mainfile, "file", fileName, "depth", c.depth)
		return nil
	}
	if c.run.done(c.uploadID, fileName) {
		return nil
	}
	if _, err := c.svc.processFile(ctx, c.run, c.uploadID, fileName, c.depth+1); err != nil {
		return &errs.ClassifiedError{Class: errs.Error, Err: err, Component: "core", Operation: "process_emitted"}
	}
	return nil
}

func (c *fileContext) Reference(fileName string) domain.Reference {
	return c.emitter.Reference(fileName)
}

func (c *fileContext) Resolve(ctx context.Context, labID string, sectionTypes ...string) domain.Reference {
	ref, err := c.svc.resolver.Resolve(ctx, labID, sectionTypes...)
	if err != nil {
		c.Report(err)
	}
	return ref
}

func (c *fileContext) ExistsInUpload(ctx context.Context, labID string, sectionTypes ...string) (bool, error) {
	return c.svc.resolver.ExistsInUpload(ctx, c.uploadID, labID, sectionTypes...)
}

func (c *fileContext) UploadID() string                 { return c.uploadID }
func (c *fileContext) Mainfile() string                 { return c.mainfile }
func (c *fileContext) Schema() *domain.SchemaRegistry   { return c.svc.schema }
func (c *fileContext) Logger() pluginapi.Logger         { return c.svc.logger }
func (c *fileContext) Now() time.Time                   { return c.svc.clock.Now() }
func (c *fileContext) diagnostics() []domain.Diagnostic { return c.diags }

// Report records a non-fatal problem as a diagnostic and logs it. A reported
// error never aborts the parse, so fatal classes are recorded as errors.
func (c *fileContext) Report(err error) {
	if err == nil {
		return
	}
	d := diagnosticOf(err, c.mainfile)
	if d.Severity == domain.SeverityFatal {
		d.Severity = domain.SeverityError
	}
	c.diags = append(c.diags, d)
	kv := []any{"upload_id", c.uploadID, "mainfile", c.mainfile, "kind", d.Kind}
	if d.Line > 0 {
		kv = append(kv, "line", d.Line)
	}
	kv = append(kv, "error", err)
	if d.Severity == domain.SeverityWarning {
		c.svc.logger.Warn("ingest warning", kv...)
		return
	}
	c.svc.logger.Error("ingest error", kv...)
}

func diagnosticOf(err error, file string) domain.Diagnostic {
	sev := domain.SeverityWarning
	switch errs.ClassOf(err) {
	case errs.Error:
		sev = domain.SeverityError
	case errs.Fatal:
		sev = domain.SeverityFatal
	}
	return domain.Diagnostic{
		Kind:     errs.KindName(errs.KindOf(err)),
		Severity: sev,
		Message:  err.Error(),
		File:     file,
		Line:     errs.LineOf(err),
	}
}
