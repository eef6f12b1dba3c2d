// Package testhelper hosts plugin test fixtures: a registry that collects
// plugin contributions and an in-memory parse context that records emitted
// archives and resolves lab_ids without the ingest host.
package testhelper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"testing"
	"time"

	"elncore/internal/archive"
	"elncore/internal/normalize"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
)

// UploadID is the upload every fixture context works in.
const UploadID = "upload-1"

// Registry collects what plugins register.
type Registry struct {
	Sections    []domain.SectionDef
	Parsers     []pluginapi.Parser
	Normalizers map[string][]pluginapi.Normalizer
	order       []string
}

// NewRegistry returns a registry preloaded with the built-in normalizers.
func NewRegistry() *Registry {
	r := &Registry{Normalizers: map[string][]pluginapi.Normalizer{}}
	normalize.Register(r)
	return r
}

func (r *Registry) RegisterSections(defs ...domain.SectionDef) error {
	r.Sections = append(r.Sections, defs...)
	return nil
}

func (r *Registry) RegisterParser(p pluginapi.Parser) error {
	r.Parsers = append(r.Parsers, p)
	return nil
}

func (r *Registry) RegisterNormalizer(section string, n pluginapi.Normalizer) {
	if _, ok := r.Normalizers[section]; !ok {
		r.order = append(r.order, section)
	}
	r.Normalizers[section] = append(r.Normalizers[section], n)
}

// Parser returns the first registered parser matching name and data.
func (r *Registry) Parser(name string, data []byte) pluginapi.Parser {
	for _, p := range r.Parsers {
		if p.Matcher().Match(name, data) {
			return p
		}
	}
	return nil
}

// Install registers plugins and returns the registry with the schema they
// extend.
func Install(t testing.TB, plugins ...pluginapi.Plugin) (*Registry, *domain.SchemaRegistry) {
	t.Helper()
	r := NewRegistry()
	for _, p := range plugins {
		if err := p.Register(r); err != nil {
			t.Fatalf("register %s: %v", p.Name(), err)
		}
	}
	reg, err := schema.New(r.Sections...)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return r, reg
}

// Emission is one archive written through the context.
type Emission struct {
	Name string
	// Section is what the plugin handed over.
	Section *domain.Section
	// Loaded is the archive read back and normalized, as the host would
	// index it.
	Loaded *domain.Section
	Data   []byte
}

type entry struct {
	typ string
	ref domain.Reference
}

// Context is an in-memory pluginapi.Context.
type Context struct {
	File     string
	Files    map[string][]byte
	Emitted  []Emission
	Reports  []error
	Clock    time.Time
	registry *Registry
	schema   *domain.SchemaRegistry
	known    map[string][]entry
	inUpload map[string]bool
}

var _ pluginapi.Context = (*Context)(nil)

// NewContext builds a context for mainfile.
func NewContext(r *Registry, reg *domain.SchemaRegistry, mainfile string) *Context {
	return &Context{
		File:     mainfile,
		Files:    map[string][]byte{},
		Clock:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		registry: r,
		schema:   reg,
		known:    map[string][]entry{},
		inUpload: map[string]bool{},
	}
}

// Known makes labID resolvable as an entry of typ in another upload.
func (c *Context) Known(labID, typ string) domain.Reference {
	ref := archive.ReferenceTo("other-upload", labID+"."+typ+".archive.yaml")
	ref.LabID = labID
	c.known[labID] = append(c.known[labID], entry{typ: typ, ref: ref})
	return ref
}

// InUpload marks labID as already present in the current upload.
func (c *Context) InUpload(labID string) { c.inUpload[labID] = true }

func (c *Context) OpenRaw(_ context.Context, name string) (io.ReadCloser, error) {
	data, ok := c.Files[name]
	if !ok {
		return nil, fmt.Errorf("raw file %s: %w", name, archive.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *Context) RawExists(_ context.Context, name string) (bool, error) {
	_, ok := c.Files[name]
	return ok, nil
}

// Emit serializes sec, reads it back and normalizes the copy. The lab_id
// of the emitted section becomes resolvable.
func (c *Context) Emit(ctx context.Context, sec *domain.Section, name string) (domain.Reference, error) {
	f := archive.FormatOf(name)
	data, err := archive.Marshal(archive.Document(sec), f)
	if err != nil {
		return domain.Reference{}, err
	}
	loaded, err := archive.Load(c.schema, data, f)
	if err != nil {
		return domain.Reference{}, err
	}
	if err := c.Normalize(ctx, loaded); err != nil {
		return domain.Reference{}, err
	}
	c.Files[name] = data
	c.Emitted = append(c.Emitted, Emission{Name: name, Section: sec, Loaded: loaded, Data: data})
	ref := c.Reference(name)
	if lab := sec.Str("lab_id"); lab != "" {
		kref := ref
		kref.LabID = lab
		c.known[lab] = append([]entry{{typ: sec.Type(), ref: kref}}, c.known[lab]...)
		c.inUpload[lab] = true
	}
	return ref, nil
}

func (c *Context) Reference(name string) domain.Reference {
	return archive.ReferenceTo(UploadID, name)
}

func (c *Context) Resolve(_ context.Context, labID string, types ...string) domain.Reference {
	for _, e := range c.known[labID] {
		if c.matches(e.typ, types) {
			return e.ref
		}
	}
	return domain.Stub(labID)
}

func (c *Context) ExistsInUpload(_ context.Context, labID string, _ ...string) (bool, error) {
	return c.inUpload[labID], nil
}

func (c *Context) matches(typ string, types []string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if c.schema.IsA(typ, t) {
			return true
		}
	}
	return false
}

func (c *Context) UploadID() string               { return UploadID }
func (c *Context) Mainfile() string               { return c.File }
func (c *Context) Schema() *domain.SchemaRegistry { return c.schema }
func (c *Context) Logger() pluginapi.Logger       { return nopLogger{} }
func (c *Context) Now() time.Time                 { return c.Clock }
func (c *Context) Report(err error) {
	if err != nil {
		c.Reports = append(c.Reports, err)
	}
}

// Normalize runs the registered normalizers over sec and its subsections,
// parents first.
func (c *Context) Normalize(ctx context.Context, sec *domain.Section) error {
	var firstErr error
	sec.Walk(func(_ string, s *domain.Section) {
		if firstErr != nil {
			return
		}
		for _, typ := range c.registry.order {
			if !c.schema.IsA(s.Type(), typ) {
				continue
			}
			for _, n := range c.registry.Normalizers[typ] {
				if err := n.Normalize(ctx, c, s); err != nil {
					firstErr = err
					return
				}
			}
		}
	})
	return firstErr
}

// Names lists the emitted file names in emission order.
func (c *Context) Names() []string {
	out := make([]string, len(c.Emitted))
	for i, e := range c.Emitted {
		out[i] = e.Name
	}
	return out
}

// Emission returns the emission of name.
func (c *Context) Emission(name string) (Emission, bool) {
	for _, e := range c.Emitted {
		if e.Name == name {
			return e, true
		}
	}
	return Emission{}, false
}

// Parse runs the parser matching the context's mainfile over data and
// normalizes the result.
func Parse(t testing.TB, c *Context, data []byte) (*domain.Section, error) {
	t.Helper()
	p := c.registry.Parser(path.Base(c.File), data)
	if p == nil {
		t.Fatalf("no parser matches %s", c.File)
	}
	ctx := context.Background()
	sec, err := p.Parse(ctx, c, data)
	if err != nil || sec == nil {
		return sec, err
	}
	return sec, c.Normalize(ctx, sec)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
