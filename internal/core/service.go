package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"elncore/internal/archive"
	"elncore/internal/errs"
	"elncore/internal/normalize"
	"elncore/internal/search"
	"elncore/internal/upload"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
)

// defaultMaxDepth bounds the nesting of emitted archives processed while
// their referrer is parsed.
const defaultMaxDepth = 8

// GraphSink mirrors processed entries and their outgoing references.
type GraphSink interface {
	Mirror(ctx context.Context, entry search.Entry, refs []domain.Reference) error
}

// Service ingests raw files of uploads: it dispatches each file to a
// parser, normalizes, validates and stores the resulting entry and indexes
// it for lab_id resolution.
type Service struct {
	files       *upload.Files
	index       search.Index
	resolver    *search.Resolver
	schema      *domain.SchemaRegistry
	validator   *archive.Validator
	parsers     []pluginapi.Parser
	normalizers map[string][]pluginapi.Normalizer
	plugins     map[string]PluginMetadata

	logger    Logger
	clock     Clock
	metrics   MetricsRecorder
	tracer    Tracer
	graph     GraphSink
	overwrite bool
	workers   int
	maxDepth  int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger; nil keeps the no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithOverwrite makes emitted archives replace existing files with
// different content instead of reporting a conflict.
func WithOverwrite(overwrite bool) Option {
	return func(s *Service) { s.overwrite = overwrite }
}

// WithGraphSink mirrors every processed entry into sink.
func WithGraphSink(sink GraphSink) Option {
	return func(s *Service) { s.graph = sink }
}

// WithWorkers bounds the number of uploads processed concurrently.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewService builds a service over the raw files and the search index. The
// built-in schema, the archive parser and the built-in normalizers are
// installed.
func NewService(files *upload.Files, index search.Index, opts ...Option) *Service {
	s := &Service{
		files:       files,
		index:       index,
		resolver:    search.NewResolver(index),
		schema:      schema.MustNew(),
		normalizers: make(map[string][]pluginapi.Normalizer),
		plugins:     make(map[string]PluginMetadata),
		logger:      noopLogger{},
		clock:       systemClock{},
		metrics:     noopMetrics{},
		tracer:      noopTracer{},
		workers:     1,
		maxDepth:    defaultMaxDepth,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.validator = archive.NewValidator(s.schema)
	s.parsers = append(s.parsers, archiveParser{})
	builtin := NewPluginRegistry()
	normalize.Register(builtin)
	s.addNormalizers(builtin)
	return s
}

// Schema returns the schema registry, including plugin sections.
func (s *Service) Schema() *domain.SchemaRegistry { return s.schema }

// Resolver returns the lab_id resolver over the service index.
func (s *Service) Resolver() *search.Resolver { return s.resolver }

// InstallPlugin registers a plugin's sections, parsers and normalizers.
// Plugins must be installed before files are processed.
func (s *Service) InstallPlugin(plugin pluginapi.Plugin) (PluginMetadata, error) {
	if plugin == nil {
		return PluginMetadata{}, fmt.Errorf("plugin cannot be nil")
	}
	if _, ok := s.plugins[plugin.Name()]; ok {
		return PluginMetadata{}, fmt.Errorf("plugin %s already registered", plugin.Name())
	}
	registry := NewPluginRegistry()
	if err := plugin.Register(registry); err != nil {
		return PluginMetadata{}, fmt.Errorf("plugin %s: %w", plugin.Name(), err)
	}
	if defs := registry.Sections(); len(defs) > 0 {
		if err := s.schema.Register(defs...); err != nil {
			return PluginMetadata{}, fmt.Errorf("plugin %s: %w", plugin.Name(), err)
		}
	}
	for _, p := range registry.Parsers() {
		for _, have := range s.parsers {
			if have.Name() == p.Name() {
				return PluginMetadata{}, fmt.Errorf("plugin %s: parser %s already installed", plugin.Name(), p.Name())
			}
		}
	}
	s.parsers = append(s.parsers, registry.Parsers()...)
	s.addNormalizers(registry)
	meta := metadataFor(plugin, registry)
	s.plugins[plugin.Name()] = meta
	s.logger.Info("plugin installed", "plugin", meta.Name, "version", meta.Version, "parsers", len(meta.Parsers))
	return meta, nil
}

func (s *Service) addNormalizers(r *PluginRegistry) {
	for section, ns := range r.Normalizers() {
		s.normalizers[section] = append(s.normalizers[section], ns...)
	}
}

// RegisteredPlugins returns metadata describing installed plugins, by name.
func (s *Service) RegisteredPlugins() []PluginMetadata {
	out := make([]PluginMetadata, 0, len(s.plugins))
	for _, meta := range s.plugins {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch returns the first parser matching name and content, or nil.
func (s *Service) Dispatch(name string, content []byte) pluginapi.Parser {
	head := content
	if len(head) > pluginapi.HeadSize {
		head = head[:pluginapi.HeadSize]
	}
	for _, p := range s.parsers {
		if p.Matcher().Match(name, head) {
			return p
		}
	}
	return nil
}

// FileReport summarizes the processing of one mainfile.
type FileReport struct {
	UploadID    string              `json:"upload_id"`
	Mainfile    string              `json:"mainfile"`
	EntryID     string              `json:"entry_id"`
	Parser      string              `json:"parser,omitempty"`
	SectionType string              `json:"section_type,omitempty"`
	Emitted     []EmittedFile       `json:"emitted,omitempty"`
	Diagnostics []domain.Diagnostic `json:"diagnostics,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// UploadReport summarizes the processing of an upload.
type UploadReport struct {
	UploadID string       `json:"upload_id"`
	Files    []FileReport `json:"files"`
	Skipped  []string     `json:"skipped,omitempty"`
	Failed   int          `json:"failed"`
}

// run tracks the files processed by one top-level call.
type run struct {
	mu        sync.Mutex
	processed map[string]bool
	reports   []FileReport
}

func newRun() *run { return &run{processed: map[string]bool{}} }

func (r *run) done(uploadID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed[uploadID+"/"+name]
}

func (r *run) mark(uploadID, name string) {
	r.mu.Lock()
	r.processed[uploadID+"/"+name] = true
	r.mu.Unlock()
}

func (r *run) add(rep FileReport) {
	r.mu.Lock()
	r.reports = append(r.reports, rep)
	r.mu.Unlock()
}

// ProcessFile processes one raw file of an upload. Auxiliary archives the
// parser emits are processed before it returns.
func (s *Service) ProcessFile(ctx context.Context, uploadID, name string) (FileReport, error) {
	return s.processFile(ctx, newRun(), uploadID, name, 0)
}

func (s *Service) processFile(ctx context.Context, r *run, uploadID, name string, depth int) (rep FileReport, err error) {
	ctx, span := s.tracer.Start(ctx, "process_file")
	start := s.clock.Now()
	rep = FileReport{UploadID: uploadID, Mainfile: name, EntryID: archive.EntryID(uploadID, name)}
	r.mark(uploadID, name)
	defer func() {
		if err != nil {
			rep.Error = err.Error()
		}
		r.add(rep)
		s.metrics.Observe(ctx, "process_file", err == nil, s.clock.Now().Sub(start))
		span.End(err)
	}()

	data, err := s.files.ReadRaw(ctx, uploadID, name)
	if err != nil {
		return rep, fmt.Errorf("core.process_file: read %s: %w", name, err)
	}
	parser := s.Dispatch(name, data)
	if parser == nil {
		return rep, errs.New(errs.Fatal, errs.ErrNoParser, "core", "dispatch", "no parser matches %s", name)
	}
	rep.Parser = parser.Name()

	pc := s.newContext(r, uploadID, name, depth)
	sec, err := parser.Parse(ctx, pc, data)
	if err != nil {
		if errs.IsFatal(err) {
			rep.Diagnostics = append(pc.diagnostics(), diagnosticOf(err, name))
			rep.Emitted = pc.emitted
			s.logger.Error("parse failed", "upload_id", uploadID, "mainfile", name, "parser", parser.Name(), "error", err)
			return rep, err
		}
		pc.Report(err)
	}
	if sec == nil {
		rep.Diagnostics = pc.diagnostics()
		return rep, errs.Fatalf("core", "parse", "parser %s produced no section for %s", parser.Name(), name)
	}

	s.normalize(ctx, pc, sec)
	doc := archive.Document(sec)
	if verr := s.validator.Validate(doc); verr != nil {
		pc.Report(verr)
	}
	rep.SectionType = sec.Type()
	rep.Emitted = pc.emitted
	rep.Diagnostics = pc.diagnostics()

	out, err := archive.Marshal(doc, archive.YAML)
	if err != nil {
		return rep, errs.WrapFatal(err, "core", "persist")
	}
	if err := s.files.PutEntry(ctx, uploadID, rep.EntryID, out); err != nil {
		return rep, fmt.Errorf("core.process_file: %w", err)
	}
	entry := search.EntryFor(uploadID, rep.EntryID, name, sec)
	if err := s.index.Put(ctx, entry); err != nil {
		return rep, fmt.Errorf("core.process_file: index %s: %w", name, err)
	}
	if s.graph != nil {
		if gerr := s.graph.Mirror(ctx, entry, References(sec)); gerr != nil {
			s.logger.Warn("graph mirror failed", "upload_id", uploadID, "mainfile", name, "error", gerr)
		}
	}
	s.logger.Info("processed file", "upload_id", uploadID, "mainfile", name, "section", sec.Type(),
		"emitted", len(rep.Emitted), "diagnostics", len(rep.Diagnostics))
	return rep, nil
}

// normalize runs the registered normalizers on sec and every nested
// section, base types before derived ones. Failures are reported.
func (s *Service) normalize(ctx context.Context, pc *fileContext, sec *domain.Section) {
	sec.Walk(func(path string, sub *domain.Section) {
		types := append(append([]string(nil), sub.Definition().Ancestors...), sub.Type())
		for _, t := range types {
			for _, n := range s.normalizers[t] {
				if err := n.Normalize(ctx, pc, sub); err != nil {
					if errs.KindOf(err) == nil {
						err = errs.New(errs.Error, errs.ErrNormalize, "normalize", t, "%s: %v", pathOr(path, sub.Type()), err)
					}
					pc.Report(err)
				}
			}
		}
	})
}

func pathOr(path, fallback string) string {
	if path == "" {
		return fallback
	}
	return path
}

// ProcessUpload processes every raw file of an upload in key order. Files
// without a matching parser are skipped; failing files are reported and
// do not stop the upload.
func (s *Service) ProcessUpload(ctx context.Context, uploadID string) (UploadReport, error) {
	ctx, span := s.tracer.Start(ctx, "process_upload")
	start := s.clock.Now()
	rep := UploadReport{UploadID: uploadID}
	var err error
	defer func() {
		s.metrics.Observe(ctx, "process_upload", err == nil, s.clock.Now().Sub(start))
		span.End(err)
	}()

	names, err := s.files.ListRaw(ctx, uploadID)
	if err != nil {
		return rep, err
	}
	r := newRun()
	for _, name := range names {
		if err = ctx.Err(); err != nil {
			return rep, err
		}
		if r.done(uploadID, name) {
			continue
		}
		_, ferr := s.processFile(ctx, r, uploadID, name, 0)
		switch {
		case errors.Is(ferr, errs.ErrNoParser):
			rep.Skipped = append(rep.Skipped, name)
		case ferr != nil:
			rep.Failed++
		}
	}
	for _, fr := range r.reports {
		if fr.Parser != "" {
			rep.Files = append(rep.Files, fr)
		}
	}
	s.logger.Info("processed upload", "upload_id", uploadID, "files", len(rep.Files),
		"skipped", len(rep.Skipped), "failed", rep.Failed)
	return rep, nil
}

// ProcessUploads processes independent uploads concurrently, bounded by
// the configured worker count. Reports keep the order of uploadIDs.
func (s *Service) ProcessUploads(ctx context.Context, uploadIDs []string) ([]UploadReport, error) {
	reports := make([]UploadReport, len(uploadIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, id := range uploadIDs {
		i, id := i, id
		g.Go(func() error {
			rep, err := s.ProcessUpload(gctx, id)
			reports[i] = rep
			if err != nil {
				return fmt.Errorf("core.process_uploads: %s: %w", id, err)
			}
			return nil
		})
	}
	err := g.Wait()
	return reports, err
}

// References returns the resolved references held anywhere in sec.
func References(sec *domain.Section) []domain.Reference {
	var out []domain.Reference
	sec.Walk(func(_ string, sub *domain.Section) {
		for _, q := range sub.Definition().Quantities {
			if q.Type != domain.TypeReference {
				continue
			}
			v, ok := sub.Get(q.Name)
			if !ok {
				continue
			}
			switch r := v.(type) {
			case domain.Reference:
				if r.Resolved() {
					out = append(out, r)
				}
			case []domain.Reference:
				for _, e := range r {
					if e.Resolved() {
						out = append(out, e)
					}
				}
			}
		}
	})
	return out
}
