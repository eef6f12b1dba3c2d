package core

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elncore/internal/archive"
	"elncore/internal/blob"
	"elncore/internal/errs"
	"elncore/internal/infra/index/memory"
	"elncore/internal/search"
	"elncore/internal/upload"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
)

const demoRun = "DemoRun"

// demoPlugin parses "*.demo" files of "key: value" lines. The sample is
// emitted as its own archive and referenced from the run.
type demoPlugin struct{}

func (demoPlugin) Name() string    { return "demo" }
func (demoPlugin) Version() string { return "0.1.0" }

func (demoPlugin) Register(reg pluginapi.Registry) error {
	if err := reg.RegisterSections(domain.SectionDef{
		Name:       demoRun,
		Extends:    []string{schema.Process},
		Quantities: []domain.QuantityDef{{Name: "sample", Type: domain.TypeReference}},
	}); err != nil {
		return err
	}
	reg.RegisterNormalizer(demoRun, pluginapi.NormalizerFunc(func(_ context.Context, _ pluginapi.Context, sec *domain.Section) error {
		if sec.Str("name") == "bad" {
			return errors.New("bad run name")
		}
		return sec.Set("description", "normalized")
	}))
	return reg.RegisterParser(pluginapi.NewParser("demo.run", pluginapi.Matcher{Globs: []string{"*.demo"}}, parseDemo))
}

func parseDemo(ctx context.Context, pc pluginapi.Context, data []byte) (*domain.Section, error) {
	fields := map[string]string{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		k, v, ok := strings.Cut(sc.Text(), ":")
		if ok {
			fields[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	labID := fields["sample"]
	if labID == "" {
		return nil, errs.Fatalf("demo", "parse", "no sample line")
	}
	sample, err := pc.Schema().New(schema.CompositeSystem)
	if err != nil {
		return nil, errs.WrapFatal(err, "demo", "parse")
	}
	sample.MustSet("lab_id", labID)
	sample.MustSet("chemical_formula", fields["formula"])
	file := labID + ".archive.yaml"
	exists, err := pc.ExistsInUpload(ctx, labID, schema.CompositeSystem)
	if err != nil {
		return nil, err
	}
	own, err := pc.RawExists(ctx, file)
	if err != nil {
		return nil, err
	}
	if exists && !own {
		pc.Report(errs.Warnf(errs.ErrDuplicateEntry, "demo", "parse", "sample %q already exists in the upload", labID))
	} else if _, err := pc.Emit(ctx, sample, file); err != nil {
		return nil, err
	}
	run := pc.Schema().MustNew(demoRun)
	run.MustSet("name", fields["name"])
	run.MustSet("lab_id", "RUN-"+labID)
	run.MustSet("sample", pc.Resolve(ctx, labID, schema.CompositeSystem))
	return run, nil
}

type captureLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *captureLogger) record(level, msg string) {
	l.mu.Lock()
	l.messages = append(l.messages, level+" "+msg)
	l.mu.Unlock()
}

func (l *captureLogger) Debug(msg string, _ ...any) { l.record("debug", msg) }
func (l *captureLogger) Info(msg string, _ ...any)  { l.record("info", msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.record("warn", msg) }
func (l *captureLogger) Error(msg string, _ ...any) { l.record("error", msg) }

func (l *captureLogger) has(entry string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if m == entry {
			return true
		}
	}
	return false
}

type recordingSink struct {
	mu      sync.Mutex
	entries map[string][]domain.Reference
}

func (s *recordingSink) Mirror(_ context.Context, e search.Entry, refs []domain.Reference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		s.entries = map[string][]domain.Reference{}
	}
	s.entries[e.Mainfile] = refs
	return nil
}

type fixture struct {
	files *upload.Files
	index *memory.Index
	svc   *Service
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	files := upload.New(blob.NewMemory())
	idx := memory.New()
	svc := NewService(files, idx, opts...)
	_, err := svc.InstallPlugin(demoPlugin{})
	require.NoError(t, err)
	return fixture{files: files, index: idx, svc: svc}
}

func (f fixture) put(t *testing.T, uploadID, name, content string) {
	t.Helper()
	require.NoError(t, f.files.WriteRaw(context.Background(), uploadID, name, []byte(content), true))
}

func (f fixture) entry(t *testing.T, uploadID, name string) string {
	t.Helper()
	data, err := f.files.GetEntry(context.Background(), uploadID, archive.EntryID(uploadID, name))
	require.NoError(t, err)
	return string(data)
}

func TestProcessUploadEmitsBeforeReferrer(t *testing.T) {
	sink := &recordingSink{}
	logger := &captureLogger{}
	f := newFixture(t, WithGraphSink(sink), WithLogger(logger))
	f.put(t, "u1", "run.demo", "name: first\nsample: S1\nformula: GaN\n")
	f.put(t, "u1", "notes.txt", "free text")

	rep, err := f.svc.ProcessUpload(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt"}, rep.Skipped)
	assert.Zero(t, rep.Failed)
	require.Len(t, rep.Files, 2)
	assert.Equal(t, "S1.archive.yaml", rep.Files[0].Mainfile)
	assert.Equal(t, ArchiveParserName, rep.Files[0].Parser)
	assert.Equal(t, "run.demo", rep.Files[1].Mainfile)
	assert.Equal(t, demoRun, rep.Files[1].SectionType)
	assert.Equal(t, []EmittedFile{{Name: "S1.archive.yaml", Outcome: "written"}}, rep.Files[1].Emitted)
	assert.Empty(t, rep.Files[1].Diagnostics)

	sampleRef := archive.RefString("u1", "S1.archive.yaml")
	run := f.entry(t, "u1", "run.demo")
	assert.Contains(t, run, sampleRef)
	assert.Contains(t, run, "normalized")
	assert.Contains(t, f.entry(t, "u1", "S1.archive.yaml"), "elemental_composition")

	ref, werr := f.svc.Resolver().Resolve(context.Background(), "S1", schema.CompositeSystem)
	require.NoError(t, werr)
	assert.Equal(t, sampleRef, ref.Ref)
	resp, err := f.index.Search(context.Background(), search.Query{LabID: "RUN-S1", SectionTypes: []string{schema.Activity}})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)

	require.Len(t, sink.entries["run.demo"], 1)
	assert.Equal(t, sampleRef, sink.entries["run.demo"][0].Ref)
	assert.True(t, logger.has("info processed upload"))
}

func TestReprocessIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.put(t, "u1", "run.demo", "name: first\nsample: S1\nformula: GaN\n")
	ctx := context.Background()

	_, err := f.svc.ProcessUpload(ctx, "u1")
	require.NoError(t, err)
	before := f.entry(t, "u1", "S1.archive.yaml")

	again := NewService(f.files, f.index)
	_, err = again.InstallPlugin(demoPlugin{})
	require.NoError(t, err)
	rep, err := again.ProcessUpload(ctx, "u1")
	require.NoError(t, err)

	var run FileReport
	for _, fr := range rep.Files {
		if fr.Mainfile == "run.demo" {
			run = fr
		}
	}
	assert.Equal(t, []EmittedFile{{Name: "S1.archive.yaml", Outcome: "unchanged"}}, run.Emitted)
	assert.Empty(t, run.Diagnostics)
	assert.Equal(t, before, f.entry(t, "u1", "S1.archive.yaml"))
	assert.Contains(t, f.entry(t, "u1", "run.demo"), archive.RefString("u1", "S1.archive.yaml"))
	assert.Zero(t, rep.Failed)
}

func TestEmitConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.put(t, "u1", "run.demo", "name: first\nsample: S1\nformula: GaN\n")
	_, err := f.svc.ProcessUpload(ctx, "u1")
	require.NoError(t, err)

	f.put(t, "u1", "run.demo", "name: first\nsample: S1\nformula: AlN\n")
	rep, err := f.svc.ProcessFile(ctx, "u1", "run.demo")
	require.NoError(t, err)
	assert.Equal(t, []EmittedFile{{Name: "S1.archive.yaml", Outcome: "conflict"}}, rep.Emitted)
	require.NotEmpty(t, rep.Diagnostics)
	assert.Equal(t, errs.KindName(errs.ErrArchiveConflict), rep.Diagnostics[0].Kind)
	assert.Equal(t, domain.SeverityError, rep.Diagnostics[0].Severity)
	assert.Contains(t, f.entry(t, "u1", "S1.archive.yaml"), "GaN")

	over := NewService(f.files, f.index, WithOverwrite(true))
	_, err = over.InstallPlugin(demoPlugin{})
	require.NoError(t, err)
	rep, err = over.ProcessFile(ctx, "u1", "run.demo")
	require.NoError(t, err)
	assert.Equal(t, []EmittedFile{{Name: "S1.archive.yaml", Outcome: "overwritten"}}, rep.Emitted)
	assert.Contains(t, f.entry(t, "u1", "S1.archive.yaml"), "AlN")
}

func TestProcessFileFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.put(t, "u1", "notes.txt", "free text")
	f.put(t, "u1", "empty.demo", "name: x\n")

	_, err := f.svc.ProcessFile(ctx, "u1", "notes.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNoParser))

	rep, err := f.svc.ProcessFile(ctx, "u1", "empty.demo")
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
	require.Len(t, rep.Diagnostics, 1)
	assert.Equal(t, domain.SeverityFatal, rep.Diagnostics[0].Severity)
	assert.NotEmpty(t, rep.Error)

	_, err = f.svc.ProcessFile(ctx, "u1", "missing.demo")
	assert.ErrorIs(t, err, archive.ErrNotExist)

	up, err := f.svc.ProcessUpload(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, up.Failed)
	assert.Equal(t, []string{"notes.txt"}, up.Skipped)
}

func TestNormalizerFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.put(t, "u1", "run.demo", "name: bad\nsample: S1\nformula: GaN\n")
	rep, err := f.svc.ProcessFile(context.Background(), "u1", "run.demo")
	require.NoError(t, err)
	require.Len(t, rep.Diagnostics, 1)
	assert.Equal(t, "NormalizationFailed", rep.Diagnostics[0].Kind)
	assert.Equal(t, domain.SeverityError, rep.Diagnostics[0].Severity)
	assert.NotContains(t, f.entry(t, "u1", "run.demo"), "normalized")
}

func TestUnresolvedReferenceWarns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.put(t, "u1", "run.demo", "name: first\nsample: S1\nformula: GaN\n")
	_, err := f.svc.ProcessUpload(ctx, "u1")
	require.NoError(t, err)

	// A fresh index never saw S1, and the conflicting emission is not
	// processed, so the run keeps a lab_id stub.
	f.put(t, "u1", "run.demo", "name: first\nsample: S1\nformula: AlN\n")
	svc := NewService(f.files, memory.New())
	_, err = svc.InstallPlugin(demoPlugin{})
	require.NoError(t, err)
	rep, err := svc.ProcessFile(ctx, "u1", "run.demo")
	require.NoError(t, err)
	kinds := make([]string, 0, len(rep.Diagnostics))
	for _, d := range rep.Diagnostics {
		kinds = append(kinds, d.Kind)
	}
	assert.Contains(t, kinds, errs.KindName(errs.ErrReferenceNotFound))
	assert.NotContains(t, f.entry(t, "u1", "run.demo"), archive.RefString("u1", "S1.archive.yaml"))
}

func TestInstallPlugin(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.InstallPlugin(demoPlugin{})
	require.Error(t, err)
	_, err = f.svc.InstallPlugin(nil)
	require.Error(t, err)

	plugins := f.svc.RegisteredPlugins()
	require.Len(t, plugins, 1)
	assert.Equal(t, "demo", plugins[0].Name)
	assert.Equal(t, []string{demoRun}, plugins[0].Sections)
	assert.Equal(t, []string{"demo.run"}, plugins[0].Parsers)
	assert.Equal(t, []string{demoRun}, plugins[0].Normalizers)
	assert.True(t, f.svc.Schema().IsA(demoRun, schema.Activity))
}

func TestDispatch(t *testing.T) {
	f := newFixture(t)
	p := f.svc.Dispatch("x/S1.archive.yaml", []byte("data:\n  m_def: CompositeSystem\n"))
	require.NotNil(t, p)
	assert.Equal(t, ArchiveParserName, p.Name())
	assert.Nil(t, f.svc.Dispatch("S1.archive.yaml", []byte("other: 1\n")))
	p = f.svc.Dispatch("RUN.DEMO", nil)
	require.NotNil(t, p)
	assert.Equal(t, "demo.run", p.Name())
}

func TestProcessUploadsConcurrently(t *testing.T) {
	tracer := NewSpanLog(nil)
	metrics := NewRunStats("")
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, WithWorkers(2), WithTracer(tracer), WithMetrics(metrics),
		WithClock(ClockFunc(func() time.Time { return fixed })))
	ids := []string{"u1", "u2", "u3"}
	for i, id := range ids {
		f.put(t, id, "run.demo", fmt.Sprintf("name: r%d\nsample: S%d\nformula: GaN\n", i, i))
	}

	reps, err := f.svc.ProcessUploads(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, reps, 3)
	for i, rep := range reps {
		assert.Equal(t, ids[i], rep.UploadID)
		assert.Len(t, rep.Files, 2)
	}
	assert.Equal(t, 6, f.index.Len())

	sum := metrics.Summary()
	assert.Equal(t, int64(6), sum.Operations["process_file"].Success)
	assert.Equal(t, int64(3), sum.Operations["process_upload"].Success)
	assert.Equal(t, int64(3), sum.Archives["written"])
	assert.Zero(t, sum.Operations["process_file"].TotalMS)

	ops := map[string]int{}
	for _, e := range tracer.Spans() {
		ops[e.Operation]++
	}
	assert.Equal(t, 6, ops["process_file"])
	assert.Equal(t, 3, ops["process_upload"])
}

func TestReferences(t *testing.T) {
	reg := schema.MustNew()
	act := reg.MustNew(schema.Process)
	s := act.MustNewSub("samples")
	s.MustSet("reference", archive.ReferenceTo("u1", "a.archive.yaml"))
	stub := act.MustNewSub("samples")
	stub.MustSet("reference", domain.Stub("S9"))

	refs := References(act)
	require.Len(t, refs, 1)
	assert.Equal(t, archive.RefString("u1", "a.archive.yaml"), refs[0].Ref)
}
