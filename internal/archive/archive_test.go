package archive

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elncore/internal/errs"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
)

type memRaw struct {
	mu     sync.Mutex
	files  map[string][]byte
	writes int
}

func newMemRaw() *memRaw { return &memRaw{files: map[string][]byte{}} }

func (m *memRaw) ReadRaw(_ context.Context, uid, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[uid+"/"+name]
	if !ok {
		return nil, ErrNotExist
	}
	return b, nil
}

func (m *memRaw) WriteRaw(_ context.Context, uid, name string, data []byte, overwrite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[uid+"/"+name]; ok && !overwrite {
		return errors.New("exists")
	}
	m.files[uid+"/"+name] = append([]byte(nil), data...)
	m.writes++
	return nil
}

func registry(t *testing.T) *domain.SchemaRegistry {
	t.Helper()
	r, err := schema.New()
	require.NoError(t, err)
	return r
}

func TestEntryIDDeterministic(t *testing.T) {
	a := EntryID("u1", "S1_0.ThinFilm.archive.yaml")
	assert.Len(t, a, 28)
	assert.Equal(t, a, EntryID("u1", "S1_0.ThinFilm.archive.yaml"))
	assert.NotEqual(t, a, EntryID("u2", "S1_0.ThinFilm.archive.yaml"))
	assert.NotEqual(t, a, EntryID("u1", "S1_1.ThinFilm.archive.yaml"))
	ref := RefString("u1", "x.archive.yaml")
	assert.True(t, strings.HasPrefix(ref, "../uploads/u1/archive/"))
	assert.True(t, strings.HasSuffix(ref, "#data"))
	assert.Equal(t, EntryID("u1", "x.archive.yaml"), domain.Reference{Ref: ref}.EntryID())
}

func TestIsArchiveFile(t *testing.T) {
	assert.True(t, IsArchiveFile("a/S1-L1.archive.json"))
	assert.True(t, IsArchiveFile("R1.GrowthMovpeIKZ.archive.yaml"))
	assert.False(t, IsArchiveFile("hall.txt"))
	assert.Equal(t, "A_B", Sanitize(" A/B "))
}

func TestEqualTreatsNaNAndNumbers(t *testing.T) {
	assert.True(t, Equal(map[string]any{"x": []any{1, math.NaN()}}, map[string]any{"x": []any{1.0, nil}}))
	assert.True(t, Equal(math.NaN(), nil))
	assert.True(t, Equal(nil, math.NaN()))
	assert.False(t, Equal(map[string]any{"x": 1}, map[string]any{"x": 2}))
	assert.False(t, Equal(map[string]any{"x": 1}, map[string]any{"y": 1}))
	assert.True(t, Equal([]float64{1, 2}, []any{1, 2}))
	assert.True(t, Equal("a", "a"))
}

func film(t *testing.T, r *domain.SchemaRegistry, thickness float64) *domain.Section {
	t.Helper()
	s := r.MustNew(schema.ThinFilm)
	s.MustSet("lab_id", "S1_0").MustSet("thickness", thickness)
	return s
}

func TestEmitterIdempotence(t *testing.T) {
	ctx := context.Background()
	r := registry(t)
	raw := newMemRaw()
	var outcomes []Outcome
	processed := 0
	em := NewEmitter(raw, "u1", false)
	em.Observe = func(o Outcome) { outcomes = append(outcomes, o) }
	em.AfterWrite = func(context.Context, string) error { processed++; return nil }

	ref, err := em.Emit(ctx, film(t, r, 1e-7), "S1_0.ThinFilm.archive.yaml")
	require.NoError(t, err)
	assert.Equal(t, ReferenceTo("u1", "S1_0.ThinFilm.archive.yaml"), ref)

	_, err = em.Emit(ctx, film(t, r, 1e-7), "S1_0.ThinFilm.archive.yaml")
	require.NoError(t, err)
	assert.Equal(t, 1, raw.writes)

	ref2, err := em.Emit(ctx, film(t, r, 2e-7), "S1_0.ThinFilm.archive.yaml")
	assert.ErrorIs(t, err, errs.ErrArchiveConflict)
	assert.False(t, errs.IsFatal(err))
	assert.Equal(t, ref, ref2)
	assert.Equal(t, 1, raw.writes)

	over := NewEmitter(raw, "u1", true)
	_, err = over.Emit(ctx, film(t, r, 2e-7), "S1_0.ThinFilm.archive.yaml")
	require.NoError(t, err)
	assert.Equal(t, 2, raw.writes)

	assert.Equal(t, []Outcome{Written, Unchanged, Conflict}, outcomes)
	assert.Equal(t, 1, processed)
}

func TestEmitterJSONWithNaN(t *testing.T) {
	ctx := context.Background()
	r := registry(t)
	raw := newMemRaw()
	em := NewEmitter(raw, "u1", false)
	step := r.MustNew(schema.PLDStep)
	require.NoError(t, step.Set("pressure", []float64{1, math.NaN()}))
	_, err := em.Emit(ctx, step, "S1-L1.archive.json")
	require.NoError(t, err)
	assert.Contains(t, string(raw.files["u1/S1-L1.archive.json"]), "null")

	_, err = em.Emit(ctx, step, "S1-L1.archive.json")
	require.NoError(t, err)
	assert.Equal(t, 1, raw.writes)

	back, err := Load(r, raw.files["u1/S1-L1.archive.json"], JSON)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(back.Floats("pressure")[1]))
}

func TestGraphEmitsDependenciesFirst(t *testing.T) {
	ctx := context.Background()
	r := registry(t)
	raw := newMemRaw()
	var order []string
	em := NewEmitter(raw, "u1", false)
	em.AfterWrite = func(_ context.Context, name string) error { order = append(order, name); return nil }

	g := NewGraph()
	exp := g.Add(r.MustNew(schema.ExperimentMovpeIKZ), "R1.ExperimentMovpeIKZ.archive.yaml")
	growth := g.Add(r.MustNew(schema.GrowthMovpeIKZ), "R1.GrowthMovpeIKZ.archive.yaml")
	stack := g.Add(r.MustNew(schema.ThinFilmStack), "S1_0.ThinFilmStack.archive.yaml")
	layer := g.Add(r.MustNew(schema.ThinFilm), "S1_0.ThinFilm.archive.yaml")
	root := g.AddRoot(r.MustNew(schema.Experiment))

	g.LinkQuantity(exp, growth, "growth_run")
	g.Link(stack, layer, func(ref domain.Reference) error {
		return g.Section(stack).Set("layers", []domain.Reference{ref})
	})
	g.Link(growth, stack, func(domain.Reference) error { return nil })
	g.Link(growth, layer, func(domain.Reference) error { return nil })
	g.Link(root, exp, func(domain.Reference) error { return nil })

	refs, err := g.Emit(ctx, em)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"S1_0.ThinFilm.archive.yaml",
		"S1_0.ThinFilmStack.archive.yaml",
		"R1.GrowthMovpeIKZ.archive.yaml",
		"R1.ExperimentMovpeIKZ.archive.yaml",
	}, order)
	got, _ := g.Section(exp).Ref("growth_run")
	assert.Equal(t, refs[growth], got)
	assert.True(t, refs[root].IsZero())

	g2 := NewGraph()
	a := g2.Add(r.MustNew(schema.ThinFilm), "a.archive.yaml")
	b := g2.AddRoot(r.MustNew(schema.ThinFilm))
	g2.LinkQuantity(a, b, "stack")
	_, err = g2.Emit(ctx, em)
	assert.Error(t, err)
}

func TestGraphRejectsCycles(t *testing.T) {
	r := registry(t)
	raw := newMemRaw()
	em := NewEmitter(raw, "u1", false)

	g := NewGraph()
	stack := g.Add(r.MustNew(schema.ThinFilmStack), "S1_0.ThinFilmStack.archive.yaml")
	layer := g.Add(r.MustNew(schema.ThinFilm), "S1_0.ThinFilm.archive.yaml")
	g.Link(stack, layer, func(ref domain.Reference) error {
		return g.Section(stack).Set("layers", []domain.Reference{ref})
	})
	g.LinkQuantity(layer, stack, "stack")

	_, err := g.Order()
	require.Error(t, err)
	_, err = g.Emit(context.Background(), em)
	require.Error(t, err)
	assert.Zero(t, raw.writes, "nothing is written when a reference would dangle")
}

func TestValidator(t *testing.T) {
	r := registry(t)
	v := NewValidator(r)
	s := film(t, r, 1e-7)
	require.NoError(t, v.Validate(Document(s)))

	bad := Document(s)
	bad["data"].(map[string]any)["thickness"] = "thick"
	err := v.Validate(bad)
	assert.ErrorIs(t, err, errs.ErrInvalidArchive)
	assert.ErrorIs(t, v.Validate(map[string]any{}), errs.ErrInvalidArchive)
}
