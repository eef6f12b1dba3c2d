package normalize

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elncore/internal/archive"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
	"elncore/pkg/units"
)

type fakeContext struct {
	schema  *domain.SchemaRegistry
	emitted map[string]*domain.Section
	order   []string
	known   map[string]domain.Reference
}

func newFakeContext() *fakeContext {
	return &fakeContext{schema: schema.MustNew(), emitted: map[string]*domain.Section{}, known: map[string]domain.Reference{}}
}

func (f *fakeContext) OpenRaw(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("no raw files")
}
func (f *fakeContext) RawExists(context.Context, string) (bool, error) { return false, nil }
func (f *fakeContext) Emit(_ context.Context, sec *domain.Section, name string) (domain.Reference, error) {
	f.emitted[name] = sec
	f.order = append(f.order, name)
	return f.Reference(name), nil
}
func (f *fakeContext) Reference(name string) domain.Reference { return archive.ReferenceTo("u1", name) }
func (f *fakeContext) Resolve(_ context.Context, labID string, _ ...string) domain.Reference {
	if r, ok := f.known[labID]; ok {
		return r
	}
	return domain.Stub(labID)
}
func (f *fakeContext) ExistsInUpload(context.Context, string, ...string) (bool, error) {
	return false, nil
}
func (f *fakeContext) UploadID() string               { return "u1" }
func (f *fakeContext) Mainfile() string               { return "main" }
func (f *fakeContext) Schema() *domain.SchemaRegistry { return f.schema }
func (f *fakeContext) Logger() pluginapi.Logger       { return nil }
func (f *fakeContext) Now() time.Time                 { return time.Unix(0, 0) }
func (f *fakeContext) Report(error)                   {}

var _ pluginapi.Context = (*fakeContext)(nil)

func TestParseFormula(t *testing.T) {
	got, err := ParseFormula("Bi2Se3")
	require.NoError(t, err)
	assert.Equal(t, []Count{{"Bi", 2}, {"Se", 3}}, got)

	got, err = ParseFormula("Li(Pr0.01Y0.99)F4")
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "Pr", got[1].Element)
	assert.InDelta(t, 0.01, got[1].N, 1e-12)
	assert.Equal(t, Count{"F", 4}, got[3])

	got, err = ParseFormula("Ca(OH)2")
	require.NoError(t, err)
	assert.Equal(t, []Count{{"Ca", 1}, {"O", 2}, {"H", 2}}, got)

	for _, bad := range []string{"", "Sample A", "Xx2", "Li(YF4", "gan"} {
		_, err := ParseFormula(bad)
		assert.ErrorIs(t, err, ErrFormula, bad)
	}
}

func TestRebalanceSumsToOne(t *testing.T) {
	counts, err := ParseFormula("LiYF4")
	require.NoError(t, err)
	fr, err := Rebalance(AtomicFractions(counts), []Impurity{{Element: "Pr", Substitutes: "Y", Concentration: 1}})
	require.NoError(t, err)
	require.Len(t, fr, 4)

	var atomic, mass float64
	byEl := map[string]Fraction{}
	for _, f := range fr {
		atomic += f.Atomic
		mass += f.Mass
		byEl[f.Element] = f
	}
	assert.InDelta(t, 1, atomic, 1e-9)
	assert.InDelta(t, 1, mass, 1e-9)
	assert.InDelta(t, 0.01/6, byEl["Pr"].Atomic, 1e-12)
	assert.InDelta(t, 0.99/6, byEl["Y"].Atomic, 1e-12)
	assert.InDelta(t, 4.0/6, byEl["F"].Atomic, 1e-12)

	_, err = Rebalance(fr, []Impurity{{Element: "Pr", Substitutes: "Y", Concentration: 101}})
	assert.Error(t, err)
	_, err = Rebalance(fr, []Impurity{{Element: "Pr", Substitutes: "Ga", Concentration: 1}})
	assert.Error(t, err)
}

func TestSynthesizeFormula(t *testing.T) {
	got, err := SynthesizeFormula("LiYF4", []Impurity{{Element: "Pr", Substitutes: "Y", Concentration: 1}})
	require.NoError(t, err)
	assert.Equal(t, "Li(Pr0.01Y0.99)F4", got)

	got, err = SynthesizeFormula("Y3Al5O12", []Impurity{
		{Element: "Nd", Substitutes: "Y", Concentration: 1.5},
		{Element: "Ce", Substitutes: "Y", Concentration: 0.5},
	})
	require.NoError(t, err)
	assert.Equal(t, "(Nd0.015Ce0.005Y0.98)3Al5O12", got)

	_, err = SynthesizeFormula("LiYF4", []Impurity{{Element: "Pr", Substitutes: "Ga", Concentration: 1}})
	assert.Error(t, err)
	_, err = SynthesizeFormula("Li YF4", nil)
	assert.Error(t, err)
}

func TestMixedCrystalComposition(t *testing.T) {
	reg := schema.MustNew()
	mc := reg.MustNew(schema.MixedCrystal)
	mc.MustSet("host_formula", "LiYF4")
	imp := mc.MustNewSub("impurities")
	imp.MustSet("element", "Pr").MustSet("substitution_element", "Y").MustSet("concentration", units.Q(1, "percent"))

	require.NoError(t, MixedCrystalComposition(context.Background(), nil, mc))
	require.NoError(t, MixedCrystalComposition(context.Background(), nil, mc))
	assert.Equal(t, "Li(Pr0.01Y0.99)F4", mc.Str("chemical_formula"))
	comp := mc.Sub("elemental_composition")
	require.Len(t, comp, 4)
	var sum float64
	for _, c := range comp {
		v, _ := c.Float("atomic_fraction")
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-9)
}

func TestInferComposition(t *testing.T) {
	reg := schema.MustNew()
	cs := reg.MustNew(schema.CompositeSystem)
	cs.MustSet("name", "Bi2Se3")
	require.NoError(t, InferComposition(context.Background(), nil, cs))
	assert.Equal(t, "Bi2Se3", cs.Str("chemical_formula"))
	comp := cs.Sub("elemental_composition")
	require.Len(t, comp, 2)
	v, _ := comp[0].Float("atomic_fraction")
	assert.InDelta(t, 0.4, v, 1e-12)

	other := reg.MustNew(schema.CompositeSystem)
	other.MustSet("name", "crucible lid")
	require.NoError(t, InferComposition(context.Background(), nil, other))
	assert.Empty(t, other.Sub("elemental_composition"))
	assert.False(t, other.Has("chemical_formula"))
}

func TestRollingMean(t *testing.T) {
	out := Autocorrelate([]float64{1.0, 0.5, 2.0}, 0, 3)
	require.Len(t, out, 3)
	for _, v := range out {
		assert.True(t, math.IsNaN(v))
	}

	trace := make([]float64, 40)
	for i := range trace {
		trace[i] = float64(i)
	}
	out = Autocorrelate(trace, 5, 0)
	require.Len(t, out, 35)
	assert.True(t, math.IsNaN(out[28]))
	assert.InDelta(t, 19.5, out[29], 1e-12)
	assert.Nil(t, Autocorrelate(trace, 40, 1))

	assert.True(t, math.IsNaN(RollingMean([]float64{1, math.NaN(), 3}, 2)[1]))
	assert.Equal(t, 2.5, RollingMean([]float64{1, math.NaN(), 2, 3}, 2)[3])
}

func TestSmoothReflectance(t *testing.T) {
	reg := schema.MustNew()
	res := reg.MustNew(schema.LayTecResult)
	tr := res.MustNewSub("reflectance_wavelengths")
	tr.MustSet("raw_intensity", []float64{1.0, 0.5, 2.0}).
		MustSet("autocorrelation_starting_point", int64(0)).
		MustSet("autocorrelation_period", int64(3))
	require.NoError(t, SmoothReflectance(context.Background(), nil, res))
	got := tr.Floats("autocorrelated_intensity")
	require.Len(t, got, 3)
	assert.True(t, math.IsNaN(got[2]))
}

func TestStepChronology(t *testing.T) {
	reg := schema.MustNew()
	p := reg.MustNew(schema.Process)
	start := time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)
	for i, d := range []float64{60, 120, 30} {
		s := p.MustNewSub("steps")
		s.MustSet("duration", d)
		if i == 0 {
			s.MustSet("start_time", start)
		}
	}
	require.NoError(t, StepChronology(context.Background(), nil, p))
	steps := p.Sub("steps")
	want := StepStartTimes(start, []float64{60, 120, 30})
	for k, s := range steps {
		got, ok := s.Time("start_time")
		require.True(t, ok)
		assert.True(t, want[k].Equal(got), "step %d", k)
	}
	end, ok := p.Time("end_time")
	require.True(t, ok)
	assert.True(t, start.Add(210*time.Second).Equal(end))
}

func TestStepChronologyStopsAtMissingDuration(t *testing.T) {
	reg := schema.MustNew()
	p := reg.MustNew(schema.Process)
	start := time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)
	p.MustSet("datetime", start)
	p.MustNewSub("steps").MustSet("duration", 60.0)
	p.MustNewSub("steps")
	p.MustNewSub("steps").MustSet("duration", 10.0)
	require.NoError(t, StepChronology(context.Background(), nil, p))
	steps := p.Sub("steps")
	s1, ok := steps[1].Time("start_time")
	require.True(t, ok)
	assert.True(t, start.Add(time.Minute).Equal(s1))
	assert.False(t, steps[2].Has("start_time"))
	assert.False(t, p.Has("end_time"))
}

func TestGrowthLinks(t *testing.T) {
	reg := schema.MustNew()
	g := reg.MustNew(schema.GrowthMovpeIKZ)
	layer := archive.ReferenceTo("u1", "S1_0.ThinFilm.archive.yaml")
	stack := archive.ReferenceTo("u1", "S1_0.ThinFilmStack.archive.yaml")
	for i := 0; i < 2; i++ {
		step := g.MustNewSub("steps")
		sp := step.MustNewSub("sample_parameters")
		sp.MustSet("name", "S1").MustSet("layer", layer).MustSet("stack", stack).MustSet("substrate", domain.Stub("SUB1"))
	}
	require.NoError(t, GrowthLinks(context.Background(), nil, g))
	require.NoError(t, GrowthLinks(context.Background(), nil, g))

	outs := g.Sub("outputs")
	require.Len(t, outs, 2)
	assert.Equal(t, "S1", outs[0].Str("name"))
	r, _ := outs[1].Ref("section")
	assert.Equal(t, stack.Ref, r.Ref)
	ins := g.Sub("inputs")
	require.Len(t, ins, 1)
	assert.Equal(t, "SUB1", ins[0].Str("name"))
}

func TestAntoine(t *testing.T) {
	// Water: A=8.07131, B=1730.63, C=233.426; boils at 100 degC.
	p, err := AntoinePressure(8.07131, 1730.63, 233.426, units.Q(100, "degC"))
	require.NoError(t, err)
	assert.InDelta(t, 760, p.Magnitude, 1)

	reg := schema.MustNew()
	ps := reg.MustNew(schema.PureSubstance)
	ps.MustSet("antoine_a", 8.07131).MustSet("antoine_b", 1730.63).MustSet("antoine_c", 233.426).
		MustSet("temperature", units.Q(373.15, "K"))
	require.NoError(t, VapourPressure(context.Background(), nil, ps))
	vp, ok := ps.Float("vapour_pressure")
	require.True(t, ok)
	assert.InDelta(t, 101325, vp, 200)
}

func TestSampleCutChildren(t *testing.T) {
	pc := newFakeContext()
	pc.known["P1"] = archive.ReferenceTo("u0", "P1.CompositeSystem.archive.yaml")
	cut := pc.schema.MustNew(schema.SampleCut)
	cut.MustSet("parent_lab_id", "P1").MustSet("number_of_children", int64(2))

	require.NoError(t, SampleCutChildren(context.Background(), pc, cut))
	require.NoError(t, SampleCutChildren(context.Background(), pc, cut))

	assert.Equal(t, []string{
		"P1_child1.CompositeSystem.archive.yaml", "P1_child2.CompositeSystem.archive.yaml",
		"P1_child1.CompositeSystem.archive.yaml", "P1_child2.CompositeSystem.archive.yaml",
	}, pc.order)
	children := cut.Sub("children")
	require.Len(t, children, 2)
	assert.Equal(t, "P1_child2", children[1].Str("lab_id"))
	ref, _ := children[0].Ref("reference")
	assert.Equal(t, archive.RefString("u1", ChildFileName("P1", 1)), ref.Ref)

	child := pc.emitted[ChildFileName("P1", 1)]
	sys, _ := child.Sub("components")[0].Ref("system")
	assert.Equal(t, pc.known["P1"].Ref, sys.Ref)
}

type recordingRegistry struct{ bound map[string]int }

func (r *recordingRegistry) RegisterSections(...domain.SectionDef) error { return nil }
func (r *recordingRegistry) RegisterParser(pluginapi.Parser) error       { return nil }
func (r *recordingRegistry) RegisterNormalizer(section string, _ pluginapi.Normalizer) {
	r.bound[section]++
}

func TestRegister(t *testing.T) {
	reg := &recordingRegistry{bound: map[string]int{}}
	Register(reg)
	assert.Len(t, reg.bound, 7)
	assert.Equal(t, 1, reg.bound[schema.Activity])
}
