package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elncore/pkg/units"
)

func testRegistry(t *testing.T) *SchemaRegistry {
	t.Helper()
	r, err := NewSchemaRegistry(
		SectionDef{Name: "Step", Quantities: []QuantityDef{
			{Name: "name", Type: TypeString},
			{Name: "duration", Type: TypeFloat, Unit: "s"},
		}},
		SectionDef{Name: "HeatStep", Extends: []string{"Step"}, Quantities: []QuantityDef{
			{Name: "temperature", Type: TypeFloat, Unit: "K"},
		}},
		SectionDef{Name: "Entity", Quantities: []QuantityDef{
			{Name: "name", Type: TypeString},
			{Name: "lab_id", Type: TypeString, Searchable: true},
			{Name: "datetime", Type: TypeDatetime},
		}},
		SectionDef{Name: "Process", Extends: []string{"Entity"}, Quantities: []QuantityDef{
			{Name: "pressure", Type: TypeFloat, Unit: "Pa"},
			{Name: "trace", Type: TypeFloat, Unit: "m", Shape: Vector},
			{Name: "mode", Type: TypeEnum, Enum: []string{"Fast Settle", "No Overshoot"}},
			{Name: "count", Type: TypeInt},
			{Name: "sample", Type: TypeReference},
			{Name: "done", Type: TypeBool},
		}, SubSections: []SubSectionDef{{Name: "steps", Section: "Step", Repeats: true}}},
	)
	require.NoError(t, err)
	return r
}

func TestDefinitionFlattening(t *testing.T) {
	r := testRegistry(t)
	d, err := r.Resolve("HeatStep")
	require.NoError(t, err)
	names := []string{}
	for _, q := range d.Quantities {
		names = append(names, q.Name)
	}
	assert.Equal(t, []string{"name", "duration", "temperature"}, names)
	assert.Equal(t, []string{"Step"}, d.Ancestors)
	assert.True(t, r.IsA("HeatStep", "Step"))
	assert.False(t, r.IsA("Step", "HeatStep"))
	assert.Equal(t, []string{"HeatStep", "Step"}, r.SubTypes("Step"))
}

func TestRegistryRejectsBadDefinitions(t *testing.T) {
	_, err := NewSchemaRegistry(SectionDef{Name: "A", Extends: []string{"B"}}, SectionDef{Name: "B", Extends: []string{"A"}})
	assert.ErrorContains(t, err, "cycle")

	_, err = NewSchemaRegistry(SectionDef{Name: "A", SubSections: []SubSectionDef{{Name: "x", Section: "Missing"}}})
	assert.Error(t, err)

	_, err = NewSchemaRegistry(SectionDef{Name: "A", Quantities: []QuantityDef{{Name: "q", Type: TypeFloat, Unit: "furlong"}}})
	assert.Error(t, err)

	_, err = NewSchemaRegistry(SectionDef{Name: "A"}, SectionDef{Name: "A"})
	assert.Error(t, err)
}

func TestSetCoercesToCanonicalUnit(t *testing.T) {
	r := testRegistry(t)
	p := r.MustNew("Process")
	require.NoError(t, p.Set("pressure", units.Q(1, "mbar")))
	v, ok := p.Float("pressure")
	require.True(t, ok)
	assert.InDelta(t, 100.0, v, 1e-12)

	err := p.Set("pressure", units.Q(3, "s"))
	assert.ErrorIs(t, err, units.ErrIncompatible)

	assert.ErrorIs(t, p.Set("colour", "red"), ErrUnknownField)
	assert.ErrorIs(t, p.Set("mode", "Sometimes"), ErrFieldType)
	require.NoError(t, p.Set("mode", "No Overshoot"))
	assert.ErrorIs(t, p.Set("count", 1.5), ErrFieldType)
	require.NoError(t, p.Set("count", 3))
	n, _ := p.Int("count")
	assert.EqualValues(t, 3, n)

	require.NoError(t, p.SetVector("trace", []float64{1, 2}, units.Default().MustParse("mm")))
	assert.InDeltaSlice(t, []float64{0.001, 0.002}, p.Floats("trace"), 1e-15)

	require.NoError(t, p.Set("pressure", nil))
	assert.False(t, p.Has("pressure"))
}

func TestSubsectionsAcceptSubtypes(t *testing.T) {
	r := testRegistry(t)
	p := r.MustNew("Process")
	s, err := p.NewSubOf("steps", "HeatStep")
	require.NoError(t, err)
	require.NoError(t, s.Set("temperature", units.Q(25, "degC")))
	v, _ := s.Float("temperature")
	assert.InDelta(t, 298.15, v, 1e-9)

	assert.Error(t, p.AddSub("steps", r.MustNew("Entity")))
	_, err = p.NewSub("nope")
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Len(t, p.Sub("steps"), 1)
}

func TestToMapFromMapRoundTrip(t *testing.T) {
	r := testRegistry(t)
	p := r.MustNew("Process")
	p.MustSet("name", "growth").
		MustSet("lab_id", "R1").
		MustSet("datetime", time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)).
		MustSet("pressure", 100.0).
		MustSet("trace", []float64{1, math.NaN()}).
		MustSet("sample", Stub("SUB1")).
		MustSet("done", true)
	st := p.MustNewSub("steps")
	st.MustSet("name", "ramp").MustSet("duration", 60.0)

	m := p.ToMap()
	assert.Equal(t, "Process", m[DefinitionKey])
	assert.Equal(t, "2023-05-01T10:00:00Z", m["datetime"])
	assert.Equal(t, map[string]any{"lab_id": "SUB1"}, m["sample"])

	back, err := r.FromMap(m, "")
	require.NoError(t, err)
	assert.Equal(t, "R1", back.Str("lab_id"))
	assert.True(t, math.IsNaN(back.Floats("trace")[1]))
	ref, ok := back.Ref("sample")
	require.True(t, ok)
	assert.Equal(t, "SUB1", ref.LabID)
	assert.False(t, ref.Resolved())
	require.Len(t, back.Sub("steps"), 1)
	d, _ := back.Sub("steps")[0].Float("duration")
	assert.Equal(t, 60.0, d)

	_, err = r.FromMap(map[string]any{"m_def": "Process", "bogus": 1}, "")
	assert.True(t, errors.Is(err, ErrUnknownField))
}

func TestFromMapAcceptsDecodedNumbers(t *testing.T) {
	r := testRegistry(t)
	s, err := r.FromMap(map[string]any{
		"count":    float64(4),
		"pressure": 5,
		"trace":    []any{1, 2.5, nil},
	}, "Process")
	require.NoError(t, err)
	n, _ := s.Int("count")
	assert.EqualValues(t, 4, n)
	p, _ := s.Float("pressure")
	assert.Equal(t, 5.0, p)
	assert.Len(t, s.Floats("trace"), 3)
}

func TestReferenceParts(t *testing.T) {
	ref := Reference{Ref: "../uploads/u1/archive/abc#data"}
	assert.Equal(t, "abc", ref.EntryID())
	assert.Equal(t, "u1", ref.UploadID())
	assert.True(t, Stub("x").IsZero() == false)
}

func TestSearchQuantities(t *testing.T) {
	r := testRegistry(t)
	p := r.MustNew("Process").MustSet("lab_id", "R1")
	assert.Equal(t, []string{"lab_id=R1"}, p.SearchQuantities())
}

func TestResultMerge(t *testing.T) {
	var res Result
	res.Add(Diagnostic{Kind: "UnknownUnit", Severity: SeverityWarning, Message: "furlong", File: "a.txt", Line: 3})
	res.Merge(Result{Diagnostics: []Diagnostic{{Kind: "ParseFatal", Severity: SeverityFatal}}})
	assert.True(t, res.HasFatal())
	assert.Equal(t, 1, res.Count("UnknownUnit"))
	assert.Equal(t, "a.txt:3 warning UnknownUnit: furlong", res.Diagnostics[0].String())
}

func TestJSONSchemaShape(t *testing.T) {
	r := testRegistry(t)
	s, err := r.JSONSchema("Process")
	require.NoError(t, err)
	defs := s["definitions"].(map[string]any)
	assert.Contains(t, defs, "Process")
	assert.Contains(t, defs, "HeatStep")
	_, err = r.JSONSchema("Unknown")
	assert.Error(t, err)
}
