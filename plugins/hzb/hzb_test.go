package hzb_test

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elncore/internal/formats/uvvis"
	"elncore/pkg/domain/schema"
	"elncore/pkg/units"
	"elncore/plugins/hzb"
	"elncore/plugins/testhelper"
)

func newContext(t *testing.T, mainfile string) *testhelper.Context {
	t.Helper()
	r, reg := testhelper.Install(t, hzb.New())
	return testhelper.NewContext(r, reg, mainfile)
}

func ascFile(ordinate string, spectrum ...string) string {
	lines := make([]string, uvvis.LineOrdinateType+1)
	for i := range lines {
		lines[i] = "-"
	}
	lines[uvvis.LineSampleName] = "CIGS_07"
	lines[uvvis.LineDate] = "24/03/12"
	lines[uvvis.LineTime] = "10:28:22.00"
	lines[uvvis.LineSlitWidth] = "3350/servo 860.8/2"
	lines[uvvis.LineIntegrationTime] = "3350/0.2 860.8/0.4"
	lines[uvvis.LineNIRGain] = "3350/1 860.8/20"
	lines[uvvis.LineMonochromatorChg] = "860.8"
	lines[uvvis.LineLampChg] = "319.2"
	lines[uvvis.LineDetectorChg] = "860.8 1800"
	lines[uvvis.LineAttenuation] = "S:50 R:100"
	lines[uvvis.LineWavelengthUnit] = "nm"
	lines[uvvis.LineOrdinateType] = ordinate
	return strings.Join(lines, "\r\n") + "\r\n" + uvvis.DataSentinel + "\r\n" + strings.Join(spectrum, "\r\n") + "\r\n"
}

func TestUVVisTransmission(t *testing.T) {
	c := newContext(t, "CIGS_07.asc")
	c.Known("CIGS_07", schema.ThinFilmStack)
	m, err := testhelper.Parse(t, c, []byte(ascFile("%T", "800.0\t50.0", "799.0\t25.0")))
	require.NoError(t, err)
	assert.Empty(t, c.Reports)

	assert.Equal(t, "CIGS_07", m.Str("sample_name"))
	ts, ok := m.Time("datetime")
	require.True(t, ok)
	assert.Equal(t, 12, ts.Day())
	require.Len(t, m.Sub("samples"), 1)

	s := m.First("settings")
	require.NotNil(t, s)
	att := s.First("attenuator")
	require.NotNil(t, att)
	sample, _ := att.Int("sample")
	ref, _ := att.Int("reference")
	assert.Equal(t, int64(50), sample)
	assert.Equal(t, int64(100), ref)
	slit := s.Sub("monochromator_slit_width")
	require.Len(t, slit, 2)
	assert.Equal(t, "servo", slit[0].Str("value_string"))
	w, _ := slit[1].Float("value")
	assert.Equal(t, 2.0, w)
	assert.InDeltaSlice(t, []float64{860.8e-9, 1800e-9}, s.Floats("detector_change_point"), 1e-15)

	r := m.Sub("results")
	require.Len(t, r, 1)
	assert.InDeltaSlice(t, []float64{800e-9, 799e-9}, r[0].Floats("wavelength"), 1e-15)
	assert.Equal(t, []float64{0.5, 0.25}, r[0].Floats("transmittance"))
	assert.Empty(t, r[0].Floats("absorbance"))

	require.Len(t, m.Sub("figures"), 1)
	assert.Equal(t, "transmittance", m.Sub("figures")[0].Str("label"))
}

func TestUVVisAbsorbanceWithThickness(t *testing.T) {
	c := newContext(t, "CIGS_07.asc")
	m, err := testhelper.Parse(t, c, []byte(ascFile("A", "800.0\t1.0", "799.0\t2.0")))
	require.NoError(t, err)
	r := m.Sub("results")[0]
	assert.Equal(t, []float64{1, 2}, r.Floats("absorbance"))
	assert.Empty(t, r.Floats("extinction_coefficient"))

	m.MustSet("sample_thickness", units.Q(1, "mm"))
	require.NoError(t, c.Normalize(context.Background(), m))
	alpha := m.Sub("results")[0].Floats("extinction_coefficient")
	require.Len(t, alpha, 2)
	assert.InDelta(t, math.Ln10/1e-3, alpha[0], 1e-9)
	assert.Len(t, m.Sub("figures"), 2)
}

func TestUVVisWithoutData(t *testing.T) {
	c := newContext(t, "empty.asc")
	_, err := testhelper.Parse(t, c, []byte("header\r\n#DATA\r\n"))
	require.Error(t, err)
}

const evapLog = "Sample: CIGS_07\n" +
	"Date: 2024-03-12 10:00:00\n" +
	"Operator: jd\n" +
	"Step\tTime (s)\tChamber Pressure (mbar)\tSubstrate Temperature (degC)\tCu Rate (nm/s)\tCu Temperature (degC)\tIn Power (W)\n" +
	"heat\t0\t1e-6\t25\t0\t1000\t0\n" +
	"heat\t60\t1e-6\t400\t0\t1100\t0\n" +
	"deposit\t120\t2e-6\t400\t0.5\t1200\t80\n" +
	"deposit\t180\t2e-6\t400\t0.6\t1210\t82\n" +
	"deposit\t240\tx\t400\t0.6\t1210\t82\n"

func TestEvaporationLog(t *testing.T) {
	c := newContext(t, "run12_evaporation.txt")
	p, err := testhelper.Parse(t, c, []byte(evapLog))
	require.NoError(t, err)
	require.Len(t, c.Reports, 1, "non-numeric row is reported")

	assert.Equal(t, schema.ThermalEvaporation, p.Type())
	assert.Equal(t, "CIGS_07 evaporation", p.Str("lab_id"))
	require.Len(t, p.Sub("samples"), 1)

	steps := p.Sub("steps")
	require.Len(t, steps, 2)
	dep := steps[1]
	assert.Equal(t, "deposit", dep.Str("name"))
	assert.Equal(t, []float64{0, 60}, dep.Floats("time"))
	d, _ := dep.Float("duration")
	assert.Equal(t, 60.0, d)
	st, ok := dep.Time("start_time")
	require.True(t, ok)
	assert.Equal(t, 10, st.Hour())
	assert.Equal(t, 2, st.Minute())
	assert.InDeltaSlice(t, []float64{2e-4, 2e-4}, dep.Floats("chamber_pressure"), 1e-15)
	assert.InDeltaSlice(t, []float64{673.15, 673.15}, dep.Floats("substrate_temperature"), 1e-9)

	src := dep.Sub("sources")
	require.Len(t, src, 2)
	assert.Equal(t, "Cu", src[0].Str("material"))
	assert.InDeltaSlice(t, []float64{0.5e-9, 0.6e-9}, src[0].Floats("rate"), 1e-18)
	assert.Len(t, src[0].Floats("temperature"), 2)
	assert.Equal(t, "In", src[1].Str("material"))
	assert.Equal(t, []float64{80, 82}, src[1].Floats("power"))

	require.Len(t, p.Sub("figures"), 1)
	assert.NotEmpty(t, p.Sub("parameters"))
}

func TestEvaporationLogWithoutTable(t *testing.T) {
	c := newContext(t, "evaporation.txt")
	_, err := testhelper.Parse(t, c, []byte("Sample: S1\nStep\tTime (s)\n"))
	require.Error(t, err)
}
