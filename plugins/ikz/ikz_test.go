package ikz_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elncore/pkg/domain/schema"
	"elncore/plugins/ikz"
	"elncore/plugins/testhelper"
)

func newContext(t *testing.T, mainfile string) *testhelper.Context {
	t.Helper()
	r, reg := testhelper.Install(t, ikz.New())
	return testhelper.NewContext(r, reg, mainfile)
}

// Latin-1 encoded: \xb2 is "²", \xb3 is "³".
const roomTemperature = "[Sample parameters]\r\n" +
	"Sample ID: S1\r\n" +
	"Thickness = 500 [um]\r\n" +
	"Geometry = 0\r\n" +
	"\r\n" +
	"[Measurements]\r\n" +
	"Step 1: Variable Field Measurement:\r\n" +
	"Temperature: 300 [K]\r\n" +
	"Maximum field: 0.5 [T]\r\n" +
	"Minimum field: 0.5 [T]\r\n" +
	"Excitation type = 1\r\n" +
	"Field [T]\tResistivity [ohm cm]\tHall Mobility [cm\xb2/VS]\tCarrier Density [1/cm\xb3]\r\n" +
	"0.5\t1.0\t400\t8e17\r\n" +
	"0.5\t3.0\t600\t6e17\r\n" +
	"\r\n"

func TestHallRoomTemperature(t *testing.T) {
	c := newContext(t, "raw/S1_hall.txt")
	c.Known("S1", schema.ThinFilmStack)
	m, err := testhelper.Parse(t, c, []byte(roomTemperature))
	require.NoError(t, err)

	assert.Equal(t, schema.HallMeasurement, m.Type())
	assert.Equal(t, "S1_hall", m.Str("name"))
	assert.Equal(t, "S1 hall", m.Str("lab_id"))
	assert.Equal(t, "Van der Pauw square", m.Str("geometry"))
	th, _ := m.Float("sample_thickness")
	assert.InDelta(t, 5e-4, th, 1e-12)

	samples := m.Sub("samples")
	require.Len(t, samples, 1)
	ref, ok := samples[0].Ref("reference")
	require.True(t, ok)
	assert.True(t, ref.Resolved(), "S1 is known and resolves")

	steps := m.Sub("measurements")
	require.Len(t, steps, 1)
	assert.Equal(t, schema.VariableFieldMeasurement, steps[0].Type())
	assert.Len(t, steps[0].Floats("resistivity"), 2)

	results := m.Sub("results")
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, ikz.RoomTemperatureResult, r.Str("name"))
	rho, _ := r.Float("resistivity")
	assert.InDelta(t, 0.02, rho, 1e-12, "mean of 1 and 3 ohm cm in ohm m")
	mu, _ := r.Float("mobility")
	assert.InDelta(t, 0.05, mu, 1e-12)
	n, _ := r.Float("carrier_concentration")
	assert.InDelta(t, 7e23, n, 1e10)
	b, _ := r.Float("magnetic_field")
	assert.Equal(t, 0.5, b)
	temp, _ := r.Float("temperature")
	assert.Equal(t, 300.0, temp)
}

func TestHallUnresolvedSample(t *testing.T) {
	c := newContext(t, "S9.txt")
	m, err := testhelper.Parse(t, c, []byte(roomTemperature))
	require.NoError(t, err)
	ref, ok := m.Sub("samples")[0].Ref("reference")
	require.True(t, ok)
	assert.False(t, ref.Resolved())
	assert.Equal(t, "S1", ref.LabID)
}

const laytecRun = "##RUN_ID=R42\n" +
	"##RUNTYPE_NAME=GaN growth\n" +
	"##MODULE_NAME=EpiTT\n" +
	"##WAFER_LABEL=S1\n" +
	"##TIME=2023-05-01-10-20-30\n" +
	"##REFLEC_WAVELENGTH=950.4\n" +
	"##PYRO_WAVELENGTH=633\n" +
	"##YUNITS=s\tdegC\t\n" +
	"BEGIN\tPyroTemp\tDetReflec\n" +
	"0\t500\t2.0\n" +
	"1\t510\t1.0\n" +
	"2\t520\t4.0\n"

func TestLayTecReflectance(t *testing.T) {
	c := newContext(t, "R42.dat")
	m, err := testhelper.Parse(t, c, []byte(laytecRun))
	require.NoError(t, err)

	assert.Equal(t, "R42 laytec", m.Str("lab_id"))
	assert.Equal(t, "S1", m.Str("wafer_label"))
	require.Len(t, m.Sub("samples"), 1)

	results := m.Sub("results")
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, []float64{0, 1, 2}, r.Floats("process_time"))
	temps := r.Floats("pyrometer_temperature")
	require.Len(t, temps, 3)
	assert.InDelta(t, 773.15, temps[0], 1e-9)

	trs := r.Sub("reflectance_wavelengths")
	require.Len(t, trs, 1)
	assert.Equal(t, []float64{1, 0.5, 2}, trs[0].Floats("raw_intensity"))
	smoothed := trs[0].Floats("autocorrelated_intensity")
	require.Len(t, smoothed, 3)
	for _, v := range smoothed {
		assert.True(t, math.IsNaN(v), "series shorter than the window")
	}

	figs := m.Sub("figures")
	require.Len(t, figs, 2)
	assert.Equal(t, "overview", figs[0].Str("label"))
	assert.Equal(t, trs[0].Str("name"), figs[1].Str("label"))
}

const elog = "00:00:00\tStart Pre-ablation\n" +
	"00:00:00\t1000 pulses\n" +
	"00:00:00\tPreablation\n" +
	"00:00:02\tStart Deposition\n" +
	"00:00:02\t6000 pulses\n" +
	"00:00:02\tLayer 1\n" +
	"00:00:04\tEnd\n"

const dlog = "Time\tT\tP2\tO2\tN2Ar\tf\tE\tP1\tzero\n" +
	"0\t700\t9.9\t5\t0\t10\t400\t1.0\t0\n" +
	"1\t701\t0.08\t5\t0\t10\t400\t0.05\t0\n" +
	"2\t702\t9.9\t5\t0\t10\t400\t1.0\t0\n" +
	"3\t703\t9.9\t5\t0\t10\t400\t1.0\t0\n"

func TestPLDRun(t *testing.T) {
	c := newContext(t, "raw/12032024_0915-STO1.elog")
	c.Files["raw/12032024_0915-STO1.dlog"] = []byte(dlog)
	p, err := testhelper.Parse(t, c, []byte(elog))
	require.NoError(t, err)

	assert.Equal(t, schema.PulsedLaserDeposition, p.Type())
	assert.Equal(t, "STO1", p.Str("name"))
	e, _ := p.Float("measured_laser_energy")
	assert.InDelta(t, 0.4, e, 1e-12)

	steps := p.Sub("steps")
	require.Len(t, steps, 2)
	assert.Equal(t, "Preablation", steps[0].Str("recipe"))
	assert.False(t, steps[0].Has("layer"))
	assert.Equal(t, []float64{0, 1}, steps[0].Floats("time"))

	dep := steps[1]
	assert.Equal(t, "Layer 1", dep.Str("name"))
	n, _ := dep.Int("pulses")
	assert.Equal(t, int64(6000), n)
	assert.Equal(t, []float64{0, 1}, dep.Floats("time"), "time is relative to the step start")
	assert.InDeltaSlice(t, []float64{975.15, 976.15}, dep.Floats("temperature"), 1e-9)
	assert.InDeltaSlice(t, []float64{4, 4}, dep.Floats("power"), 1e-12, "400 mJ at 10 Hz")
	layer, ok := dep.Ref("layer")
	require.True(t, ok)
	assert.Equal(t, "STO1-L1", layer.LabID)

	assert.Equal(t, []string{ikz.LayerFile("STO1", 1)}, c.Names())
	require.Len(t, p.Sub("outputs"), 1)
	require.Len(t, p.Sub("figures"), 1)
}

func TestPLDAttenuatedEnergyRescalesPower(t *testing.T) {
	c := newContext(t, "12032024_0915-STO1.elog")
	c.Files["12032024_0915-STO1.dlog"] = []byte(dlog)
	p, err := testhelper.Parse(t, c, []byte(elog))
	require.NoError(t, err)

	require.NoError(t, p.Set("attenuated_laser_energy", 0.2))
	require.NoError(t, c.Normalize(context.Background(), p))
	assert.InDeltaSlice(t, []float64{2, 2}, p.Sub("steps")[1].Floats("power"), 1e-12)
}

func TestPLDWithoutDataLog(t *testing.T) {
	c := newContext(t, "12032024_0915-STO1.elog")
	p, err := testhelper.Parse(t, c, []byte(elog))
	require.NoError(t, err)
	require.Len(t, c.Reports, 1)
	assert.False(t, p.Has("measured_laser_energy"))
	assert.Len(t, p.Sub("steps"), 2)
}
