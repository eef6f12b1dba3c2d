package ppms

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elncore/internal/errs"
	"elncore/pkg/domain/schema"
	"elncore/pkg/units"
)

const datFile = "[Header]\r\n" +
	"; exported by MultiVu\r\n" +
	"TITLE,Hall run 1\r\n" +
	"BYAPP,ResistivityOption,Release 1.2\r\n" +
	"TITLE,ignored duplicate\r\n" +
	"[Data]\r\n" +
	"Comment,Time Stamp (sec),Temperature (K),Magnetic Field (Oe),Sample Position (deg)," +
	"Ch1 Resistivity (Ohm-cm),Ch1 Resistivity Std. Dev. (Ohm-cm),Ch2 Resistance (Ohms),2nd Harmonic\r\n" +
	",100,300,10000,0,1.5,0.01,20,\r\n" +
	",101,299,20000,0,1.6,0.02,21,\r\n" +
	",102,298,30000,0,1.7,0.03,22,,9\r\n"

func TestDecodeData(t *testing.T) {
	tree, warn, err := DecodeData([]byte(datFile))
	require.NoError(t, err)
	require.Len(t, warn, 1)
	assert.Equal(t, 10, errs.LineOf(warn[0]))

	header := tree.Tree("header")
	assert.Equal(t, "Hall run 1", header.Str("TITLE"))
	assert.Equal(t, "ResistivityOption,Release 1.2", header.Str("BYAPP"))
	assert.Len(t, tree.Trees("header_lines"), 3)

	shared := tree.Tree("shared")
	assert.Equal(t, []string{"time_stamp", "temperature", "magnetic_field", "sample_position", "second_harmonic"}, shared.Keys())
	assert.Equal(t, []float64{300, 299}, shared.Floats("temperature"))
	assert.Equal(t, "G", tree.Tree("shared_units").Str("magnetic_field"))
	assert.Equal(t, "sec", tree.Tree("shared_units").Str("time_stamp"))
	for _, v := range shared.Floats("second_harmonic") {
		assert.True(t, math.IsNaN(v))
	}

	chans := tree.Trees("channels")
	require.Len(t, chans, 2)
	assert.Equal(t, "Ch1", chans[0].Str("name"))
	assert.Equal(t, []float64{1.5, 1.6}, chans[0].Tree("data").Floats("resistivity"))
	assert.Equal(t, []float64{0.01, 0.02}, chans[0].Tree("data").Floats("resistivity_std_dev"))
	assert.Equal(t, "Ohm*cm", chans[0].Tree("units").Str("resistivity"))
	assert.Equal(t, "Ch2", chans[1].Str("name"))
	assert.Equal(t, "Ohms", chans[1].Tree("units").Str("resistance"))
}

func TestDecodeDataWithoutDataSection(t *testing.T) {
	_, _, err := DecodeData([]byte("[Header]\nTITLE,x\n"))
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
}

func TestCleanName(t *testing.T) {
	cases := map[string]string{
		"Time Stamp (sec)":      "time_stamp",
		"Resistivity Std. Dev.": "resistivity_std_dev",
		"2nd Harmonic":          "second_harmonic",
		"3rd Harmonic":          "third_harmonic",
		"1 Hz Signal":           "one_hz_signal",
		"Phase Angle (deg)":     "phase_angle",
		"I-V Harmonic":          "i_v_harmonic",
		"Number of Readings":    "number_of_readings",
		"  Map 12  ":            "map_12",
		"42":                    "n42",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanName(in), in)
	}
}

func TestCleanUnit(t *testing.T) {
	assert.Equal(t, "Ohm*cm", CleanUnit("Ohm-cm"))
	assert.Equal(t, "G/s", CleanUnit("Oe/s"))
	assert.Equal(t, "cm^-3", CleanUnit("cm^-3"))
	u, err := units.Default().Parse(units.Default().Clean(CleanUnit("Ohm-cm")))
	require.NoError(t, err)
	assert.True(t, u.Compatible(units.Default().MustParse("ohm*m")))
}

const seqFile = "REM Cooldown start\n" +
	"TMP TEMP 300 10 0\n" +
	"FLD FIELD 10000 100 0 1\n" +
	"LPB FIELD -90000 90000 100 181 0 0 1\n" +
	"ENB\n" +
	"WAI WAITFOR 5 1 1 0 0 0\n" +
	"ETOR 1 1 1 0.1 21 1 5 1 0 1 0 10 0\n" +
	"ETOR 2 0 0 3 1 10 2 3 0 1 2 1 1 25\n" +
	"TMP TEMP 300\n" +
	"XYZ 1 2\n" +
	"SHT\n"

func TestDecodeSequence(t *testing.T) {
	tree, warn := DecodeSequence([]byte(seqFile))
	require.Len(t, warn, 2)
	assert.Equal(t, 9, errs.LineOf(warn[0]))
	assert.Equal(t, 10, errs.LineOf(warn[1]))

	steps := tree.Trees("steps")
	require.Len(t, steps, 10)

	kinds := make([]string, len(steps))
	for i, s := range steps {
		kinds[i] = s.Str("kind")
	}
	assert.Equal(t, []string{
		schema.PPMSRemarkStep, schema.PPMSTemperatureStep, schema.PPMSFieldStep, schema.PPMSScanFieldStep,
		schema.PPMSStep, schema.PPMSWaitStep, schema.PPMSETORStep, schema.PPMSETORStep,
		schema.PPMSStep, schema.PPMSShutdownStep,
	}, kinds)

	assert.Equal(t, "Cooldown start", steps[0].Str("remark_text"))

	tmp := steps[1]
	set, _ := tmp.Quantity("temperature_set")
	assert.True(t, set.Equal(units.Q(300, "K")))
	rate, _ := tmp.Quantity("temperature_rate")
	assert.InDelta(t, 10.0/60, rate.ToSI().Magnitude, 1e-12)
	assert.Equal(t, "Fast Settle", tmp.Str("mode"))

	fld := steps[2]
	field, _ := fld.Quantity("field_set")
	assert.InDelta(t, 1.0, field.ToSI().Magnitude, 1e-12)
	assert.Equal(t, "Linear", fld.Str("approach"))
	assert.Equal(t, "Driven", fld.Str("end_mode"))

	lpb := steps[3]
	n, _ := lpb.Get("number_of_steps")
	assert.Equal(t, int64(181), n)
	assert.Equal(t, "Uniform", lpb.Str("spacing_code"))

	wai := steps[5]
	delay, _ := wai.Quantity("delay")
	assert.True(t, delay.Equal(units.Q(5, "s")))
	onT, _ := wai.Bool("condition_temperature")
	onP, _ := wai.Bool("condition_position")
	assert.True(t, onT)
	assert.False(t, onP)
	assert.Equal(t, "No Action", wai.Str("on_error_execute"))

	eto := steps[6].Trees("channels")
	require.Len(t, eto, 2)
	assert.Equal(t, "2-wire", eto[0].Str("mode"))
	amp, _ := eto[0].Quantity("excitation_amplitude")
	assert.InDelta(t, 1e-4, amp.ToSI().Magnitude, 1e-15)
	readings, _ := eto[0].Float("number_of_readings")
	assert.Equal(t, 10.0, readings)
	assert.False(t, eto[0].Has("preamp_range"))
	assert.False(t, eto[0].Has("reverse_polarity"))
	assert.Equal(t, "Do not measure", eto[1].Str("mode"))
	assert.False(t, eto[1].Has("excitation_amplitude"))

	diff := steps[7].Trees("channels")
	require.Len(t, diff, 2)
	assert.Equal(t, "Do not measure", diff[0].Str("mode"))
	assert.Equal(t, "Differential", diff[1].Str("mode"))
	rev, _ := diff[1].Bool("reverse_polarity")
	assert.True(t, rev)
	readings, _ = diff[1].Float("number_of_readings")
	assert.Equal(t, 25.0, readings)

	assert.Equal(t, "XYZ", steps[8].Str("name"))
	assert.Equal(t, "XYZ 1 2", steps[8].Str("command"))
}

func TestDecodeSequenceEnumOutOfRange(t *testing.T) {
	tree, warn := DecodeSequence([]byte("TMP TEMP 300 10 7\n"))
	require.Len(t, warn, 1)
	assert.Empty(t, tree.Trees("steps"))
}
