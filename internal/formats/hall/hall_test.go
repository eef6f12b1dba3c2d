package hall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elncore/internal/errs"
	"elncore/pkg/units"
)

// Latin-1 encoded: \xb2 is "²", \xb3 is "³".
const roomTemperature = "[Sample parameters]\r\n" +
	"Sample ID: S1\r\n" +
	"Thickness = 500 [um]\r\n" +
	"Geometry = 0\r\n" +
	"Comment: ERROR\r\n" +
	"\r\n" +
	"[Measurements]\r\n" +
	"Step 1: Variable Field Measurement:\r\n" +
	"Temperature: 300 [K]\r\n" +
	"Maximum field: 0.5 [T]\r\n" +
	"Minimum field: 0.5 [T]\r\n" +
	"Field at zero after: yes\r\n" +
	"Excitation type = 1\r\n" +
	"Field [T]\tResistivity [ohm cm]\tHall Mobility [cm\xb2/VS]\tCarrier Density [1/cm\xb3]\r\n" +
	"0.5\t1.23\t456\t7.89e17\r\n" +
	"\r\n"

func TestDecodeRoomTemperature(t *testing.T) {
	tree, warn, err := Decode([]byte(roomTemperature))
	require.NoError(t, err)
	assert.Empty(t, warn)

	sample := tree.Tree("Sample parameters")
	require.NotNil(t, sample)
	assert.Equal(t, "S1", sample.Str("Sample ID"))
	assert.Equal(t, "Van der Pauw square", sample.Str("Geometry"))
	assert.False(t, sample.Has("Comment"), "ERROR values are dropped")
	thickness, ok := sample.Quantity("Thickness")
	require.True(t, ok)
	assert.InDelta(t, 5e-4, thickness.ToSI().Magnitude, 1e-12)

	ms := tree.Trees("measurements")
	require.Len(t, ms, 1)
	m := ms[0]
	assert.Equal(t, TypeVariableField, m.Str("measurement_type"))
	assert.Equal(t, "Measurements", m.Str("section"))
	at0, _ := m.Bool("Field at zero after")
	assert.True(t, at0)
	assert.Equal(t, "Voltage", m.Str("Excitation type"))
	maxField, _ := m.Quantity("Maximum field")
	assert.True(t, maxField.Equal(units.Q(0.5, "T")))

	data := m.Tree("data")
	require.NotNil(t, data)
	assert.Equal(t, []string{"Field", "Resistivity", "Hall Mobility", "Carrier Density"}, data.Keys())
	assert.Equal(t, []float64{1.23}, data.Floats("Resistivity"))
	assert.Equal(t, "cm²/VS", m.Tree("units").Str("Hall Mobility"))
	_, err = units.Default().Parse(m.Tree("units").Str("Hall Mobility"))
	assert.NoError(t, err)
}

func TestDecodeMalformedLinesAreWarnings(t *testing.T) {
	src := "[Measurements]\n" +
		"Step 2: IV Curve Measurement:\n" +
		"Current [A]\tVoltage [V]\n" +
		"1e-3\t0.1\n" +
		"oops\t0.2\n" +
		"2e-3\n" +
		"2e-3\t0.2\n" +
		"\n" +
		"some stray text\n" +
		"Gain: 4 [bananas]\n"
	tree, warn, err := Decode([]byte(src))
	require.NoError(t, err)
	m := tree.Trees("measurements")[0]
	assert.Equal(t, []float64{1e-3, 2e-3}, m.Tree("data").Floats("Current"))
	assert.Equal(t, "4 [bananas]", m.Str("Gain"))

	var grammar, unknown int
	for _, w := range warn {
		switch {
		case errs.KindOf(w) == errs.ErrFileGrammar:
			grammar++
			assert.NotZero(t, errs.LineOf(w))
		case errs.KindOf(w) == errs.ErrUnknownUnit:
			unknown++
		}
	}
	assert.Equal(t, 3, grammar)
	assert.Equal(t, 1, unknown)
}

func TestDecodeUnclosedMeasurementIsFatal(t *testing.T) {
	src := "[Measurements]\nStep 1: Variable Field Measurement:\nTemperature: 300 [K]\n"
	_, _, err := Decode([]byte(src))
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
	assert.ErrorIs(t, err, errs.ErrParseFatal)
	assert.Equal(t, 2, errs.LineOf(err))
}

func TestDecodeEmptyIsFatal(t *testing.T) {
	_, _, err := Decode([]byte("\n\n"))
	assert.True(t, errs.IsFatal(err))
}

func TestDecodeMeasurementWithoutDataBeforeNextStep(t *testing.T) {
	src := "Step 1: IV Curve Measurement:\n" +
		"Step 2: Variable Field Measurement:\n" +
		"Field [T]\tResistivity [ohm cm]\n" +
		"0.1\t2\n"
	tree, warn, err := Decode([]byte(src))
	require.NoError(t, err)
	assert.Len(t, tree.Trees("measurements"), 2)
	require.Len(t, warn, 1)
	assert.ErrorIs(t, warn[0], errs.ErrFileGrammar)
}
