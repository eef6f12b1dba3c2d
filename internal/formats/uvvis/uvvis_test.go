package uvvis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elncore/internal/errs"
	"elncore/pkg/units"
)

func ascFile(overrides map[int]string, spectrum ...string) string {
	lines := make([]string, LineOrdinateType+1)
	for i := range lines {
		lines[i] = "-"
	}
	lines[0] = "PE UV       SUBTECH     SPECTRUM    ASCII       PEDS        4.00        -1"
	lines[LineSampleName] = "GaN_0042"
	lines[LineDate] = "24/03/12"
	lines[LineTime] = "10:28:22.00"
	lines[LineSlitWidth] = "3350/servo 860.8/2"
	lines[LineIntegrationTime] = "3350/0.2 860.8/0.4"
	lines[LineNIRGain] = "3350/1 860.8/20"
	lines[LineMonochromatorChg] = "860.8"
	lines[LineLampChg] = "319.2"
	lines[LineDetectorChg] = "860.8 1800"
	lines[LineAttenuation] = "S:50 R:100"
	lines[LineWavelengthUnit] = "nm"
	lines[LineOrdinateType] = "%T"
	for k, v := range overrides {
		lines[k] = v
	}
	out := strings.Join(lines, "\r\n") + "\r\n" + DataSentinel + "\r\n"
	return out + strings.Join(spectrum, "\r\n") + "\r\n"
}

func TestDecode(t *testing.T) {
	tree, warn, err := Decode([]byte(ascFile(nil, "800.0\t45.1", "799.0\t45.3")))
	require.NoError(t, err)
	assert.Empty(t, warn)

	assert.Equal(t, "GaN_0042", tree.Str("sample_name"))
	assert.Equal(t, "2024-03-12T10:28:22Z", tree.Str("datetime"))

	s := tree.Tree("settings")
	att := s.Tree("attenuator")
	require.NotNil(t, att)
	sample, _ := att.Get("sample")
	ref, _ := att.Get("reference")
	assert.Equal(t, int64(50), sample)
	assert.Equal(t, int64(100), ref)

	assert.Equal(t, "%T", s.Str("ordinate_type"))
	assert.Equal(t, "nm", s.Str("wavelength_unit"))
	assert.Equal(t, []float64{860.8, 1800}, s.Floats("detector_change_point"))

	slit := s.Trees("monochromator_slit_width")
	require.Len(t, slit, 2)
	assert.Equal(t, "servo", slit[0].Str("value_string"))
	upper, _ := slit[0].Quantity("wavelength_upper")
	lower, _ := slit[0].Quantity("wavelength_lower")
	assert.True(t, upper.Equal(units.Q(3350, "nm")))
	assert.True(t, lower.Equal(units.Q(860.8, "nm")))
	assert.False(t, slit[1].Has("wavelength_lower"))
	width, _ := slit[1].Quantity("value")
	assert.True(t, width.Equal(units.Q(2, "nm")))

	gain := s.Trees("detector_nir_gain")
	require.Len(t, gain, 2)
	g, _ := gain[1].Float("value")
	assert.Equal(t, 20.0, g)

	data := tree.Tree("data")
	assert.Equal(t, []float64{800, 799}, data.Floats("wavelength"))
	assert.Equal(t, []float64{45.1, 45.3}, data.Floats("ordinate"))
}

func TestDecodeWarnings(t *testing.T) {
	file := ascFile(map[int]string{LineAttenuation: "no attenuator", LineSlitWidth: "3350/servo bogus"}, "800\t45", "garbage", "799\t44")
	tree, warn, err := Decode([]byte(file))
	require.NoError(t, err)
	require.Len(t, warn, 3)
	assert.Equal(t, LineSlitWidth+1, errs.LineOf(warn[0]))
	assert.Equal(t, LineAttenuation+1, errs.LineOf(warn[1]))
	assert.Len(t, tree.Tree("settings").Trees("monochromator_slit_width"), 1)
	assert.False(t, tree.Tree("settings").Has("attenuator"))
	assert.Len(t, tree.Tree("data").Floats("wavelength"), 2)
}

func TestDecodeFatal(t *testing.T) {
	_, _, err := Decode([]byte("PE UV\nsample\n"))
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))

	_, _, err = Decode([]byte(ascFile(nil)))
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
}

func TestDecodeShortHeader(t *testing.T) {
	_, warn, err := Decode([]byte("PE UV\nx\nS1\n24/03/12\n10:00:00.00\n#DATA\n500 1\n"))
	require.NoError(t, err)
	assert.NotEmpty(t, warn)
}
