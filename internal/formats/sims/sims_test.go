package sims

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elncore/internal/errs"
)

const dpASCII = `DEPTH PROFILE : GaN_ZnO_117
Date : 12.03.2024
Matrix : GaN
Sample name : S117

ELEMENT Zn
points 3
Depth [um]	Intensity [c/s]
1.00E-02	1.20E+03
2.00E-02	1.10E+03
3.00E-02	9.00E+02

ELEMENT Ga
points 2
Depth [um]	Intensity [c/s]
1.00E-02	5.00E+05
2.00E-02	5.10E+05

ELEMENT Zn
points 2
Depth [nm]	Concentration [Atom/cm3]
1.00E+01	1.00E+17
2.00E+01	2.00E+17
`

func TestDecode(t *testing.T) {
	tree, warn, err := Decode([]byte(dpASCII))
	require.NoError(t, err)
	assert.Empty(t, warn)

	assert.Equal(t, "GaN_ZnO_117", tree.Str("depth_profile"))
	assert.Equal(t, "GaN", tree.Str("matrix"))
	assert.Equal(t, "S117", tree.Str("sample_name"))
	assert.Equal(t, "12.03.2024", tree.Str("date"))

	profiles := tree.Trees("profiles")
	require.Len(t, profiles, 3)
	assert.Equal(t, "Zn1", profiles[0].Str("name"))
	assert.Equal(t, "Ga", profiles[1].Str("name"))
	assert.Equal(t, "Zn2", profiles[2].Str("name"))

	assert.Equal(t, Qualitative, profiles[0].Str("kind"))
	assert.Equal(t, "cps", profiles[0].Str("value_unit"))
	assert.Equal(t, []float64{0.01, 0.02, 0.03}, profiles[0].Floats("depth"))
	assert.Equal(t, []float64{1200, 1100, 900}, profiles[0].Floats("values"))

	assert.Equal(t, Quantitative, profiles[2].Str("kind"))
	assert.Equal(t, "nm", profiles[2].Str("depth_unit"))
	assert.Equal(t, []float64{1e17, 2e17}, profiles[2].Floats("values"))
}

func TestDecodePointMismatch(t *testing.T) {
	in := "ELEMENT Mg\npoints 3\nDepth [um] Intensity [c/s]\n1.0E-02 1.0E+01\nELEMENT O\n1.0E-02 5.0E+00\n"
	tree, warn, err := Decode([]byte(in))
	require.NoError(t, err)
	require.Len(t, warn, 2)
	assert.Equal(t, 1, errs.LineOf(warn[0]))
	assert.Equal(t, 5, errs.LineOf(warn[1]))
	assert.Len(t, tree.Trees("profiles"), 2)
}

func TestDecodeEmpty(t *testing.T) {
	_, _, err := Decode([]byte("DEPTH PROFILE : x\n"))
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
}

func TestSuffixNames(t *testing.T) {
	assert.Equal(t, []string{"Zn1", "O", "Zn2", "Zn3"}, SuffixNames([]string{"Zn", "O", "Zn", "Zn"}))
	assert.Equal(t, []string{"Mg"}, SuffixNames([]string{"Mg"}))
}
