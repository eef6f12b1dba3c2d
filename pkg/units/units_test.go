package units

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertCoreDimensions(t *testing.T) {
	r := Default()
	cases := []struct {
		name     string
		v        float64
		from, to string
		want     float64
	}{
		{"length", 12.5, "mm", "m", 0.0125},
		{"celsius", 25, "degC", "K", 298.15},
		{"celsius symbol", 25, "°C", "K", 298.15},
		{"kelvin to celsius", 0, "K", "degC", -273.15},
		{"mbar", 1, "mbar", "Pa", 100},
		{"torr", 760, "Torr", "Pa", 101325},
		{"sccm", 60, "sccm", "m^3/s", 1e-6},
		{"rpm", 60, "rpm", "Hz", 1},
		{"resistivity", 1.23, "ohm cm", "ohm*m", 0.0123},
		{"mobility", 456, "cm²/V/s", "m^2/(V*s)", 0.0456},
		{"mobility vendor", 456, "cm2/VS", "m^2/(V*s)", 0.0456},
		{"density", 7.89e17, "1/cm³", "1/m^3", 7.89e23},
		{"density implicit", 7.89e17, "cm-3", "m^-3", 7.89e23},
		{"field", 10, "kOe", "A/m", 10 * 1e6 / (4 * math.Pi)},
		{"gauss", 1e4, "G", "T", 1},
		{"percent", 50, "%", "", 0.5},
		{"seconds vendor", 2, "Sec", "ms", 2000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			from, err := r.Parse(tc.from)
			require.NoError(t, err)
			to, err := r.Parse(tc.to)
			require.NoError(t, err)
			got, err := Convert(tc.v, from, to)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, math.Abs(tc.want)*1e-9)
		})
	}
}

func TestConvertIncompatible(t *testing.T) {
	_, err := Convert(1, Default().MustParse("m"), Default().MustParse("s"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncompatible))
}

func TestParseUnknownUnit(t *testing.T) {
	_, err := Default().Parse("furlong/fortnight")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownUnit))
}

func TestCleanNormalizesVendorSpellings(t *testing.T) {
	r := Default()
	assert.Equal(t, "ohm*cm", r.Clean("Ω cm"))
	assert.Equal(t, "cm^2/V/s", r.Clean("cm²/V/s"))
	assert.Equal(t, "m^2*V^-1*s^-1", r.Clean("m^2 V^-1 s^-1"))
	assert.Equal(t, "mm", r.Clean("[mm]"))
}

func TestSIName(t *testing.T) {
	assert.Equal(t, "1/s", Default().MustParse("Hz").SI().Name)
	assert.Equal(t, "m", Default().MustParse("nm").SI().Name)
}

func TestParseValueUnit(t *testing.T) {
	q, err := ParseValueUnit("12.5 [mm]")
	require.NoError(t, err)
	assert.Equal(t, 12.5, q.Magnitude)
	si, err := q.To(Default().MustParse("m"))
	require.NoError(t, err)
	assert.InDelta(t, 0.0125, si.Magnitude, 1e-12)

	q, err = ParseValueUnit("12.5 mm")
	require.NoError(t, err)
	assert.Equal(t, "mm", q.Unit.Name)

	q, err = ParseValueUnit("12.5")
	require.NoError(t, err)
	assert.True(t, q.Unit.Dimensionless())
	assert.Equal(t, 12.5, q.Magnitude)

	q, err = ParseValueUnit("-1.5e-3 [A]")
	require.NoError(t, err)
	assert.Equal(t, -1.5e-3, q.Magnitude)

	q, err = ParseValueUnit("3 furlongs")
	assert.True(t, errors.Is(err, ErrUnknownUnit))
	assert.Equal(t, 3.0, q.Magnitude)

	_, err = ParseValueUnit("n/a")
	assert.Error(t, err)
}

func TestQuantityArithmetic(t *testing.T) {
	sum, err := Q(20, "degC").Add(Q(5, "K"))
	require.NoError(t, err)
	assert.InDelta(t, 25, sum.Magnitude, 1e-12)
	assert.Equal(t, "degC", sum.Unit.Name)

	diff, err := Q(1, "m").Sub(Q(10, "cm"))
	require.NoError(t, err)
	assert.InDelta(t, 0.9, diff.Magnitude, 1e-12)

	_, err = Q(1, "m").Add(Q(1, "s"))
	assert.ErrorIs(t, err, ErrIncompatible)

	v := Q(10, "m").Div(Q(2, "s"))
	assert.InDelta(t, 5, v.Magnitude, 1e-12)
	assert.Equal(t, "m/s", v.Unit.Name)

	area := Q(2, "cm").Mul(Q(3, "cm"))
	assert.InDelta(t, 6e-4, area.Magnitude, 1e-15)
	assert.Equal(t, "m^2", area.Unit.Name)

	c, err := Q(1, "bar").Compare(Q(999, "mbar"))
	require.NoError(t, err)
	assert.Equal(t, 1, c)
	c, err = Q(2, "m").Compare(Q(2, "m"))
	require.NoError(t, err)
	assert.Equal(t, 0, c)
	c, err = Q(1, "Torr").Compare(Q(1, "mbar"))
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	assert.True(t, Q(1, "km").Equal(Q(1000, "m")))
	assert.False(t, Q(1, "km").Equal(Q(1, "s")))
}
