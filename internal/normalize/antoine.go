package normalize

import (
	"context"
	"math"

	"elncore/pkg/domain"
	"elncore/pkg/pluginapi"
	"elncore/pkg/units"
)

// AntoinePressure evaluates log10(P/Torr) = A - B/(C + T/degC).
func AntoinePressure(a, b, c float64, t units.Quantity) (units.Quantity, error) {
	celsius, err := t.To(units.Default().MustParse("degC"))
	if err != nil {
		return units.Quantity{}, err
	}
	return units.Q(math.Pow(10, a-b/(c+celsius.Magnitude)), "Torr"), nil
}

// VapourPressure fills vapour_pressure of a pure substance with Antoine
// coefficients and a temperature.
func VapourPressure(_ context.Context, _ pluginapi.Context, sec *domain.Section) error {
	a, okA := sec.Float("antoine_a")
	b, okB := sec.Float("antoine_b")
	c, okC := sec.Float("antoine_c")
	t, okT := sec.Quantity("temperature")
	if !okA || !okB || !okC || !okT {
		return nil
	}
	p, err := AntoinePressure(a, b, c, t)
	if err != nil {
		return err
	}
	return sec.Set("vapour_pressure", p)
}
