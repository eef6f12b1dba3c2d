package units

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Quantity is a magnitude paired with the unit it is expressed in.
type Quantity struct {
	Magnitude float64
	Unit      Unit
}

// Q builds a quantity from a magnitude and a unit expression parsed by the
// default registry. It panics on an unknown unit and is meant for literals.
func Q(v float64, unit string) Quantity {
	return Quantity{Magnitude: v, Unit: defaultRegistry.MustParse(unit)}
}

// String renders "magnitude unit".
func (q Quantity) String() string {
	if q.Unit.Dimensionless() && (q.Unit.Name == "" || q.Unit.Name == "1") {
		return strconv.FormatFloat(q.Magnitude, 'g', -1, 64)
	}
	return strconv.FormatFloat(q.Magnitude, 'g', -1, 64) + " " + q.Unit.String()
}

// To converts q into unit u.
func (q Quantity) To(u Unit) (Quantity, error) {
	v, err := Convert(q.Magnitude, q.Unit, u)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Magnitude: v, Unit: u}, nil
}

// ToSI converts q into the coherent SI unit of its dimension.
func (q Quantity) ToSI() Quantity {
	return Quantity{Magnitude: q.Unit.toSI(q.Magnitude), Unit: q.Unit.SI()}
}

// Add returns q+o expressed in q's unit. Both must share a dimension.
// Offsets are respected, so 20 degC + 5 K is 25 degC.
func (q Quantity) Add(o Quantity) (Quantity, error) {
	if !q.Unit.Compatible(o.Unit) {
		return Quantity{}, fmt.Errorf("%w: %s + %s", ErrIncompatible, q.Unit, o.Unit)
	}
	delta := o.Magnitude * o.Unit.scale() / q.Unit.scale()
	return Quantity{Magnitude: q.Magnitude + delta, Unit: q.Unit}, nil
}

// Sub returns q-o expressed in q's unit.
func (q Quantity) Sub(o Quantity) (Quantity, error) {
	return q.Add(Quantity{Magnitude: -o.Magnitude, Unit: o.Unit})
}

// Mul returns the product in SI.
func (q Quantity) Mul(o Quantity) Quantity {
	a, b := q.ToSI(), o.ToSI()
	u := a.Unit.Mul(b.Unit)
	u.Name = u.Dim.String()
	return Quantity{Magnitude: a.Magnitude * b.Magnitude, Unit: u}
}

// Div returns the quotient in SI.
func (q Quantity) Div(o Quantity) Quantity {
	a, b := q.ToSI(), o.ToSI()
	u := a.Unit.Div(b.Unit)
	u.Name = u.Dim.String()
	return Quantity{Magnitude: a.Magnitude / b.Magnitude, Unit: u}
}

// Scale multiplies the magnitude by f.
func (q Quantity) Scale(f float64) Quantity {
	return Quantity{Magnitude: q.Magnitude * f, Unit: q.Unit}
}

// Compare returns -1, 0 or +1 comparing q and o in SI. Incompatible units
// are an error.
func (q Quantity) Compare(o Quantity) (int, error) {
	if !q.Unit.Compatible(o.Unit) {
		return 0, fmt.Errorf("%w: %s <> %s", ErrIncompatible, q.Unit, o.Unit)
	}
	a, b := q.ToSI().Magnitude, o.ToSI().Magnitude
	switch {
	case a < b:
		return -1, nil
	case a > b:
		return 1, nil
	default:
		return 0, nil
	}
}

// Equal reports whether q and o denote the same physical value within a
// relative tolerance of 1e-12.
func (q Quantity) Equal(o Quantity) bool {
	if !q.Unit.Compatible(o.Unit) {
		return false
	}
	a, b := q.ToSI().Magnitude, o.ToSI().Magnitude
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return math.Abs(a-b) <= 1e-12*math.Max(math.Abs(a), math.Abs(b))
}

var valueUnitRe = regexp.MustCompile(`^\s*([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)\s*(?:\[(.*)\]|(.*?))\s*$`)

// ParseValueUnit splits strings such as "12.5 [mm]", "12.5 mm" and "12.5"
// into magnitude and unit. The unit is resolved through the default
// registry; an unregistered unit yields ErrUnknownUnit together with the
// parsed magnitude.
func ParseValueUnit(s string) (Quantity, error) {
	return defaultRegistry.ParseValueUnit(s)
}

// ParseValueUnit is the registry-bound form of the package function.
func (r *Registry) ParseValueUnit(s string) (Quantity, error) {
	m := valueUnitRe.FindStringSubmatch(s)
	if m == nil {
		return Quantity{Magnitude: math.NaN()}, fmt.Errorf("units: no numeric value in %q", s)
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Quantity{Magnitude: math.NaN()}, fmt.Errorf("units: parse %q: %w", m[1], err)
	}
	unit := m[2]
	if unit == "" {
		unit = m[3]
	}
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return Quantity{Magnitude: v, Unit: One}, nil
	}
	u, err := r.Parse(unit)
	if err != nil {
		return Quantity{Magnitude: v}, err
	}
	return Quantity{Magnitude: v, Unit: u}, nil
}
