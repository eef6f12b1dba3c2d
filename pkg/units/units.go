// Package units implements the unit-and-quantity layer: a registry of named
// units with SI dimensions, parsing of "value [unit]" strings, and quantities
// that convert between compatible units.
package units

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownUnit is returned when a unit expression references a name that is
// not present in the registry.
var ErrUnknownUnit = errors.New("unknown unit")

// ErrIncompatible is returned when converting between units of different dimension.
var ErrIncompatible = errors.New("incompatible units")

// Dimension holds the exponents of the SI base units in the order
// metre, kilogram, second, ampere, kelvin, mole, candela.
type Dimension [7]int8

var baseNames = [7]string{"m", "kg", "s", "A", "K", "mol", "cd"}

// Dimensionless is the zero dimension.
var Dimensionless = Dimension{}

func (d Dimension) add(o Dimension) Dimension {
	var out Dimension
	for i := range d {
		out[i] = d[i] + o[i]
	}
	return out
}

func (d Dimension) sub(o Dimension) Dimension {
	var out Dimension
	for i := range d {
		out[i] = d[i] - o[i]
	}
	return out
}

func (d Dimension) scale(n int8) Dimension {
	var out Dimension
	for i := range d {
		out[i] = d[i] * n
	}
	return out
}

// String renders the dimension as a coherent SI unit expression.
func (d Dimension) String() string {
	var num, den []string
	for i, e := range d {
		switch {
		case e == 1:
			num = append(num, baseNames[i])
		case e > 1:
			num = append(num, fmt.Sprintf("%s^%d", baseNames[i], e))
		case e == -1:
			den = append(den, baseNames[i])
		case e < -1:
			den = append(den, fmt.Sprintf("%s^%d", baseNames[i], -e))
		}
	}
	n := strings.Join(num, "*")
	if n == "" {
		n = "1"
	}
	switch len(den) {
	case 0:
		return n
	case 1:
		return n + "/" + den[0]
	default:
		return n + "/(" + strings.Join(den, "*") + ")"
	}
}

// Unit is a named linear (or affine, for absolute temperatures) mapping onto
// the coherent SI unit of its dimension: si = value*Scale + Offset.
type Unit struct {
	Name   string
	Dim    Dimension
	Scale  float64
	Offset float64
}

// One is the dimensionless unit.
var One = Unit{Name: "1", Scale: 1}

// String returns the unit expression.
func (u Unit) String() string {
	if u.Name == "" {
		return "1"
	}
	return u.Name
}

// IsZero reports whether u is the zero Unit value.
func (u Unit) IsZero() bool { return u.Scale == 0 && u.Name == "" }

// Dimensionless reports whether the unit carries no dimension.
func (u Unit) Dimensionless() bool { return u.Dim == Dimensionless }

// Compatible reports whether values in u can be converted into o.
func (u Unit) Compatible(o Unit) bool { return u.Dim == o.Dim }

// SI returns the coherent SI unit of u's dimension.
func (u Unit) SI() Unit {
	return Unit{Name: u.Dim.String(), Dim: u.Dim, Scale: 1}
}

// Mul returns the product unit. Offsets are dropped: a temperature inside a
// compound unit is an interval, not an absolute value.
func (u Unit) Mul(o Unit) Unit {
	return Unit{Name: joinName(u.String(), "*", o.String()), Dim: u.Dim.add(o.Dim), Scale: u.scale() * o.scale()}
}

// Div returns the quotient unit.
func (u Unit) Div(o Unit) Unit {
	return Unit{Name: joinName(u.String(), "/", o.String()), Dim: u.Dim.sub(o.Dim), Scale: u.scale() / o.scale()}
}

// Pow raises the unit to an integer power.
func (u Unit) Pow(n int) Unit {
	if n == 1 {
		return u
	}
	name := u.String()
	if strings.ContainsAny(name, "*/^") {
		name = "(" + name + ")"
	}
	return Unit{Name: fmt.Sprintf("%s^%d", name, n), Dim: u.Dim.scale(int8(n)), Scale: math.Pow(u.scale(), float64(n))}
}

func (u Unit) scale() float64 {
	if u.Scale == 0 {
		return 1
	}
	return u.Scale
}

func joinName(a, op, b string) string {
	if op == "/" && strings.ContainsAny(b, "*/") {
		b = "(" + b + ")"
	}
	if a == "1" && op == "*" {
		return b
	}
	if b == "1" {
		return a
	}
	return a + op + b
}

// toSI converts a magnitude expressed in u into the coherent SI unit.
func (u Unit) toSI(v float64) float64 { return v*u.scale() + u.Offset }

// fromSI converts a coherent SI magnitude into u.
func (u Unit) fromSI(v float64) float64 { return (v - u.Offset) / u.scale() }

// Convert converts v from unit from into unit to.
func Convert(v float64, from, to Unit) (float64, error) {
	if !from.Compatible(to) {
		return math.NaN(), fmt.Errorf("%w: %s -> %s", ErrIncompatible, from, to)
	}
	return to.fromSI(from.toSI(v)), nil
}
