package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Registry maps unit names to definitions. A registry is populated once and
// is safe for concurrent reads afterwards.
type Registry struct {
	units      map[string]Unit
	prefixable map[string]bool
	cleanup    []replacement
	aliases    map[string]string
}

type replacement struct{ from, to string }

var prefixes = map[string]float64{
	"G": 1e9, "M": 1e6, "k": 1e3, "h": 1e2,
	"d": 1e-1, "c": 1e-2, "m": 1e-3, "u": 1e-6, "n": 1e-9, "p": 1e-12, "f": 1e-15,
}

var (
	dimLength      = Dimension{1, 0, 0, 0, 0, 0, 0}
	dimMass        = Dimension{0, 1, 0, 0, 0, 0, 0}
	dimTime        = Dimension{0, 0, 1, 0, 0, 0, 0}
	dimCurrent     = Dimension{0, 0, 0, 1, 0, 0, 0}
	dimTemperature = Dimension{0, 0, 0, 0, 1, 0, 0}
	dimAmount      = Dimension{0, 0, 0, 0, 0, 1, 0}
	dimLuminous    = Dimension{0, 0, 0, 0, 0, 0, 1}
)

// NewRegistry returns a registry holding the units used by the instrument parsers.
func NewRegistry() *Registry {
	r := &Registry{
		units:      make(map[string]Unit),
		prefixable: make(map[string]bool),
		aliases:    make(map[string]string),
	}
	r.base()
	return r
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry. It is read-only after package initialisation.
func Default() *Registry { return defaultRegistry }

func (r *Registry) define(name string, dim Dimension, scale float64, prefixable bool) Unit {
	u := Unit{Name: name, Dim: dim, Scale: scale}
	r.units[name] = u
	if prefixable {
		r.prefixable[name] = true
	}
	return u
}

func (r *Registry) derive(name, expr string, factor float64, prefixable bool) {
	u, err := r.parseExpr(expr)
	if err != nil {
		panic(fmt.Errorf("units: derive %s: %w", name, err))
	}
	r.define(name, u.Dim, u.scale()*factor, prefixable)
}

func (r *Registry) alias(name, target string) { r.aliases[name] = target }

func (r *Registry) base() {
	r.define("m", dimLength, 1, true)
	r.define("g", dimMass, 1e-3, true)
	r.define("s", dimTime, 1, true)
	r.define("A", dimCurrent, 1, true)
	r.define("K", dimTemperature, 1, true)
	r.define("mol", dimAmount, 1, true)
	r.define("cd", dimLuminous, 1, false)

	r.units["degC"] = Unit{Name: "degC", Dim: dimTemperature, Scale: 1, Offset: 273.15}
	r.units["degF"] = Unit{Name: "degF", Dim: dimTemperature, Scale: 5.0 / 9.0, Offset: 273.15 - 32*5.0/9.0}

	r.define("min", dimTime, 60, false)
	r.define("h", dimTime, 3600, false)
	r.define("d_", dimTime, 86400, false)
	r.define("rad", Dimensionless, 1, true)
	r.define("deg", Dimensionless, math.Pi/180, false)
	r.define("percent", Dimensionless, 0.01, false)
	r.define("ppm", Dimensionless, 1e-6, false)
	r.define("atom", Dimensionless, 1, false)
	r.define("count", Dimensionless, 1, false)

	r.derive("Hz", "1/s", 1, true)
	r.derive("N", "kg*m/s^2", 1, true)
	r.derive("Pa", "N/m^2", 1, true)
	r.derive("J", "N*m", 1, true)
	r.derive("W", "J/s", 1, true)
	r.derive("C", "A*s", 1, true)
	r.derive("V", "W/A", 1, true)
	r.derive("ohm", "V/A", 1, true)
	r.derive("S", "A/V", 1, true)
	r.derive("F", "C/V", 1, true)
	r.derive("Wb", "V*s", 1, true)
	r.derive("T", "Wb/m^2", 1, true)
	r.derive("G", "T", 1e-4, true)
	r.derive("Oe", "A/m", 1000/(4*math.Pi), true)
	r.derive("eV", "J", 1.602176634e-19, true)
	r.derive("L", "dm^3", 1, true)
	r.derive("bar", "Pa", 1e5, true)
	r.derive("atm", "Pa", 101325, false)
	r.derive("Torr", "Pa", 101325.0/760.0, true)
	r.derive("psi", "Pa", 6894.757293168, false)
	r.derive("rpm", "1/min", 1, false)
	r.derive("sccm", "cm^3/min", 1, false)
	r.derive("slm", "L/min", 1, false)
	r.derive("angstrom", "m", 1e-10, false)
	r.derive("cps", "1/s", 1, false)

	for _, a := range [][2]string{
		{"meter", "m"}, {"metre", "m"}, {"second", "s"}, {"sec", "s"}, {"Sec", "s"},
		{"hour", "h"}, {"hr", "h"}, {"day", "d_"}, {"minute", "min"},
		{"kelvin", "K"}, {"celsius", "degC"}, {"degree_Celsius", "degC"},
		{"degree", "deg"}, {"Ohm", "ohm"}, {"Ohms", "ohm"}, {"ohms", "ohm"},
		{"volt", "V"}, {"ampere", "A"}, {"tesla", "T"}, {"gauss", "G"},
		{"mbarr", "mbar"}, {"torr", "Torr"}, {"Å", "angstrom"},
		{"%", "percent"}, {"atoms", "atom"}, {"Atom", "atom"}, {"counts", "count"}, {"cts", "count"},
		{"VS", "V*s"}, {"Vs", "V*s"}, {"Vsec", "V*s"},
	} {
		r.alias(a[0], a[1])
	}

	r.cleanup = []replacement{
		{"⁻¹", "^-1"}, {"⁻²", "^-2"}, {"⁻³", "^-3"},
		{"¹", "^1"}, {"²", "^2"}, {"³", "^3"},
		{"·", "*"}, {"×", "*"}, {"Ω", "ohm"}, {"µ", "u"}, {"μ", "u"},
		{"°C", "degC"}, {"ºC", "degC"}, {"°F", "degF"}, {"°", "deg"},
		{"**", "^"},
	}
}

// Lookup returns the unit registered under name (no prefix or alias expansion).
func (r *Registry) Lookup(name string) (Unit, bool) {
	u, ok := r.units[name]
	return u, ok
}

// Parse parses a unit expression such as "cm^2/(V*s)", "ohm cm", "1/cm3" or "mbar".
// The empty expression is the dimensionless unit.
func (r *Registry) Parse(expr string) (Unit, error) {
	clean := r.Clean(expr)
	if clean == "" {
		return One, nil
	}
	u, err := r.parseExpr(clean)
	if err != nil {
		return Unit{}, err
	}
	u.Name = clean
	return u, nil
}

// MustParse is Parse for unit literals known at compile time.
func (r *Registry) MustParse(expr string) Unit {
	u, err := r.Parse(expr)
	if err != nil {
		panic(err)
	}
	return u
}

// Clean applies the cleanup table to a raw unit string: superscripts,
// vendor spellings, and whitespace-separated factors become a canonical
// expression.
func (r *Registry) Clean(expr string) string {
	s := strings.TrimSpace(expr)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	for _, rep := range r.cleanup {
		s = strings.ReplaceAll(s, rep.from, rep.to)
	}
	fields := strings.Fields(s)
	s = strings.Join(fields, "*")
	s = strings.ReplaceAll(s, "*/*", "/")
	s = strings.ReplaceAll(s, "*/", "/")
	s = strings.ReplaceAll(s, "/*", "/")
	s = strings.ReplaceAll(s, "*^", "^")
	s = strings.ReplaceAll(s, "^*", "^")
	return s
}

type exprParser struct {
	r   *Registry
	src string
	pos int
}

func (r *Registry) parseExpr(s string) (Unit, error) {
	p := &exprParser{r: r, src: s}
	u, err := p.expr()
	if err != nil {
		return Unit{}, err
	}
	if p.pos != len(p.src) {
		return Unit{}, fmt.Errorf("%w: unexpected %q in %q", ErrUnknownUnit, p.src[p.pos:], s)
	}
	return u, nil
}

func (p *exprParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *exprParser) expr() (Unit, error) {
	u, err := p.factor()
	if err != nil {
		return Unit{}, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			next, err := p.factor()
			if err != nil {
				return Unit{}, err
			}
			u = u.Mul(next)
		case '/':
			p.pos++
			next, err := p.factor()
			if err != nil {
				return Unit{}, err
			}
			u = u.Div(next)
		default:
			return u, nil
		}
	}
}

func (p *exprParser) factor() (Unit, error) {
	var u Unit
	switch c := p.peek(); {
	case c == '(':
		p.pos++
		inner, err := p.expr()
		if err != nil {
			return Unit{}, err
		}
		if p.peek() != ')' {
			return Unit{}, fmt.Errorf("%w: unbalanced parenthesis in %q", ErrUnknownUnit, p.src)
		}
		p.pos++
		u = inner
	case c >= '0' && c <= '9':
		start := p.pos
		for p.pos < len(p.src) && (p.src[p.pos] >= '0' && p.src[p.pos] <= '9' || p.src[p.pos] == '.') {
			p.pos++
		}
		v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
		if err != nil {
			return Unit{}, fmt.Errorf("%w: %q", ErrUnknownUnit, p.src[start:p.pos])
		}
		u = Unit{Name: p.src[start:p.pos], Scale: v}
	default:
		start := p.pos
		for p.pos < len(p.src) {
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			if !isAtomRune(r) {
				break
			}
			p.pos += size
		}
		if start == p.pos {
			return Unit{}, fmt.Errorf("%w: empty factor in %q", ErrUnknownUnit, p.src)
		}
		atom, err := p.r.atom(p.src[start:p.pos])
		if err != nil {
			return Unit{}, err
		}
		u = atom
		// implicit exponent: cm3, cm-3
		if n, ok := p.implicitExponent(); ok {
			u = u.Pow(n)
		}
	}
	if p.peek() == '^' {
		p.pos++
		start := p.pos
		if p.peek() == '-' || p.peek() == '+' {
			p.pos++
		}
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		n, err := strconv.Atoi(p.src[start:p.pos])
		if err != nil {
			return Unit{}, fmt.Errorf("%w: bad exponent in %q", ErrUnknownUnit, p.src)
		}
		u = u.Pow(n)
	}
	return u, nil
}

func (p *exprParser) implicitExponent() (int, bool) {
	start := p.pos
	i := p.pos
	if i < len(p.src) && p.src[i] == '-' {
		i++
	}
	digits := i
	for i < len(p.src) && p.src[i] >= '0' && p.src[i] <= '9' {
		i++
	}
	if i == digits {
		return 0, false
	}
	n, err := strconv.Atoi(p.src[start:i])
	if err != nil {
		return 0, false
	}
	p.pos = i
	return n, true
}

func isAtomRune(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == '%'
}

// atom resolves a single unit name, expanding aliases and SI prefixes.
func (r *Registry) atom(name string) (Unit, error) {
	if u, ok := r.resolve(name); ok {
		return u, nil
	}
	return Unit{}, fmt.Errorf("%w: %q", ErrUnknownUnit, name)
}

func (r *Registry) resolve(name string) (Unit, bool) {
	if target, ok := r.aliases[name]; ok {
		u, err := r.parseExpr(target)
		if err != nil {
			return Unit{}, false
		}
		u.Name = name
		return u, true
	}
	if u, ok := r.units[name]; ok {
		return u, true
	}
	for p, f := range prefixes {
		if !strings.HasPrefix(name, p) || len(name) == len(p) {
			continue
		}
		base := name[len(p):]
		if !r.prefixable[base] {
			if target, ok := r.aliases[base]; !ok || !r.prefixable[target] {
				continue
			} else {
				base = target
			}
		}
		u := r.units[base]
		return Unit{Name: name, Dim: u.Dim, Scale: u.scale() * f}, true
	}
	return Unit{}, false
}
