package normalize

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"elncore/pkg/domain"
	"elncore/pkg/pluginapi"
)

// ErrFormula is returned for names that are not chemical formulas.
var ErrFormula = errors.New("not a chemical formula")

// Count is the amount of one element in a formula unit.
type Count struct {
	Element string
	N       float64
}

// Fraction is the share of one element in a composition.
type Fraction struct {
	Element string
	Atomic  float64
	Mass    float64
}

// Impurity substitutes a share of the sites of another element.
type Impurity struct {
	Element string
	// Substitutes is the host element whose sites are taken.
	Substitutes string
	// Concentration is the share of Substitutes sites, in percent.
	Concentration float64
}

type formulaParser struct {
	s   string
	pos int
}

// ParseFormula tokenizes a formula such as "Bi2Se3" or "Li(Pr0.01Y0.99)F4"
// into element counts in order of first appearance. Parenthesized groups
// multiply their contents.
func ParseFormula(formula string) ([]Count, error) {
	formula = strings.TrimSpace(formula)
	if formula == "" {
		return nil, fmt.Errorf("%w: empty", ErrFormula)
	}
	p := &formulaParser{s: formula}
	counts, err := p.group()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.s) {
		return nil, fmt.Errorf("%w: %q: unexpected %q at %d", ErrFormula, formula, p.s[p.pos], p.pos)
	}
	return counts, nil
}

func (p *formulaParser) group() ([]Count, error) {
	var out []Count
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		switch {
		case c == '(':
			p.pos++
			inner, err := p.group()
			if err != nil {
				return nil, err
			}
			if p.pos >= len(p.s) || p.s[p.pos] != ')' {
				return nil, fmt.Errorf("%w: %q: unclosed group", ErrFormula, p.s)
			}
			p.pos++
			n := p.number()
			for _, e := range inner {
				out = addCount(out, e.Element, e.N*n)
			}
		case c == ')':
			return out, nil
		case c >= 'A' && c <= 'Z':
			el := string(c)
			p.pos++
			if p.pos < len(p.s) && p.s[p.pos] >= 'a' && p.s[p.pos] <= 'z' {
				el += string(p.s[p.pos])
				p.pos++
			}
			if _, ok := atomicWeights[el]; !ok {
				return nil, fmt.Errorf("%w: %q: unknown element %s", ErrFormula, p.s, el)
			}
			out = addCount(out, el, p.number())
		default:
			return nil, fmt.Errorf("%w: %q: unexpected %q", ErrFormula, p.s, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q: empty group", ErrFormula, p.s)
	}
	return out, nil
}

var numberRe = regexp.MustCompile(`^\d*\.?\d+|^\d+`)

func (p *formulaParser) number() float64 {
	m := numberRe.FindString(p.s[p.pos:])
	if m == "" {
		return 1
	}
	p.pos += len(m)
	v, _ := strconv.ParseFloat(m, 64)
	return v
}

func addCount(out []Count, el string, n float64) []Count {
	for i := range out {
		if out[i].Element == el {
			out[i].N += n
			return out
		}
	}
	return append(out, Count{Element: el, N: n})
}

// AtomicFractions turns counts into atomic and mass fractions.
func AtomicFractions(counts []Count) []Fraction {
	var total float64
	for _, c := range counts {
		total += c.N
	}
	out := make([]Fraction, len(counts))
	for i, c := range counts {
		out[i] = Fraction{Element: c.Element, Atomic: c.N / total}
	}
	MassFractions(out)
	return out
}

// MassFractions recomputes the mass fractions from the atomic fractions.
func MassFractions(fr []Fraction) {
	var total float64
	for _, f := range fr {
		w, _ := AtomicWeight(f.Element)
		total += f.Atomic * w
	}
	for i, f := range fr {
		w, _ := AtomicWeight(f.Element)
		if total == 0 {
			fr[i].Mass = math.NaN()
			continue
		}
		fr[i].Mass = f.Atomic * w / total
	}
}

// Rebalance moves each impurity's share of its substituted element to the
// impurity, renormalizes the atomic fractions to sum to 1 and recomputes
// mass fractions.
func Rebalance(fr []Fraction, imps []Impurity) ([]Fraction, error) {
	out := append([]Fraction(nil), fr...)
	for _, imp := range imps {
		if imp.Concentration < 0 || imp.Concentration > 100 {
			return nil, fmt.Errorf("normalize.rebalance: %s concentration %g%% outside [0, 100]", imp.Element, imp.Concentration)
		}
		if _, ok := AtomicWeight(imp.Element); !ok {
			return nil, fmt.Errorf("normalize.rebalance: unknown element %q", imp.Element)
		}
		host := -1
		for i, f := range out {
			if f.Element == imp.Substitutes {
				host = i
				break
			}
		}
		if host < 0 {
			return nil, fmt.Errorf("normalize.rebalance: %s substitutes %s, which the host lacks", imp.Element, imp.Substitutes)
		}
		moved := imp.Concentration / 100 * out[host].Atomic
		out[host].Atomic -= moved
		found := false
		for i := range out {
			if out[i].Element == imp.Element {
				out[i].Atomic += moved
				found = true
				break
			}
		}
		if !found {
			out = append(out, Fraction{Element: imp.Element, Atomic: moved})
		}
	}
	var sum float64
	for _, f := range out {
		sum += f.Atomic
	}
	if sum > 0 {
		for i := range out {
			out[i].Atomic /= sum
		}
	}
	MassFractions(out)
	return out, nil
}

var hostTokenRe = regexp.MustCompile(`([A-Z][a-z]?)(\d*\.?\d*)`)

// SynthesizeFormula writes the formula of host with impurities on their
// substituted sites: LiYF4 with 1% Pr on Y is Li(Pr0.01Y0.99)F4.
func SynthesizeFormula(host string, imps []Impurity) (string, error) {
	host = strings.TrimSpace(host)
	tokens := hostTokenRe.FindAllStringSubmatchIndex(host, -1)
	covered := 0
	for _, t := range tokens {
		covered += t[1] - t[0]
	}
	if len(tokens) == 0 || covered != len(host) {
		return "", fmt.Errorf("%w: host %q", ErrFormula, host)
	}
	bySite := map[string][]Impurity{}
	for _, imp := range imps {
		bySite[imp.Substitutes] = append(bySite[imp.Substitutes], imp)
	}
	var b strings.Builder
	for _, t := range tokens {
		el, count := host[t[2]:t[3]], host[t[4]:t[5]]
		subs, ok := bySite[el]
		if !ok {
			b.WriteString(el + count)
			continue
		}
		rest := 1.0
		b.WriteByte('(')
		for _, imp := range subs {
			share := imp.Concentration / 100
			rest -= share
			b.WriteString(imp.Element + formatShare(share))
		}
		b.WriteString(el + formatShare(rest) + ")" + count)
		delete(bySite, el)
	}
	for site := range bySite {
		return "", fmt.Errorf("normalize.formula: host %q has no %s sites", host, site)
	}
	return b.String(), nil
}

func formatShare(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e6)/1e6, 'f', -1, 64)
}

// SetComposition replaces the elemental_composition of sec.
func SetComposition(sec *domain.Section, fr []Fraction) error {
	sec.ClearSub("elemental_composition")
	for _, f := range fr {
		c, err := sec.NewSub("elemental_composition")
		if err != nil {
			return err
		}
		if err := c.Set("element", f.Element); err != nil {
			return err
		}
		if err := c.Set("atomic_fraction", f.Atomic); err != nil {
			return err
		}
		if !math.IsNaN(f.Mass) {
			if err := c.Set("mass_fraction", f.Mass); err != nil {
				return err
			}
		}
	}
	return nil
}

// InferComposition fills the elemental composition of a composite system
// whose chemical_formula or name is a formula. Names that do not parse are
// left alone.
func InferComposition(_ context.Context, _ pluginapi.Context, sec *domain.Section) error {
	if len(sec.Sub("elemental_composition")) > 0 {
		return nil
	}
	formula := sec.Str("chemical_formula")
	if formula == "" {
		formula = sec.Str("name")
	}
	counts, err := ParseFormula(formula)
	if err != nil {
		return nil
	}
	if !sec.Has("chemical_formula") {
		if err := sec.Set("chemical_formula", formula); err != nil {
			return err
		}
	}
	return SetComposition(sec, AtomicFractions(counts))
}

// MixedCrystalComposition derives the composition and the chemical formula
// of a mixed crystal from its host formula and impurities.
func MixedCrystalComposition(_ context.Context, _ pluginapi.Context, sec *domain.Section) error {
	host := sec.Str("host_formula")
	if host == "" {
		return nil
	}
	counts, err := ParseFormula(host)
	if err != nil {
		return fmt.Errorf("normalize.mixed_crystal: %w", err)
	}
	var imps []Impurity
	for _, s := range sec.Sub("impurities") {
		c, _ := s.Float("concentration")
		imps = append(imps, Impurity{Element: s.Str("element"), Substitutes: s.Str("substitution_element"), Concentration: c})
	}
	fr, err := Rebalance(AtomicFractions(counts), imps)
	if err != nil {
		return err
	}
	if err := SetComposition(sec, fr); err != nil {
		return err
	}
	formula := host
	if len(imps) > 0 {
		if formula, err = SynthesizeFormula(host, imps); err != nil {
			return err
		}
	}
	return sec.Set("chemical_formula", formula)
}
