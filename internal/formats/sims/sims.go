// Package sims decodes RTG SIMS depth-profile exports (dp_ascii).
package sims

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"elncore/internal/errs"
	"elncore/internal/formats"
	"elncore/internal/record"
)

const component = "formats.sims"

// Profile kinds, selected by the intensity unit of an element block.
const (
	Qualitative  = "qualitative"
	Quantitative = "quantitative"
)

var (
	scalarRe  = regexp.MustCompile(`(?i)^\s*(DEPTH PROFILE|Date|Matrix|Sample name)\s*:\s*(.*?)\s*$`)
	elementRe = regexp.MustCompile(`^\s*ELEMENT\s+(\S+)`)
	pointsRe  = regexp.MustCompile(`(?i)^\s*points\s+(\d+)`)
	depthRe   = regexp.MustCompile(`(?i)depth\s*\[([^\]]+)\]`)
	exponent  = regexp.MustCompile(`[eE][+-]\d`)
)

var scalarKeys = map[string]string{
	"depth profile": "depth_profile",
	"date":          "date",
	"matrix":        "matrix",
	"sample name":   "sample_name",
}

type block struct {
	element string
	line    int
	want    int
	kind    string
	unit    string
	depthU  string
	depth   []float64
	values  []float64
}

// Decode parses a dp_ascii file into the scalar header fields and
// "profiles": one tree per ELEMENT block with "name", "element", "kind",
// "depth", "values", "depth_unit" and "value_unit". Elements occurring more
// than once are named with a 1-based suffix (Zn1, Zn2).
func Decode(data []byte) (*record.Tree, formats.Warnings, error) {
	var warn formats.Warnings
	tree := record.New()
	var blocks []*block
	var cur *block

	closeBlock := func() {
		if cur == nil {
			return
		}
		if cur.want > 0 && len(cur.depth) != cur.want {
			warn.Grammar(component, cur.line, "element %s: %d points, header announces %d", cur.element, len(cur.depth), cur.want)
		}
		if cur.kind == "" {
			warn.Grammar(component, cur.line, "element %s: no [c/s] or [Atom/cm3] selector, assuming qualitative", cur.element)
			cur.kind, cur.unit = Qualitative, "cps"
		}
		blocks = append(blocks, cur)
		cur = nil
	}

	for i, line := range formats.Lines(formats.UTF8OrLatin1(data)) {
		n := i + 1
		if strings.TrimSpace(line) == "" {
			continue
		}
		if m := elementRe.FindStringSubmatch(line); m != nil {
			closeBlock()
			cur = &block{element: m[1], line: n, depthU: "um"}
			continue
		}
		if m := scalarRe.FindStringSubmatch(line); m != nil && cur == nil {
			tree.Set(scalarKeys[strings.ToLower(m[1])], m[2])
			continue
		}
		if cur == nil {
			continue
		}
		if m := pointsRe.FindStringSubmatch(line); m != nil {
			cur.want, _ = strconv.Atoi(m[1])
			continue
		}
		if m := depthRe.FindStringSubmatch(line); m != nil {
			cur.depthU = strings.TrimSpace(m[1])
		}
		switch {
		case strings.Contains(line, "[c/s]"):
			cur.kind, cur.unit = Qualitative, "cps"
			continue
		case strings.Contains(strings.ToLower(line), "[atom/cm3]"):
			cur.kind, cur.unit = Quantitative, "atom/cm^3"
			continue
		}
		if !exponent.MatchString(line) {
			continue
		}
		f := strings.Fields(line)
		if len(f) < 2 {
			warn.Grammar(component, n, "data line %q has %d fields", strings.TrimSpace(line), len(f))
			continue
		}
		d, errD := formats.ParseFloat(f[0])
		v, errV := formats.ParseFloat(f[1])
		if errD != nil || errV != nil {
			warn.Grammar(component, n, "data line %q is not numeric", strings.TrimSpace(line))
			continue
		}
		cur.depth = append(cur.depth, d)
		cur.values = append(cur.values, v)
		if cur.want > 0 && len(cur.depth) == cur.want {
			closeBlock()
		}
	}
	closeBlock()
	if len(blocks) == 0 {
		return nil, warn, errs.Fatalf(component, "decode", "no ELEMENT blocks")
	}

	elements := make([]string, len(blocks))
	for i, b := range blocks {
		elements[i] = b.element
	}
	names := SuffixNames(elements)
	for i, b := range blocks {
		tree.Append("profiles", record.New().
			Set("name", names[i]).
			Set("element", b.element).
			Set("kind", b.kind).
			Set("depth", b.depth).
			Set("values", b.values).
			Set("depth_unit", b.depthU).
			Set("value_unit", b.unit))
	}
	return tree, warn, nil
}

// SuffixNames names profiles by element. Repeated elements get a 1-based
// suffix in order of appearance.
func SuffixNames(elements []string) []string {
	count := map[string]int{}
	for _, e := range elements {
		count[e]++
	}
	seen := map[string]int{}
	out := make([]string, len(elements))
	for i, e := range elements {
		if count[e] == 1 {
			out[i] = e
			continue
		}
		seen[e]++
		out[i] = fmt.Sprintf("%s%d", e, seen[e])
	}
	return out
}
