// Package formats holds helpers shared by the vendor file decoders: text
// decoding, line splitting, column header parsing and the collection of
// non-fatal decode problems.
package formats

import (
	"bytes"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"elncore/internal/errs"
	"elncore/pkg/units"
)

// Warnings collects non-fatal problems found while decoding.
type Warnings []error

// Add appends err when it is non-nil.
func (w *Warnings) Add(err error) {
	if err != nil {
		*w = append(*w, err)
	}
}

// Grammar records a FileGrammarViolation at line.
func (w *Warnings) Grammar(component string, line int, format string, args ...any) {
	w.Add(errs.AtLine(errs.Warnf(errs.ErrFileGrammar, component, "decode", format, args...), line))
}

// Latin1 decodes ISO-8859-1 bytes to a string.
func Latin1(data []byte) string {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(out)
}

// UTF8OrLatin1 returns data as text, falling back to ISO-8859-1 when it is
// not valid UTF-8.
func UTF8OrLatin1(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	return Latin1(data)
}

// Lines splits text on LF, dropping CR line endings.
func Lines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

var (
	bracketUnitRe = regexp.MustCompile(`^(.*?)\s*\[(.*)\]\s*$`)
	parenUnitRe   = regexp.MustCompile(`^(.*?)\s*\(([^()]*(?:\([^()]*\)[^()]*)*)\)\s*$`)
)

// SplitHeader splits a column header such as "Field [T]" or
// "Temperature (K)" into its name and unit. Headers without unit return an
// empty unit.
func SplitHeader(h string) (name, unit string) {
	h = strings.TrimSpace(h)
	for _, re := range []*regexp.Regexp{bracketUnitRe, parenUnitRe} {
		if m := re.FindStringSubmatch(h); m != nil && m[1] != "" {
			return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		}
	}
	return h, ""
}

var thousandsRe = regexp.MustCompile(`^[+-]?[1-9]\d{0,2}(,\d{3})+(\.\d*)?$`)

// ParseFloat parses a number, accepting a decimal comma. Commas grouping
// digits by three after a nonzero lead ("1,000", "12,345.5") are thousands
// separators. Empty cells and textual NaN yield NaN without error.
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err == nil {
		return v, nil
	}
	if thousandsRe.MatchString(s) {
		return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	}
	return v, err
}

// IsNumeric reports whether s parses as a number.
func IsNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := ParseFloat(s)
	return err == nil
}

var unitTailRe = regexp.MustCompile(`^\s*(\[.*\]|[A-Za-zµμΩ°%/1][^\s]*(\s+[A-Za-zµμΩ°%/^][^\s]*)*)?\s*$`)

// Value interprets a textual value: booleans collapse to bool, "value
// [unit]" strings become a units.Quantity (a bare number a float64) and
// everything else stays a string. An unregistered unit keeps the raw string
// and returns an UnknownUnit warning.
func Value(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	if b, ok := Bool(s); ok {
		return b, nil
	}
	num := leadingNumber(s)
	if num == "" || !unitTailRe.MatchString(s[len(num):]) {
		return s, nil
	}
	q, err := units.ParseValueUnit(s)
	if err != nil {
		if errors.Is(err, units.ErrUnknownUnit) {
			return s, errs.Warnf(errs.ErrUnknownUnit, "formats", "value", "%q: %v", s, err)
		}
		return s, nil
	}
	if q.Unit.Dimensionless() && q.Unit.Name == units.One.Name {
		return q.Magnitude, nil
	}
	return q, nil
}

var leadingNumberRe = regexp.MustCompile(`^[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`)

func leadingNumber(s string) string { return leadingNumberRe.FindString(s) }

// Bool recognises yes/no, on/off and true/false, case-insensitively.
func Bool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "on", "true":
		return true, true
	case "no", "off", "false":
		return false, true
	}
	return false, false
}

// NormalizeHeader strips a header and collapses internal whitespace runs.
func NormalizeHeader(h string) string {
	return strings.Join(strings.Fields(h), " ")
}
