// Package ppms decodes Quantum Design PPMS measurement pairs: the .dat data
// file and the .seq sequence file that produced it.
package ppms

import (
	"encoding/csv"
	"errors"
	"io"
	"regexp"
	"strings"

	"elncore/internal/errs"
	"elncore/internal/formats"
	"elncore/internal/record"
)

const component = "formats.ppms"

var channelRe = regexp.MustCompile(`^(Ch\d+|ETO Channel \d+)\s+(.*)$`)

// DecodeData parses a .dat file. The tree holds "header" (first value of
// every header key), "header_lines" (every line as key plus values),
// "columns" (raw column names), "shared" and "shared_units" (columns not
// bound to a channel, by cleaned name) and "channels" (one tree per channel
// prefix with "name", "data" and "units").
func DecodeData(data []byte) (*record.Tree, formats.Warnings, error) {
	var warn formats.Warnings
	text := formats.UTF8OrLatin1(data)
	lines := formats.Lines(text)

	headerAt, dataAt := -1, -1
	for i, l := range lines {
		switch strings.TrimSpace(l) {
		case "[Header]":
			headerAt = i
		case "[Data]":
			dataAt = i
		}
		if dataAt >= 0 {
			break
		}
	}
	if dataAt < 0 {
		return nil, warn, errs.Fatalf(component, "decode", "no [Data] section")
	}

	tree := record.New()
	header := record.New()
	if headerAt >= 0 {
		for i := headerAt + 1; i < dataAt; i++ {
			l := strings.TrimSpace(lines[i])
			if l == "" || strings.HasPrefix(l, ";") {
				continue
			}
			fields := strings.Split(l, ",")
			key := strings.TrimSpace(fields[0])
			vals := make([]string, 0, len(fields)-1)
			for _, f := range fields[1:] {
				vals = append(vals, strings.TrimSpace(f))
			}
			tree.Append("header_lines", record.New().Set("key", key).Set("values", vals))
			if !header.Has(key) {
				header.Set(key, strings.Join(vals, ","))
			}
		}
	}
	tree.Set("header", header)

	r := csv.NewReader(strings.NewReader(strings.Join(lines[dataAt+1:], "\n")))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	names, err := r.Read()
	if err != nil {
		return nil, warn, errs.WrapFatal(err, component, "decode")
	}
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}
	tree.Set("columns", append([]string(nil), names...))
	cols := make([][]string, len(names))
	row := dataAt + 2
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			warn.Grammar(component, row, "unreadable row: %v", err)
			continue
		}
		if len(rec) > len(names) {
			warn.Grammar(component, row, "row has %d cells, header has %d", len(rec), len(names))
			continue
		}
		for c := range names {
			cell := ""
			if c < len(rec) {
				cell = rec[c]
			}
			cols[c] = append(cols[c], cell)
		}
	}

	shared, sharedUnits := record.New(), record.New()
	channels := map[string]*record.Tree{}
	var order []string
	for c, raw := range names {
		if raw == "" {
			continue
		}
		values, numeric := floats(cols[c])
		if !numeric {
			continue
		}
		target, units := shared, sharedUnits
		colName := raw
		if m := channelRe.FindStringSubmatch(raw); m != nil {
			ch, ok := channels[m[1]]
			if !ok {
				ch = record.New().Set("name", m[1]).Set("data", record.New()).Set("units", record.New())
				channels[m[1]] = ch
				order = append(order, m[1])
			}
			target, units, colName = ch.Tree("data"), ch.Tree("units"), m[2]
		}
		name, unit := formats.SplitHeader(colName)
		key := CleanName(name)
		if key == "" || key == "comment" {
			continue
		}
		target.Set(key, values)
		units.Set(key, CleanUnit(unit))
	}
	tree.Set("shared", shared).Set("shared_units", sharedUnits)
	for _, name := range order {
		tree.Append("channels", channels[name])
	}
	return tree, warn, nil
}

func floats(cells []string) ([]float64, bool) {
	out := make([]float64, len(cells))
	for i, c := range cells {
		v, err := formats.ParseFloat(c)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

var numberWords = map[string]string{
	"1st": "first", "2nd": "second", "3rd": "third", "4th": "fourth", "5th": "fifth",
	"0": "zero", "1": "one", "2": "two", "3": "three", "4": "four",
	"5": "five", "6": "six", "7": "seven", "8": "eight", "9": "nine",
}

var nonWordRe = regexp.MustCompile(`[^a-z0-9]+`)

// CleanName turns a column name into a field name: units in parentheses
// are dropped, "Std. Dev." becomes std_dev, the result is lower snake case
// and a leading number is spelled out.
func CleanName(name string) string {
	if i := strings.Index(name, "("); i >= 0 {
		name = name[:i]
	}
	name = strings.ReplaceAll(name, "Std. Dev.", "std_dev")
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.Trim(nonWordRe.ReplaceAllString(name, "_"), "_")
	if name == "" || name[0] < '0' || name[0] > '9' {
		return name
	}
	head, rest, _ := strings.Cut(name, "_")
	if w, ok := numberWords[head]; ok {
		if rest == "" {
			return w
		}
		return w + "_" + rest
	}
	return "n" + name
}

var oerstedRe = regexp.MustCompile(`\bOe\b`)

// CleanUnit rewrites vendor unit spellings such as "Ohm-cm" to registry
// expressions. Oersted becomes gauss: PPMS fields are applied in vacuum,
// where 1 Oe corresponds to 1 G.
func CleanUnit(u string) string {
	u = strings.TrimSpace(u)
	if strings.Contains(u, "-") && !strings.Contains(u, "^-") {
		u = strings.ReplaceAll(u, "-", "*")
	}
	return oerstedRe.ReplaceAllString(u, "G")
}
