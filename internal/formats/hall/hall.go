// Package hall decodes Lake Shore Hall measurement exports (.txt, ISO-8859-1).
//
// The file is line oriented: "[Section]" headers, "Step <n>: <Type>:"
// measurement headers, "key: value" or "key = value" settings, and
// tab-separated tables made of one header line and numeric rows, each table
// terminated by a blank line. The decoded tree holds one child per section
// and the list "measurements"; each measurement carries its settings plus
// "data" (column name to values) and "units" (column name to unit string).
package hall

import (
	"regexp"
	"strconv"
	"strings"

	"elncore/internal/errs"
	"elncore/internal/formats"
	"elncore/internal/record"
)

const component = "formats.hall"

var (
	sectionRe     = regexp.MustCompile(`^\s*\[([^\]]+)\]\s*$`)
	measurementRe = regexp.MustCompile(`^\s*Step\s+(\d+)\s*:\s*(.+?)\s*:?\s*$`)
	keyValueRe    = regexp.MustCompile(`^\s*([^:=\t]*[^:=\t\s])\s*[:=]\s*(.*?)\s*$`)
)

// EnumTables maps "section/key" (lower case) to the names addressed by the
// integer a file stores for that key. Measurement settings use the section
// "measurement".
var EnumTables = map[string][]string{
	"sample parameters/geometry":      {"Van der Pauw square", "Van der Pauw cross", "Van der Pauw arbitrary", "Hall bar 6-contact", "Hall bar 8-contact"},
	"sample parameters/material type": {"Semiconductor", "Metal", "Insulator"},
	"measurement/excitation type":     {"Current", "Voltage"},
	"measurement/contact selection":   {"Contacts 1-2", "Contacts 2-3", "Contacts 3-4", "Contacts 4-1"},
	"measurement/field profile":       {"Linear", "Bipolar", "List"},
}

// Measurement type names written after "Step <n>:".
const (
	TypeIVCurve             = "IV Curve Measurement"
	TypeVariableField       = "Variable Field Measurement"
	TypeVariableTemperature = "Variable Temperature Measurement"
)

type decoder struct {
	root     *record.Tree
	warn     formats.Warnings
	section  string
	meas     *record.Tree
	measLine int
	// columns is non-nil while a table is open.
	columns []string
	data    [][]float64
}

// Decode parses a Hall export. Malformed lines are returned as warnings; a
// measurement still open at end of file is fatal.
func Decode(data []byte) (*record.Tree, formats.Warnings, error) {
	d := &decoder{root: record.New()}
	for i, line := range formats.Lines(formats.Latin1(data)) {
		d.line(i+1, line)
	}
	d.closeTable()
	if d.meas != nil && !d.meas.Has("data") {
		return nil, d.warn, errs.AtLine(errs.Fatalf(component, "decode",
			"measurement %q not closed by a data block", d.meas.Str("measurement_type")), d.measLine)
	}
	if d.root.Len() == 0 {
		return nil, d.warn, errs.Fatalf(component, "decode", "no sections or measurements")
	}
	return d.root, d.warn, nil
}

func (d *decoder) line(n int, line string) {
	if strings.TrimSpace(line) == "" {
		d.closeTable()
		return
	}
	if d.columns != nil {
		d.row(n, line)
		return
	}
	if m := sectionRe.FindStringSubmatch(line); m != nil {
		d.endMeasurement(n)
		d.section = strings.TrimSpace(m[1])
		return
	}
	if m := measurementRe.FindStringSubmatch(line); m != nil && !strings.Contains(m[2], "\t") {
		d.endMeasurement(n)
		step, _ := strconv.Atoi(m[1])
		d.meas = record.New().Set("step", step).Set("measurement_type", m[2])
		if d.section != "" {
			d.meas.Set("section", d.section)
		}
		d.measLine = n
		d.root.Append("measurements", d.meas)
		return
	}
	if m := keyValueRe.FindStringSubmatch(line); m != nil {
		d.setting(n, m[1], m[2])
		return
	}
	if strings.Contains(line, "\t") {
		if d.meas == nil {
			d.warn.Grammar(component, n, "table outside a measurement: %q", line)
			return
		}
		d.header(line)
		return
	}
	d.warn.Grammar(component, n, "unrecognised line %q", line)
}

func (d *decoder) endMeasurement(n int) {
	if d.meas != nil && !d.meas.Has("data") {
		d.warn.Grammar(component, n, "measurement %q at line %d has no data block", d.meas.Str("measurement_type"), d.measLine)
	}
	d.meas = nil
}

func (d *decoder) setting(n int, key, raw string) {
	if strings.EqualFold(strings.TrimSpace(raw), "ERROR") {
		return
	}
	target, scope := d.root, strings.ToLower(d.section)
	if d.meas != nil {
		target, scope = d.meas, "measurement"
	} else if d.section != "" {
		target = d.root.Child(d.section)
	}
	if names, ok := EnumTables[scope+"/"+strings.ToLower(key)]; ok {
		if idx, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && idx >= 0 && idx < len(names) {
			target.Set(key, names[idx])
			return
		}
	}
	v, err := formats.Value(raw)
	d.warn.Add(errs.AtLine(err, n))
	target.Set(key, v)
}

func (d *decoder) header(line string) {
	cells := strings.Split(line, "\t")
	d.columns = make([]string, 0, len(cells))
	unitTree := record.New()
	for _, c := range cells {
		name, unit := formats.SplitHeader(c)
		if name == "" {
			continue
		}
		d.columns = append(d.columns, name)
		unitTree.Set(name, unit)
	}
	d.meas.Set("units", unitTree)
	d.data = make([][]float64, len(d.columns))
}

func (d *decoder) row(n int, line string) {
	cells := strings.Split(strings.TrimRight(line, "\t "), "\t")
	if len(cells) != len(d.columns) {
		d.warn.Grammar(component, n, "row has %d cells, header has %d", len(cells), len(d.columns))
		return
	}
	vals := make([]float64, len(cells))
	for i, c := range cells {
		v, err := formats.ParseFloat(c)
		if err != nil {
			d.warn.Grammar(component, n, "cell %q is not numeric", c)
			return
		}
		vals[i] = v
	}
	for i, v := range vals {
		d.data[i] = append(d.data[i], v)
	}
}

func (d *decoder) closeTable() {
	if d.columns == nil {
		return
	}
	t := record.New()
	for i, c := range d.columns {
		t.Set(c, append([]float64{}, d.data[i]...))
	}
	d.meas.Set("data", t)
	d.columns, d.data = nil, nil
}
