// Package laytec decodes LayTec EpiTT in-situ monitoring files (.dat).
//
// A header of "##KEY=VALUE" lines and "!" comments ends at the first blank
// line; the body is a tab-separated table whose first row names the
// columns. ##YUNITS lists the column units, tab-separated.
package laytec

import (
	"math"
	"strings"
	"time"

	"elncore/internal/errs"
	"elncore/internal/formats"
	"elncore/internal/record"
)

const component = "formats.laytec"

// TimeLayout is the layout of the ##TIME header.
const TimeLayout = "2006-01-02-15-04-05"

// Known header keys.
const (
	KeyRunID       = "RUN_ID"
	KeyRunType     = "RUNTYPE_NAME"
	KeyModule      = "MODULE_NAME"
	KeyWaferLabel  = "WAFER_LABEL"
	KeyWaferZone   = "WAFER_ZONE"
	KeyTime        = "TIME"
	KeyYUnits      = "YUNITS"
	KeyYNames      = "YNAMES"
	KeyReflecWL    = "REFLEC_WAVELENGTH"
	KeyPyroWL      = "PYRO_WAVELENGTH"
	KeyWhiteWL     = "WHITE_WAVELENGTH"
	ColumnTime     = "BEGIN"
	ColumnPyroTemp = "PyroTemp"
)

// WavelengthColumns maps a wavelength header key to the data column
// recorded at that wavelength, in output order.
var WavelengthColumns = []struct{ Key, Column string }{
	{KeyReflecWL, "DetReflec"},
	{KeyPyroWL, "RLo"},
	{KeyWhiteWL, "DetWhite"},
}

// Decode parses a LayTec file into a tree with "header" (key to raw
// string), "comments", "data" (column to values) and "units".
func Decode(data []byte) (*record.Tree, formats.Warnings, error) {
	var warn formats.Warnings
	lines := formats.Lines(formats.UTF8OrLatin1(data))
	header := record.New()
	var comments []string
	i := 0
headerLoop:
	for ; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			break
		}
		switch {
		case strings.HasPrefix(trimmed, "##"):
			key, val, ok := strings.Cut(strings.TrimPrefix(line, "##"), "=")
			if !ok {
				warn.Grammar(component, i+1, "header line without '=': %q", line)
				continue
			}
			header.Set(strings.TrimSpace(key), strings.Trim(val, " \r"))
		case strings.HasPrefix(trimmed, "!"):
			comments = append(comments, strings.TrimSpace(strings.TrimPrefix(trimmed, "!")))
		default:
			// Header without blank terminator: the body starts here.
			break headerLoop
		}
	}
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	var columns []string
	if i < len(lines) && !formats.IsNumeric(firstCell(lines[i])) {
		columns = splitCells(lines[i])
		i++
	} else if names := header.Str(KeyYNames); names != "" {
		columns = splitCells(names)
	}
	if len(columns) == 0 {
		return nil, warn, errs.Fatalf(component, "decode", "no column names")
	}
	cols := make([][]float64, len(columns))
	for ; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		cells := splitCells(lines[i])
		if len(cells) > len(columns) {
			warn.Grammar(component, i+1, "row has %d cells, header has %d", len(cells), len(columns))
			continue
		}
		for c := range columns {
			v := math.NaN()
			if c < len(cells) {
				f, err := formats.ParseFloat(cells[c])
				if err != nil {
					warn.Grammar(component, i+1, "cell %q is not numeric", cells[c])
				} else {
					v = f
				}
			}
			cols[c] = append(cols[c], v)
		}
	}

	tree := record.New().Set("header", header)
	if len(comments) > 0 {
		tree.Set("comments", comments)
	}
	dataTree, unitTree := record.New(), record.New()
	unitCells := splitCells(header.Str(KeyYUnits))
	for c, name := range columns {
		if cols[c] == nil {
			cols[c] = []float64{}
		}
		dataTree.Set(name, cols[c])
		if c < len(unitCells) {
			unitTree.Set(name, unitCells[c])
		}
	}
	tree.Set("data", dataTree).Set("units", unitTree)
	return tree, warn, nil
}

func splitCells(line string) []string {
	cells := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	out := cells[:0]
	for _, c := range cells {
		out = append(out, strings.TrimSpace(c))
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func firstCell(line string) string {
	if cells := splitCells(line); len(cells) > 0 {
		return cells[0]
	}
	return ""
}

// Time parses the ##TIME header.
func Time(tree *record.Tree) (time.Time, bool) {
	h := tree.Tree("header")
	if h == nil || h.Str(KeyTime) == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(TimeLayout, h.Str(KeyTime))
	return t, err == nil
}

// Transient is the reflectance trace recorded at one wavelength.
type Transient struct {
	Key    string
	Column string
	// Wavelength is the rounded header value, in nm.
	Wavelength float64
	// RawIntensity is the column divided by its first sample.
	RawIntensity []float64
}

// Transients returns one trace per wavelength header whose column exists.
func Transients(tree *record.Tree) []Transient {
	h, data := tree.Tree("header"), tree.Tree("data")
	if h == nil || data == nil {
		return nil
	}
	var out []Transient
	for _, wc := range WavelengthColumns {
		raw := h.Str(wc.Key)
		if raw == "" || !data.Has(wc.Column) {
			continue
		}
		wl, err := formats.ParseFloat(raw)
		if err != nil || math.IsNaN(wl) {
			continue
		}
		out = append(out, Transient{
			Key:          wc.Key,
			Column:       wc.Column,
			Wavelength:   math.Round(wl),
			RawIntensity: NormalizeToFirst(data.Floats(wc.Column)),
		})
	}
	return out
}

// NormalizeToFirst divides every sample by the first one.
func NormalizeToFirst(col []float64) []float64 {
	out := make([]float64, len(col))
	if len(col) == 0 {
		return out
	}
	first := col[0]
	for i, v := range col {
		out[i] = v / first
	}
	return out
}
