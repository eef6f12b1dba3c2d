// Package growthxlsx reads vendor growth-run and substrate-inventory
// workbooks. Headers are normalized and deduplicated the way repeated
// column groups are addressed: the second "Bubbler Temp" column becomes
// "Bubbler Temp.1", the third "Bubbler Temp.2".
package growthxlsx

import (
	"bytes"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"elncore/internal/errs"
	"elncore/internal/formats"
	"elncore/pkg/units"
)

const component = "formats.growthxlsx"

// Known sheet names.
const (
	SheetDepositionControl = "Deposition Control"
	SheetPrecursors        = "Precursors"
	SheetSubstrate         = "Substrate"
	SheetElectroOptical    = "ElectroOptical"
	SheetOverview          = "Overview"
	SheetGrowthRun         = "GrowthRun"
)

// Workbook holds the sheets of a workbook in file order.
type Workbook struct {
	Sheets []*Sheet
}

// Sheet is a header row plus data rows. Empty trailing rows are dropped.
type Sheet struct {
	Name   string
	Header []string
	Rows   []Row
	index  map[string]int
}

// Row is one data row of a sheet. Index is 0-based among data rows.
type Row struct {
	Index int
	sheet *Sheet
	cells []string
}

// Decode reads an .xlsx workbook. The first non-empty row of every sheet is
// its header.
func Decode(data []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errs.WrapFatal(err, component, "decode")
	}
	defer f.Close()
	wb := &Workbook{}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, errs.WrapFatal(fmt.Errorf("sheet %q: %w", name, err), component, "decode")
		}
		wb.Sheets = append(wb.Sheets, NewSheet(name, rows))
	}
	if len(wb.Sheets) == 0 {
		return nil, errs.Fatalf(component, "decode", "workbook has no sheets")
	}
	return wb, nil
}

// NewSheet builds a sheet from raw rows.
func NewSheet(name string, rows [][]string) *Sheet {
	s := &Sheet{Name: name, index: map[string]int{}}
	start := 0
	for start < len(rows) && blank(rows[start]) {
		start++
	}
	if start == len(rows) {
		return s
	}
	s.Header = DedupHeader(rows[start])
	for i, h := range s.Header {
		if _, ok := s.index[h]; !ok && h != "" {
			s.index[h] = i
		}
	}
	body := rows[start+1:]
	for len(body) > 0 && blank(body[len(body)-1]) {
		body = body[:len(body)-1]
	}
	for i, cells := range body {
		s.Rows = append(s.Rows, Row{Index: i, sheet: s, cells: cells})
	}
	return s
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// DedupHeader normalizes header cells and suffixes repeats with ".1",
// ".2", ... in order of appearance.
func DedupHeader(raw []string) []string {
	out := make([]string, len(raw))
	seen := map[string]int{}
	for i, h := range raw {
		h = formats.NormalizeHeader(h)
		if h == "" {
			continue
		}
		n := seen[h]
		seen[h] = n + 1
		if n > 0 {
			out[i] = fmt.Sprintf("%s.%d", h, n)
			continue
		}
		out[i] = h
	}
	return out
}

// Sheet returns the sheet called name.
func (w *Workbook) Sheet(name string) (*Sheet, bool) {
	for _, s := range w.Sheets {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Has reports whether column exists.
func (s *Sheet) Has(column string) bool {
	_, ok := s.index[column]
	return ok
}

// Require returns a MissingRequiredColumn error naming the sheet and the
// first absent column.
func (s *Sheet) Require(columns ...string) error {
	for _, c := range columns {
		if !s.Has(c) {
			return errs.Errorf(errs.ErrMissingColumn, component, "require", "sheet %q has no column %q", s.Name, c)
		}
	}
	return nil
}

// Groups returns the number of complete repetitions of a column group:
// repetition 0 uses the bare names, repetition i the ".i" suffix. The
// first repetition missing any column ends the count.
func (s *Sheet) Groups(columns ...string) int {
	if len(columns) == 0 {
		return 0
	}
	for i := 0; ; i++ {
		for _, c := range columns {
			if !s.Has(GroupColumn(c, i)) {
				return i
			}
		}
	}
}

// GroupColumn returns the header of column in repetition i.
func GroupColumn(column string, i int) string {
	if i == 0 {
		return column
	}
	return fmt.Sprintf("%s.%d", column, i)
}

// Group is a set of rows sharing a key, in sheet order.
type Group struct {
	Key  string
	Rows []Row
}

// GroupBy partitions the rows by the value of column, keyed groups ordered
// by first appearance. Rows with an empty key are skipped.
func (s *Sheet) GroupBy(column string) []Group {
	var out []Group
	at := map[string]int{}
	for _, r := range s.Rows {
		k := r.Str(column)
		if k == "" {
			continue
		}
		i, ok := at[k]
		if !ok {
			i = len(out)
			at[k] = i
			out = append(out, Group{Key: k})
		}
		out[i].Rows = append(out[i].Rows, r)
	}
	return out
}

// Sheet returns the sheet of r.
func (r Row) Sheet() *Sheet { return r.sheet }

// Str returns the trimmed cell of column, "" when absent.
func (r Row) Str(column string) string {
	i, ok := r.sheet.index[column]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

// Float returns the numeric cell of column. Empty and NaN cells are absent.
func (r Row) Float(column string) (float64, bool) {
	v, err := formats.ParseFloat(r.Str(column))
	if err != nil || math.IsNaN(v) {
		return math.NaN(), false
	}
	return v, true
}

// Int returns the integer cell of column.
func (r Row) Int(column string) (int64, bool) {
	v, ok := r.Float(column)
	if !ok || v != math.Trunc(v) {
		return 0, false
	}
	return int64(v), true
}

// Bool returns a yes/no, true/false or 0/1 cell.
func (r Row) Bool(column string) (bool, bool) {
	s := r.Str(column)
	if b, ok := formats.Bool(s); ok {
		return b, true
	}
	switch s {
	case "1":
		return true, true
	case "0":
		return false, true
	}
	return false, false
}

// Quantity returns the numeric cell of column in unit.
func (r Row) Quantity(column, unit string) (units.Quantity, bool) {
	v, ok := r.Float(column)
	if !ok {
		return units.Quantity{}, false
	}
	return units.Q(v, unit), true
}

var seriesSplit = regexp.MustCompile(`[\s;]+`)

// CellSeries pairs two cells that each hold a list of numbers separated by
// whitespace or semicolons, dropping pairs with a non-numeric member.
func (r Row) CellSeries(x, y string) ([]float64, []float64) {
	xs := seriesSplit.Split(r.Str(x), -1)
	ys := seriesSplit.Split(r.Str(y), -1)
	n := min(len(xs), len(ys))
	var outX, outY []float64
	for i := 0; i < n; i++ {
		a, errA := strconv.ParseFloat(xs[i], 64)
		b, errB := strconv.ParseFloat(ys[i], 64)
		if errA != nil || errB != nil || math.IsNaN(a) || math.IsNaN(b) {
			continue
		}
		outX = append(outX, a)
		outY = append(outY, b)
	}
	return outX, outY
}

// Encode writes sheets to an .xlsx workbook, header first.
func Encode(sheets ...*Sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.Name); err != nil {
				return nil, fmt.Errorf("growthxlsx.encode: %w", err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return nil, fmt.Errorf("growthxlsx.encode: %w", err)
		}
		rows := append([][]string{s.Header}, make([][]string, 0, len(s.Rows))...)
		for _, r := range s.Rows {
			rows = append(rows, r.cells)
		}
		for j, row := range rows {
			cells := make([]any, len(row))
			for k, c := range row {
				cells[k] = c
			}
			cell, err := excelize.CoordinatesToCellName(1, j+1)
			if err != nil {
				return nil, fmt.Errorf("growthxlsx.encode: %w", err)
			}
			if err := f.SetSheetRow(s.Name, cell, &cells); err != nil {
				return nil, fmt.Errorf("growthxlsx.encode: %w", err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("growthxlsx.encode: %w", err)
	}
	return buf.Bytes(), nil
}
