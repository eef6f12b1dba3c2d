// Package uvvis decodes PerkinElmer Lambda UV-Vis-NIR ASCII exports (.asc).
package uvvis

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"elncore/internal/errs"
	"elncore/internal/formats"
	"elncore/internal/record"
	"elncore/pkg/units"
)

const component = "formats.uvvis"

// DataSentinel separates the metadata block from the spectrum.
const DataSentinel = "#DATA"

// Metadata line indices (0-based) of the fixed header layout.
const (
	LineSampleName       = 2
	LineDate             = 3
	LineTime             = 4
	LineSlitWidth        = 17
	LineIntegrationTime  = 32
	LineNIRGain          = 35
	LineMonochromatorChg = 41
	LineLampChg          = 42
	LineDetectorChg      = 43
	LineAttenuation      = 47
	LineWavelengthUnit   = 79
	LineOrdinateType     = 80
)

// Ordinate types of the spectrum column.
const (
	OrdinateTransmittance = "%T"
	OrdinateAbsorbance    = "A"
)

const timestampLayout = "06/01/02 15:04:05.00"

var attenuationRe = regexp.MustCompile(`S:\s*(\d+)\s+R:\s*(\d+)`)

// Decode parses an .asc file. The tree carries "sample_name", "datetime"
// (when date and time parse), "settings" and "data" with the "wavelength"
// and "ordinate" columns.
func Decode(data []byte) (*record.Tree, formats.Warnings, error) {
	var warn formats.Warnings
	lines := formats.Lines(formats.UTF8OrLatin1(data))
	sentinel := -1
	for i, l := range lines {
		if strings.TrimSpace(l) == DataSentinel {
			sentinel = i
			break
		}
	}
	if sentinel < 0 {
		return nil, warn, errs.Fatalf(component, "decode", "no %s sentinel", DataSentinel)
	}
	meta := lines[:sentinel]
	at := func(i int) (string, bool) {
		if i >= len(meta) {
			warn.Grammar(component, i+1, "metadata block ends at line %d", len(meta))
			return "", false
		}
		return strings.TrimSpace(meta[i]), true
	}

	tree := record.New()
	if v, ok := at(LineSampleName); ok {
		tree.Set("sample_name", v)
	}
	d, okD := at(LineDate)
	tm, okT := at(LineTime)
	if okD && okT {
		if ts, err := time.Parse(timestampLayout, d+" "+tm); err == nil {
			tree.Set("datetime", ts.Format(time.RFC3339))
		} else {
			warn.Grammar(component, LineDate+1, "timestamp %q %q: %v", d, tm, err)
		}
	}

	settings := record.New()
	ranges := []struct {
		line int
		key  string
		unit string
	}{
		{LineSlitWidth, "monochromator_slit_width", "nm"},
		{LineIntegrationTime, "detector_integration_time", "s"},
		{LineNIRGain, "detector_nir_gain", ""},
	}
	for _, r := range ranges {
		raw, ok := at(r.line)
		if !ok {
			continue
		}
		list, err := Ranges(raw, r.unit)
		if err != nil {
			warn.Add(errs.AtLine(err, r.line+1))
		}
		settings.Set(r.key, list)
	}
	changes := []struct {
		line int
		key  string
	}{
		{LineMonochromatorChg, "monochromator_change_point"},
		{LineLampChg, "lamp_change_point"},
		{LineDetectorChg, "detector_change_point"},
	}
	for _, c := range changes {
		raw, ok := at(c.line)
		if !ok {
			continue
		}
		var points []float64
		for _, f := range strings.Fields(raw) {
			v, err := formats.ParseFloat(f)
			if err != nil {
				warn.Grammar(component, c.line+1, "change point %q is not numeric", f)
				continue
			}
			points = append(points, v)
		}
		settings.Set(c.key, points)
	}
	if raw, ok := at(LineAttenuation); ok {
		if m := attenuationRe.FindStringSubmatch(raw); m != nil {
			s, _ := strconv.ParseInt(m[1], 10, 64)
			r, _ := strconv.ParseInt(m[2], 10, 64)
			settings.Set("attenuator", record.New().Set("sample", s).Set("reference", r))
		} else {
			warn.Grammar(component, LineAttenuation+1, "attenuation %q", raw)
		}
	}
	if v, ok := at(LineWavelengthUnit); ok {
		settings.Set("wavelength_unit", v)
	}
	if v, ok := at(LineOrdinateType); ok {
		settings.Set("ordinate_type", v)
	}
	tree.Set("settings", settings)

	var wl, ord []float64
	for i := sentinel + 1; i < len(lines); i++ {
		l := strings.TrimSpace(lines[i])
		if l == "" {
			continue
		}
		f := strings.Fields(l)
		if len(f) != 2 {
			warn.Grammar(component, i+1, "spectrum row has %d fields", len(f))
			continue
		}
		x, errX := formats.ParseFloat(f[0])
		y, errY := formats.ParseFloat(f[1])
		if errX != nil || errY != nil {
			warn.Grammar(component, i+1, "spectrum row %q is not numeric", l)
			continue
		}
		wl = append(wl, x)
		ord = append(ord, y)
	}
	if len(wl) == 0 {
		return nil, warn, errs.Fatalf(component, "decode", "empty spectrum")
	}
	tree.Set("data", record.New().Set("wavelength", wl).Set("ordinate", ord))
	return tree, warn, nil
}

// Ranges decodes a piecewise-constant setting line such as
// "3350/servo 860.8/2". Token i holds from its wavelength down to the
// wavelength of token i+1: the interval (next, this]. The last interval has
// no lower bound. Numeric values carry unit; others land in value_string.
func Ranges(line, unit string) ([]*record.Tree, error) {
	tokens := strings.Fields(line)
	out := make([]*record.Tree, 0, len(tokens))
	var bad []string
	type point struct {
		wl  float64
		val string
	}
	var pts []point
	for _, tok := range tokens {
		w, v, ok := strings.Cut(tok, "/")
		if !ok {
			bad = append(bad, tok)
			continue
		}
		wl, err := formats.ParseFloat(w)
		if err != nil {
			bad = append(bad, tok)
			continue
		}
		pts = append(pts, point{wl, v})
	}
	for i, p := range pts {
		t := record.New().Set("wavelength_upper", units.Q(p.wl, "nm"))
		if i+1 < len(pts) {
			t.Set("wavelength_lower", units.Q(pts[i+1].wl, "nm"))
		}
		if formats.IsNumeric(p.val) {
			v, _ := formats.ParseFloat(p.val)
			if unit == "" {
				t.Set("value", v)
			} else {
				t.Set("value", units.Q(v, unit))
			}
			t.Set("unit", unit)
		} else {
			t.Set("value_string", p.val)
		}
		out = append(out, t)
	}
	if len(bad) > 0 {
		return out, errs.Warnf(errs.ErrFileGrammar, component, "ranges", "tokens %v are not wavelength/value pairs", bad)
	}
	return out, nil
}
