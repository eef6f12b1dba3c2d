// Package pld decodes pulsed-laser-deposition logs: the event log (.elog)
// with the recipe steps and the data log (.dlog) with the sampled process
// values.
package pld

import (
	"fmt"
	"math"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"elncore/internal/errs"
	"elncore/internal/formats"
	"elncore/internal/record"
)

const component = "formats.pld"

// Log kinds, from the file extension.
const (
	EventLog = "elog"
	DataLog  = "dlog"
)

// Hand-off range of the two pressure gauges, in mbar. Inside it the
// capacitance gauge (P2) replaces the full-range gauge (P1).
const (
	HandoffLow  = 0.01
	HandoffHigh = 0.1
)

// DataColumns is the fixed column order of a .dlog row.
var DataColumns = []string{
	"time", "temperature", "pressure2", "o2_flow", "n2ar_flow",
	"frequency", "laser_energy", "pressure1", "zeros",
}

// DataUnits are the units of DataColumns.
var DataUnits = map[string]string{
	"time": "s", "temperature": "degC", "pressure2": "mbar", "o2_flow": "sccm",
	"n2ar_flow": "sccm", "frequency": "Hz", "laser_energy": "mJ", "pressure1": "mbar",
}

const nameLayout = "02012006_1504"

var fileRe = regexp.MustCompile(`^(\d{8}_\d{4})-(.+)\.(e|d)log$`)

// FileName is the parsed name of a PLD log file.
type FileName struct {
	Time time.Time
	Name string
	Kind string
}

// Sibling returns the file name of the other log of the same run.
func (f FileName) Sibling() string {
	kind := DataLog
	if f.Kind == DataLog {
		kind = EventLog
	}
	return fmt.Sprintf("%s-%s.%s", f.Time.Format(nameLayout), f.Name, kind)
}

// ParseFileName parses "{DDMMYYYY_HHMM}-{name}.{e|d}log". Directories are
// ignored.
func ParseFileName(p string) (FileName, error) {
	m := fileRe.FindStringSubmatch(path.Base(p))
	if m == nil {
		return FileName{}, fmt.Errorf("formats.pld: %q does not match DDMMYYYY_HHMM-name.{e,d}log", path.Base(p))
	}
	ts, err := time.Parse(nameLayout, m[1])
	if err != nil {
		return FileName{}, fmt.Errorf("formats.pld: %q: %w", m[1], err)
	}
	return FileName{Time: ts, Name: m[2], Kind: m[3] + "log"}, nil
}

// ParseClock converts "HH:MM:SS" to seconds. Hours may exceed 24.
func ParseClock(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("formats.pld: clock %q is not HH:MM:SS", s)
	}
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("formats.pld: clock %q: %w", s, err)
		}
		total = total*60 + v
	}
	return total, nil
}

var pulsesRe = regexp.MustCompile(`\d+`)

type event struct {
	at   float64
	text string
}

// DecodeEventLog parses an .elog. Events come in triples: the step
// command, its pulse count and its recipe name. Each step starts at the
// time of its command and lasts until the next command; the last step lasts
// until the final event of the log. The tree holds "steps" with "name",
// "command", "pulses", "start_time" and "duration" (seconds).
func DecodeEventLog(data []byte) (*record.Tree, formats.Warnings, error) {
	var warn formats.Warnings
	var events []event
	for i, l := range formats.Lines(formats.UTF8OrLatin1(data)) {
		if strings.TrimSpace(l) == "" {
			continue
		}
		clock, text, ok := strings.Cut(l, "\t")
		if !ok {
			warn.Grammar(component, i+1, "event %q is not tab separated", l)
			continue
		}
		at, err := ParseClock(clock)
		if err != nil {
			warn.Grammar(component, i+1, "%v", err)
			continue
		}
		events = append(events, event{at: at, text: strings.TrimSpace(text)})
	}
	n := len(events) / 3
	if n == 0 {
		return nil, warn, errs.Fatalf(component, "decode", "event log holds %d events, need at least one step", len(events))
	}
	end := events[len(events)-1].at
	tree := record.New()
	for i := 0; i < n; i++ {
		cmd, pulses, recipe := events[3*i], events[3*i+1], events[3*i+2]
		next := end
		if i+1 < n {
			next = events[3*(i+1)].at
		}
		var count int64
		if m := pulsesRe.FindString(pulses.text); m != "" {
			count, _ = strconv.ParseInt(m, 10, 64)
		}
		tree.Append("steps", record.New().
			Set("name", recipe.text).
			Set("command", cmd.text).
			Set("pulses", count).
			Set("start_time", cmd.at).
			Set("duration", math.Max(0, next-cmd.at)))
	}
	return tree, warn, nil
}

// DecodeDataLog parses a .dlog into one array per DataColumns entry.
// Non-numeric lines (headers) are skipped; short rows warn and are dropped.
func DecodeDataLog(data []byte) (*record.Tree, formats.Warnings, error) {
	var warn formats.Warnings
	cols := make([][]float64, len(DataColumns))
	rows := 0
	for i, l := range formats.Lines(formats.UTF8OrLatin1(data)) {
		f := strings.Split(strings.TrimSpace(l), "\t")
		if len(f) == 0 || !formats.IsNumeric(f[0]) {
			continue
		}
		if len(f) < len(DataColumns)-1 {
			warn.Grammar(component, i+1, "row has %d cells, need %d", len(f), len(DataColumns)-1)
			continue
		}
		vals := make([]float64, len(DataColumns))
		bad := false
		for c := range DataColumns {
			if c >= len(f) {
				vals[c] = 0
				continue
			}
			v, err := formats.ParseFloat(f[c])
			if err != nil {
				bad = true
				break
			}
			vals[c] = v
		}
		if bad {
			warn.Grammar(component, i+1, "row is not numeric")
			continue
		}
		for c, v := range vals {
			cols[c] = append(cols[c], v)
		}
		rows++
	}
	if rows == 0 {
		return nil, warn, errs.Fatalf(component, "decode", "data log holds no rows")
	}
	tree := record.New()
	for c, name := range DataColumns {
		tree.Set(name, cols[c])
	}
	tree.Set("pressure", FusePressure(cols[7], cols[2]))
	return tree, warn, nil
}

// FusePressure merges the two gauges: p1 everywhere except where
// HandoffLow <= p1 <= HandoffHigh, which takes p2.
func FusePressure(p1, p2 []float64) []float64 {
	out := make([]float64, len(p1))
	for i, v := range p1 {
		out[i] = v
		if v >= HandoffLow && v <= HandoffHigh && i < len(p2) {
			out[i] = p2[i]
		}
	}
	return out
}

// Slice returns the rows of a decoded data log with start <= time <
// start+duration.
func Slice(dlog *record.Tree, start, duration float64) *record.Tree {
	t := dlog.Floats("time")
	lo, hi := -1, -1
	for i, v := range t {
		if v >= start && v < start+duration {
			if lo < 0 {
				lo = i
			}
			hi = i + 1
		}
	}
	out := record.New()
	for _, k := range dlog.Keys() {
		col := dlog.Floats(k)
		if lo < 0 {
			out.Set(k, []float64{})
			continue
		}
		out.Set(k, append([]float64(nil), col[lo:hi]...))
	}
	return out
}

// LaserPower derives the laser power in W at the target from the measured
// energy trace (mJ) and repetition rate (Hz), scaled by the attenuation
// ratio of the mean energy behind the attenuator to the mean measured
// energy.
func LaserPower(meanAttenuated, meanMeasured float64, energy, frequency []float64) []float64 {
	out := make([]float64, len(energy))
	for i := range energy {
		if meanMeasured == 0 || i >= len(frequency) {
			out[i] = math.NaN()
			continue
		}
		out[i] = meanAttenuated / meanMeasured * energy[i] * 1e-3 * frequency[i]
	}
	return out
}

// Mean returns the arithmetic mean of the finite values of v, NaN when there
// are none.
func Mean(v []float64) float64 {
	var sum float64
	n := 0
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		sum += x
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
