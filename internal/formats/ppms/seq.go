package ppms

import (
	"fmt"
	"strconv"
	"strings"

	"elncore/internal/formats"
	"elncore/internal/record"
	"elncore/pkg/domain/schema"
	"elncore/pkg/units"
)

// ETOR channel widths by mode: modes 0, 4 and 5 carry the mode only.
const (
	etorWideWidth         = 10
	etorDifferentialWidth = 11
)

// DecodeSequence parses a .seq file into "steps": one tree per command,
// with "kind" (the section type), "name", "command" (the raw line) and the
// typed fields of the step. Values carry the units the sequence editor
// writes them in.
func DecodeSequence(data []byte) (*record.Tree, formats.Warnings) {
	var warn formats.Warnings
	tree := record.New()
	for i, line := range formats.Lines(formats.UTF8OrLatin1(data)) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		step, err := decodeCommand(line)
		if err != nil {
			warn.Grammar(component, i+1, "%v", err)
			if step == nil {
				continue
			}
		}
		if step != nil {
			tree.Append("steps", step)
		}
	}
	if !tree.Has("steps") {
		tree.Set("steps", []*record.Tree{})
	}
	return tree, warn
}

type args struct {
	vals []string
	pos  int
	err  error
}

func newArgs(tokens []string) *args {
	i := 0
	for i < len(tokens) && !formats.IsNumeric(tokens[i]) {
		i++
	}
	return &args{vals: tokens[i:]}
}

func (a *args) float() float64 {
	if a.err != nil {
		return 0
	}
	if a.pos >= len(a.vals) {
		a.err = fmt.Errorf("missing argument %d", a.pos+1)
		return 0
	}
	v, err := strconv.ParseFloat(a.vals[a.pos], 64)
	if err != nil {
		a.err = fmt.Errorf("argument %d: %q is not numeric", a.pos+1, a.vals[a.pos])
	}
	a.pos++
	return v
}

func (a *args) q(unit string) units.Quantity { return units.Q(a.float(), unit) }

func (a *args) int() int64 { return int64(a.float()) }

func (a *args) flag() bool { return a.float() != 0 }

func (a *args) enum(table []string) string {
	idx := a.int()
	if a.err != nil {
		return ""
	}
	if idx < 0 || int(idx) >= len(table) {
		a.err = fmt.Errorf("argument %d: index %d outside %v", a.pos, idx, table)
		return ""
	}
	return table[idx]
}

func step(kind, name, line string) *record.Tree {
	return record.New().Set("kind", kind).Set("name", name).Set("command", line)
}

func decodeCommand(line string) (*record.Tree, error) {
	tokens := strings.Fields(line)
	cmd := strings.ToUpper(tokens[0])
	a := newArgs(tokens[1:])
	var s *record.Tree
	switch cmd {
	case "TMP":
		s = step(schema.PPMSTemperatureStep, "Set Temperature", line).
			Set("temperature_set", a.q("K")).
			Set("temperature_rate", a.q("K/min")).
			Set("mode", a.enum(schema.PPMSTemperatureModes))
	case "FLD":
		s = step(schema.PPMSFieldStep, "Set Magnetic Field", line).
			Set("field_set", a.q("G")).
			Set("field_rate", a.q("G/s")).
			Set("approach", a.enum(schema.PPMSFieldApproaches)).
			Set("end_mode", a.enum(schema.PPMSFieldEndModes))
	case "LPB":
		s = step(schema.PPMSScanFieldStep, "Scan Field", line).
			Set("initial_field", a.q("G")).
			Set("final_field", a.q("G")).
			Set("field_rate", a.q("G/s")).
			Set("number_of_steps", a.int()).
			Set("spacing_code", a.enum(schema.PPMSSpacingModes)).
			Set("approach", a.enum(schema.PPMSFieldApproaches)).
			Set("end_mode", a.enum(schema.PPMSFieldEndModes))
	case "LPT":
		s = step(schema.PPMSScanTempStep, "Scan Temperature", line).
			Set("initial_temp", a.q("K")).
			Set("final_temp", a.q("K")).
			Set("temperature_rate", a.q("K/min")).
			Set("number_of_steps", a.int()).
			Set("spacing_code", a.enum(schema.PPMSSpacingModes)).
			Set("approach", a.enum(schema.PPMSTemperatureModes))
	case "ACTR":
		s = step(schema.PPMSACTRStep, "AC Transport Resistance", line).
			Set("channel", a.int()).
			Set("excitation", a.q("mA")).
			Set("frequency", a.q("Hz")).
			Set("duration_time", a.q("s")).
			Set("number_of_readings", a.int()).
			Set("constant_current_mode", a.flag()).
			Set("autorange", a.flag()).
			Set("fixed_gain", a.flag()).
			Set("second_harmonic", a.flag()).
			Set("third_harmonic", a.flag())
	case "ETOR":
		s = step(schema.PPMSETORStep, "ETO Resistance", line).
			Set("sample_rate", a.q("s")).
			Set("autosave", a.flag())
		for ch := int64(1); ch <= 2 && a.err == nil; ch++ {
			s.Append("channels", etorChannel(a, ch))
		}
	case "WAI":
		s = step(schema.PPMSWaitStep, "Wait", line).
			Set("delay", a.q("s")).
			Set("condition_temperature", a.flag()).
			Set("condition_field", a.flag()).
			Set("condition_position", a.flag()).
			Set("condition_chamber", a.flag()).
			Set("on_error_execute", a.enum([]string{"No Action", "Abort", "Shutdown"}))
	case "MVP":
		s = step(schema.PPMSPositionStep, "Set Position", line).
			Set("position", a.q("deg")).
			Set("mode", a.enum(schema.PPMSPositionModes)).
			Set("index", a.float()).
			Set("speed", a.q("deg/s"))
	case "REM":
		text := strings.TrimSpace(strings.TrimPrefix(line, tokens[0]))
		return step(schema.PPMSRemarkStep, "Remark", line).Set("remark_text", text), nil
	case "SHT":
		return step(schema.PPMSShutdownStep, "Shutdown", line), nil
	case "ENB", "ENT", "ENP":
		return step(schema.PPMSStep, "End Scan", line), nil
	default:
		return step(schema.PPMSStep, cmd, line), fmt.Errorf("unknown sequence command %q", cmd)
	}
	if a.err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, a.err)
	}
	return s, nil
}

// etorChannel walks one channel block. The block width depends on the
// channel mode; preamp range decoding is not supported and is skipped.
func etorChannel(a *args, n int64) *record.Tree {
	ch := record.New().Set("channel", n)
	modeIdx := a.int()
	if a.err != nil {
		return ch
	}
	if modeIdx < 0 || int(modeIdx) >= len(schema.PPMSETORModes) {
		a.err = fmt.Errorf("channel %d: mode %d unknown", n, modeIdx)
		return ch
	}
	ch.Set("mode", schema.PPMSETORModes[modeIdx])
	width := 1
	switch modeIdx {
	case 1, 2:
		width = etorWideWidth
	case 3:
		width = etorDifferentialWidth
	}
	if width == 1 {
		return ch
	}
	ch.Set("excitation_amplitude", a.q("mA")).
		Set("excitation_frequency", a.q("Hz")).
		Set("averaging_time", a.q("s"))
	a.float() // preamp range
	ch.Set("preamp_autorange", a.flag()).
		Set("preamp_sample_wiring", a.flag()).
		Set("excitation_current_range", a.q("mA")).
		Set("current_autorange", a.flag())
	if width == etorDifferentialWidth {
		ch.Set("reverse_polarity", a.flag())
	}
	ch.Set("number_of_readings", a.float())
	return ch
}
