package hzb

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"elncore/internal/errs"
	"elncore/internal/formats"
	"elncore/internal/plot"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
	"elncore/pkg/units"
	"elncore/plugins/internal/pluginkit"
)

const evapComponent = "plugins.hzb.evaporation"

// Chamber columns of an evaporation log. Any other "<Material> <Quantity>"
// column belongs to a source.
var evapChamber = map[string]string{
	"Time":                  "time",
	"Chamber Pressure":      "chamber_pressure",
	"Substrate Temperature": "substrate_temperature",
}

var evapSource = map[string]string{
	"Temperature": "temperature",
	"Power":       "power",
	"Rate":        "rate",
}

type evapColumn struct {
	source string // empty for chamber columns
	field  string
	unit   units.Unit
}

type evapStep struct {
	name string
	rows [][]float64
}

type evapLog struct {
	header  [][2]string
	columns []evapColumn
	steps   []*evapStep
}

// decodeEvaporationLog reads "Key: value" header lines followed by a
// tab-separated table whose first column names the step. Consecutive rows
// with the same step name form one step.
func decodeEvaporationLog(data []byte) (*evapLog, formats.Warnings, error) {
	var warn formats.Warnings
	log := &evapLog{}
	lines := formats.Lines(formats.UTF8OrLatin1(data))
	start := -1
	for i, l := range lines {
		if strings.HasPrefix(l, "Step\t") {
			start = i
			break
		}
		if k, v, ok := strings.Cut(l, ":"); ok && strings.TrimSpace(k) != "" {
			log.header = append(log.header, [2]string{strings.TrimSpace(k), strings.TrimSpace(v)})
		}
	}
	if start < 0 {
		return nil, warn, errs.Fatalf(evapComponent, "decode", "no Step table header")
	}
	headers := strings.Split(lines[start], "\t")[1:]
	for i, h := range headers {
		col, err := evaporationColumn(h)
		if err != nil {
			warn.Grammar(evapComponent, start+1, "column %d: %v", i+2, err)
		}
		log.columns = append(log.columns, col)
	}
	if len(log.columns) == 0 || log.columns[0].field != "time" {
		return nil, warn, errs.Fatalf(evapComponent, "decode", "first data column must be Time")
	}
	var cur *evapStep
	for i := start + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		cells := strings.Split(lines[i], "\t")
		if len(cells) != len(headers)+1 {
			warn.Grammar(evapComponent, i+1, "row has %d cells, header has %d", len(cells), len(headers)+1)
			continue
		}
		row := make([]float64, len(headers))
		bad := false
		for j, c := range cells[1:] {
			v, err := formats.ParseFloat(c)
			if err != nil {
				warn.Grammar(evapComponent, i+1, "cell %q is not numeric", c)
				bad = true
				break
			}
			row[j] = v
		}
		if bad {
			continue
		}
		name := strings.TrimSpace(cells[0])
		if cur == nil || cur.name != name {
			cur = &evapStep{name: name}
			log.steps = append(log.steps, cur)
		}
		cur.rows = append(cur.rows, row)
	}
	if len(log.steps) == 0 {
		return nil, warn, errs.Fatalf(evapComponent, "decode", "empty log")
	}
	return log, warn, nil
}

func evaporationColumn(header string) (evapColumn, error) {
	name, raw := formats.SplitHeader(header)
	var col evapColumn
	if f, ok := evapChamber[name]; ok {
		col.field = f
	} else {
		i := strings.LastIndex(name, " ")
		if i < 0 || evapSource[name[i+1:]] == "" {
			return col, fmt.Errorf("unknown column %q", header)
		}
		col.source, col.field = name[:i], evapSource[name[i+1:]]
	}
	if raw != "" {
		u, err := units.Default().Parse(raw)
		if err != nil {
			col.field = ""
			return col, err
		}
		col.unit = u
	}
	return col, nil
}

func (s *evapStep) column(i int) []float64 {
	out := make([]float64, len(s.rows))
	for r, row := range s.rows {
		out[r] = row[i]
	}
	return out
}

func parseEvaporation(ctx context.Context, pc pluginapi.Context, data []byte) (*domain.Section, error) {
	log, warn, err := decodeEvaporationLog(data)
	if err != nil {
		return nil, pluginkit.Fatal(pc, warn, err, evapComponent)
	}
	pluginkit.Report(pc, warn)

	base := path.Base(pc.Mainfile())
	p := pc.Schema().MustNew(schema.ThermalEvaporation)
	p.MustSet("name", strings.TrimSuffix(base, path.Ext(base))).MustSet("method", "Thermal Evaporation")
	for _, kv := range log.header {
		switch strings.ToLower(kv[0]) {
		case "sample":
			p.MustSet("lab_id", kv[1]+" evaporation")
			if err := pluginkit.AddSample(ctx, pc, p, kv[1]); err != nil {
				return nil, errs.WrapFatal(err, evapComponent, "parse")
			}
		case "date":
			if err := p.Set("datetime", kv[1]); err != nil {
				pc.Report(errs.Warnf(errs.ErrFileGrammar, evapComponent, "parse", "date %q: %v", kv[1], err))
			}
		case "description":
			p.MustSet("description", kv[1])
		default:
			if err := pluginkit.AddParameter(p, "log header", kv[0], kv[1]); err != nil {
				return nil, errs.WrapFatal(err, evapComponent, "parse")
			}
		}
	}
	begin, hasBegin := p.Time("datetime")
	for _, st := range log.steps {
		if err := evaporationStep(pc, p, log.columns, st, begin, hasBegin); err != nil {
			return nil, errs.WrapFatal(err, evapComponent, "step")
		}
	}
	if err := evaporationFigure(p); err != nil {
		return nil, errs.WrapFatal(err, evapComponent, "figure")
	}
	return p, nil
}

func evaporationStep(pc pluginapi.Context, p *domain.Section, cols []evapColumn, st *evapStep, begin time.Time, hasBegin bool) error {
	step, err := p.NewSubOf("steps", schema.ThermalEvaporationStep)
	if err != nil {
		return err
	}
	t := st.column(0)
	step.MustSet("name", st.name).MustSet("duration", t[len(t)-1]-t[0])
	if hasBegin {
		step.MustSet("start_time", begin.Add(time.Duration(t[0]*float64(time.Second))))
	}
	rel := make([]float64, len(t))
	for i, v := range t {
		rel[i] = v - t[0]
	}
	step.MustSet("time", rel)
	sources := map[string]*domain.Section{}
	for i, c := range cols[1:] {
		if c.field == "" {
			continue
		}
		target := step
		if c.source != "" {
			if sources[c.source] == nil {
				src, err := step.NewSub("sources")
				if err != nil {
					return err
				}
				src.MustSet("material", c.source)
				sources[c.source] = src
			}
			target = sources[c.source]
		}
		if err := target.SetVector(c.field, st.column(i+1), c.unit); err != nil {
			pc.Report(errs.Warnf(errs.ErrUnknownUnit, evapComponent, "step", "step %q column %s: %v", st.name, c.field, err))
		}
	}
	return nil
}

// evaporationFigure plots the substrate temperature and the source rates of
// every step on the step's own time axis.
func evaporationFigure(p *domain.Section) error {
	var data []map[string]any
	for _, s := range p.Sub("steps") {
		t := s.Floats("time")
		if v := s.Floats("substrate_temperature"); len(v) > 0 {
			data = append(data, plot.Scatter(s.Str("name")+" substrate", t, v))
		}
		for _, src := range s.Sub("sources") {
			if v := src.Floats("rate"); len(v) > 0 {
				data = append(data, plot.Scatter(s.Str("name")+" "+src.Str("material"), t, plot.Scale(v, 1e9)))
			}
		}
	}
	if len(data) == 0 {
		return nil
	}
	layout := map[string]any{
		"title": map[string]any{"text": "evaporation"},
		"xaxis": plot.Axis("time (s)"),
		"yaxis": plot.Axis("substrate temperature (K), rate (nm/s)"),
	}
	return plot.Replace(p, []string{"evaporation"}, []plot.Figure{plot.New(data, layout)})
}
