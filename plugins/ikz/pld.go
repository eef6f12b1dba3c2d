package ikz

import (
	"context"
	"fmt"
	"io"
	"math"
	"path"
	"strings"
	"time"

	"elncore/internal/archive"
	"elncore/internal/errs"
	"elncore/internal/formats/pld"
	"elncore/internal/plot"
	"elncore/internal/record"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
	"elncore/pkg/units"
	"elncore/plugins/internal/pluginkit"
)

const pldComponent = "plugins.ikz.pld"

// LayerFile names the archive of the n-th (1-based) layer deposited on
// sampleID.
func LayerFile(sampleID string, n int) string {
	return fmt.Sprintf("%s-L%d.archive.json", archive.Sanitize(sampleID), n)
}

// pldSeries maps data log columns onto step quantities.
var pldSeries = []struct{ column, field string }{
	{"temperature", "temperature"},
	{"pressure", "pressure"},
	{"pressure1", "pressure_1"},
	{"pressure2", "pressure_2"},
	{"o2_flow", "oxygen_flow"},
	{"n2ar_flow", "nitrogen_argon_flow"},
	{"frequency", "frequency"},
	{"laser_energy", "laser_energy"},
}

func parsePLD(ctx context.Context, pc pluginapi.Context, data []byte) (*domain.Section, error) {
	fn, err := pld.ParseFileName(pc.Mainfile())
	if err != nil {
		return nil, errs.WrapFatal(err, pldComponent, "parse")
	}
	events, warn, err := pld.DecodeEventLog(data)
	if err != nil {
		return nil, pluginkit.Fatal(pc, warn, err, pldComponent)
	}
	pluginkit.Report(pc, warn)
	dlog, err := readDataLog(ctx, pc, path.Join(path.Dir(pc.Mainfile()), fn.Sibling()))
	if err != nil {
		return nil, err
	}

	p := pc.Schema().MustNew(schema.PulsedLaserDeposition)
	p.MustSet("name", fn.Name).MustSet("lab_id", fn.Name+" PLD").MustSet("datetime", fn.Time).MustSet("method", "PLD")
	if err := pluginkit.AddSample(ctx, pc, p, fn.Name); err != nil {
		return nil, errs.WrapFatal(err, pldComponent, "parse")
	}
	if dlog != nil {
		if e := pld.Mean(dlog.Floats("laser_energy")); !math.IsNaN(e) {
			p.MustSet("measured_laser_energy", units.Q(e, "mJ"))
		}
	}
	layer := 0
	for _, ev := range events.Trees("steps") {
		step, err := p.NewSubOf("steps", schema.PLDStep)
		if err != nil {
			return nil, errs.WrapFatal(err, pldComponent, "step")
		}
		start, _ := ev.Float("start_time")
		duration, _ := ev.Float("duration")
		step.MustSet("name", ev.Str("name")).MustSet("recipe", ev.Str("name")).MustSet("comment", ev.Str("command"))
		step.MustSet("duration", duration)
		if pulses, ok := ev.Get("pulses"); ok {
			step.MustSet("pulses", pulses)
		}
		step.MustSet("start_time", fn.Time.Add(time.Duration(start*float64(time.Second))))
		if dlog != nil {
			if err := pldStepSeries(step, pld.Slice(dlog, start, duration), start); err != nil {
				return nil, errs.WrapFatal(err, pldComponent, "series")
			}
		}
		if n, _ := step.Int("pulses"); n > 0 && !preablation(step) {
			layer++
			if err := pldLayer(ctx, pc, p, step, fn.Name, layer); err != nil {
				return nil, err
			}
		}
	}
	if err := setLaserPower(p); err != nil {
		return nil, errs.WrapFatal(err, pldComponent, "power")
	}
	if err := pldFigure(p); err != nil {
		return nil, errs.WrapFatal(err, pldComponent, "figure")
	}
	return p, nil
}

// readDataLog returns nil when the run has no data log.
func readDataLog(ctx context.Context, pc pluginapi.Context, name string) (*record.Tree, error) {
	ok, err := pc.RawExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", pldComponent, name, err)
	}
	if !ok {
		pc.Report(errs.Warnf(errs.ErrReferenceNotFound, pldComponent, "parse", "data log %s not found", name))
		return nil, nil
	}
	rc, err := pc.OpenRaw(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", pldComponent, name, err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", pldComponent, name, err)
	}
	tree, warn, err := pld.DecodeDataLog(raw)
	pluginkit.Report(pc, warn)
	if err != nil {
		pc.Report(errs.Errorf(errs.ErrFileGrammar, pldComponent, "parse", "data log %s: %v", name, err))
		return nil, nil
	}
	return tree, nil
}

func pldStepSeries(step *domain.Section, rows *record.Tree, start float64) error {
	t := rows.Floats("time")
	rel := make([]float64, len(t))
	for i, v := range t {
		rel[i] = v - start
	}
	if err := step.Set("time", rel); err != nil {
		return err
	}
	for _, s := range pldSeries {
		u := units.Default().MustParse(pld.DataUnits[s.column])
		if s.column == "pressure" {
			u = units.Default().MustParse("mbar")
		}
		if err := step.SetVector(s.field, rows.Floats(s.column), u); err != nil {
			return err
		}
	}
	return nil
}

func pldLayer(ctx context.Context, pc pluginapi.Context, p, step *domain.Section, sample string, n int) error {
	id := fmt.Sprintf("%s-L%d", sample, n)
	l := pc.Schema().MustNew(schema.ThinFilm)
	l.MustSet("name", id).MustSet("lab_id", id)
	if t, ok := step.Time("start_time"); ok {
		l.MustSet("datetime", t)
	}
	l.MustSet("description", fmt.Sprintf("%s, %d pulses", step.Str("recipe"), mustInt(step, "pulses")))
	ref, err := pc.Emit(ctx, l, LayerFile(sample, n))
	if err != nil {
		return err
	}
	ref.LabID, ref.Name = id, id
	step.MustSet("layer", ref)
	out := p.MustNewSub("outputs")
	out.MustSet("name", id).MustSet("section", ref)
	return nil
}

// preablation reports whether step cleaned the target with the substrate
// shielded, which deposits no layer.
func preablation(step *domain.Section) bool {
	for _, s := range []string{step.Str("name"), step.Str("comment")} {
		s = strings.ToLower(strings.ReplaceAll(s, "-", ""))
		if strings.Contains(s, "preablation") {
			return true
		}
	}
	return false
}

func mustInt(s *domain.Section, name string) int64 {
	v, _ := s.Int(name)
	return v
}

// setLaserPower derives the power at the target of every step. Without an
// attenuated energy the measured energy reaches the target unscaled.
func setLaserPower(p *domain.Section) error {
	measured, ok := p.Float("measured_laser_energy")
	if !ok || measured == 0 {
		return nil
	}
	attenuated, ok := p.Float("attenuated_laser_energy")
	if !ok {
		attenuated = measured
	}
	for _, s := range p.Sub("steps") {
		energy := s.Floats("laser_energy")
		if len(energy) == 0 {
			continue
		}
		mJ := plot.Scale(energy, 1e3)
		if err := s.Set("power", pld.LaserPower(attenuated, measured, mJ, s.Floats("frequency"))); err != nil {
			return err
		}
	}
	return nil
}

// laserPower recomputes step powers and the merged figure once a user
// records the attenuated laser energy.
func laserPower(_ context.Context, _ pluginapi.Context, sec *domain.Section) error {
	if !sec.Has("attenuated_laser_energy") {
		return nil
	}
	if err := setLaserPower(sec); err != nil {
		return err
	}
	return pldFigure(sec)
}

func pldFigure(p *domain.Section) error {
	var steps []plot.PLDStep
	var begin time.Time
	for i, s := range p.Sub("steps") {
		st, _ := s.Time("start_time")
		if i == 0 {
			begin = st
		}
		steps = append(steps, plot.PLDStep{
			Name:         s.Str("name"),
			Start:        st.Sub(begin).Seconds(),
			Time:         s.Floats("time"),
			PressurePa:   s.Floats("pressure"),
			TemperatureK: s.Floats("temperature"),
			PowerW:       s.Floats("power"),
		})
	}
	if len(steps) == 0 {
		return nil
	}
	return plot.Replace(p, []string{"deposition"}, []plot.Figure{plot.PLDMerged(steps)})
}
