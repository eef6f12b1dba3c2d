package imem

import (
	"context"
	"path"
	"strings"
	"time"

	"elncore/internal/errs"
	"elncore/internal/formats/sims"
	"elncore/internal/plot"
	"elncore/internal/record"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
	"elncore/pkg/units"
	"elncore/plugins/internal/pluginkit"
)

const simsComponent = "plugins.imem.sims"

var simsDateLayouts = []string{"02.01.2006", "2.1.2006", "2006-01-02", "02/01/2006"}

// simsKinds maps a profile kind onto its result subsection, its value
// quantity and the unit the values are recorded in.
var simsKinds = map[string]struct{ sub, field, unit, axis string }{
	sims.Qualitative:  {"qualitative_profiles", "intensity", "cps", "intensity (1/s)"},
	sims.Quantitative: {"quantitative_profiles", "concentration", "1/cm^3", "concentration (1/m^3)"},
}

func parseSIMS(ctx context.Context, pc pluginapi.Context, data []byte) (*domain.Section, error) {
	tree, warn, err := sims.Decode(data)
	if err != nil {
		return nil, pluginkit.Fatal(pc, warn, err, simsComponent)
	}
	pluginkit.Report(pc, warn)

	base := path.Base(pc.Mainfile())
	m := pc.Schema().MustNew(schema.SIMSMeasurement)
	m.MustSet("name", strings.TrimSuffix(base, path.Ext(base))).MustSet("method", "SIMS")
	for _, k := range []string{"depth_profile", "matrix", "sample_name"} {
		if v := tree.Str(k); v != "" {
			m.MustSet(k, v)
		}
	}
	if d := tree.Str("date"); d != "" {
		if t, ok := simsDate(d); ok {
			m.MustSet("datetime", t)
		} else {
			pc.Report(errs.Warnf(errs.ErrFileGrammar, simsComponent, "parse", "date %q", d))
		}
	}
	if id := m.Str("sample_name"); id != "" {
		m.MustSet("lab_id", id+" sims")
		if err := pluginkit.AddSample(ctx, pc, m, id); err != nil {
			return nil, errs.WrapFatal(err, simsComponent, "parse")
		}
	}
	r, err := m.NewSubOf("results", schema.SIMSResult)
	if err != nil {
		return nil, errs.WrapFatal(err, simsComponent, "result")
	}
	r.MustSet("name", "depth profiles")
	for _, p := range tree.Trees("profiles") {
		if err := simsProfile(pc, r, p); err != nil {
			return nil, errs.WrapFatal(err, simsComponent, "profile")
		}
	}
	if err := simsFigures(m, r); err != nil {
		return nil, errs.WrapFatal(err, simsComponent, "figures")
	}
	return m, nil
}

func simsProfile(pc pluginapi.Context, r *domain.Section, p *record.Tree) error {
	kind, ok := simsKinds[p.Str("kind")]
	if !ok {
		pc.Report(errs.Warnf(errs.ErrFileGrammar, simsComponent, "profile", "profile %s: kind %q", p.Str("name"), p.Str("kind")))
		return nil
	}
	depthU, err := units.Default().Parse(p.Str("depth_unit"))
	if err != nil {
		pc.Report(errs.Warnf(errs.ErrUnknownUnit, simsComponent, "profile", "profile %s: depth unit: %v, assuming um", p.Str("name"), err))
		depthU = units.Default().MustParse("um")
	}
	d, err := r.NewSub(kind.sub)
	if err != nil {
		return err
	}
	d.MustSet("name", p.Str("name")).MustSet("element", p.Str("element")).MustSet("kind", p.Str("kind"))
	if err := d.SetVector("depth", p.Floats("depth"), depthU); err != nil {
		return err
	}
	return d.SetVector(kind.field, p.Floats("values"), units.Default().MustParse(kind.unit))
}

func simsDate(s string) (time.Time, bool) {
	for _, l := range simsDateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// simsFigures plots the profiles of each kind over depth in um on a log
// axis.
func simsFigures(m, r *domain.Section) error {
	var labels []string
	var figs []plot.Figure
	for _, k := range []string{sims.Qualitative, sims.Quantitative} {
		kind := simsKinds[k]
		var data []map[string]any
		for _, p := range r.Sub(kind.sub) {
			data = append(data, plot.Scatter(p.Str("name"), plot.Scale(p.Floats("depth"), 1e6), p.Floats(kind.field)))
		}
		if len(data) == 0 {
			continue
		}
		y := plot.Axis(kind.axis)
		y["type"] = "log"
		labels = append(labels, k)
		figs = append(figs, plot.New(data, map[string]any{
			"title": map[string]any{"text": k + " depth profiles"},
			"xaxis": plot.Axis("depth (um)"),
			"yaxis": y,
		}))
	}
	if len(figs) == 0 {
		return nil
	}
	return plot.Replace(m, labels, figs)
}
