package hzb

import (
	"context"
	"math"
	"path"
	"strings"

	"elncore/internal/errs"
	"elncore/internal/formats/uvvis"
	"elncore/internal/plot"
	"elncore/internal/record"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
	"elncore/pkg/units"
	"elncore/plugins/internal/pluginkit"
)

const uvvisComponent = "plugins.hzb.uvvis"

var uvvisRanges = []string{"monochromator_slit_width", "detector_integration_time", "detector_nir_gain"}

var rangeFields = map[string]string{"value": "-"}

var uvvisChangePoints = []string{"monochromator_change_point", "lamp_change_point", "detector_change_point"}

func parseUVVis(ctx context.Context, pc pluginapi.Context, data []byte) (*domain.Section, error) {
	tree, warn, err := uvvis.Decode(data)
	if err != nil {
		return nil, pluginkit.Fatal(pc, warn, err, uvvisComponent)
	}
	pluginkit.Report(pc, warn)

	base := path.Base(pc.Mainfile())
	m := pc.Schema().MustNew(schema.UVVisMeasurement)
	m.MustSet("name", strings.TrimSuffix(base, path.Ext(base))).MustSet("method", "UV-Vis-NIR Transmission")
	if ts := tree.Str("datetime"); ts != "" {
		if err := m.Set("datetime", ts); err != nil {
			pc.Report(errs.Warnf(errs.ErrFileGrammar, uvvisComponent, "parse", "datetime %q: %v", ts, err))
		}
	}
	if id := tree.Str("sample_name"); id != "" {
		m.MustSet("sample_name", id).MustSet("lab_id", id+" uvvis")
		if err := pluginkit.AddSample(ctx, pc, m, id); err != nil {
			return nil, errs.WrapFatal(err, uvvisComponent, "parse")
		}
	}
	wlUnit, err := uvvisSettings(pc, m, tree.Tree("settings"))
	if err != nil {
		return nil, errs.WrapFatal(err, uvvisComponent, "settings")
	}
	if err := uvvisResult(pc, m, tree.Tree("data"), tree.Tree("settings").Str("ordinate_type"), wlUnit); err != nil {
		return nil, errs.WrapFatal(err, uvvisComponent, "result")
	}
	if err := uvvisFigures(m); err != nil {
		return nil, errs.WrapFatal(err, uvvisComponent, "figures")
	}
	return m, nil
}

// uvvisSettings stores the instrument settings and returns the unit of the
// wavelength column.
func uvvisSettings(pc pluginapi.Context, m *domain.Section, st *record.Tree) (units.Unit, error) {
	nm := units.Default().MustParse("nm")
	if st == nil {
		return nm, nil
	}
	s, err := m.NewSub("settings")
	if err != nil {
		return nm, err
	}
	wl := nm
	if raw := st.Str("wavelength_unit"); raw != "" {
		s.MustSet("wavelength_unit", raw)
		if u, err := units.Default().Parse(raw); err == nil && u.Compatible(nm) {
			wl = u
		} else {
			pc.Report(errs.Warnf(errs.ErrUnknownUnit, uvvisComponent, "settings", "wavelength unit %q, assuming nm", raw))
		}
	}
	if v := st.Str("ordinate_type"); v != "" {
		s.MustSet("ordinate_type", v)
	}
	for _, k := range uvvisChangePoints {
		if pts := st.Floats(k); len(pts) > 0 {
			if err := s.SetVector(k, pts, wl); err != nil {
				return wl, err
			}
		}
	}
	for _, k := range uvvisRanges {
		for _, r := range st.Trees(k) {
			sub, err := s.NewSub(k)
			if err != nil {
				return wl, err
			}
			for _, w := range pluginkit.Apply(sub, r, "", rangeFields) {
				pc.Report(w)
			}
			// The value keeps the magnitude; its unit is recorded alongside.
			if v, ok := r.Float("value"); ok {
				sub.MustSet("value", v)
			}
		}
	}
	if att := st.Tree("attenuator"); att != nil {
		a, err := s.NewSub("attenuator")
		if err != nil {
			return wl, err
		}
		for _, w := range pluginkit.Apply(a, att, "", nil) {
			pc.Report(w)
		}
	}
	return wl, nil
}

// uvvisResult stores the spectrum. Transmittance in percent is kept as a
// fraction.
func uvvisResult(pc pluginapi.Context, m *domain.Section, data *record.Tree, typ string, wl units.Unit) error {
	r, err := m.NewSubOf("results", schema.UVVisResult)
	if err != nil {
		return err
	}
	r.MustSet("name", "spectrum")
	if err := r.SetVector("wavelength", data.Floats("wavelength"), wl); err != nil {
		return err
	}
	ord := data.Floats("ordinate")
	switch typ {
	case uvvis.OrdinateTransmittance:
		return r.Set("transmittance", plot.Scale(ord, 0.01))
	case uvvis.OrdinateAbsorbance:
		return r.Set("absorbance", ord)
	default:
		pc.Report(errs.Warnf(errs.ErrFileGrammar, uvvisComponent, "result", "ordinate type %q, spectrum kept as transmittance", typ))
		return r.Set("transmittance", plot.Scale(ord, 0.01))
	}
}

// extinction derives the extinction coefficient of every spectrum once the
// sample thickness is known and refreshes the figures.
func extinction(_ context.Context, _ pluginapi.Context, m *domain.Section) error {
	d, ok := m.Float("sample_thickness")
	if !ok || d <= 0 {
		return nil
	}
	for _, r := range m.Sub("results") {
		if r.Type() != schema.UVVisResult {
			continue
		}
		var alpha []float64
		if a := r.Floats("absorbance"); len(a) > 0 {
			alpha = make([]float64, len(a))
			for i, v := range a {
				alpha[i] = v * math.Ln10 / d
			}
		} else if t := r.Floats("transmittance"); len(t) > 0 {
			alpha = make([]float64, len(t))
			for i, v := range t {
				alpha[i] = -math.Log(v) / d
			}
		}
		if alpha == nil {
			continue
		}
		if err := r.Set("extinction_coefficient", alpha); err != nil {
			return err
		}
	}
	return uvvisFigures(m)
}

func uvvisFigures(m *domain.Section) error {
	for _, r := range m.Sub("results") {
		if r.Type() != schema.UVVisResult {
			continue
		}
		ords := map[string][]float64{}
		for _, k := range []string{"transmittance", "absorbance", "extinction_coefficient"} {
			if v := r.Floats(k); len(v) > 0 {
				ords[k] = v
			}
		}
		labels, figs := plot.UVVis(r.Floats("wavelength"), ords)
		return plot.Replace(m, labels, figs)
	}
	return nil
}
