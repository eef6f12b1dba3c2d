package ikz

import (
	"context"
	"fmt"
	"path"
	"strings"

	"elncore/internal/errs"
	"elncore/internal/formats"
	"elncore/internal/formats/laytec"
	"elncore/internal/normalize"
	"elncore/internal/plot"
	"elncore/internal/record"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
	"elncore/pkg/units"
	"elncore/plugins/internal/pluginkit"
)

var laytecHeaderFields = map[string]string{
	laytec.KeyRunID:      "run_id",
	laytec.KeyRunType:    "runtype_name",
	laytec.KeyModule:     "module_name",
	laytec.KeyWaferLabel: "wafer_label",
	laytec.KeyWaferZone:  "wafer_zone",
}

func parseLayTec(ctx context.Context, pc pluginapi.Context, data []byte) (*domain.Section, error) {
	tree, warn, err := laytec.Decode(data)
	if err != nil {
		return nil, pluginkit.Fatal(pc, warn, err, "plugins.ikz.laytec")
	}
	pluginkit.Report(pc, warn)
	header := tree.Tree("header")

	m := pc.Schema().MustNew(schema.LayTecMeasurement)
	m.MustSet("name", strings.TrimSuffix(path.Base(pc.Mainfile()), path.Ext(pc.Mainfile())))
	m.MustSet("method", "LayTec EpiTT")
	for key, field := range laytecHeaderFields {
		if v := header.Str(key); v != "" {
			m.MustSet(field, v)
		}
	}
	if run := m.Str("run_id"); run != "" {
		m.MustSet("lab_id", run+" laytec")
	}
	if t, ok := laytec.Time(tree); ok {
		m.MustSet("datetime", t)
	}
	if len(tree.Strings("comments")) > 0 {
		m.MustSet("description", strings.Join(tree.Strings("comments"), "\n"))
	}
	if err := pluginkit.AddSample(ctx, pc, m, m.Str("wafer_label")); err != nil {
		return nil, errs.WrapFatal(err, "plugins.ikz.laytec", "parse")
	}

	r, err := laytecResult(pc, m, tree)
	if err != nil {
		return nil, errs.WrapFatal(err, "plugins.ikz.laytec", "result")
	}
	// Figures hang off the measurement, which normalizes before its results.
	if err := normalize.SmoothReflectance(ctx, pc, r); err != nil {
		return nil, errs.WrapFatal(err, "plugins.ikz.laytec", "smooth")
	}
	if err := laytecFigures(m, r); err != nil {
		return nil, errs.WrapFatal(err, "plugins.ikz.laytec", "figures")
	}
	return m, nil
}

func laytecResult(pc pluginapi.Context, m *domain.Section, tree *record.Tree) (*domain.Section, error) {
	data, unitTree, header := tree.Tree("data"), tree.Tree("units"), tree.Tree("header")
	r, err := m.NewSubOf("results", schema.LayTecResult)
	if err != nil {
		return nil, err
	}
	r.MustSet("name", "reflectance")
	if data.Has(laytec.ColumnTime) {
		if err := r.SetVector("process_time", data.Floats(laytec.ColumnTime), columnUnit(pc, unitTree, laytec.ColumnTime, "s")); err != nil {
			return nil, err
		}
	}
	if data.Has(laytec.ColumnPyroTemp) {
		if err := r.SetVector("pyrometer_temperature", data.Floats(laytec.ColumnPyroTemp), columnUnit(pc, unitTree, laytec.ColumnPyroTemp, "degC")); err != nil {
			return nil, err
		}
	}
	if wl, err := formats.ParseFloat(header.Str(laytec.KeyPyroWL)); err == nil && header.Str(laytec.KeyPyroWL) != "" {
		r.MustSet("pyrometer_wavelength", units.Q(wl, "nm"))
	}
	for _, tr := range laytec.Transients(tree) {
		s, err := r.NewSub("reflectance_wavelengths")
		if err != nil {
			return nil, err
		}
		s.MustSet("name", fmt.Sprintf("%s %g nm", tr.Column, tr.Wavelength))
		s.MustSet("wavelength", units.Q(tr.Wavelength, "nm"))
		s.MustSet("raw_intensity", tr.RawIntensity)
		s.MustSet("autocorrelation_starting_point", 0)
		s.MustSet("autocorrelation_period", len(tr.RawIntensity))
	}
	return r, nil
}

// columnUnit parses the ##YUNITS entry of column, falling back to def.
func columnUnit(pc pluginapi.Context, unitTree *record.Tree, column, def string) units.Unit {
	raw := def
	if unitTree != nil && unitTree.Str(column) != "" {
		raw = unitTree.Str(column)
	}
	u, err := units.Default().Parse(raw)
	if err != nil {
		pc.Report(errs.Warnf(errs.ErrUnknownUnit, "plugins.ikz.laytec", "units", "column %q: %v", column, err))
		return units.Default().MustParse(def)
	}
	return u
}

func laytecFigures(m, r *domain.Section) error {
	t := r.Floats("process_time")
	var series []plot.Series
	labels := []string{"overview"}
	var figs []plot.Figure
	for _, tr := range r.Sub("reflectance_wavelengths") {
		series = append(series, plot.Series{Name: tr.Str("name"), Values: tr.Floats("raw_intensity")})
	}
	figs = append(figs, plot.LayTecOverview(t, series, r.Floats("pyrometer_temperature")))
	for _, tr := range r.Sub("reflectance_wavelengths") {
		start, _ := tr.Int("autocorrelation_starting_point")
		labels = append(labels, tr.Str("name"))
		figs = append(figs, plot.LayTecTransient(tr.Str("name"), t, tr.Floats("raw_intensity"), tr.Floats("autocorrelated_intensity"), int(start)))
	}
	return plot.Replace(m, labels, figs)
}
