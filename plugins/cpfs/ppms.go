package cpfs

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"elncore/internal/errs"
	"elncore/internal/formats/ppms"
	"elncore/internal/plot"
	"elncore/internal/record"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
	"elncore/plugins/internal/pluginkit"
)

const ppmsComponent = "plugins.cpfs.ppms"

var sampleNameRe = regexp.MustCompile(`^SAMPLE\d+_NAME$`)

// ppmsStepFields are the decoded sequence keys that are not step quantities.
var ppmsStepFields = map[string]string{
	"kind":     "-",
	"channels": "-",
}

func parsePPMS(ctx context.Context, pc pluginapi.Context, data []byte) (*domain.Section, error) {
	tree, warn, err := ppms.DecodeData(data)
	if err != nil {
		return nil, pluginkit.Fatal(pc, warn, err, ppmsComponent)
	}
	pluginkit.Report(pc, warn)

	base := path.Base(pc.Mainfile())
	m := pc.Schema().MustNew(schema.PPMSMeasurement)
	m.MustSet("name", strings.TrimSuffix(base, path.Ext(base))).MustSet("data_file", base).MustSet("method", "PPMS")
	header := tree.Tree("header")
	if v := header.Str("TITLE"); v != "" {
		m.MustSet("title", v)
	}
	if v := header.Str("BYAPP"); v != "" {
		m.MustSet("software", v)
	}
	for _, hl := range tree.Trees("header_lines") {
		vals := hl.Strings("values")
		if hl.Str("key") != "INFO" || len(vals) < 2 || !sampleNameRe.MatchString(vals[1]) {
			continue
		}
		if err := pluginkit.AddSample(ctx, pc, m, vals[0]); err != nil {
			return nil, errs.WrapFatal(err, ppmsComponent, "parse")
		}
	}

	d := m.MustNewSub("data")
	d.MustSet("name", "shared")
	for _, w := range pluginkit.Vectors(d, tree.Tree("shared"), tree.Tree("shared_units"), nil) {
		pc.Report(w)
	}
	d.MustSet("number_of_points", len(d.Floats("time_stamp")))
	for _, ch := range tree.Trees("channels") {
		c := m.MustNewSub("channels")
		c.MustSet("name", ch.Str("name"))
		for _, w := range pluginkit.Vectors(c, ch.Tree("data"), ch.Tree("units"), nil) {
			pc.Report(w)
		}
	}

	seqName := strings.TrimSuffix(pc.Mainfile(), path.Ext(pc.Mainfile())) + ".seq"
	if err := ppmsSequence(ctx, pc, m, seqName); err != nil {
		return nil, err
	}
	if err := ppmsFigure(m); err != nil {
		return nil, errs.WrapFatal(err, ppmsComponent, "figure")
	}
	return m, nil
}

// ppmsSequence adds the steps of the sequence file that produced the data.
// A missing sequence leaves the measurement without steps.
func ppmsSequence(ctx context.Context, pc pluginapi.Context, m *domain.Section, name string) error {
	ok, err := pc.RawExists(ctx, name)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", ppmsComponent, name, err)
	}
	if !ok {
		pc.Logger().Debug("no sequence file", "mainfile", pc.Mainfile(), "sequence", name)
		return nil
	}
	rc, err := pc.OpenRaw(ctx, name)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", ppmsComponent, name, err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("%s: read %s: %w", ppmsComponent, name, err)
	}
	seq, warn := ppms.DecodeSequence(raw)
	pluginkit.Report(pc, warn)
	m.MustSet("sequence_file", path.Base(name))
	for _, st := range seq.Trees("steps") {
		if err := ppmsStep(pc, m, st); err != nil {
			return errs.WrapFatal(err, ppmsComponent, "sequence")
		}
	}
	return nil
}

func ppmsStep(pc pluginapi.Context, m *domain.Section, st *record.Tree) error {
	step, err := m.NewSubOf("steps", st.Str("kind"))
	if err != nil {
		return err
	}
	for _, w := range pluginkit.Apply(step, st, "", ppmsStepFields) {
		pc.Report(w)
	}
	for _, ch := range st.Trees("channels") {
		c, err := step.NewSub("channels")
		if err != nil {
			return err
		}
		for _, w := range pluginkit.Apply(c, ch, "", nil) {
			pc.Report(w)
		}
	}
	return nil
}

func ppmsFigure(m *domain.Section) error {
	temp := m.First("data").Floats("temperature")
	if len(temp) == 0 {
		return nil
	}
	var series []plot.Series
	for _, c := range m.Sub("channels") {
		v := c.Floats("resistance")
		if len(v) == 0 {
			v = c.Floats("resistivity")
		}
		if len(v) > 0 {
			series = append(series, plot.Series{Name: c.Str("name"), Values: v})
		}
	}
	if len(series) == 0 {
		return nil
	}
	return plot.Replace(m, []string{"resistance"}, []plot.Figure{plot.PPMSResistance(temp, series)})
}
