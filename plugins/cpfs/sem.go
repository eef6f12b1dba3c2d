package cpfs

import (
	"context"
	"path"
	"strings"
	"time"

	"elncore/internal/errs"
	"elncore/internal/formats/sem"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
	"elncore/plugins/internal/pluginkit"
)

const semComponent = "plugins.cpfs.sem"

// semLayouts are the date layouts Zeiss and FEI microscopes write.
var semLayouts = []string{
	"2 Jan 2006 15:04:05",
	"02 Jan 2006 15:04:05",
	"01/02/2006 15:04:05",
	"01/02/2006 03:04:05 PM",
	"2006-01-02 15:04:05",
}

var semFields = map[string]string{
	"datetime": "-",
	"metadata": "-",
}

func parseSEM(ctx context.Context, pc pluginapi.Context, data []byte) (*domain.Section, error) {
	tree, warn, err := sem.Decode(data)
	if err != nil {
		return nil, pluginkit.Fatal(pc, warn, err, semComponent)
	}
	pluginkit.Report(pc, warn)

	base := path.Base(pc.Mainfile())
	m := pc.Schema().MustNew(schema.SEMMeasurement)
	m.MustSet("name", strings.TrimSuffix(base, path.Ext(base))).MustSet("method", "SEM")
	for _, w := range pluginkit.Apply(m, tree, "", semFields) {
		pc.Report(w)
	}
	if raw := tree.Str("datetime"); raw != "" {
		if t, ok := semTime(raw); ok {
			m.MustSet("datetime", t)
		} else {
			pc.Report(errs.Warnf(errs.ErrFileGrammar, semComponent, "parse", "acquisition time %q", raw))
		}
	}
	if meta := tree.Tree("metadata"); meta != nil {
		for _, k := range meta.Keys() {
			v, _ := meta.Get(k)
			if err := pluginkit.AddParameter(m, m.Str("vendor"), k, v); err != nil {
				return nil, errs.WrapFatal(err, semComponent, "metadata")
			}
		}
	}
	// Image names start with the sample lab_id: "S1_overview_01.tif".
	if id, _, ok := strings.Cut(m.Str("name"), "_"); ok {
		if err := pluginkit.AddSample(ctx, pc, m, id); err != nil {
			return nil, errs.WrapFatal(err, semComponent, "parse")
		}
	}
	return m, nil
}

func semTime(s string) (time.Time, bool) {
	for _, l := range semLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
