// Package pluginkit holds the helpers the lab plugins share for moving
// decoded record trees into sections.
package pluginkit

import (
	"context"
	"fmt"
	"math"
	"path"
	"strings"
	"unicode"

	"elncore/internal/errs"
	"elncore/internal/formats"
	"elncore/internal/record"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
	"elncore/pkg/units"
)

const component = "plugins.kit"

// FieldName turns a vendor label into a quantity name, e.g.
// "Hall Mobility" becomes "hall_mobility" and "Temp.(K)" becomes "temp_k".
func FieldName(label string) string {
	var b strings.Builder
	pending := false
	for _, r := range label {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pending = true
	}
	return b.String()
}

// Report forwards decoder warnings to the context.
func Report(pc pluginapi.Context, warn formats.Warnings) {
	for _, w := range warn {
		pc.Report(w)
	}
}

// Apply copies the values of t onto sec. A key names a quantity through
// aliases or FieldName. Nested trees fill declared subsections of the same
// name. Values without a home become Parameters of sec, grouped under
// group, when sec declares "parameters"; otherwise they are dropped. The
// returned warnings list values that did not fit their quantity.
func Apply(sec *domain.Section, t *record.Tree, group string, aliases map[string]string) []error {
	if sec == nil || t == nil {
		return nil
	}
	var warn []error
	for _, key := range t.Keys() {
		v, _ := t.Get(key)
		field := aliases[key]
		if field == "-" {
			continue
		}
		if field == "" {
			field = FieldName(key)
		}
		if sub, ok := v.(*record.Tree); ok {
			if _, declared := sec.Definition().SubSection(field); declared {
				child, err := sec.NewSub(field)
				if err != nil {
					warn = append(warn, err)
					continue
				}
				warn = append(warn, Apply(child, sub, group, aliases)...)
				continue
			}
			prefix := key
			if group != "" {
				prefix = group + "/" + key
			}
			warn = append(warn, Apply(sec, sub, prefix, aliases)...)
			continue
		}
		if _, declared := sec.Definition().Quantity(field); declared {
			err := set(sec, field, v)
			if err == nil {
				continue
			}
			warn = append(warn, errs.Warnf(errs.ErrFileGrammar, component, "apply", "%s: %v", key, err))
		}
		if err := AddParameter(sec, group, key, v); err != nil {
			warn = append(warn, err)
		}
	}
	return warn
}

func set(sec *domain.Section, field string, v any) error {
	q, _ := sec.Definition().Quantity(field)
	if s, ok := v.(string); ok && q.Type == domain.TypeFloat && q.Shape == domain.Scalar {
		f, err := formats.ParseFloat(s)
		if err != nil {
			return err
		}
		v = f
	}
	return sec.Set(field, v)
}

// AddParameter records a value without a typed home as a Parameter of sec.
// Sections without "parameters" ignore the call.
func AddParameter(sec *domain.Section, group, name string, v any) error {
	if _, ok := sec.Definition().SubSection("parameters"); !ok {
		return nil
	}
	p, err := sec.NewSub("parameters")
	if err != nil {
		return err
	}
	p.MustSet("name", name)
	if group != "" {
		p.MustSet("group", group)
	}
	switch t := v.(type) {
	case float64:
		if !math.IsNaN(t) {
			p.MustSet("value", t)
		}
	case int64:
		p.MustSet("value", float64(t))
	case units.Quantity:
		p.MustSet("value", t.Magnitude)
		p.MustSet("unit", t.Unit.String())
	case bool:
		p.MustSet("value_string", fmt.Sprint(t))
	case string:
		p.MustSet("value_string", t)
	case []float64:
		p.MustSet("value_string", fmt.Sprint(t))
	case []string:
		p.MustSet("value_string", strings.Join(t, ", "))
	}
	return nil
}

// AddSample appends a sample reference to an activity, resolved by lab_id
// among composite systems.
func AddSample(ctx context.Context, pc pluginapi.Context, activity *domain.Section, labID string) error {
	labID = strings.TrimSpace(labID)
	if labID == "" {
		return nil
	}
	for _, s := range activity.Sub("samples") {
		if s.Str("lab_id") == labID {
			return nil
		}
	}
	ref := pc.Resolve(ctx, labID, schema.CompositeSystem)
	s, err := activity.NewSub("samples")
	if err != nil {
		return err
	}
	s.MustSet("name", labID).MustSet("lab_id", labID)
	return s.Set("reference", ref)
}

// AddInstrument appends an instrument reference to an activity.
func AddInstrument(ctx context.Context, pc pluginapi.Context, activity *domain.Section, labID string) error {
	labID = strings.TrimSpace(labID)
	if labID == "" {
		return nil
	}
	ref := pc.Resolve(ctx, labID, schema.Instrument)
	s, err := activity.NewSub("instruments")
	if err != nil {
		return err
	}
	s.MustSet("name", labID).MustSet("lab_id", labID)
	return s.Set("reference", ref)
}

// Fatal reports the decoder warnings and promotes err to a parse failure of
// component.
func Fatal(pc pluginapi.Context, warn formats.Warnings, err error, comp string) error {
	Report(pc, warn)
	if errs.IsFatal(err) {
		return err
	}
	return errs.WrapFatal(err, comp, "parse")
}

// WorkbookDef declares a lab's workbook section: the upload entry of a
// vendor workbook listing the archives created from its rows.
func WorkbookDef(name string) domain.SectionDef {
	return domain.SectionDef{
		Name:        name,
		Extends:     []string{schema.Entity},
		Description: "A vendor workbook and the archives created from its rows.",
		Quantities: []domain.QuantityDef{
			{Name: "kind", Type: domain.TypeString},
			{Name: "archives", Type: domain.TypeReference, Shape: domain.Vector},
		},
	}
}

// Workbook builds the entry of the workbook being parsed.
func Workbook(pc pluginapi.Context, typ, kind string, refs []domain.Reference) *domain.Section {
	w := pc.Schema().MustNew(typ)
	w.MustSet("name", path.Base(pc.Mainfile())).MustSet("kind", kind)
	if len(refs) > 0 {
		w.MustSet("archives", refs)
	}
	return w
}

// Vectors stores the columns of data as vector quantities of sec, converted
// from the unit unitTree gives for the column. A column is named through
// columns or FieldName; undeclared columns are skipped. Columns with an
// unknown unit are skipped with a warning.
func Vectors(sec *domain.Section, data, unitTree *record.Tree, columns map[string]string) []error {
	if data == nil {
		return nil
	}
	var warn []error
	for _, col := range data.Keys() {
		field := columns[col]
		if field == "-" {
			continue
		}
		if field == "" {
			field = FieldName(col)
		}
		if q, ok := sec.Definition().Quantity(field); !ok || q.Shape != domain.Vector {
			continue
		}
		var u units.Unit
		if unitTree != nil && unitTree.Str(col) != "" {
			parsed, err := units.Default().Parse(unitTree.Str(col))
			if err != nil {
				warn = append(warn, errs.Warnf(errs.ErrUnknownUnit, component, "vectors", "column %q: %v", col, err))
				continue
			}
			u = parsed
		}
		if err := sec.SetVector(field, data.Floats(col), u); err != nil {
			warn = append(warn, errs.Warnf(errs.ErrUnknownUnit, component, "vectors", "column %q: %v", col, err))
		}
	}
	return warn
}
