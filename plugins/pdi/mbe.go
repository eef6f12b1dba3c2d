package pdi

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"elncore/internal/archive"
	"elncore/internal/errs"
	"elncore/internal/formats"
	"elncore/internal/formats/growthxlsx"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
	"elncore/pkg/units"
	"elncore/plugins/internal/pluginkit"
)

const component = "plugins.pdi.mbe"

// GrowthRun sheet columns. Source columns repeat per cell as "Source
// Element", "Source Element.1" and so on.
const (
	colGrowthID    = "Growth ID"
	colSampleID    = "Sample ID"
	colSubstrateID = "Substrate ID"
	colMaterial    = "Material"
	colDate        = "Date"
	colDescription = "Description"
	colStepName    = "Step Name"
	colDuration    = "Duration"
	colSubstrateT  = "Substrate Temperature"
	colPressure    = "Chamber Pressure"
	colTime        = "Time"
	colSource      = "Source Element"
	colCellT       = "Cell Temperature"
	colBeamFlux    = "Beam Flux"
	colShutter     = "Shutter"
)

// cellSplit separates the values of a list cell.
var cellSplit = regexp.MustCompile(`[\s;,]+`)

// GrowthFile and LayerFile name the archives of a growth run and of the
// layer it deposits on a sample.
func GrowthFile(growthID string) string {
	return fmt.Sprintf("%s.%s.archive.yaml", archive.Sanitize(growthID), schema.MBE)
}

func LayerFile(sampleID string) string {
	return fmt.Sprintf("%s.%s.archive.yaml", archive.Sanitize(sampleID), schema.ThinFilm)
}

func parseMBE(ctx context.Context, pc pluginapi.Context, data []byte) (*domain.Section, error) {
	wb, err := growthxlsx.Decode(data)
	if err != nil {
		return nil, err
	}
	sheet, ok := wb.Sheet(growthxlsx.SheetGrowthRun)
	if !ok {
		return nil, errs.Fatalf(component, "parse", "workbook has no %q sheet", growthxlsx.SheetGrowthRun)
	}
	if err := sheet.Require(colGrowthID, colSampleID); err != nil {
		return nil, errs.WrapFatal(err, component, "parse")
	}
	var refs []domain.Reference
	for _, g := range sheet.GroupBy(colGrowthID) {
		exists, err := pc.ExistsInUpload(ctx, g.Key, schema.MBE)
		if err != nil {
			return nil, fmt.Errorf("%s: lookup %s: %w", component, g.Key, err)
		}
		if exists {
			if own, err := pc.RawExists(ctx, GrowthFile(g.Key)); err != nil {
				return nil, err
			} else if !own {
				pc.Report(errs.Warnf(errs.ErrDuplicateEntry, component, "parse", "growth run %q already exists in the upload, skipped", g.Key))
				continue
			}
		}
		ref, err := growthRun(ctx, pc, g)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return pluginkit.Workbook(pc, WorkbookPDI, "mbe", refs), nil
}

// growthRun emits one layer per sample, then the growth run with one step
// per row.
func growthRun(ctx context.Context, pc pluginapi.Context, g growthxlsx.Group) (domain.Reference, error) {
	p := pc.Schema().MustNew(schema.MBE)
	p.MustSet("name", g.Key).MustSet("lab_id", g.Key).MustSet("method", "MBE")
	first := g.Rows[0]
	if d := first.Str(colDate); d != "" {
		if err := p.Set("datetime", d); err != nil {
			pc.Report(errs.Warnf(errs.ErrFileGrammar, component, "parse", "growth run %q date: %v", g.Key, err))
		}
	}
	if v := first.Str(colDescription); v != "" {
		p.MustSet("description", v)
	}
	layers := map[string]bool{}
	for _, r := range g.Rows {
		sample := strings.TrimSpace(r.Str(colSampleID))
		if sample == "" {
			pc.Report(errs.AtLine(errs.Errorf(errs.ErrMissingColumn, component, "parse",
				"sheet %q row %d has no %q, skipped", r.Sheet().Name, r.Index, colSampleID), r.Index+2))
			continue
		}
		if !layers[sample] {
			layers[sample] = true
			if err := mbeLayer(ctx, pc, p, r, sample); err != nil {
				return domain.Reference{}, err
			}
		}
		if err := mbeStep(pc, p, r); err != nil {
			return domain.Reference{}, errs.WrapFatal(err, component, "step")
		}
	}
	ref, err := pc.Emit(ctx, p, GrowthFile(g.Key))
	if err != nil {
		return domain.Reference{}, err
	}
	ref.LabID, ref.Name = g.Key, g.Key
	return ref, nil
}

func mbeLayer(ctx context.Context, pc pluginapi.Context, p *domain.Section, r growthxlsx.Row, sample string) error {
	if err := pluginkit.AddSample(ctx, pc, p, sample); err != nil {
		return errs.WrapFatal(err, component, "sample")
	}
	if sub := r.Str(colSubstrateID); sub != "" {
		s := p.MustNewSub("inputs")
		s.MustSet("name", sub).MustSet("section", pc.Resolve(ctx, sub, schema.Substrate))
	}
	id := sample + "-layer"
	l := pc.Schema().MustNew(schema.ThinFilm)
	l.MustSet("name", id).MustSet("lab_id", id)
	if m := r.Str(colMaterial); m != "" {
		l.MustSet("chemical_formula", m)
	}
	ref, err := pc.Emit(ctx, l, LayerFile(sample))
	if err != nil {
		return err
	}
	ref.LabID, ref.Name = id, id
	out := p.MustNewSub("outputs")
	out.MustSet("name", id).MustSet("section", ref)
	return nil
}

func mbeStep(pc pluginapi.Context, p *domain.Section, r growthxlsx.Row) error {
	step, err := p.NewSubOf("steps", schema.MBEStep)
	if err != nil {
		return err
	}
	name := r.Str(colStepName)
	if name == "" {
		name = fmt.Sprintf("step %d", len(p.Sub("steps")))
	}
	step.MustSet("name", name)
	if q, ok := r.Quantity(colDuration, "min"); ok {
		step.MustSet("duration", q)
	}
	if q, ok := r.Quantity(colSubstrateT, "degC"); ok {
		step.MustSet("substrate_temperature", q)
	}
	if q, ok := r.Quantity(colPressure, "Torr"); ok {
		step.MustSet("chamber_pressure", q)
	}
	times := cellFloats(r.Str(colTime))
	if len(times) > 0 {
		if err := step.SetVector("time", times, units.Default().MustParse("s")); err != nil {
			return err
		}
	}
	for i := 0; i < r.Sheet().Groups(colSource); i++ {
		el := strings.TrimSpace(r.Str(growthxlsx.GroupColumn(colSource, i)))
		if el == "" {
			continue
		}
		src, err := step.NewSub("sources")
		if err != nil {
			return err
		}
		src.MustSet("element", el)
		if q, ok := r.Quantity(growthxlsx.GroupColumn(colCellT, i), "degC"); ok {
			src.MustSet("cell_temperature", q)
		}
		if q, ok := r.Quantity(growthxlsx.GroupColumn(colBeamFlux, i), "Torr"); ok {
			src.MustSet("beam_flux", q)
		}
		raw := r.Str(growthxlsx.GroupColumn(colShutter, i))
		if raw == "" {
			continue
		}
		states, ok := shutterStates(raw)
		if !ok {
			pc.Report(errs.AtLine(errs.Warnf(errs.ErrFileGrammar, component, "step",
				"source %s shutter %q is not a list of open/closed states", el, raw), r.Index+2))
			continue
		}
		if len(times) > 0 && len(states) != len(times) {
			pc.Report(errs.AtLine(errs.Warnf(errs.ErrFileGrammar, component, "step",
				"source %s has %d shutter states for %d times", el, len(states), len(times)), r.Index+2))
		}
		src.MustSet("shutter_open", states)
	}
	return nil
}

func cellFloats(cell string) []float64 {
	var out []float64
	for _, f := range cellSplit.Split(strings.TrimSpace(cell), -1) {
		if f == "" {
			continue
		}
		v, err := formats.ParseFloat(f)
		if err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}

// shutterStates reads "open closed", "1;0" or "yes,no" lists.
func shutterStates(cell string) ([]bool, bool) {
	var out []bool
	for _, f := range cellSplit.Split(strings.TrimSpace(cell), -1) {
		switch strings.ToLower(f) {
		case "":
			continue
		case "open", "1":
			out = append(out, true)
		case "closed", "0":
			out = append(out, false)
		default:
			b, ok := formats.Bool(f)
			if !ok {
				return nil, false
			}
			out = append(out, b)
		}
	}
	return out, len(out) > 0
}
