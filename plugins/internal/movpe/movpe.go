// Package movpe builds the archive graph of a MOVPE growth-run workbook:
// thin films and stacks per row, a growth process per recipe and the
// experiment wrapping it. The IKZ and IMEM plugins share it.
package movpe

import (
	"context"
	"fmt"
	"sort"

	"elncore/internal/archive"
	"elncore/internal/errs"
	"elncore/internal/formats/growthxlsx"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
	"elncore/pkg/units"
)

const component = "plugins.movpe"

// Deposition Control columns.
const (
	colRecipe        = "Recipe Name"
	colSample        = "Sample Name"
	colSubstrate     = "Substrate Name"
	colStepIndex     = "Step Index"
	colStepName      = "Step Name"
	colDate          = "Date"
	colMaterial      = "Material"
	colDuration      = "Duration"
	colPressure      = "Pressure"
	colRotation      = "Rotation"
	colCarrierGas    = "Carrier Gas"
	colTempShaft     = "Temperature Shaft"
	colTempFilament  = "Temperature Filament"
	colTempLayTec    = "Temperature LayTec"
	colGrowthRate    = "Growth Rate"
	colReactorTime   = "Reactor Time"
	colComment       = "Comment"
	colBubblerMat    = "Bubbler Material"
	colBubblerTemp   = "Bubbler Temp"
	colBubblerPres   = "Bubbler Pressure"
	colPartialPres   = "Partial Pressure"
	colBubblerDil    = "Bubbler Dilution"
	colBubblerSource = "Source"
	colBubblerInject = "Inject"
	colBubblerValve  = "Bubbler Valve"
	colGasLine       = "Gas Line"
	colGasFlow       = "Gas Flow"
)

// quantityColumn is a numeric column stored into a quantity, read in unit.
type quantityColumn struct {
	column, field, unit string
}

var movpeStepColumns = []quantityColumn{
	{colDuration, "duration", "min"},
	{colPressure, "pressure", "mbar"},
	{colRotation, "rotation", "rpm"},
	{colTempShaft, "temperature_shaft", "degC"},
	{colTempFilament, "temperature_filament", "degC"},
	{colTempLayTec, "temperature_laytec", "degC"},
}

var bubblerColumns = []quantityColumn{
	{colBubblerTemp, "temperature", "degC"},
	{colBubblerPres, "pressure", "mbar"},
	{colPartialPres, "partial_pressure", "mbar"},
	{colBubblerDil, "dilution", "sccm"},
	{colBubblerSource, "source", "sccm"},
	{colBubblerInject, "inject", "sccm"},
}

func setQuantities(sec *domain.Section, r growthxlsx.Row, cols []quantityColumn, group int) error {
	for _, c := range cols {
		q, ok := r.Quantity(growthxlsx.GroupColumn(c.column, group), c.unit)
		if !ok {
			continue
		}
		if err := sec.Set(c.field, q); err != nil {
			return err
		}
	}
	return nil
}

// LayerFile, StackFile and GrowthFile name the archives a growth run
// creates.
func LayerFile(sample string, row int) string {
	return fmt.Sprintf("%s_%d.%s.archive.yaml", archive.Sanitize(sample), row, schema.ThinFilm)
}

func StackFile(sample string, row int) string {
	return fmt.Sprintf("%s_%d.%s.archive.yaml", archive.Sanitize(sample), row, schema.ThinFilmStack)
}

func GrowthFile(recipe, typ string) string {
	return fmt.Sprintf("%s.%s.archive.yaml", archive.Sanitize(recipe), typ)
}

// Types names the section types a growth-run workbook emits.
type Types struct {
	Growth, Experiment string
}

// GrowthHook lets a lab add to a growth process before it is emitted.
// Sections the hook adds to g and links from growth are emitted before it.
type GrowthHook func(ctx context.Context, g *archive.Graph, growth archive.NodeID, rows []growthxlsx.Row) error

// Build turns a Deposition Control sheet into archives: per row a thin
// film and its stack, per recipe a growth process with one step per row and
// an experiment referencing it. Recipes whose experiment exists in the
// upload under another archive are skipped with a warning; reprocessing the
// same workbook rebuilds them. The experiment references are returned in
// sheet order.
func Build(ctx context.Context, pc pluginapi.Context, sheet *growthxlsx.Sheet, types Types, hook GrowthHook) ([]domain.Reference, error) {
	if err := sheet.Require(colRecipe, colSample, colStepIndex); err != nil {
		return nil, errs.WrapFatal(err, component, "parse")
	}
	var out []domain.Reference
	for _, g := range sheet.GroupBy(colRecipe) {
		dup, err := foreignExperiment(ctx, pc, g.Key, types.Experiment)
		if err != nil {
			return nil, err
		}
		if dup {
			pc.Report(errs.Warnf(errs.ErrDuplicateEntry, component, "parse",
				"experiment %q already exists in the upload, skipped", g.Key))
			continue
		}
		ref, err := buildRecipe(ctx, pc, g, types, hook)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

// foreignExperiment reports whether an experiment labelled recipe exists in
// the upload without being the archive this recipe writes.
func foreignExperiment(ctx context.Context, pc pluginapi.Context, recipe, typ string) (bool, error) {
	exists, err := pc.ExistsInUpload(ctx, recipe, typ)
	if err != nil {
		return false, fmt.Errorf("%s: lookup %s: %w", component, recipe, err)
	}
	if !exists {
		return false, nil
	}
	own, err := pc.RawExists(ctx, GrowthFile(recipe, typ))
	if err != nil {
		return false, fmt.Errorf("%s: lookup %s: %w", component, recipe, err)
	}
	return !own, nil
}

func labelled(labID, name string, assign func(domain.Reference) error) func(domain.Reference) error {
	return func(r domain.Reference) error {
		r.LabID, r.Name = labID, name
		return assign(r)
	}
}

func buildRecipe(ctx context.Context, pc pluginapi.Context, grp growthxlsx.Group, types Types, hook GrowthHook) (domain.Reference, error) {
	rows := append([]growthxlsx.Row(nil), grp.Rows...)
	sort.SliceStable(rows, func(i, j int) bool {
		a, _ := rows[i].Int(colStepIndex)
		b, _ := rows[j].Int(colStepIndex)
		return a < b
	})
	g := archive.NewGraph()
	growth := pc.Schema().MustNew(types.Growth)
	growth.MustSet("name", grp.Key).MustSet("lab_id", grp.Key).MustSet("recipe_id", grp.Key).MustSet("method", "MOVPE")
	growthID := g.Add(growth, GrowthFile(grp.Key, types.Growth))
	stacks := map[string]archive.NodeID{}
	var used []growthxlsx.Row
	for _, r := range rows {
		sample := r.Str(colSample)
		if sample == "" {
			pc.Report(errs.AtLine(errs.Errorf(errs.ErrMissingColumn, component, "parse",
				"sheet %q row %d has no %q, skipped", r.Sheet().Name, r.Index, colSample), r.Index+2))
			continue
		}
		stackID, err := buildStep(ctx, pc, g, growthID, r, sample)
		if err != nil {
			return domain.Reference{}, err
		}
		if _, ok := stacks[sample]; !ok {
			stacks[sample] = stackID
			gs := growth.MustNewSub("samples")
			gs.MustSet("name", sample+" stack").MustSet("lab_id", sample)
			g.Link(growthID, stackID, labelled(sample, sample+" stack", func(ref domain.Reference) error {
				return gs.Set("reference", ref)
			}))
		}
		used = append(used, r)
	}
	if len(used) > 0 {
		if d := used[0].Str(colDate); d != "" {
			if err := growth.Set("datetime", d); err != nil {
				pc.Report(errs.Warnf(errs.ErrFileGrammar, component, "parse", "recipe %q date: %v", grp.Key, err))
			}
		}
	}
	if hook != nil {
		if err := hook(ctx, g, growthID, used); err != nil {
			return domain.Reference{}, err
		}
	}

	exp := pc.Schema().MustNew(types.Experiment)
	exp.MustSet("name", grp.Key+" experiment").MustSet("lab_id", grp.Key).MustSet("method", "MOVPE")
	if d, ok := growth.Time("datetime"); ok {
		exp.MustSet("datetime", d)
	}
	expID := g.Add(exp, GrowthFile(grp.Key, types.Experiment))
	g.Link(expID, growthID, labelled(grp.Key, grp.Key, func(ref domain.Reference) error {
		return exp.Set("growth_run", ref)
	}))
	step := exp.MustNewSub("experiment_steps")
	step.MustSet("name", "growth")
	g.Link(expID, growthID, labelled(grp.Key, grp.Key, func(ref domain.Reference) error {
		return step.Set("activity", ref)
	}))
	for _, s := range growth.Sub("samples") {
		ss := exp.MustNewSub("samples")
		ss.MustSet("name", s.Str("name")).MustSet("lab_id", s.Str("lab_id"))
		g.Link(expID, stacks[s.Str("lab_id")], labelled(s.Str("lab_id"), s.Str("name"), func(ref domain.Reference) error {
			return ss.Set("reference", ref)
		}))
	}

	refs, err := g.Emit(ctx, pc)
	if err != nil {
		return domain.Reference{}, err
	}
	ref := refs[expID]
	ref.LabID, ref.Name = grp.Key, exp.Str("name")
	return ref, nil
}

// buildStep places the thin film and the stack of row r in g and appends
// to growth the step that made them. The stack lists the film; the film
// does not point back, so every reference is written after its target.
func buildStep(ctx context.Context, pc pluginapi.Context, g *archive.Graph, growthID archive.NodeID, r growthxlsx.Row, sample string) (archive.NodeID, error) {
	growth := g.Section(growthID)
	layer := pc.Schema().MustNew(schema.ThinFilm)
	layer.MustSet("name", sample+" layer").MustSet("lab_id", sample+"-layer")
	if m := r.Str(colMaterial); m != "" {
		layer.MustSet("chemical_formula", m)
	}
	layerID := g.Add(layer, LayerFile(sample, r.Index))
	withLayer := func(assign func(domain.Reference) error) func(domain.Reference) error {
		return labelled(layer.Str("lab_id"), layer.Str("name"), assign)
	}

	stack := pc.Schema().MustNew(schema.ThinFilmStack)
	stack.MustSet("name", sample+" stack").MustSet("lab_id", sample)
	var substrateRef domain.Reference
	if sub := r.Str(colSubstrate); sub != "" {
		substrateRef = pc.Resolve(ctx, sub, schema.Substrate)
		substrateRef.LabID, substrateRef.Name = sub, sub
		stack.MustSet("substrate", substrateRef)
	}
	stackID := g.Add(stack, StackFile(sample, r.Index))
	g.Link(stackID, layerID, withLayer(func(ref domain.Reference) error {
		return stack.Set("layers", []domain.Reference{ref})
	}))

	step, err := growth.NewSubOf("steps", schema.GrowthStepMovpe)
	if err != nil {
		return 0, err
	}
	idx, _ := r.Int(colStepIndex)
	name := r.Str(colStepName)
	if name == "" {
		name = fmt.Sprintf("step %d", idx)
	}
	step.MustSet("name", name).MustSet("step_index", idx)
	if c := r.Str(colCarrierGas); c != "" {
		step.MustSet("carrier_gas", c)
	}
	if c := r.Str(colComment); c != "" {
		step.MustSet("comment", c)
	}
	if err := setQuantities(step, r, movpeStepColumns, 0); err != nil {
		return 0, err
	}
	if t, p := r.CellSeries(colReactorTime, colPressure); len(t) > 1 {
		if err := step.SetVector("process_time", t, units.Default().MustParse("min")); err != nil {
			return 0, err
		}
		if err := step.SetVector("process_pressure", p, units.Default().MustParse("mbar")); err != nil {
			return 0, err
		}
	}
	sp := step.MustNewSub("sample_parameters")
	sp.MustSet("name", sample)
	g.Link(growthID, layerID, withLayer(func(ref domain.Reference) error {
		return sp.Set("layer", ref)
	}))
	g.Link(growthID, stackID, labelled(sample, sample+" stack", func(ref domain.Reference) error {
		return sp.Set("stack", ref)
	}))
	if !substrateRef.IsZero() {
		sp.MustSet("substrate", substrateRef)
	}
	if q, ok := r.Quantity(colTempLayTec, "degC"); ok {
		sp.MustSet("temperature", q)
	}
	if q, ok := r.Quantity(colGrowthRate, "nm/min"); ok {
		sp.MustSet("growth_rate", q)
	}
	for i := 0; i < r.Sheet().Groups(colBubblerMat, colBubblerTemp); i++ {
		mat := r.Str(growthxlsx.GroupColumn(colBubblerMat, i))
		if mat == "" {
			continue
		}
		b := step.MustNewSub("bubblers")
		b.MustSet("material", mat)
		if v := r.Str(growthxlsx.GroupColumn(colBubblerValve, i)); v != "" {
			b.MustSet("bubbler_valve", v)
		}
		if err := setQuantities(b, r, bubblerColumns, i); err != nil {
			return 0, err
		}
	}
	for i := 0; i < r.Sheet().Groups(colGasLine, colGasFlow); i++ {
		line := r.Str(growthxlsx.GroupColumn(colGasLine, i))
		if line == "" {
			continue
		}
		gl := step.MustNewSub("gas_lines")
		gl.MustSet("name", line)
		if q, ok := r.Quantity(growthxlsx.GroupColumn(colGasFlow, i), "sccm"); ok {
			gl.MustSet("flow", q)
		}
	}
	return stackID, nil
}
