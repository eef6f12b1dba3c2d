package cpfs

import (
	"context"
	"fmt"
	"strings"

	"elncore/internal/archive"
	"elncore/internal/errs"
	"elncore/internal/formats/growthxlsx"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
	"elncore/plugins/internal/pluginkit"
)

const growthComponent = "plugins.cpfs.growth"

// SheetSteps lists the steps of every crystal of an Overview sheet.
const SheetSteps = "Steps"

// Overview columns.
const (
	colCrystalID     = "Crystal ID"
	colMethod        = "Method"
	colHostFormula   = "Host Formula"
	colDate          = "Date"
	colDescription   = "Description"
	colInitial       = "Initial Material"
	colInitialMass   = "Initial Mass"
	colImpurity      = "Impurity Element"
	colSubstitution  = "Substitution Element"
	colConcentration = "Concentration"
	colStepName      = "Step Name"
	colDuration      = "Duration"
)

// growthMethods maps the Method column onto the process and step types.
var growthMethods = map[string][2]string{
	"bridgman":                  {schema.Bridgman, schema.BridgmanStep},
	"czochralski":               {schema.Czochralski, schema.CzochralskiStep},
	"cvt":                       {schema.CVT, schema.CVTStep},
	"chemical vapour transport": {schema.CVT, schema.CVTStep},
	"chemical vapor transport":  {schema.CVT, schema.CVTStep},
	"flux":                      {schema.FluxGrowth, schema.FluxGrowthStep},
	"flux growth":               {schema.FluxGrowth, schema.FluxGrowthStep},
	"floating zone":             {schema.FloatingZone, schema.FloatingZoneStep},
	"fz":                        {schema.FloatingZone, schema.FloatingZoneStep},
}

type column struct {
	name, field, unit string
}

// processColumns are Overview columns stored on the growth process when its
// type declares the field.
var processColumns = []column{
	{"Crucible Material", "crucible_material", ""},
	{"Seed Orientation", "seed_orientation", ""},
	{"Flux", "flux", ""},
	{"Ampoule Material", "ampoule_material", ""},
	{"Ampoule Length", "ampoule_length", "cm"},
}

// stepColumns are Steps columns stored on a step when its type declares the
// field.
var stepColumns = []column{
	{"Temperature", "temperature", "degC"},
	{"Pulling Rate", "pulling_rate", "mm/h"},
	{"Rotation", "rotation", "rpm"},
	{"Crystal Rotation", "crystal_rotation", "rpm"},
	{"Crucible Rotation", "crucible_rotation", "rpm"},
	{"Heater Power", "heater_power", "kW"},
	{"Atmosphere", "atmosphere", ""},
	{"Pressure", "pressure", "mbar"},
	{"Source Temperature", "source_temperature", "degC"},
	{"Sink Temperature", "sink_temperature", "degC"},
	{"Transport Agent", "transport_agent", ""},
	{"Agent Mass", "agent_mass", "mg"},
	{"Cooling Rate", "cooling_rate", "K/h"},
	{"Lamp Power", "lamp_power", "W"},
	{"Feed Rate", "feed_rate", "mm/h"},
	{"Seed Rate", "seed_rate", "mm/h"},
	{"Feed Rotation", "feed_rotation", "rpm"},
	{"Seed Rotation", "seed_rotation", "rpm"},
	{"Comment", "comment", ""},
}

// CrystalFile and GrowthFile name the archives of a crystal and the process
// that grew it.
func CrystalFile(crystalID string) string {
	return fmt.Sprintf("%s.%s.archive.yaml", archive.Sanitize(crystalID), schema.MixedCrystal)
}

func GrowthFile(crystalID, typ string) string {
	return fmt.Sprintf("%s.%s.archive.yaml", archive.Sanitize(crystalID), typ)
}

func parseGrowth(ctx context.Context, pc pluginapi.Context, data []byte) (*domain.Section, error) {
	wb, err := growthxlsx.Decode(data)
	if err != nil {
		return nil, err
	}
	overview, ok := wb.Sheet(growthxlsx.SheetOverview)
	if !ok {
		return nil, errs.Fatalf(growthComponent, "parse", "workbook has no %q sheet", growthxlsx.SheetOverview)
	}
	if err := overview.Require(colCrystalID, colMethod); err != nil {
		return nil, errs.WrapFatal(err, growthComponent, "parse")
	}
	steps := map[string][]growthxlsx.Row{}
	if s, ok := wb.Sheet(SheetSteps); ok {
		if err := s.Require(colCrystalID); err != nil {
			pc.Report(err)
		} else {
			for _, g := range s.GroupBy(colCrystalID) {
				steps[g.Key] = g.Rows
			}
		}
	}
	var refs []domain.Reference
	for _, r := range overview.Rows {
		id := r.Str(colCrystalID)
		if id == "" {
			pc.Report(errs.AtLine(errs.Errorf(errs.ErrMissingColumn, growthComponent, "parse",
				"sheet %q row %d has no %q, skipped", overview.Name, r.Index, colCrystalID), r.Index+2))
			continue
		}
		types, ok := growthMethods[strings.ToLower(strings.TrimSpace(r.Str(colMethod)))]
		if !ok {
			pc.Report(errs.Errorf(errs.ErrFileGrammar, growthComponent, "parse",
				"crystal %q: unknown growth method %q, skipped", id, r.Str(colMethod)))
			continue
		}
		ref, err := crystalGrowth(ctx, pc, r, id, types, steps[id])
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return pluginkit.Workbook(pc, WorkbookCPFS, "crystal growth", refs), nil
}

// crystalGrowth emits the grown crystal, then the process referencing it.
func crystalGrowth(ctx context.Context, pc pluginapi.Context, r growthxlsx.Row, id string, types [2]string, stepRows []growthxlsx.Row) (domain.Reference, error) {
	crystal, err := mixedCrystal(pc, r, id)
	if err != nil {
		return domain.Reference{}, errs.WrapFatal(err, growthComponent, "crystal")
	}
	crystalRef, err := pc.Emit(ctx, crystal, CrystalFile(id))
	if err != nil {
		return domain.Reference{}, err
	}
	crystalRef.LabID, crystalRef.Name = id, id

	g := pc.Schema().MustNew(types[0])
	g.MustSet("name", id+" growth").MustSet("lab_id", id+" growth").MustSet("crystal_id", id).MustSet("method", r.Str(colMethod))
	if d := r.Str(colDate); d != "" {
		if err := g.Set("datetime", d); err != nil {
			pc.Report(errs.Warnf(errs.ErrFileGrammar, growthComponent, "parse", "crystal %q date: %v", id, err))
		}
	}
	if v := r.Str(colDescription); v != "" {
		g.MustSet("description", v)
	}
	if err := setColumns(g, r, processColumns, 0); err != nil {
		return domain.Reference{}, errs.WrapFatal(err, growthComponent, "process")
	}
	for i := 0; i < r.Sheet().Groups(colInitial); i++ {
		name := strings.TrimSpace(r.Str(growthxlsx.GroupColumn(colInitial, i)))
		if name == "" {
			continue
		}
		m := g.MustNewSub("initial_materials")
		m.MustSet("name", name)
		if q, ok := r.Quantity(growthxlsx.GroupColumn(colInitialMass, i), "g"); ok {
			if err := pluginkit.AddParameter(g, "initial materials", name, q); err != nil {
				return domain.Reference{}, err
			}
		}
	}
	for _, sr := range stepRows {
		step, err := g.NewSubOf("steps", types[1])
		if err != nil {
			return domain.Reference{}, errs.WrapFatal(err, growthComponent, "step")
		}
		name := sr.Str(colStepName)
		if name == "" {
			name = fmt.Sprintf("step %d", len(g.Sub("steps")))
		}
		step.MustSet("name", name)
		if q, ok := sr.Quantity(colDuration, "h"); ok {
			step.MustSet("duration", q)
		}
		if err := setColumns(step, sr, stepColumns, 0); err != nil {
			return domain.Reference{}, errs.WrapFatal(err, growthComponent, "step")
		}
	}
	s := g.MustNewSub("samples")
	s.MustSet("name", id).MustSet("lab_id", id).MustSet("reference", crystalRef)
	out := g.MustNewSub("outputs")
	out.MustSet("name", id).MustSet("section", crystalRef)

	ref, err := pc.Emit(ctx, g, GrowthFile(id, types[0]))
	if err != nil {
		return domain.Reference{}, err
	}
	ref.LabID, ref.Name = g.Str("lab_id"), g.Str("name")
	return ref, nil
}

func mixedCrystal(pc pluginapi.Context, r growthxlsx.Row, id string) (*domain.Section, error) {
	c := pc.Schema().MustNew(schema.MixedCrystal)
	c.MustSet("name", id).MustSet("lab_id", id).MustSet("crystal_id", id)
	if f := r.Str(colHostFormula); f != "" {
		c.MustSet("host_formula", f)
	}
	for i := 0; i < r.Sheet().Groups(colImpurity, colSubstitution); i++ {
		el := r.Str(growthxlsx.GroupColumn(colImpurity, i))
		if el == "" {
			continue
		}
		imp, err := c.NewSub("impurities")
		if err != nil {
			return nil, err
		}
		imp.MustSet("element", el)
		if s := r.Str(growthxlsx.GroupColumn(colSubstitution, i)); s != "" {
			imp.MustSet("substitution_element", s)
		}
		if q, ok := r.Quantity(growthxlsx.GroupColumn(colConcentration, i), "percent"); ok {
			if err := imp.Set("concentration", q); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// setColumns stores the columns of r that sec declares, reading numeric
// cells in the column's unit.
func setColumns(sec *domain.Section, r growthxlsx.Row, cols []column, group int) error {
	for _, c := range cols {
		if _, ok := sec.Definition().Quantity(c.field); !ok {
			continue
		}
		name := growthxlsx.GroupColumn(c.name, group)
		if c.unit == "" {
			if v := r.Str(name); v != "" {
				if err := sec.Set(c.field, v); err != nil {
					return err
				}
			}
			continue
		}
		if q, ok := r.Quantity(name, c.unit); ok {
			if err := sec.Set(c.field, q); err != nil {
				return err
			}
		}
	}
	return nil
}
