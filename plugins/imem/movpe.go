package imem

import (
	"context"
	"fmt"
	"strconv"

	"elncore/internal/archive"
	"elncore/internal/errs"
	"elncore/internal/formats/growthxlsx"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
	"elncore/plugins/internal/movpe"
	"elncore/plugins/internal/pluginkit"
)

const movpeComponent = "plugins.imem.movpe"

var imemMovpe = movpe.Types{Growth: schema.GrowthMovpeIMEM, Experiment: schema.ExperimentMovpeIMEM}

// Precursors sheet columns.
const (
	colRecipe        = "Recipe Name"
	colSolute        = "Solute"
	colSoluteMass    = "Solute Mass"
	colSolvent       = "Solvent"
	colSolventVolume = "Solvent Volume"
)

// SolutionFile names the archive of a precursor solution of massMg of
// solute in volumeML of solvent.
func SolutionFile(solute string, massMg float64, solvent string, volumeML float64) string {
	return fmt.Sprintf("%s-mass%s_%s-vol%s.%s.archive.yaml",
		archive.Sanitize(solute), formatNumber(massMg), archive.Sanitize(solvent), formatNumber(volumeML), schema.Solution)
}

func formatNumber(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func parseMovpe(ctx context.Context, pc pluginapi.Context, data []byte) (*domain.Section, error) {
	wb, err := growthxlsx.Decode(data)
	if err != nil {
		return nil, err
	}
	sheet, ok := wb.Sheet(growthxlsx.SheetDepositionControl)
	if !ok {
		return nil, errs.Fatalf(movpeComponent, "parse", "workbook has no %q sheet", growthxlsx.SheetDepositionControl)
	}
	precursors := map[string][]growthxlsx.Row{}
	if p, ok := wb.Sheet(growthxlsx.SheetPrecursors); ok {
		if err := p.Require(colRecipe, colSolute, colSolvent); err != nil {
			pc.Report(err)
		} else {
			for _, g := range p.GroupBy(colRecipe) {
				precursors[g.Key] = g.Rows
			}
		}
	}
	hook := func(ctx context.Context, g *archive.Graph, growth archive.NodeID, _ []growthxlsx.Row) error {
		for _, r := range precursors[g.Section(growth).Str("recipe_id")] {
			if err := precursorSolution(ctx, pc, g, growth, r); err != nil {
				return err
			}
		}
		return nil
	}
	refs, err := movpe.Build(ctx, pc, sheet, imemMovpe, hook)
	if err != nil {
		return nil, err
	}
	return pluginkit.Workbook(pc, WorkbookIMEM, "movpe", refs), nil
}

// precursorSolution places the solution of row r in g and lists it on
// growth. Recipes sharing a solution share its archive.
func precursorSolution(ctx context.Context, pc pluginapi.Context, g *archive.Graph, growth archive.NodeID, r growthxlsx.Row) error {
	solute, solvent := r.Str(colSolute), r.Str(colSolvent)
	mass, okMass := r.Quantity(colSoluteMass, "mg")
	volume, okVol := r.Quantity(colSolventVolume, "mL")
	if solute == "" || solvent == "" || !okMass || !okVol {
		pc.Report(errs.AtLine(errs.Errorf(errs.ErrMissingColumn, movpeComponent, "precursors",
			"sheet %q row %d needs solute, solvent, mass and volume, skipped", r.Sheet().Name, r.Index), r.Index+2))
		return nil
	}
	name := fmt.Sprintf("%s-mass%s_%s-vol%s", solute, formatNumber(mass.Magnitude), solvent, formatNumber(volume.Magnitude))
	s := pc.Schema().MustNew(schema.Solution)
	s.MustSet("name", name).MustSet("lab_id", name)
	if err := s.Set("total_volume", volume); err != nil {
		return errs.WrapFatal(err, movpeComponent, "precursors")
	}
	for _, c := range []struct {
		name, role, field string
		amount            any
	}{
		{solute, "solute", "mass", mass},
		{solvent, "solvent", "volume", volume},
	} {
		comp := s.MustNewSub("solution_components")
		comp.MustSet("name", c.name).MustSet("role", c.role)
		if err := comp.Set(c.field, c.amount); err != nil {
			return errs.WrapFatal(err, movpeComponent, "precursors")
		}
		ref := pc.Resolve(ctx, c.name, schema.PureSubstance)
		if !ref.Resolved() {
			pc.Report(errs.Warnf(errs.ErrReferenceNotFound, movpeComponent, "precursors", "substance %q not found", c.name))
		}
		comp.MustSet("substance", ref)
	}
	id := g.Add(s, SolutionFile(solute, mass.Magnitude, solvent, volume.Magnitude))
	e := g.Section(growth).MustNewSub("precursor_solutions")
	e.MustSet("name", name).MustSet("lab_id", name)
	g.Link(growth, id, func(ref domain.Reference) error {
		ref.LabID, ref.Name = name, name
		return e.Set("reference", ref)
	})
	return nil
}
