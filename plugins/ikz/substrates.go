package ikz

import (
	"context"
	"fmt"

	"elncore/internal/archive"
	"elncore/internal/errs"
	"elncore/internal/formats/growthxlsx"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
)

const substrateComponent = "plugins.ikz.substrates"

// Substrate sheet columns.
const (
	colSubstrateID    = "Substrate ID"
	colSupplier       = "Supplier"
	colSupplierID     = "Supplier ID"
	colSubMaterial    = "Material"
	colOrientation    = "Orientation"
	colLattice        = "Bravais Lattice"
	colMiscutAngle    = "Miscut Angle"
	colMiscutDev      = "Miscut Angle Deviation"
	colMiscutOrient   = "Miscut Orientation"
	colDopingElement  = "Doping Element"
	colDopingLevel    = "Doping Level"
	colDopingDev      = "Doping Deviation"
	colWidth          = "Width"
	colLength         = "Length"
	colThickness      = "Thickness"
	colQuality        = "Quality"
	colBox            = "Box"
	colAsReceived     = "As Received"
	colEtching        = "Etching"
	colAnnealing      = "Annealing"
	colEpiReady       = "Epi Ready"
	colSubstrateDate  = "Date"
	colSubstrateNotes = "Description"
)

// SubstrateFile names the archive of a substrate.
func SubstrateFile(labID string) string {
	return fmt.Sprintf("%s.%s.archive.yaml", archive.Sanitize(labID), schema.Substrate)
}

func parseSubstrates(ctx context.Context, pc pluginapi.Context, data []byte) (*domain.Section, error) {
	wb, err := growthxlsx.Decode(data)
	if err != nil {
		return nil, err
	}
	sheet, ok := wb.Sheet(growthxlsx.SheetSubstrate)
	if !ok {
		return nil, errs.Fatalf(substrateComponent, "parse", "workbook has no %q sheet", growthxlsx.SheetSubstrate)
	}
	if err := sheet.Require(colSubstrateID); err != nil {
		return nil, errs.WrapFatal(err, substrateComponent, "parse")
	}
	seen := map[string]bool{}
	var refs []domain.Reference
	for _, r := range sheet.Rows {
		id := r.Str(colSubstrateID)
		if id == "" {
			pc.Report(errs.AtLine(errs.Errorf(errs.ErrMissingColumn, substrateComponent, "parse",
				"sheet %q row %d has no %q, skipped", sheet.Name, r.Index, colSubstrateID), r.Index+2))
			continue
		}
		if seen[id] {
			pc.Report(errs.Warnf(errs.ErrDuplicateEntry, substrateComponent, "parse", "substrate %q listed twice, row %d skipped", id, r.Index))
			continue
		}
		seen[id] = true
		if skip, err := foreignDuplicate(ctx, pc, id); err != nil {
			return nil, err
		} else if skip {
			pc.Report(errs.Warnf(errs.ErrDuplicateEntry, substrateComponent, "parse", "substrate %q already exists in the upload, skipped", id))
			continue
		}
		sub, err := substrate(pc, r, id)
		if err != nil {
			return nil, errs.WrapFatal(err, substrateComponent, "row")
		}
		ref, err := pc.Emit(ctx, sub, SubstrateFile(id))
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return workbookSection(pc, "substrates", refs), nil
}

// foreignDuplicate reports whether id exists in the upload through an
// archive other than the one this workbook writes for it.
func foreignDuplicate(ctx context.Context, pc pluginapi.Context, id string) (bool, error) {
	exists, err := pc.ExistsInUpload(ctx, id, schema.Substrate)
	if err != nil || !exists {
		return false, err
	}
	own, err := pc.RawExists(ctx, SubstrateFile(id))
	if err != nil {
		return false, err
	}
	return !own, nil
}

func substrate(pc pluginapi.Context, r growthxlsx.Row, id string) (*domain.Section, error) {
	s := pc.Schema().MustNew(schema.Substrate)
	s.MustSet("name", id).MustSet("lab_id", id)
	for col, field := range map[string]string{
		colSupplier: "supplier", colSupplierID: "supplier_id", colSubMaterial: "chemical_formula",
		colQuality: "quality", colBox: "box", colSubstrateNotes: "description",
	} {
		if v := r.Str(col); v != "" {
			s.MustSet(field, v)
		}
	}
	for col, field := range map[string]string{
		colAsReceived: "as_received", colEtching: "etching", colAnnealing: "annealing", colEpiReady: "epi_ready",
	} {
		if b, ok := r.Bool(col); ok {
			s.MustSet(field, b)
		}
	}
	if d := r.Str(colSubstrateDate); d != "" {
		if err := s.Set("datetime", d); err != nil {
			pc.Report(errs.Warnf(errs.ErrFileGrammar, substrateComponent, "row", "substrate %q date: %v", id, err))
		}
	}
	geo := s.MustNewSub("geometry")
	for _, c := range []struct{ col, field string }{{colWidth, "width"}, {colLength, "length"}, {colThickness, "height"}} {
		if q, ok := r.Quantity(c.col, "mm"); ok {
			if err := geo.Set(c.field, q); err != nil {
				return nil, err
			}
		}
	}
	cp := s.MustNewSub("crystal_properties")
	if v := r.Str(colOrientation); v != "" {
		cp.MustSet("orientation", v)
	}
	if v := r.Str(colLattice); v != "" {
		cp.MustSet("bravais_lattice", v)
	}
	mc := cp.MustNewSub("miscut")
	if q, ok := r.Quantity(colMiscutAngle, "deg"); ok {
		mc.MustSet("angle", q)
	}
	if q, ok := r.Quantity(colMiscutDev, "deg"); ok {
		mc.MustSet("angle_deviation", q)
	}
	if v := r.Str(colMiscutOrient); v != "" {
		mc.MustSet("orientation", v)
	}
	for i := 0; i < r.Sheet().Groups(colDopingElement, colDopingLevel); i++ {
		el := r.Str(growthxlsx.GroupColumn(colDopingElement, i))
		if el == "" {
			continue
		}
		d := s.MustNewSub("dopants")
		d.MustSet("element", el)
		if q, ok := r.Quantity(growthxlsx.GroupColumn(colDopingLevel, i), "1/cm^3"); ok {
			d.MustSet("doping_level", q)
		}
		if q, ok := r.Quantity(growthxlsx.GroupColumn(colDopingDev, i), "1/cm^3"); ok {
			d.MustSet("doping_deviation", q)
		}
	}
	return s, nil
}
