package cpfs

import (
	"context"
	"fmt"

	"elncore/internal/archive"
	"elncore/internal/errs"
	"elncore/internal/formats/growthxlsx"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
	"elncore/plugins/internal/pluginkit"
)

const cutComponent = "plugins.cpfs.samplecut"

// SheetSampleCut lists the cuts of parent samples.
const SheetSampleCut = "Sample Cut"

const (
	colParentID = "Parent ID"
	colChildren = "Number of Children"
)

// CutFile names the archive of the cut of a parent sample.
func CutFile(parentLabID string) string {
	return fmt.Sprintf("%s.%s.archive.yaml", archive.Sanitize(parentLabID), schema.SampleCut)
}

// parseSampleCuts emits one cut per row. The children are created when the
// emitted cut is normalized.
func parseSampleCuts(ctx context.Context, pc pluginapi.Context, data []byte) (*domain.Section, error) {
	wb, err := growthxlsx.Decode(data)
	if err != nil {
		return nil, err
	}
	sheet, ok := wb.Sheet(SheetSampleCut)
	if !ok {
		return nil, errs.Fatalf(cutComponent, "parse", "workbook has no %q sheet", SheetSampleCut)
	}
	if err := sheet.Require(colParentID, colChildren); err != nil {
		return nil, errs.WrapFatal(err, cutComponent, "parse")
	}
	var refs []domain.Reference
	for _, r := range sheet.Rows {
		parent := r.Str(colParentID)
		n, ok := r.Int(colChildren)
		if parent == "" || !ok || n <= 0 {
			pc.Report(errs.AtLine(errs.Errorf(errs.ErrMissingColumn, cutComponent, "parse",
				"sheet %q row %d needs %q and a positive %q, skipped", sheet.Name, r.Index, colParentID, colChildren), r.Index+2))
			continue
		}
		cut := pc.Schema().MustNew(schema.SampleCut)
		cut.MustSet("name", parent+" cut").MustSet("lab_id", parent+" cut").MustSet("method", "sample cut")
		cut.MustSet("parent_lab_id", parent).MustSet("number_of_children", n)
		cut.MustSet("parent_sample", pc.Resolve(ctx, parent, schema.CompositeSystem))
		if d := r.Str(colDate); d != "" {
			if err := cut.Set("datetime", d); err != nil {
				pc.Report(errs.Warnf(errs.ErrFileGrammar, cutComponent, "parse", "cut of %q date: %v", parent, err))
			}
		}
		if v := r.Str(colDescription); v != "" {
			cut.MustSet("description", v)
		}
		if err := pluginkit.AddSample(ctx, pc, cut, parent); err != nil {
			return nil, errs.WrapFatal(err, cutComponent, "parse")
		}
		ref, err := pc.Emit(ctx, cut, CutFile(parent))
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return pluginkit.Workbook(pc, WorkbookCPFS, "sample cut", refs), nil
}
