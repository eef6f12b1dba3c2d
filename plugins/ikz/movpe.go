package ikz

import (
	"context"

	"elncore/internal/errs"
	"elncore/internal/formats/growthxlsx"
	"elncore/pkg/domain"
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
	"elncore/plugins/internal/movpe"
	"elncore/plugins/internal/pluginkit"
)

var ikzMovpe = movpe.Types{Growth: schema.GrowthMovpeIKZ, Experiment: schema.ExperimentMovpeIKZ}

func parseMovpe(ctx context.Context, pc pluginapi.Context, data []byte) (*domain.Section, error) {
	wb, err := growthxlsx.Decode(data)
	if err != nil {
		return nil, err
	}
	sheet, ok := wb.Sheet(growthxlsx.SheetDepositionControl)
	if !ok {
		return nil, errs.Fatalf("plugins.ikz.movpe", "parse", "workbook has no %q sheet", growthxlsx.SheetDepositionControl)
	}
	refs, err := movpe.Build(ctx, pc, sheet, ikzMovpe, nil)
	if err != nil {
		return nil, err
	}
	return workbookSection(pc, "movpe", refs), nil
}

func workbookSection(pc pluginapi.Context, kind string, refs []domain.Reference) *domain.Section {
	return pluginkit.Workbook(pc, WorkbookIKZ, kind, refs)
}
