// Package pdi is the lab plugin of the semiconductor nanostructure group:
// molecular beam epitaxy growth-run workbooks.
package pdi

import (
	"elncore/pkg/pluginapi"
	"elncore/plugins/internal/pluginkit"
)

// WorkbookPDI is the entry type of the lab's workbooks.
const WorkbookPDI = "WorkbookPDI"

// Plugin implements the PDI lab module.
type Plugin struct{}

// New constructs a PDI plugin instance.
func New() Plugin { return Plugin{} }

func (Plugin) Name() string    { return "pdi" }
func (Plugin) Version() string { return "0.1.0" }

// Register wires the PDI sections and parsers.
func (Plugin) Register(reg pluginapi.Registry) error {
	if err := reg.RegisterSections(pluginkit.WorkbookDef(WorkbookPDI)); err != nil {
		return err
	}
	return reg.RegisterParser(pluginapi.NewParser("pdi.mbe", pluginapi.Matcher{
		Globs: []string{"*mbe*.xlsx"},
	}, parseMBE))
}
