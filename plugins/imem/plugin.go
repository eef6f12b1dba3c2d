// Package imem is the lab plugin of the oxide epitaxy group: MOVPE growth
// runs fed by precursor solutions, and RTG SIMS depth profiles.
package imem

import (
	"regexp"

	"elncore/pkg/pluginapi"
	"elncore/plugins/internal/pluginkit"
)

// WorkbookIMEM is the entry type of the lab's workbooks.
const WorkbookIMEM = "WorkbookIMEM"

// Plugin implements the IMEM lab module.
type Plugin struct{}

// New constructs an IMEM plugin instance.
func New() Plugin { return Plugin{} }

func (Plugin) Name() string    { return "imem" }
func (Plugin) Version() string { return "0.2.0" }

// Register wires the IMEM sections and parsers.
func (Plugin) Register(reg pluginapi.Registry) error {
	if err := reg.RegisterSections(pluginkit.WorkbookDef(WorkbookIMEM)); err != nil {
		return err
	}
	for _, p := range []pluginapi.Parser{
		pluginapi.NewParser("imem.movpe", pluginapi.Matcher{
			Globs: []string{"*movpe*imem*.xlsx", "*imem*movpe*.xlsx"},
		}, parseMovpe),
		pluginapi.NewParser("imem.sims", pluginapi.Matcher{
			Globs:   []string{"*.dp_ascii", "*dp_ascii*.txt"},
			Content: regexp.MustCompile(`(?m)^\s*ELEMENT\s`),
		}, parseSIMS),
	} {
		if err := reg.RegisterParser(p); err != nil {
			return err
		}
	}
	return nil
}
