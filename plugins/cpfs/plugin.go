// Package cpfs is the lab plugin of the solid-state chemistry institute:
// PPMS transport measurements with their sequence files, crystal growth and
// sample-cut workbooks, and SEM image metadata.
package cpfs

import (
	"regexp"

	"elncore/pkg/pluginapi"
	"elncore/plugins/internal/pluginkit"
)

// WorkbookCPFS is the entry type of the lab's workbooks.
const WorkbookCPFS = "WorkbookCPFS"

// Plugin implements the CPfS lab module.
type Plugin struct{}

// New constructs a CPfS plugin instance.
func New() Plugin { return Plugin{} }

func (Plugin) Name() string    { return "cpfs" }
func (Plugin) Version() string { return "0.2.0" }

// Register wires the CPfS sections and parsers.
func (Plugin) Register(reg pluginapi.Registry) error {
	if err := reg.RegisterSections(pluginkit.WorkbookDef(WorkbookCPFS)); err != nil {
		return err
	}
	for _, p := range []pluginapi.Parser{
		pluginapi.NewParser("cpfs.ppms", pluginapi.Matcher{
			Globs:   []string{"*.dat"},
			Content: regexp.MustCompile(`(?s)\[Header\].*\[Data\]`),
		}, parsePPMS),
		pluginapi.NewParser("cpfs.growth", pluginapi.Matcher{
			Globs: []string{"*crystal*growth*.xlsx", "*growth*log*.xlsx"},
		}, parseGrowth),
		pluginapi.NewParser("cpfs.samplecut", pluginapi.Matcher{
			Globs: []string{"*sample*cut*.xlsx"},
		}, parseSampleCuts),
		pluginapi.NewParser("cpfs.sem", pluginapi.Matcher{
			Globs: []string{"*.tif", "*.tiff"},
		}, parseSEM),
	} {
		if err := reg.RegisterParser(p); err != nil {
			return err
		}
	}
	return nil
}
