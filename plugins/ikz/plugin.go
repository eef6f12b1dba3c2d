// Package ikz is the lab plugin of the crystal growth institute: Lake Shore
// Hall exports, LayTec EpiTT in-situ monitoring, MOVPE growth-run and
// substrate-inventory workbooks, and pulsed laser deposition logs.
package ikz

import (
	"regexp"

	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
	"elncore/plugins/internal/pluginkit"
)

// Section names contributed by the plugin.
const (
	WorkbookIKZ = "WorkbookIKZ"
)

// Plugin implements the IKZ lab module.
type Plugin struct{}

// New constructs an IKZ plugin instance.
func New() Plugin {
	return Plugin{}
}

// Name returns the plugin identifier.
func (Plugin) Name() string { return "ikz" }

// Version returns the plugin semantic version.
func (Plugin) Version() string { return "0.3.0" }

// Register wires the IKZ sections, parsers and normalizers.
func (Plugin) Register(reg pluginapi.Registry) error {
	if err := reg.RegisterSections(pluginkit.WorkbookDef(WorkbookIKZ)); err != nil {
		return err
	}
	parsers := []pluginapi.Parser{
		pluginapi.NewParser("ikz.hall", pluginapi.Matcher{
			Globs:   []string{"*.txt"},
			Content: regexp.MustCompile(`\[Sample parameters\]|Step \d+:`),
		}, parseHall),
		pluginapi.NewParser("ikz.laytec", pluginapi.Matcher{
			Globs:   []string{"*.dat"},
			Content: regexp.MustCompile(`(?m)^##(RUN_ID|YUNITS)`),
		}, parseLayTec),
		pluginapi.NewParser("ikz.movpe", pluginapi.Matcher{
			Globs: []string{"*movpe*ikz*.xlsx", "*ikz*movpe*.xlsx"},
		}, parseMovpe),
		pluginapi.NewParser("ikz.substrates", pluginapi.Matcher{
			Globs: []string{"*substrate*.xlsx"},
		}, parseSubstrates),
		pluginapi.NewParser("ikz.pld", pluginapi.Matcher{
			Globs: []string{"*.elog"},
		}, parsePLD),
	}
	for _, p := range parsers {
		if err := reg.RegisterParser(p); err != nil {
			return err
		}
	}
	reg.RegisterNormalizer(schema.PulsedLaserDeposition, pluginapi.NormalizerFunc(laserPower))
	return nil
}
