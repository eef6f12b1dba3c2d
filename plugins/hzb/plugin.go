// Package hzb is the lab plugin of the thin-film photovoltaics group:
// PerkinElmer UV-Vis-NIR transmission spectra and thermal evaporation
// chamber logs.
package hzb

import (
	"regexp"

	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
)

// Plugin implements the HZB lab module.
type Plugin struct{}

// New constructs an HZB plugin instance.
func New() Plugin { return Plugin{} }

func (Plugin) Name() string    { return "hzb" }
func (Plugin) Version() string { return "0.1.0" }

// Register wires the HZB parsers and normalizers.
func (Plugin) Register(reg pluginapi.Registry) error {
	for _, p := range []pluginapi.Parser{
		pluginapi.NewParser("hzb.uvvis", pluginapi.Matcher{
			Globs:   []string{"*.asc"},
			Content: regexp.MustCompile(`(?m)^#DATA\s*$`),
		}, parseUVVis),
		pluginapi.NewParser("hzb.evaporation", pluginapi.Matcher{
			Globs:   []string{"*evaporation*.txt", "*.evap"},
			Content: regexp.MustCompile(`(?m)^Step\tTime`),
		}, parseEvaporation),
	} {
		if err := reg.RegisterParser(p); err != nil {
			return err
		}
	}
	reg.RegisterNormalizer(schema.UVVisMeasurement, pluginapi.NormalizerFunc(extinction))
	return nil
}
