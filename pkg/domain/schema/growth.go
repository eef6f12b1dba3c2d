package schema

import "elncore/pkg/domain"

// Growth section names.
const (
	CrystalGrowth          = "CrystalGrowth"
	BridgmanStep           = "BridgmanStep"
	Bridgman               = "BridgmanTechnique"
	CzochralskiStep        = "CzochralskiStep"
	Czochralski            = "CzochralskiProcess"
	CVTStep                = "ChemicalVapourTransportStep"
	CVT                    = "ChemicalVapourTransport"
	FluxGrowthStep         = "FluxGrowthStep"
	FluxGrowth             = "FluxGrowth"
	FloatingZoneStep       = "FloatingZoneStep"
	FloatingZone           = "FloatingZone"
	PLDStep                = "PulsedLaserDepositionStep"
	PulsedLaserDeposition  = "PulsedLaserDeposition"
	SampleParametersMovpe  = "SampleParametersMovpe"
	BubblerMovpe           = "BubblerMovpe"
	GasLineMovpe           = "GasLineMovpe"
	GrowthStepMovpe        = "GrowthStepMovpe"
	GrowthMovpe            = "GrowthMovpe"
	GrowthMovpeIKZ         = "GrowthMovpeIKZ"
	ExperimentMovpeIKZ     = "ExperimentMovpeIKZ"
	GrowthMovpeIMEM        = "GrowthMovpeIMEM"
	ExperimentMovpeIMEM    = "ExperimentMovpeIMEM"
	EvaporationSource      = "EvaporationSource"
	ThermalEvaporationStep = "ThermalEvaporationStep"
	ThermalEvaporation     = "ThermalEvaporation"
	MBESource              = "MBESource"
	MBEStep                = "MBEStep"
	MBE                    = "MolecularBeamEpitaxy"
)

func growth() []domain.SectionDef {
	atmosphere := []domain.QuantityDef{str("atmosphere"), disp(num("pressure", "Pa"), "mbar")}
	return []domain.SectionDef{
		{
			Name:        CrystalGrowth,
			Extends:     []string{Process},
			Quantities:  []domain.QuantityDef{str("crystal_id")},
			SubSections: []domain.SubSectionDef{many("initial_materials", CompositeSystem)},
		},
		{
			Name:    BridgmanStep,
			Extends: []string{ProcessStep},
			Quantities: append([]domain.QuantityDef{
				disp(num("temperature", "K"), "degC"),
				disp(num("pulling_rate", "m/s"), "mm/h"),
				disp(num("rotation", "Hz"), "rpm"),
			}, atmosphere...),
		},
		{Name: Bridgman, Extends: []string{CrystalGrowth}, Quantities: []domain.QuantityDef{str("crucible_material")}},
		{
			Name:    CzochralskiStep,
			Extends: []string{ProcessStep},
			Quantities: append([]domain.QuantityDef{
				disp(num("temperature", "K"), "degC"),
				disp(num("pulling_rate", "m/s"), "mm/h"),
				disp(num("crystal_rotation", "Hz"), "rpm"),
				disp(num("crucible_rotation", "Hz"), "rpm"),
				disp(num("heater_power", "W"), "kW"),
			}, atmosphere...),
		},
		{Name: Czochralski, Extends: []string{CrystalGrowth}, Quantities: []domain.QuantityDef{str("crucible_material"), str("seed_orientation")}},
		{
			Name:    CVTStep,
			Extends: []string{ProcessStep},
			Quantities: []domain.QuantityDef{
				disp(num("source_temperature", "K"), "degC"),
				disp(num("sink_temperature", "K"), "degC"),
				str("transport_agent"),
				disp(num("agent_mass", "kg"), "mg"),
			},
		},
		{Name: CVT, Extends: []string{CrystalGrowth}, Quantities: []domain.QuantityDef{str("ampoule_material"), disp(num("ampoule_length", "m"), "cm")}},
		{
			Name:    FluxGrowthStep,
			Extends: []string{ProcessStep},
			Quantities: []domain.QuantityDef{
				disp(num("temperature", "K"), "degC"),
				disp(num("cooling_rate", "K/s"), "K/h"),
			},
		},
		{Name: FluxGrowth, Extends: []string{CrystalGrowth}, Quantities: []domain.QuantityDef{str("flux"), str("crucible_material")}},
		{
			Name:    FloatingZoneStep,
			Extends: []string{ProcessStep},
			Quantities: append([]domain.QuantityDef{
				disp(num("lamp_power", "W"), "percent"),
				disp(num("feed_rate", "m/s"), "mm/h"),
				disp(num("seed_rate", "m/s"), "mm/h"),
				disp(num("feed_rotation", "Hz"), "rpm"),
				disp(num("seed_rotation", "Hz"), "rpm"),
			}, atmosphere...),
		},
		{Name: FloatingZone, Extends: []string{CrystalGrowth}},
		{
			Name:    PLDStep,
			Extends: []string{ProcessStep},
			Quantities: []domain.QuantityDef{
				str("recipe"),
				integer("pulses"),
				vec("time", "s"),
				disp(vec("temperature", "K"), "degC"),
				disp(vec("pressure", "Pa"), "mbar"),
				disp(vec("pressure_1", "Pa"), "mbar"),
				disp(vec("pressure_2", "Pa"), "mbar"),
				disp(vec("oxygen_flow", "m^3/s"), "sccm"),
				disp(vec("nitrogen_argon_flow", "m^3/s"), "sccm"),
				vec("frequency", "Hz"),
				disp(vec("laser_energy", "J"), "mJ"),
				vec("power", "W"),
				ref("layer"),
			},
		},
		{
			Name:    PulsedLaserDeposition,
			Extends: []string{Process},
			Quantities: []domain.QuantityDef{
				str("target"),
				disp(num("measured_laser_energy", "J"), "mJ"),
				disp(num("attenuated_laser_energy", "J"), "mJ"),
			},
		},
		{
			Name: SampleParametersMovpe,
			Quantities: []domain.QuantityDef{
				str("name"),
				ref("layer"),
				ref("stack"),
				ref("substrate"),
				disp(num("temperature", "K"), "degC"),
				disp(num("growth_rate", "m/s"), "nm/min"),
			},
		},
		{
			Name: BubblerMovpe,
			Quantities: []domain.QuantityDef{
				str("material"),
				disp(num("temperature", "K"), "degC"),
				disp(num("pressure", "Pa"), "mbar"),
				disp(num("partial_pressure", "Pa"), "mbar"),
				disp(num("dilution", "m^3/s"), "sccm"),
				disp(num("source", "m^3/s"), "sccm"),
				disp(num("inject", "m^3/s"), "sccm"),
				str("bubbler_valve"),
			},
		},
		{
			Name:       GasLineMovpe,
			Quantities: []domain.QuantityDef{str("name"), disp(num("flow", "m^3/s"), "sccm")},
		},
		{
			Name:    GrowthStepMovpe,
			Extends: []string{ProcessStep},
			Quantities: []domain.QuantityDef{
				integer("step_index"),
				disp(num("pressure", "Pa"), "mbar"),
				disp(num("rotation", "Hz"), "rpm"),
				str("carrier_gas"),
				disp(num("temperature_shaft", "K"), "degC"),
				disp(num("temperature_filament", "K"), "degC"),
				disp(num("temperature_laytec", "K"), "degC"),
				disp(vec("process_time", "s"), "min"),
				disp(vec("process_pressure", "Pa"), "mbar"),
			},
			SubSections: []domain.SubSectionDef{
				many("sample_parameters", SampleParametersMovpe),
				many("bubblers", BubblerMovpe),
				many("gas_lines", GasLineMovpe),
			},
		},
		{Name: GrowthMovpe, Extends: []string{Process}, Quantities: []domain.QuantityDef{{Name: "recipe_id", Type: domain.TypeString, Searchable: true}}},
		{Name: GrowthMovpeIKZ, Extends: []string{GrowthMovpe}},
		{Name: GrowthMovpeIMEM, Extends: []string{GrowthMovpe}, SubSections: []domain.SubSectionDef{many("precursor_solutions", EntityReference)}},
		{Name: ExperimentMovpeIKZ, Extends: []string{Experiment}, Quantities: []domain.QuantityDef{ref("growth_run")}},
		{Name: ExperimentMovpeIMEM, Extends: []string{Experiment}, Quantities: []domain.QuantityDef{ref("growth_run")}},
		{
			Name: EvaporationSource,
			Quantities: []domain.QuantityDef{
				str("material"),
				disp(vec("temperature", "K"), "degC"),
				vec("power", "W"),
				disp(vec("rate", "m/s"), "nm/s"),
			},
		},
		{
			Name:    ThermalEvaporationStep,
			Extends: []string{ProcessStep},
			Quantities: []domain.QuantityDef{
				vec("time", "s"),
				disp(vec("chamber_pressure", "Pa"), "mbar"),
				disp(vec("substrate_temperature", "K"), "degC"),
			},
			SubSections: []domain.SubSectionDef{many("sources", EvaporationSource)},
		},
		{Name: ThermalEvaporation, Extends: []string{Process}},
		{
			Name: MBESource,
			Quantities: []domain.QuantityDef{
				str("element"),
				disp(num("cell_temperature", "K"), "degC"),
				disp(num("beam_flux", "Pa"), "Torr"),
				{Name: "shutter_open", Type: domain.TypeBool, Shape: domain.Vector},
			},
		},
		{
			Name:    MBEStep,
			Extends: []string{ProcessStep},
			Quantities: []domain.QuantityDef{
				vec("time", "s"),
				disp(num("substrate_temperature", "K"), "degC"),
				disp(num("chamber_pressure", "Pa"), "Torr"),
			},
			SubSections: []domain.SubSectionDef{many("sources", MBESource)},
		},
		{Name: MBE, Extends: []string{Process}},
	}
}
