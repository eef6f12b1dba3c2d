package schema

import "elncore/pkg/domain"

// Base section names.
const (
	Entity               = "Entity"
	Parameter            = "Parameter"
	ElementalComposition = "ElementalComposition"
	Component            = "Component"
	CompositeSystem      = "CompositeSystem"
	PureSubstance        = "PureSubstance"
	EntityReference      = "EntityReference"
	SampleReference      = "SampleReference"
	InstrumentReference  = "InstrumentReference"
	Instrument           = "Instrument"
	Link                 = "Link"
	PlotlyFigure         = "PlotlyFigure"
	ProcessStep          = "ProcessStep"
	MeasurementResult    = "MeasurementResult"
	Activity             = "Activity"
	Process              = "Process"
	Measurement          = "Measurement"
	ExperimentStep       = "ExperimentStep"
	Experiment           = "Experiment"
)

func basic() []domain.SectionDef {
	return []domain.SectionDef{
		{
			Name:        Entity,
			Description: "Anything identified by a lab_id within a lab.",
			Quantities: []domain.QuantityDef{
				str("name"),
				{Name: "lab_id", Type: domain.TypeString, Searchable: true},
				when("datetime"),
				str("description"),
			},
		},
		{
			Name:        Parameter,
			Description: "A vendor-file setting without a typed home.",
			Quantities:  []domain.QuantityDef{str("name"), str("group"), num("value", ""), str("unit"), str("value_string")},
		},
		{
			Name:       ElementalComposition,
			Quantities: []domain.QuantityDef{str("element"), num("atomic_fraction", ""), num("mass_fraction", "")},
		},
		{
			Name:       Component,
			Quantities: []domain.QuantityDef{str("name"), num("mass", "kg"), num("mass_fraction", ""), ref("system")},
		},
		{
			Name:    CompositeSystem,
			Extends: []string{Entity},
			Quantities: []domain.QuantityDef{
				{Name: "chemical_formula", Type: domain.TypeString, Searchable: true},
			},
			SubSections: []domain.SubSectionDef{
				many("elemental_composition", ElementalComposition),
				many("components", Component),
			},
		},
		{
			Name:    PureSubstance,
			Extends: []string{Entity},
			Quantities: []domain.QuantityDef{
				str("iupac_name"),
				{Name: "molecular_formula", Type: domain.TypeString, Searchable: true},
				str("cas_number"),
				integer("pub_chem_cid"),
				{Name: "antoine_a", Type: domain.TypeFloat, Description: "log10(p/Torr) = A - B/(C + T/degC)"},
				num("antoine_b", ""),
				num("antoine_c", ""),
				disp(num("temperature", "K"), "degC"),
				disp(num("vapour_pressure", "Pa"), "mbar"),
			},
		},
		{
			Name:       EntityReference,
			Quantities: []domain.QuantityDef{str("name"), str("lab_id"), ref("reference")},
		},
		{Name: SampleReference, Extends: []string{EntityReference}},
		{Name: InstrumentReference, Extends: []string{EntityReference}},
		{Name: Instrument, Extends: []string{Entity}, SubSections: []domain.SubSectionDef{many("parameters", Parameter)}},
		{
			Name:       Link,
			Quantities: []domain.QuantityDef{str("name"), ref("section")},
		},
		{
			Name:       PlotlyFigure,
			Quantities: []domain.QuantityDef{str("label"), integer("index"), {Name: "figure", Type: domain.TypeJSON}},
		},
		{
			Name: ProcessStep,
			Quantities: []domain.QuantityDef{
				str("name"),
				disp(num("duration", "s"), "min"),
				when("start_time"),
				str("comment"),
			},
		},
		{
			Name:       MeasurementResult,
			Quantities: []domain.QuantityDef{str("name")},
		},
		{
			Name:    Activity,
			Extends: []string{Entity},
			Quantities: []domain.QuantityDef{
				when("end_time"),
				str("method"),
				str("location"),
			},
			SubSections: []domain.SubSectionDef{
				many("steps", ProcessStep),
				many("samples", SampleReference),
				many("instruments", InstrumentReference),
				many("results", MeasurementResult),
				many("parameters", Parameter),
				many("inputs", Link),
				many("outputs", Link),
				many("figures", PlotlyFigure),
			},
		},
		{Name: Process, Extends: []string{Activity}},
		{Name: Measurement, Extends: []string{Activity}},
		{
			Name:       ExperimentStep,
			Quantities: []domain.QuantityDef{str("name"), ref("activity")},
		},
		{
			Name:        Experiment,
			Extends:     []string{Activity},
			SubSections: []domain.SubSectionDef{many("experiment_steps", ExperimentStep)},
		},
	}
}
