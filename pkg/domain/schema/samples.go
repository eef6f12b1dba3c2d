package schema

import "elncore/pkg/domain"

// Sample section names.
const (
	Parallelepiped             = "Parallelepiped"
	Miscut                     = "Miscut"
	SubstrateCrystalProperties = "SubstrateCrystalProperties"
	Dopant                     = "Dopant"
	Substrate                  = "Substrate"
	ThinFilm                   = "ThinFilm"
	ThinFilmStack              = "ThinFilmStack"
	Impurity                   = "Impurity"
	MixedCrystal               = "MixedCrystal"
	SolutionComponent          = "SolutionComponent"
	Solution                   = "Solution"
	SampleCut                  = "SampleCut"
)

func samples() []domain.SectionDef {
	return []domain.SectionDef{
		{
			Name: Parallelepiped,
			Quantities: []domain.QuantityDef{
				disp(num("width", "m"), "mm"),
				disp(num("length", "m"), "mm"),
				disp(num("height", "m"), "mm"),
				str("surface_area"),
			},
		},
		{
			Name: Miscut,
			Quantities: []domain.QuantityDef{
				disp(num("angle", "rad"), "deg"),
				disp(num("angle_deviation", "rad"), "deg"),
				str("orientation"),
			},
		},
		{
			Name:        SubstrateCrystalProperties,
			Quantities:  []domain.QuantityDef{str("bravais_lattice"), str("orientation")},
			SubSections: []domain.SubSectionDef{one("miscut", Miscut)},
		},
		{
			Name: Dopant,
			Quantities: []domain.QuantityDef{
				str("element"),
				disp(num("doping_level", "1/m^3"), "1/cm^3"),
				disp(num("doping_deviation", "1/m^3"), "1/cm^3"),
			},
		},
		{
			Name:    Substrate,
			Extends: []string{CompositeSystem},
			Quantities: []domain.QuantityDef{
				str("supplier"),
				str("supplier_id"),
				boolean("as_received"),
				boolean("etching"),
				boolean("annealing"),
				boolean("epi_ready"),
				str("quality"),
				str("box"),
			},
			SubSections: []domain.SubSectionDef{
				one("geometry", Parallelepiped),
				one("crystal_properties", SubstrateCrystalProperties),
				many("dopants", Dopant),
			},
		},
		{
			Name:    ThinFilm,
			Extends: []string{CompositeSystem},
			Quantities: []domain.QuantityDef{
				disp(num("thickness", "m"), "nm"),
				ref("stack"),
			},
			SubSections: []domain.SubSectionDef{one("geometry", Parallelepiped)},
		},
		{
			Name:        ThinFilmStack,
			Extends:     []string{CompositeSystem},
			Description: "Substrate first, then layers bottom-up.",
			Quantities: []domain.QuantityDef{
				ref("substrate"),
				refs("layers"),
			},
		},
		{
			Name: Impurity,
			Quantities: []domain.QuantityDef{
				str("element"),
				str("substitution_element"),
				{Name: "concentration", Type: domain.TypeFloat, Unit: "percent", Description: "Share of substitution_element sites taken by element."},
			},
		},
		{
			Name:        MixedCrystal,
			Extends:     []string{CompositeSystem},
			Quantities:  []domain.QuantityDef{str("host_formula"), str("crystal_id")},
			SubSections: []domain.SubSectionDef{many("impurities", Impurity)},
		},
		{
			Name: SolutionComponent,
			Quantities: []domain.QuantityDef{
				str("name"),
				enum("role", "solute", "solvent"),
				ref("substance"),
				disp(num("mass", "kg"), "mg"),
				disp(num("volume", "m^3"), "mL"),
				disp(num("concentration", "mol/m^3"), "mol/L"),
			},
		},
		{
			Name:        Solution,
			Extends:     []string{CompositeSystem},
			Quantities:  []domain.QuantityDef{disp(num("total_volume", "m^3"), "mL")},
			SubSections: []domain.SubSectionDef{many("solution_components", SolutionComponent)},
		},
		{
			Name:    SampleCut,
			Extends: []string{Process},
			Quantities: []domain.QuantityDef{
				str("parent_lab_id"),
				ref("parent_sample"),
				integer("number_of_children"),
			},
			SubSections: []domain.SubSectionDef{many("children", SampleReference)},
		},
	}
}
