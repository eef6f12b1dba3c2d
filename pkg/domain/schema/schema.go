// Package schema declares the built-in section definitions shared by all lab
// plugins: entities, composite systems, activities, process steps, growth
// processes and measurements.
package schema

import "elncore/pkg/domain"

func str(name string) domain.QuantityDef {
	return domain.QuantityDef{Name: name, Type: domain.TypeString}
}

func num(name, unit string) domain.QuantityDef {
	return domain.QuantityDef{Name: name, Type: domain.TypeFloat, Unit: unit}
}

func disp(q domain.QuantityDef, unit string) domain.QuantityDef {
	q.DisplayUnit = unit
	return q
}

func vec(name, unit string) domain.QuantityDef {
	return domain.QuantityDef{Name: name, Type: domain.TypeFloat, Unit: unit, Shape: domain.Vector}
}

func integer(name string) domain.QuantityDef {
	return domain.QuantityDef{Name: name, Type: domain.TypeInt}
}

func boolean(name string) domain.QuantityDef {
	return domain.QuantityDef{Name: name, Type: domain.TypeBool}
}

func when(name string) domain.QuantityDef {
	return domain.QuantityDef{Name: name, Type: domain.TypeDatetime}
}

func ref(name string) domain.QuantityDef {
	return domain.QuantityDef{Name: name, Type: domain.TypeReference}
}

func refs(name string) domain.QuantityDef {
	return domain.QuantityDef{Name: name, Type: domain.TypeReference, Shape: domain.Vector}
}

func enum(name string, values ...string) domain.QuantityDef {
	return domain.QuantityDef{Name: name, Type: domain.TypeEnum, Enum: values}
}

func one(name, section string) domain.SubSectionDef {
	return domain.SubSectionDef{Name: name, Section: section}
}

func many(name, section string) domain.SubSectionDef {
	return domain.SubSectionDef{Name: name, Section: section, Repeats: true}
}

// Definitions returns every built-in definition. Lab plugins register their
// own definitions on top of these.
func Definitions() []domain.SectionDef {
	var out []domain.SectionDef
	out = append(out, basic()...)
	out = append(out, samples()...)
	out = append(out, growth()...)
	out = append(out, measurements()...)
	return out
}

// New builds a registry holding the built-in definitions plus extra.
func New(extra ...domain.SectionDef) (*domain.SchemaRegistry, error) {
	return domain.NewSchemaRegistry(append(Definitions(), extra...)...)
}

// MustNew is New for definition sets known to be valid.
func MustNew(extra ...domain.SectionDef) *domain.SchemaRegistry {
	r, err := New(extra...)
	if err != nil {
		panic(err)
	}
	return r
}
