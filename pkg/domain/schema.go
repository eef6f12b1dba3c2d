// Package domain holds the entity model: section definitions declared as
// field descriptors, an explicit schema registry, sections carrying values,
// cross-entry references and ingest diagnostics.
package domain

import (
	"fmt"
	"sort"

	"elncore/pkg/units"
)

// ValueType is the declared type of a quantity.
type ValueType string

const (
	TypeFloat     ValueType = "float"
	TypeInt       ValueType = "int"
	TypeString    ValueType = "string"
	TypeBool      ValueType = "bool"
	TypeDatetime  ValueType = "datetime"
	TypeReference ValueType = "reference"
	TypeEnum      ValueType = "enum"
	// TypeJSON holds a free-form JSON object, used for figure descriptors.
	TypeJSON ValueType = "json"
)

// Shape distinguishes scalars from vectors.
type Shape int

const (
	Scalar Shape = iota
	Vector
)

// QuantityDef declares one field of a section.
type QuantityDef struct {
	Name string
	Type ValueType
	// Unit is the canonical unit expression the value is stored in.
	Unit string
	// DisplayUnit is UI metadata only.
	DisplayUnit string
	Shape       Shape
	Optional    bool
	Enum        []string
	Description string
	// Searchable quantities are copied into the search index.
	Searchable bool
}

// SubSectionDef declares a nested section.
type SubSectionDef struct {
	Name    string
	Section string
	Repeats bool
}

// SectionDef is a tagged variant: a named entity type with its declared
// fields and the base definitions it extends.
type SectionDef struct {
	Name        string
	Extends     []string
	Quantities  []QuantityDef
	SubSections []SubSectionDef
	Description string
}

// Definition is a SectionDef with its bases flattened: inherited fields come
// first, in base order, and redeclared names override the inherited ones in place.
type Definition struct {
	Name        string
	Quantities  []QuantityDef
	SubSections []SubSectionDef
	Ancestors   []string

	quantityIdx map[string]int
	subIdx      map[string]int
	unit        map[string]units.Unit
}

// Quantity returns the descriptor of name.
func (d *Definition) Quantity(name string) (QuantityDef, bool) {
	i, ok := d.quantityIdx[name]
	if !ok {
		return QuantityDef{}, false
	}
	return d.Quantities[i], true
}

// SubSection returns the subsection descriptor of name.
func (d *Definition) SubSection(name string) (SubSectionDef, bool) {
	i, ok := d.subIdx[name]
	if !ok {
		return SubSectionDef{}, false
	}
	return d.SubSections[i], true
}

// CanonicalUnit returns the parsed canonical unit of a float quantity.
func (d *Definition) CanonicalUnit(name string) units.Unit {
	if u, ok := d.unit[name]; ok {
		return u
	}
	return units.One
}

// SchemaRegistry resolves section definitions by name. It is built once at
// program start and read-only afterwards.
type SchemaRegistry struct {
	defs     map[string]SectionDef
	resolved map[string]*Definition
	units    *units.Registry
}

// NewSchemaRegistry builds a registry from defs. Bases may be declared in any order.
func NewSchemaRegistry(defs ...SectionDef) (*SchemaRegistry, error) {
	r := &SchemaRegistry{defs: make(map[string]SectionDef), resolved: make(map[string]*Definition), units: units.Default()}
	if err := r.Register(defs...); err != nil {
		return nil, err
	}
	return r, nil
}

// MustSchemaRegistry panics on an invalid definition set.
func MustSchemaRegistry(defs ...SectionDef) *SchemaRegistry {
	r, err := NewSchemaRegistry(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds definitions and re-resolves the registry.
func (r *SchemaRegistry) Register(defs ...SectionDef) error {
	for _, d := range defs {
		if d.Name == "" {
			return fmt.Errorf("domain: section definition without name")
		}
		if _, dup := r.defs[d.Name]; dup {
			return fmt.Errorf("domain: section %s defined twice", d.Name)
		}
		r.defs[d.Name] = d
	}
	r.resolved = make(map[string]*Definition, len(r.defs))
	for name := range r.defs {
		if _, err := r.resolve(name, nil); err != nil {
			return err
		}
	}
	for _, def := range r.resolved {
		for _, sub := range def.SubSections {
			if _, ok := r.resolved[sub.Section]; !ok {
				return fmt.Errorf("domain: %s.%s refers to unknown section %s", def.Name, sub.Name, sub.Section)
			}
		}
	}
	return nil
}

func (r *SchemaRegistry) resolve(name string, stack []string) (*Definition, error) {
	if d, ok := r.resolved[name]; ok {
		return d, nil
	}
	for _, s := range stack {
		if s == name {
			return nil, fmt.Errorf("domain: inheritance cycle through %s", name)
		}
	}
	raw, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("domain: unknown section %s", name)
	}
	out := &Definition{Name: name, quantityIdx: map[string]int{}, subIdx: map[string]int{}, unit: map[string]units.Unit{}}
	seenAnc := map[string]bool{}
	for _, base := range raw.Extends {
		b, err := r.resolve(base, append(stack, name))
		if err != nil {
			return nil, err
		}
		for _, a := range append(append([]string(nil), b.Ancestors...), base) {
			if !seenAnc[a] {
				seenAnc[a] = true
				out.Ancestors = append(out.Ancestors, a)
			}
		}
		for _, q := range b.Quantities {
			out.addQuantity(q)
		}
		for _, s := range b.SubSections {
			out.addSub(s)
		}
	}
	for _, q := range raw.Quantities {
		if q.Type == TypeFloat && q.Unit != "" {
			if _, err := r.units.Parse(q.Unit); err != nil {
				return nil, fmt.Errorf("domain: %s.%s: %w", name, q.Name, err)
			}
		}
		out.addQuantity(q)
	}
	for _, s := range raw.SubSections {
		out.addSub(s)
	}
	for _, q := range out.Quantities {
		if q.Type == TypeFloat && q.Unit != "" {
			out.unit[q.Name] = r.units.MustParse(q.Unit)
		}
	}
	r.resolved[name] = out
	return out, nil
}

func (d *Definition) addQuantity(q QuantityDef) {
	if i, ok := d.quantityIdx[q.Name]; ok {
		d.Quantities[i] = q
		return
	}
	d.quantityIdx[q.Name] = len(d.Quantities)
	d.Quantities = append(d.Quantities, q)
}

func (d *Definition) addSub(s SubSectionDef) {
	if i, ok := d.subIdx[s.Name]; ok {
		d.SubSections[i] = s
		return
	}
	d.subIdx[s.Name] = len(d.SubSections)
	d.SubSections = append(d.SubSections, s)
}

// Resolve returns the flattened definition of name.
func (r *SchemaRegistry) Resolve(name string) (*Definition, error) {
	d, ok := r.resolved[name]
	if !ok {
		return nil, fmt.Errorf("domain: unknown section %s", name)
	}
	return d, nil
}

// IsA reports whether name is base or extends it transitively.
func (r *SchemaRegistry) IsA(name, base string) bool {
	if name == base {
		_, ok := r.resolved[name]
		return ok
	}
	d, ok := r.resolved[name]
	if !ok {
		return false
	}
	for _, a := range d.Ancestors {
		if a == base {
			return true
		}
	}
	return false
}

// Names returns all registered section names, sorted.
func (r *SchemaRegistry) Names() []string {
	out := make([]string, 0, len(r.resolved))
	for n := range r.resolved {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// SubTypes returns the registered sections that are a base (including base itself).
func (r *SchemaRegistry) SubTypes(base string) []string {
	var out []string
	for _, n := range r.Names() {
		if r.IsA(n, base) {
			out = append(out, n)
		}
	}
	return out
}

// New creates an empty section of type name.
func (r *SchemaRegistry) New(name string) (*Section, error) {
	d, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return newSection(r, d), nil
}

// MustNew is New for section names known to be registered.
func (r *SchemaRegistry) MustNew(name string) *Section {
	s, err := r.New(name)
	if err != nil {
		panic(err)
	}
	return s
}
