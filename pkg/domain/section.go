package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"elncore/pkg/units"
)

// ErrUnknownField is returned when setting a name the definition does not declare.
var ErrUnknownField = errors.New("unknown field")

// ErrFieldType is returned when a value does not fit the declared type.
var ErrFieldType = errors.New("field type mismatch")

// DefinitionKey is the archive dict key carrying the section type.
const DefinitionKey = "m_def"

// Section is an instance of a Definition: declared values keyed by name
// and ordered repeated subsections.
type Section struct {
	schema *SchemaRegistry
	def    *Definition
	values map[string]any
	subs   map[string][]*Section
}

func newSection(r *SchemaRegistry, d *Definition) *Section {
	return &Section{schema: r, def: d, values: map[string]any{}, subs: map[string][]*Section{}}
}

// Type returns the section type name.
func (s *Section) Type() string { return s.def.Name }

// Definition returns the resolved definition.
func (s *Section) Definition() *Definition { return s.def }

// Schema returns the registry the section was created from.
func (s *Section) Schema() *SchemaRegistry { return s.schema }

// Has reports whether name carries a value.
func (s *Section) Has(name string) bool {
	_, ok := s.values[name]
	return ok
}

// Get returns the stored value of name.
func (s *Section) Get(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Float returns a float scalar.
func (s *Section) Float(name string) (float64, bool) {
	v, ok := s.values[name].(float64)
	return v, ok
}

// Floats returns a float vector.
func (s *Section) Floats(name string) []float64 {
	v, _ := s.values[name].([]float64)
	return v
}

// Int returns an int scalar.
func (s *Section) Int(name string) (int64, bool) {
	v, ok := s.values[name].(int64)
	return v, ok
}

// Str returns a string or enum scalar; "" if unset.
func (s *Section) Str(name string) string {
	v, _ := s.values[name].(string)
	return v
}

// Strings returns a string vector.
func (s *Section) Strings(name string) []string {
	v, _ := s.values[name].([]string)
	return v
}

// Bool returns a bool scalar.
func (s *Section) Bool(name string) (bool, bool) {
	v, ok := s.values[name].(bool)
	return v, ok
}

// Bools returns a bool vector.
func (s *Section) Bools(name string) []bool {
	v, _ := s.values[name].([]bool)
	return v
}

// Time returns a datetime scalar.
func (s *Section) Time(name string) (time.Time, bool) {
	v, ok := s.values[name].(time.Time)
	return v, ok
}

// JSON returns a json object scalar.
func (s *Section) JSON(name string) map[string]any {
	v, _ := s.values[name].(map[string]any)
	return v
}

// Ref returns a reference scalar.
func (s *Section) Ref(name string) (Reference, bool) {
	v, ok := s.values[name].(Reference)
	return v, ok
}

// Refs returns a reference vector.
func (s *Section) Refs(name string) []Reference {
	v, _ := s.values[name].([]Reference)
	return v
}

// Quantity returns a float scalar as a quantity in its canonical unit.
func (s *Section) Quantity(name string) (units.Quantity, bool) {
	v, ok := s.Float(name)
	if !ok {
		return units.Quantity{}, false
	}
	return units.Quantity{Magnitude: v, Unit: s.def.CanonicalUnit(name)}, true
}

// Unset removes the value of name.
func (s *Section) Unset(name string) { delete(s.values, name) }

// MustSet is Set for values whose type is known to match.
func (s *Section) MustSet(name string, v any) *Section {
	if err := s.Set(name, v); err != nil {
		panic(err)
	}
	return s
}

// Set stores v under name after checking it against the descriptor.
// Quantities are converted to the canonical unit; a nil v unsets.
func (s *Section) Set(name string, v any) error {
	q, ok := s.def.Quantity(name)
	if !ok {
		return fmt.Errorf("%s.%s: %w", s.def.Name, name, ErrUnknownField)
	}
	if v == nil {
		delete(s.values, name)
		return nil
	}
	val, err := s.coerce(q, v)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", s.def.Name, name, err)
	}
	s.values[name] = val
	return nil
}

// SetVector stores vals expressed in unit u, converting to the canonical unit.
func (s *Section) SetVector(name string, vals []float64, u units.Unit) error {
	q, ok := s.def.Quantity(name)
	if !ok {
		return fmt.Errorf("%s.%s: %w", s.def.Name, name, ErrUnknownField)
	}
	if q.Type != TypeFloat || q.Shape != Vector {
		return fmt.Errorf("%s.%s: %w: not a float vector", s.def.Name, name, ErrFieldType)
	}
	target := s.def.CanonicalUnit(name)
	out := make([]float64, len(vals))
	for i, v := range vals {
		c, err := convertTo(v, u, target)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", s.def.Name, name, err)
		}
		out[i] = c
	}
	s.values[name] = out
	return nil
}

func convertTo(v float64, from, to units.Unit) (float64, error) {
	if from.IsZero() {
		return v, nil
	}
	return units.Convert(v, from, to)
}

func (s *Section) coerce(q QuantityDef, v any) (any, error) {
	if q.Shape == Vector {
		return s.coerceVector(q, v)
	}
	switch q.Type {
	case TypeFloat:
		return s.coerceFloat(q, v)
	case TypeInt:
		switch t := v.(type) {
		case int:
			return int64(t), nil
		case int64:
			return t, nil
		case float64:
			if t != math.Trunc(t) {
				return nil, fmt.Errorf("%w: %v is not integral", ErrFieldType, t)
			}
			return int64(t), nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrFieldType, t)
			}
			return n, nil
		}
	case TypeString:
		switch t := v.(type) {
		case string:
			return t, nil
		case fmt.Stringer:
			return t.String(), nil
		}
	case TypeEnum:
		str, ok := v.(string)
		if !ok {
			break
		}
		if len(q.Enum) == 0 {
			return str, nil
		}
		for _, e := range q.Enum {
			if e == str {
				return str, nil
			}
		}
		return nil, fmt.Errorf("%w: %q not in %v", ErrFieldType, str, q.Enum)
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeDatetime:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			return ParseDatetime(t)
		}
	case TypeJSON:
		if m, ok := v.(map[string]any); ok {
			return m, nil
		}
	case TypeReference:
		switch t := v.(type) {
		case Reference:
			return t, nil
		case string:
			return Reference{Ref: t}, nil
		case map[string]any:
			return referenceFromMap(t), nil
		}
	}
	return nil, fmt.Errorf("%w: %T for %s", ErrFieldType, v, q.Type)
}

func (s *Section) coerceFloat(q QuantityDef, v any) (any, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case units.Quantity:
		target := s.def.CanonicalUnit(q.Name)
		if q.Unit == "" && t.Unit.Dimensionless() {
			return t.ToSI().Magnitude, nil
		}
		c, err := units.Convert(t.Magnitude, t.Unit, target)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: %T for float", ErrFieldType, v)
}

func (s *Section) coerceVector(q QuantityDef, v any) (any, error) {
	switch q.Type {
	case TypeFloat:
		switch t := v.(type) {
		case []float64:
			return append([]float64(nil), t...), nil
		case []any:
			out := make([]float64, len(t))
			for i, e := range t {
				f, err := anyFloat(e)
				if err != nil {
					return nil, err
				}
				out[i] = f
			}
			return out, nil
		}
	case TypeInt:
		switch t := v.(type) {
		case []int64:
			return append([]int64(nil), t...), nil
		case []int:
			out := make([]int64, len(t))
			for i, e := range t {
				out[i] = int64(e)
			}
			return out, nil
		case []any:
			out := make([]int64, len(t))
			for i, e := range t {
				f, err := anyFloat(e)
				if err != nil {
					return nil, err
				}
				out[i] = int64(f)
			}
			return out, nil
		}
	case TypeString, TypeEnum:
		switch t := v.(type) {
		case []string:
			return append([]string(nil), t...), nil
		case []any:
			out := make([]string, len(t))
			for i, e := range t {
				str, ok := e.(string)
				if !ok {
					return nil, fmt.Errorf("%w: %T in string vector", ErrFieldType, e)
				}
				out[i] = str
			}
			return out, nil
		}
	case TypeBool:
		switch t := v.(type) {
		case []bool:
			return append([]bool(nil), t...), nil
		case []any:
			out := make([]bool, len(t))
			for i, e := range t {
				b, ok := e.(bool)
				if !ok {
					return nil, fmt.Errorf("%w: %T in bool vector", ErrFieldType, e)
				}
				out[i] = b
			}
			return out, nil
		}
	case TypeReference:
		switch t := v.(type) {
		case []Reference:
			return append([]Reference(nil), t...), nil
		case []any:
			out := make([]Reference, len(t))
			for i, e := range t {
				switch r := e.(type) {
				case string:
					out[i] = Reference{Ref: r}
				case map[string]any:
					out[i] = referenceFromMap(r)
				default:
					return nil, fmt.Errorf("%w: %T in reference vector", ErrFieldType, e)
				}
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %T for %s vector", ErrFieldType, v, q.Type)
}

func anyFloat(v any) (float64, error) {
	switch t := v.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	}
	return 0, fmt.Errorf("%w: %T in float vector", ErrFieldType, v)
}

// ParseDatetime accepts the timestamp layouts found in archives and instrument files.
func ParseDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{
		time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized datetime %q", ErrFieldType, s)
}

// Sub returns the subsections stored under name.
func (s *Section) Sub(name string) []*Section { return s.subs[name] }

// First returns the first subsection under name, or nil.
func (s *Section) First(name string) *Section {
	if l := s.subs[name]; len(l) > 0 {
		return l[0]
	}
	return nil
}

// AddSub appends child under name. Non-repeating subsections are replaced.
func (s *Section) AddSub(name string, child *Section) error {
	sd, ok := s.def.SubSection(name)
	if !ok {
		return fmt.Errorf("%s.%s: %w", s.def.Name, name, ErrUnknownField)
	}
	if !s.schema.IsA(child.Type(), sd.Section) {
		return fmt.Errorf("%s.%s: %w: %s is not a %s", s.def.Name, name, ErrFieldType, child.Type(), sd.Section)
	}
	if sd.Repeats {
		s.subs[name] = append(s.subs[name], child)
	} else {
		s.subs[name] = []*Section{child}
	}
	return nil
}

// NewSub creates a child of the declared section type and attaches it.
func (s *Section) NewSub(name string) (*Section, error) {
	return s.NewSubOf(name, "")
}

// NewSubOf is NewSub with an explicit subtype of the declared section.
func (s *Section) NewSubOf(name, typ string) (*Section, error) {
	sd, ok := s.def.SubSection(name)
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", s.def.Name, name, ErrUnknownField)
	}
	if typ == "" {
		typ = sd.Section
	}
	child, err := s.schema.New(typ)
	if err != nil {
		return nil, err
	}
	if err := s.AddSub(name, child); err != nil {
		return nil, err
	}
	return child, nil
}

// MustNewSub panics if name is not a declared subsection.
func (s *Section) MustNewSub(name string) *Section {
	c, err := s.NewSub(name)
	if err != nil {
		panic(err)
	}
	return c
}

// ClearSub removes all subsections under name.
func (s *Section) ClearSub(name string) { delete(s.subs, name) }

// Walk visits s and all nested subsections depth-first.
func (s *Section) Walk(fn func(path string, sec *Section)) {
	s.walk("", fn)
}

func (s *Section) walk(path string, fn func(string, *Section)) {
	fn(path, s)
	for _, sd := range s.def.SubSections {
		for i, c := range s.subs[sd.Name] {
			p := sd.Name
			if sd.Repeats {
				p = fmt.Sprintf("%s/%d", sd.Name, i)
			}
			if path != "" {
				p = path + "/" + p
			}
			c.walk(p, fn)
		}
	}
}

// ToMap serializes the section by iterating its descriptor list.
func (s *Section) ToMap() map[string]any {
	out := map[string]any{DefinitionKey: s.def.Name}
	for _, q := range s.def.Quantities {
		v, ok := s.values[q.Name]
		if !ok {
			continue
		}
		out[q.Name] = exportValue(v)
	}
	for _, sd := range s.def.SubSections {
		children := s.subs[sd.Name]
		if len(children) == 0 {
			continue
		}
		if !sd.Repeats {
			out[sd.Name] = children[0].ToMap()
			continue
		}
		list := make([]any, len(children))
		for i, c := range children {
			list[i] = c.ToMap()
		}
		out[sd.Name] = list
	}
	return out
}

func exportValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case Reference:
		return t.export()
	case []Reference:
		out := make([]any, len(t))
		for i, r := range t {
			out[i] = r.export()
		}
		return out
	case []float64:
		return append([]float64(nil), t...)
	default:
		return v
	}
}

// FromMap rebuilds a section from an archive dict. The type comes from the
// m_def key, falling back to typ when absent. Unknown keys are errors.
func (r *SchemaRegistry) FromMap(m map[string]any, typ string) (*Section, error) {
	if name, ok := m[DefinitionKey].(string); ok && name != "" {
		typ = name
	}
	if typ == "" {
		return nil, fmt.Errorf("domain: archive dict without %s", DefinitionKey)
	}
	s, err := r.New(typ)
	if err != nil {
		return nil, err
	}
	for k, v := range m {
		if k == DefinitionKey {
			continue
		}
		if sd, ok := s.def.SubSection(k); ok {
			if err := s.loadSub(sd, v); err != nil {
				return nil, err
			}
			continue
		}
		q, ok := s.def.Quantity(k)
		if !ok {
			return nil, fmt.Errorf("%s.%s: %w", typ, k, ErrUnknownField)
		}
		if v == nil {
			continue
		}
		if q.Type == TypeFloat && q.Shape == Scalar {
			f, err := anyFloat(v)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", typ, k, err)
			}
			s.values[k] = f
			continue
		}
		if err := s.Set(k, v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Section) loadSub(sd SubSectionDef, v any) error {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		items = []any{t}
	case nil:
		return nil
	default:
		return fmt.Errorf("%s.%s: %w: %T", s.def.Name, sd.Name, ErrFieldType, v)
	}
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			return fmt.Errorf("%s.%s: %w: %T", s.def.Name, sd.Name, ErrFieldType, it)
		}
		child, err := s.schema.FromMap(m, sd.Section)
		if err != nil {
			return err
		}
		if err := s.AddSub(sd.Name, child); err != nil {
			return err
		}
	}
	return nil
}

// SearchQuantities returns "path.name=value" strings for every searchable
// quantity of the section tree, used to fill the search index.
func (s *Section) SearchQuantities() []string {
	var out []string
	s.Walk(func(path string, sec *Section) {
		for _, q := range sec.def.Quantities {
			if !q.Searchable {
				continue
			}
			v, ok := sec.values[q.Name]
			if !ok {
				continue
			}
			key := q.Name
			if path != "" {
				key = path + "/" + q.Name
			}
			out = append(out, fmt.Sprintf("%s=%v", key, exportValue(v)))
		}
	})
	return out
}
