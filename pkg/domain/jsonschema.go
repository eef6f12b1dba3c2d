package domain

import "fmt"

// JSONSchema renders a draft-07 JSON schema for an archive document
// {"data": <section of type name>}. Subsections accept any registered
// subtype of their declared section.
func (r *SchemaRegistry) JSONSchema(name string) (map[string]any, error) {
	if _, err := r.Resolve(name); err != nil {
		return nil, err
	}
	defs := map[string]any{}
	r.schemaDef(name, defs)
	return map[string]any{
		"$schema":     "http://json-schema.org/draft-07/schema#",
		"type":        "object",
		"properties":  map[string]any{"data": map[string]any{"$ref": "#/definitions/" + name}},
		"required":    []any{"data"},
		"definitions": defs,
	}, nil
}

func (r *SchemaRegistry) schemaDef(name string, defs map[string]any) {
	if _, done := defs[name]; done {
		return
	}
	d := r.resolved[name]
	props := map[string]any{
		DefinitionKey: map[string]any{"type": "string"},
	}
	defs[name] = nil // mark in progress for recursive sections
	for _, q := range d.Quantities {
		s := quantitySchema(q)
		if q.Shape == Vector {
			s = map[string]any{"type": "array", "items": s}
		}
		if q.Description != "" {
			s["description"] = q.Description
		}
		props[q.Name] = s
	}
	for _, sd := range d.SubSections {
		var variants []any
		for _, sub := range r.SubTypes(sd.Section) {
			r.schemaDef(sub, defs)
			variants = append(variants, map[string]any{"$ref": "#/definitions/" + sub})
		}
		item := map[string]any{"anyOf": variants}
		if sd.Repeats {
			props[sd.Name] = map[string]any{"type": "array", "items": item}
		} else {
			props[sd.Name] = item
		}
	}
	defs[name] = map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
}

func quantitySchema(q QuantityDef) map[string]any {
	switch q.Type {
	case TypeFloat:
		return map[string]any{"type": []any{"number", "null"}}
	case TypeInt:
		return map[string]any{"type": "integer"}
	case TypeBool:
		return map[string]any{"type": "boolean"}
	case TypeDatetime:
		return map[string]any{"type": "string", "format": "date-time"}
	case TypeEnum:
		if len(q.Enum) == 0 {
			return map[string]any{"type": "string"}
		}
		vals := make([]any, len(q.Enum))
		for i, e := range q.Enum {
			vals[i] = e
		}
		return map[string]any{"type": "string", "enum": vals}
	case TypeReference:
		return map[string]any{"anyOf": []any{
			map[string]any{"type": "string", "pattern": "#data$"},
			map[string]any{
				"type":       "object",
				"properties": map[string]any{"lab_id": map[string]any{"type": "string"}, "name": map[string]any{"type": "string"}},
			},
		}}
	case TypeString:
		return map[string]any{"type": "string"}
	case TypeJSON:
		return map[string]any{"type": "object"}
	default:
		panic(fmt.Sprintf("domain: unhandled value type %q", q.Type))
	}
}
