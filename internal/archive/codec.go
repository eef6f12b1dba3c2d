package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"elncore/pkg/domain"
)

// Format is the serialization of an archive file.
type Format int

const (
	YAML Format = iota
	JSON
)

// FormatOf selects the format from the file extension.
func FormatOf(name string) Format {
	if strings.EqualFold(path.Ext(name), ".json") {
		return JSON
	}
	return YAML
}

// Document wraps a section dict as an archive document.
func Document(sec *domain.Section) map[string]any {
	return map[string]any{"data": sec.ToMap()}
}

// Marshal serializes doc. JSON output writes non-finite floats as null.
func Marshal(doc map[string]any, f Format) ([]byte, error) {
	if f == JSON {
		out, err := json.MarshalIndent(Finite(doc), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("archive.Marshal: json: %w", err)
		}
		return append(out, '\n'), nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("archive.Marshal: yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("archive.Marshal: yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses an archive file into a plain document.
func Unmarshal(data []byte, f Format) (map[string]any, error) {
	var doc map[string]any
	if f == JSON {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("archive.Unmarshal: json: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("archive.Unmarshal: yaml: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// Data returns the section dict of a document.
func Data(doc map[string]any) (map[string]any, error) {
	data, ok := doc["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("archive: document without data section")
	}
	return data, nil
}

// Load parses an archive file and rebuilds its section.
func Load(schema *domain.SchemaRegistry, data []byte, f Format) (*domain.Section, error) {
	doc, err := Unmarshal(data, f)
	if err != nil {
		return nil, err
	}
	d, err := Data(doc)
	if err != nil {
		return nil, err
	}
	return schema.FromMap(d, "")
}

// Finite returns a copy of v with NaN and infinities replaced by nil.
func Finite(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = Finite(f)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Finite(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Finite(e)
		}
		return out
	default:
		return v
	}
}
