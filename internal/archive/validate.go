package archive

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"elncore/internal/errs"
	"elncore/pkg/domain"
)

// Validator checks archive documents against the JSON schema generated from
// their section definition. Compiled schemas are cached per section type.
type Validator struct {
	registry *domain.SchemaRegistry
	mu       sync.Mutex
	compiled map[string]*gojsonschema.Schema
}

// NewValidator builds a validator over registry.
func NewValidator(registry *domain.SchemaRegistry) *Validator {
	return &Validator{registry: registry, compiled: map[string]*gojsonschema.Schema{}}
}

func (v *Validator) schema(name string) (*gojsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.compiled[name]; ok {
		return s, nil
	}
	raw, err := v.registry.JSONSchema(name)
	if err != nil {
		return nil, err
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("archive.Validator: compile %s: %w", name, err)
	}
	v.compiled[name] = s
	return s, nil
}

// Validate checks doc. Schema violations are returned as an InvalidArchive
// warning listing every failing field.
func (v *Validator) Validate(doc map[string]any) error {
	data, err := Data(doc)
	if err != nil {
		return errs.Warnf(errs.ErrInvalidArchive, "archive", "validate", "%v", err)
	}
	name, _ := data[domain.DefinitionKey].(string)
	s, err := v.schema(name)
	if err != nil {
		return errs.Warnf(errs.ErrInvalidArchive, "archive", "validate", "%v", err)
	}
	res, err := s.Validate(gojsonschema.NewGoLoader(Finite(doc)))
	if err != nil {
		return errs.Warnf(errs.ErrInvalidArchive, "archive", "validate", "%v", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, desc := range res.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return errs.Warnf(errs.ErrInvalidArchive, "archive", "validate", "%s: %s", name, strings.Join(msgs, "; "))
}
