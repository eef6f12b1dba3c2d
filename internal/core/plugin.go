package core

import (
	"fmt"
	"sort"

	"elncore/pkg/domain"
	"elncore/pkg/pluginapi"
)

var _ pluginapi.Registry = (*PluginRegistry)(nil)

// PluginRegistry accumulates plugin contributions during registration.
type PluginRegistry struct {
	sections    []domain.SectionDef
	parsers     []pluginapi.Parser
	normalizers map[string][]pluginapi.Normalizer
}

// NewPluginRegistry constructs a plugin registry.
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{normalizers: make(map[string][]pluginapi.Normalizer)}
}

// RegisterSections adds section definitions contributed by the plugin.
func (r *PluginRegistry) RegisterSections(defs ...domain.SectionDef) error {
	for _, d := range defs {
		if d.Name == "" {
			return fmt.Errorf("section definition without name")
		}
		for _, have := range r.sections {
			if have.Name == d.Name {
				return fmt.Errorf("section %s already registered", d.Name)
			}
		}
		r.sections = append(r.sections, d)
	}
	return nil
}

// RegisterParser adds a mainfile parser. Parsers are tried in registration order.
func (r *PluginRegistry) RegisterParser(p pluginapi.Parser) error {
	if p == nil {
		return fmt.Errorf("parser cannot be nil")
	}
	for _, have := range r.parsers {
		if have.Name() == p.Name() {
			return fmt.Errorf("parser %s already registered", p.Name())
		}
	}
	r.parsers = append(r.parsers, p)
	return nil
}

// RegisterNormalizer binds a normalizer to a section type. It also runs on
// sections extending that type.
func (r *PluginRegistry) RegisterNormalizer(section string, n pluginapi.Normalizer) {
	if section == "" || n == nil {
		return
	}
	r.normalizers[section] = append(r.normalizers[section], n)
}

// Sections returns a copy of registered section definitions.
func (r *PluginRegistry) Sections() []domain.SectionDef {
	return append([]domain.SectionDef(nil), r.sections...)
}

// Parsers returns a copy of registered parsers.
func (r *PluginRegistry) Parsers() []pluginapi.Parser {
	return append([]pluginapi.Parser(nil), r.parsers...)
}

// Normalizers returns a copy of the normalizers keyed by section type.
func (r *PluginRegistry) Normalizers() map[string][]pluginapi.Normalizer {
	out := make(map[string][]pluginapi.Normalizer, len(r.normalizers))
	for k, v := range r.normalizers {
		out[k] = append([]pluginapi.Normalizer(nil), v...)
	}
	return out
}

// PluginMetadata stores metadata describing an installed plugin.
type PluginMetadata struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Sections    []string `json:"sections"`
	Parsers     []string `json:"parsers"`
	Normalizers []string `json:"normalizers"`
}

func metadataFor(p pluginapi.Plugin, reg *PluginRegistry) PluginMetadata {
	meta := PluginMetadata{Name: p.Name(), Version: p.Version()}
	for _, d := range reg.sections {
		meta.Sections = append(meta.Sections, d.Name)
	}
	for _, ps := range reg.parsers {
		meta.Parsers = append(meta.Parsers, ps.Name())
	}
	for section := range reg.normalizers {
		meta.Normalizers = append(meta.Normalizers, section)
	}
	sort.Strings(meta.Sections)
	sort.Strings(meta.Normalizers)
	return meta
}
