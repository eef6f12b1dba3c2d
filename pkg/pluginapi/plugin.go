// Package pluginapi defines the contracts lab plugins implement and consume:
// plugin registration, parsers matched by file name and content, normalizers
// bound to section types, and the per-file context handed to both.
package pluginapi

import (
	"context"

	"elncore/pkg/domain"
)

// Version is the plugin API version.
const Version = "v1"

// Registry accumulates plugin contributions during registration.
type Registry interface {
	RegisterSections(defs ...domain.SectionDef) error
	RegisterParser(p Parser) error
	RegisterNormalizer(section string, n Normalizer)
}

// Plugin contributes section definitions, parsers and normalizers.
type Plugin interface {
	Name() string
	Version() string
	Register(Registry) error
}

// Parser turns a raw mainfile into the section of its entry. Auxiliary
// entries are emitted through the context before the main section returns.
type Parser interface {
	Name() string
	Matcher() Matcher
	Parse(ctx context.Context, pc Context, data []byte) (*domain.Section, error)
}

// Normalizer derives properties of a section after it was parsed or loaded.
// Normalizers must be idempotent.
type Normalizer interface {
	Normalize(ctx context.Context, pc Context, sec *domain.Section) error
}

// NormalizerFunc adapts a function to Normalizer.
type NormalizerFunc func(ctx context.Context, pc Context, sec *domain.Section) error

// Normalize calls f.
func (f NormalizerFunc) Normalize(ctx context.Context, pc Context, sec *domain.Section) error {
	return f(ctx, pc, sec)
}

type parserFunc struct {
	name    string
	matcher Matcher
	fn      func(ctx context.Context, pc Context, data []byte) (*domain.Section, error)
}

func (p parserFunc) Name() string     { return p.name }
func (p parserFunc) Matcher() Matcher { return p.matcher }
func (p parserFunc) Parse(ctx context.Context, pc Context, data []byte) (*domain.Section, error) {
	return p.fn(ctx, pc, data)
}

// NewParser builds a Parser from a function.
func NewParser(name string, m Matcher, fn func(ctx context.Context, pc Context, data []byte) (*domain.Section, error)) Parser {
	return parserFunc{name: name, matcher: m, fn: fn}
}
