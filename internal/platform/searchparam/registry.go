// Package searchparam holds the immutable search parameter registry: the
// definitions per resource type, their declared element types, and the token
// case-sensitivity classification derived from them.
package searchparam

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// Classification says how token values of a parameter are compared.
type Classification int

const (
	NotIndexed Classification = iota
	CaseSensitive
	CaseInsensitive
)

func (c Classification) String() string {
	switch c {
	case CaseSensitive:
		return "case-sensitive"
	case CaseInsensitive:
		return "case-insensitive"
	default:
		return "not-indexed"
	}
}

// Registry is built once at start-up and never mutated, so it is safe to share
// across goroutines without locking.
type Registry struct {
	params  map[string]map[string]*Definition // resourceType -> code -> definition
	classes map[string]map[string]Classification
	types   []string
}

// NewRegistry builds a registry from defs. Parameters based on Resource or
// DomainResource are attached to every concrete resource type named by some
// other definition. For every reference parameter a derived
// "<code>:identifier" token parameter is added.
func NewRegistry(defs []*Definition, logger zerolog.Logger) (*Registry, error) {
	r := &Registry{
		params:  make(map[string]map[string]*Definition),
		classes: make(map[string]map[string]Classification),
	}

	typeSet := make(map[string]bool)
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("searchparam: %w", err)
		}
		for _, b := range d.Base {
			if b != "Resource" && b != "DomainResource" {
				typeSet[b] = true
			}
		}
	}
	for t := range typeSet {
		r.types = append(r.types, t)
	}
	sort.Strings(r.types)

	for _, t := range r.types {
		byCode := make(map[string]*Definition)
		for _, d := range defs {
			if !d.AppliesTo(t) {
				continue
			}
			// Later definitions override earlier ones with the same code, so a
			// definitions file can replace a built-in parameter.
			byCode[d.Code] = d
			if d.Type == TypeReference && d.Expression != "" {
				v := identifierVariant(d)
				byCode[v.Code] = v
			}
		}
		r.params[t] = byCode

		classes := make(map[string]Classification, len(byCode))
		for code, d := range byCode {
			c := classify(d)
			classes[code] = c
			if c == NotIndexed && d.Type == TypeToken {
				logger.Debug().
					Str("resource_type", t).
					Str("code", code).
					Strs("element_types", d.ElementTypes).
					Msg("token search parameter has no indexable element type")
			}
		}
		r.classes[t] = classes
	}

	logger.Info().Int("resource_types", len(r.types)).Int("definitions", len(defs)).Msg("search parameter registry built")
	return r, nil
}

// ResourceTypes returns the concrete resource types known to the registry in
// sorted order.
func (r *Registry) ResourceTypes() []string {
	out := make([]string, len(r.types))
	copy(out, r.types)
	return out
}

// SearchParameters returns the definitions of resourceType keyed by code. The
// returned map must not be modified.
func (r *Registry) SearchParameters(resourceType string) map[string]*Definition {
	return r.params[resourceType]
}

// SearchParameter looks up a single definition.
func (r *Registry) SearchParameter(resourceType, code string) (*Definition, bool) {
	d, ok := r.params[resourceType][code]
	return d, ok
}

// ElementTypes returns the declared element types of the parameter code on
// resourceType.
func (r *Registry) ElementTypes(resourceType, code string) []string {
	if d, ok := r.params[resourceType][code]; ok {
		return d.ElementTypes
	}
	return nil
}

// Classify returns the token classification of def on resourceType. Registered
// parameters are answered from the table computed at construction.
func (r *Registry) Classify(def *Definition, resourceType string) Classification {
	if def == nil {
		return NotIndexed
	}
	if c, ok := r.classes[resourceType][def.Code]; ok {
		return c
	}
	return classify(def)
}

// TokenParameters returns the indexable token parameters of resourceType,
// sorted by code.
func (r *Registry) TokenParameters(resourceType string) []*Definition {
	var out []*Definition
	for code, d := range r.params[resourceType] {
		if d.Type == TypeToken && r.classes[resourceType][code] != NotIndexed {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// classify derives the classification from element types. ContactPoint wins
// over the case-sensitive types because contact values are always compared
// lower-cased.
func classify(d *Definition) Classification {
	if d.Type != TypeToken {
		return NotIndexed
	}
	c := NotIndexed
	for _, t := range d.ElementTypes {
		switch t {
		case "ContactPoint":
			return CaseInsensitive
		case "Identifier", "CodeableConcept", "Coding":
			c = CaseSensitive
		}
	}
	return c
}
