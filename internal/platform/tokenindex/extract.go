package tokenindex

import (
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ehr/searchindex/internal/platform/fhirpath"
	"github.com/ehr/searchindex/internal/platform/searchparam"
)

type shape int

const (
	shapeNone shape = iota
	shapeScalar
	shapeIdentifier
	shapeCodeableConcept
	shapeCoding
	shapeContactPoint
)

var shapesByType = map[string]shape{
	"Identifier":      shapeIdentifier,
	"CodeableConcept": shapeCodeableConcept,
	"Coding":          shapeCoding,
	"ContactPoint":    shapeContactPoint,
}

var contactSystems = map[string]bool{
	"phone": true, "fax": true, "email": true, "pager": true,
	"url": true, "sms": true, "other": true,
}

// Extractor derives tokens from resources. It holds no per-call state and is
// safe for concurrent use.
type Extractor struct {
	registry *searchparam.Registry
	engine   *fhirpath.Engine
	logger   zerolog.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(registry *searchparam.Registry, engine *fhirpath.Engine, logger zerolog.Logger) *Extractor {
	return &Extractor{registry: registry, engine: engine, logger: logger}
}

// Extract returns the deduplicated tokens of resource for params. Parameters
// that are not token-indexed for the resource type are ignored, as are
// parameters whose expression fails to evaluate.
func (e *Extractor) Extract(resource map[string]any, params []*searchparam.Definition) []Token {
	resourceType, _ := resource["resourceType"].(string)
	b := &tokenBuilder{seen: make(map[string]bool)}

	for _, p := range params {
		class := e.registry.Classify(p, resourceType)
		if class == searchparam.NotIndexed {
			continue
		}
		values, err := e.engine.Evaluate(resource, p.Expression)
		if err != nil {
			e.logger.Warn().Err(err).
				Str("resource_type", resourceType).
				Str("code", p.Code).
				Msg("search parameter expression failed, skipping")
			continue
		}
		b.code = p.Code
		b.lower = class == searchparam.CaseInsensitive
		for _, v := range values {
			b.addValue(v, p.ElementTypes)
		}
	}
	return b.tokens
}

type tokenBuilder struct {
	code   string
	lower  bool
	seen   map[string]bool
	tokens []Token
}

func (b *tokenBuilder) addValue(v fhirpath.TypedValue, hints []string) {
	m, _ := v.Value.(map[string]any)

	switch detectShape(v, hints) {
	case shapeIdentifier:
		b.add(str(m, "system"), str(m, "value"))
	case shapeCodeableConcept:
		b.addText(str(m, "text"))
		if codings, ok := m["coding"].([]any); ok {
			for _, c := range codings {
				if cm, ok := c.(map[string]any); ok {
					b.addCoding(cm)
				}
			}
		}
	case shapeCoding:
		b.addCoding(m)
	case shapeContactPoint:
		b.add(str(m, "system"), lower(str(m, "value")))
	case shapeScalar:
		b.add("", fhirpath.Stringify(v.Value))
	case shapeNone:
	}
}

func (b *tokenBuilder) addCoding(m map[string]any) {
	b.addText(str(m, "display"))
	b.add(str(m, "system"), str(m, "code"))
}

func (b *tokenBuilder) addText(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	b.add(TextSystem, text)
}

func (b *tokenBuilder) add(system, value string) {
	t := Token{Code: b.code, System: normalize(system, false), Value: normalize(value, b.lower)}
	if t.System == nil && t.Value == nil {
		return
	}
	k := t.key()
	if b.seen[k] {
		return
	}
	b.seen[k] = true
	b.tokens = append(b.tokens, t)
}

func normalize(s string, toLower bool) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if toLower {
		s = lower(s)
	}
	return &s
}

func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// detectShape prefers the type tag from the evaluator, then a single declared
// element type, then the structure of the value.
func detectShape(v fhirpath.TypedValue, hints []string) shape {
	m, isMap := v.Value.(map[string]any)
	if !isMap {
		switch v.Value.(type) {
		case nil, []any:
			return shapeNone
		}
		return shapeScalar
	}

	if s, ok := shapesByType[v.Type]; ok {
		return s
	}
	if v.Type != "" {
		return shapeNone
	}

	var hinted []shape
	for _, h := range hints {
		if s, ok := shapesByType[h]; ok {
			hinted = append(hinted, s)
		}
	}
	if len(hinted) == 1 {
		return hinted[0]
	}

	_, hasCoding := m["coding"]
	_, hasText := m["text"]
	_, hasCode := m["code"]
	_, hasDisplay := m["display"]
	_, hasValue := m["value"]
	switch {
	case hasCoding || (hasText && !hasValue && !hasCode):
		return shapeCodeableConcept
	case hasCode || hasDisplay:
		return shapeCoding
	case hasValue:
		if contactSystems[str(m, "system")] {
			if _, hasUse := m["use"]; hasUse || !hintedAs(hinted, shapeIdentifier) {
				return shapeContactPoint
			}
		}
		return shapeIdentifier
	}
	return shapeNone
}

func hintedAs(hinted []shape, s shape) bool {
	for _, h := range hinted {
		if h == s {
			return true
		}
	}
	return false
}
