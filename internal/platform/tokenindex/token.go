// Package tokenindex indexes token-type search parameters: it extracts
// (code, system, value) tuples from resources, stores them in one auxiliary
// table per resource type, and compiles token filters and sort rules into
// sqlexpr trees over those tables.
package tokenindex

import (
	"strings"
	"unicode"
)

// TextSystem is the system of tokens holding human-readable text
// (CodeableConcept.text, Coding.display). The :text modifier searches only
// these rows.
const TextSystem = "text"

// Token is one indexed tuple. A nil System or Value is stored as NULL; at
// least one of them is set.
type Token struct {
	Code   string
	System *string
	Value  *string
}

func (t Token) key() string {
	var sb strings.Builder
	sb.WriteString(t.Code)
	sb.WriteByte(0)
	if t.System != nil {
		sb.WriteByte(1)
		sb.WriteString(*t.System)
	}
	sb.WriteByte(0)
	if t.Value != nil {
		sb.WriteByte(1)
		sb.WriteString(*t.Value)
	}
	return sb.String()
}

// Operator is a token filter operator.
type Operator string

const (
	Equals    Operator = "eq"
	NotEquals Operator = "not"
	Text      Operator = "text"
	Contains  Operator = "contains"
	In        Operator = "in"
	NotIn     Operator = "not-in"
	Missing   Operator = "missing"
	Present   Operator = "present"
)

// Filter is one search filter on a token parameter. Value is the raw query
// value: comma separated options, each optionally "system|value".
type Filter struct {
	Code     string
	Operator Operator
	Value    string
}

// SortRule orders results by the token values of Code.
type SortRule struct {
	Code       string
	Descending bool
}

// ResourceTable returns the table holding resources of resourceType, e.g.
// "medication_request" for MedicationRequest.
func ResourceTable(resourceType string) string {
	var sb strings.Builder
	for i, r := range resourceType {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// TokenTable returns the token table of resourceType.
func TokenTable(resourceType string) string {
	return ResourceTable(resourceType) + "_token"
}
