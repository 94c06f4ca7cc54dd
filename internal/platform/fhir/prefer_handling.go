package fhir

import "strings"

// HandlingPreference represents the FHIR Prefer handling directive value.
// When handling=strict, unknown or unsupported search parameters are
// rejected. When handling=lenient (default), they are ignored.
type HandlingPreference string

const (
	HandlingStrict  HandlingPreference = "strict"
	HandlingLenient HandlingPreference = "lenient"
)

// ParsePreferHandling extracts the handling preference from a Prefer header value.
// It supports directives separated by semicolons or commas.
// Returns HandlingLenient if no valid handling directive is found.
func ParsePreferHandling(prefer string) HandlingPreference {
	prefer = strings.TrimSpace(prefer)
	if prefer == "" {
		return HandlingLenient
	}

	for _, part := range strings.FieldsFunc(prefer, func(r rune) bool { return r == ',' || r == ';' }) {
		part = strings.TrimSpace(part)
		if val, ok := strings.CutPrefix(part, "handling="); ok {
			switch HandlingPreference(strings.TrimSpace(val)) {
			case HandlingStrict:
				return HandlingStrict
			case HandlingLenient:
				return HandlingLenient
			}
		}
	}

	return HandlingLenient
}
