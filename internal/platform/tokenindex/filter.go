package tokenindex

import (
	"strings"

	"github.com/ehr/searchindex/internal/platform/searchparam"
)

var modifierOperators = map[string]Operator{
	"":         Equals,
	"not":      NotEquals,
	"text":     Text,
	"contains": Contains,
	"in":       In,
	"not-in":   NotIn,
	"missing":  Missing,
	"present":  Present,
}

// ParseFilter converts a search query parameter such as "code:not" with its
// value into a Filter. The ":identifier" modifier selects the derived
// identifier parameter of a reference.
func ParseFilter(key, value string) (Filter, error) {
	code, modifier, _ := strings.Cut(key, ":")
	if code == "" {
		return Filter{}, &InvalidFilterValue{Code: key, Value: value, Reason: "empty parameter name"}
	}
	if modifier == "identifier" {
		return Filter{Code: code + searchparam.IdentifierSuffix, Operator: Equals, Value: value}, nil
	}
	op, ok := modifierOperators[modifier]
	if !ok {
		return Filter{}, &InvalidFilterValue{Code: code, Value: value, Reason: "unsupported modifier :" + modifier}
	}
	return Filter{Code: code, Operator: op, Value: value}, nil
}
