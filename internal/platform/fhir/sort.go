package fhir

import (
	"strings"

	"github.com/ehr/searchindex/internal/platform/tokenindex"
)

// ParseSort parses the _sort query parameter value.
// Format: "-status,code" means status DESC, code ASC. Repeated codes keep
// their first direction.
func ParseSort(sortParam string) []tokenindex.SortRule {
	if sortParam == "" {
		return nil
	}

	parts := strings.Split(sortParam, ",")
	rules := make([]tokenindex.SortRule, 0, len(parts))
	seen := make(map[string]bool, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		rule := tokenindex.SortRule{}
		if strings.HasPrefix(part, "-") {
			rule.Descending = true
			rule.Code = part[1:]
		} else {
			rule.Code = part
		}

		if rule.Code == "" || seen[rule.Code] {
			continue
		}
		seen[rule.Code] = true
		rules = append(rules, rule)
	}

	return rules
}
