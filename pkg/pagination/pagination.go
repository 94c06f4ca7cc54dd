package pagination

import (
	"fmt"
	"net/url"
	"strconv"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds the _count and _offset of a search.
type Params struct {
	Limit  int
	Offset int
}

// ParamError reports an unusable _count or _offset value.
type ParamError struct {
	Param string
	Value string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s must be a non-negative integer, got %q", e.Param, e.Value)
}

// FromValues reads _count and _offset from query values. Missing values take
// the defaults, _count is capped at MaxLimit and anything unparsable or
// negative is an error.
func FromValues(values url.Values) (Params, error) {
	p := Params{Limit: DefaultLimit}

	if raw := values.Get("_count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Params{}, &ParamError{Param: "_count", Value: raw}
		}
		p.Limit = min(n, MaxLimit)
	}
	if raw := values.Get("_offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Params{}, &ParamError{Param: "_offset", Value: raw}
		}
		p.Offset = n
	}
	return p, nil
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset returns the offset for the previous page.
// Returns 0 if the result would be negative.
func (p Params) PreviousOffset() int {
	prev := p.Offset - p.Limit
	if prev < 0 {
		return 0
	}
	return prev
}

// FHIRLinks generates searchset Bundle links. query holds the remaining
// search parameters, already encoded, and is repeated on every link.
func (p Params) FHIRLinks(basePath, query string, hasNext bool) []FHIRLink {
	link := func(offset int) string {
		if query != "" {
			return fmt.Sprintf("%s?%s&_count=%d&_offset=%d", basePath, query, p.Limit, offset)
		}
		return fmt.Sprintf("%s?_count=%d&_offset=%d", basePath, p.Limit, offset)
	}

	links := []FHIRLink{{Relation: "self", URL: link(p.Offset)}}
	if hasNext {
		links = append(links, FHIRLink{Relation: "next", URL: link(p.NextOffset())})
	}
	if p.HasPrevious() {
		links = append(links, FHIRLink{Relation: "previous", URL: link(p.PreviousOffset())})
	}
	return links
}

// FHIRLink represents a single FHIR Bundle link entry.
type FHIRLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}
