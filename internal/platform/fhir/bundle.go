package fhir

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/searchindex/pkg/pagination"
)

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

// BundleEntry carries only the matched resource reference. Resource bodies
// are owned by the storage layer and are not loaded by the index.
type BundleEntry struct {
	FullURL string        `json:"fullUrl,omitempty"`
	Search  *BundleSearch `json:"search,omitempty"`
}

type BundleSearch struct {
	Mode string `json:"mode,omitempty"`
}

// SearchBundleParams holds pagination and link information for a search bundle.
type SearchBundleParams struct {
	BaseURL  string
	QueryStr string
	Page     pagination.Params
	HasMore  bool
}

// NewSearchBundle creates a searchset Bundle listing the matched ids of
// resourceType with self, next and previous links.
func NewSearchBundle(resourceType string, ids []uuid.UUID, params SearchBundleParams) *Bundle {
	now := time.Now().UTC()
	entries := make([]BundleEntry, len(ids))
	for i, id := range ids {
		entries[i] = BundleEntry{
			FullURL: FormatReference(resourceType, id.String()),
			Search:  &BundleSearch{Mode: "match"},
		}
	}

	var links []BundleLink
	for _, l := range params.Page.FHIRLinks(params.BaseURL, params.QueryStr, params.HasMore) {
		links = append(links, BundleLink{Relation: l.Relation, URL: l.URL})
	}

	return &Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Timestamp:    &now,
		Link:         links,
		Entry:        entries,
	}
}

// FormatReference creates a FHIR reference string.
func FormatReference(resourceType, id string) string {
	return resourceType + "/" + id
}
