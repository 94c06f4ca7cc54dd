package fhir

import (
	"time"

	"github.com/ehr/searchindex/internal/platform/searchparam"
)

// CapabilityStatement represents the FHIR CapabilityStatement (metadata).
type CapabilityStatement struct {
	ResourceType string   `json:"resourceType"`
	Status       string   `json:"status"`
	Date         string   `json:"date"`
	Kind         string   `json:"kind"`
	FHIRVersion  string   `json:"fhirVersion"`
	Format       []string `json:"format"`
	Rest         []CSRest `json:"rest"`
}

type CSRest struct {
	Mode     string       `json:"mode"`
	Resource []CSResource `json:"resource"`
}

type CSResource struct {
	Type        string          `json:"type"`
	Interaction []CSInteraction `json:"interaction"`
	SearchParam []CSSearchParam `json:"searchParam,omitempty"`
}

type CSInteraction struct {
	Code string `json:"code"`
}

type CSSearchParam struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Definition    string `json:"definition,omitempty"`
	Documentation string `json:"documentation,omitempty"`
}

// NewCapabilityStatement advertises search-type on every registered resource
// type along with its indexed token parameters.
func NewCapabilityStatement(registry *searchparam.Registry) *CapabilityStatement {
	var resources []CSResource
	for _, rt := range registry.ResourceTypes() {
		var params []CSSearchParam
		for _, def := range registry.TokenParameters(rt) {
			params = append(params, CSSearchParam{
				Name:          def.Code,
				Type:          string(def.Type),
				Definition:    def.URL,
				Documentation: def.Description,
			})
		}
		resources = append(resources, CSResource{
			Type:        rt,
			Interaction: []CSInteraction{{Code: "search-type"}},
			SearchParam: params,
		})
	}

	return &CapabilityStatement{
		ResourceType: "CapabilityStatement",
		Status:       "active",
		Date:         time.Now().UTC().Format("2006-01-02"),
		Kind:         "instance",
		FHIRVersion:  "4.0.1",
		Format:       []string{"json"},
		Rest: []CSRest{
			{Mode: "server", Resource: resources},
		},
	}
}
