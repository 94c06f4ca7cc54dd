package searchparam

import (
	"fmt"
	"strings"
)

// Type is a FHIR SearchParameter.type value.
type Type string

const (
	TypeNumber    Type = "number"
	TypeDate      Type = "date"
	TypeString    Type = "string"
	TypeToken     Type = "token"
	TypeReference Type = "reference"
	TypeComposite Type = "composite"
	TypeQuantity  Type = "quantity"
	TypeURI       Type = "uri"
	TypeSpecial   Type = "special"
)

var validTypes = map[Type]bool{
	TypeNumber:    true,
	TypeDate:      true,
	TypeString:    true,
	TypeToken:     true,
	TypeReference: true,
	TypeComposite: true,
	TypeQuantity:  true,
	TypeURI:       true,
	TypeSpecial:   true,
}

// IdentifierSuffix marks the derived token parameter synthesized for every
// reference parameter, e.g. "subject:identifier".
const IdentifierSuffix = ":identifier"

// Definition is a search parameter definition. ElementTypes declares the FHIR
// types of the elements the expression selects; it drives token
// case-sensitivity classification.
type Definition struct {
	URL          string   `yaml:"url" json:"url,omitempty"`
	Name         string   `yaml:"name" json:"name,omitempty"`
	Description  string   `yaml:"description" json:"description,omitempty"`
	Code         string   `yaml:"code" json:"code"`
	Base         []string `yaml:"base" json:"base"`
	Type         Type     `yaml:"type" json:"type"`
	Expression   string   `yaml:"expression" json:"expression,omitempty"`
	Target       []string `yaml:"target" json:"target,omitempty"`
	ElementTypes []string `yaml:"elementTypes" json:"elementTypes,omitempty"`

	// Derived is set on the ":identifier" variants the registry synthesizes.
	Derived bool `yaml:"-" json:"-"`
}

// Validate checks the fields required to register the definition.
func (d *Definition) Validate() error {
	if d.Code == "" {
		return fmt.Errorf("search parameter code is required")
	}
	if strings.ContainsAny(d.Code, " ,|") {
		return fmt.Errorf("search parameter %q: code contains an invalid character", d.Code)
	}
	if len(d.Base) == 0 {
		return fmt.Errorf("search parameter %q: at least one base resource type is required", d.Code)
	}
	if !validTypes[d.Type] {
		return fmt.Errorf("search parameter %q: invalid type %q", d.Code, d.Type)
	}
	if d.Expression == "" && d.Type != TypeSpecial {
		return fmt.Errorf("search parameter %q: expression is required", d.Code)
	}
	return nil
}

// AppliesTo reports whether the definition has resourceType (or a base type
// every resource inherits) among its bases.
func (d *Definition) AppliesTo(resourceType string) bool {
	for _, b := range d.Base {
		if b == resourceType || b == "Resource" || b == "DomainResource" {
			return true
		}
	}
	return false
}

// identifierVariant synthesizes the token parameter that searches a reference
// parameter by the logical identifier of the referenced resource.
func identifierVariant(ref *Definition) *Definition {
	return &Definition{
		Code:         ref.Code + IdentifierSuffix,
		Name:         ref.Name + "Identifier",
		Description:  "Logical identifier of the resource referenced by " + ref.Code,
		Base:         ref.Base,
		Type:         TypeToken,
		Expression:   "(" + ref.Expression + ").identifier",
		ElementTypes: []string{"Identifier"},
		Derived:      true,
	}
}
