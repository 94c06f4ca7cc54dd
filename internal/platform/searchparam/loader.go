package searchparam

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the document format of a search parameter definitions file.
//
//	searchParameters:
//	  - code: mrn
//	    base: [Patient]
//	    type: token
//	    expression: Patient.identifier.where(type.coding.code='MR')
//	    elementTypes: [Identifier]
type File struct {
	SearchParameters []*Definition `yaml:"searchParameters"`
}

// LoadFile reads definitions from a YAML file.
func LoadFile(path string) ([]*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("searchparam: read %s: %w", path, err)
	}
	defs, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("searchparam: %s: %w", path, err)
	}
	return defs, nil
}

// Decode parses a definitions document. Unknown fields are rejected so that a
// misspelled key does not silently leave a parameter unindexed.
func Decode(r io.Reader) ([]*Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode: %w", err)
	}
	for i, d := range f.SearchParameters {
		if d == nil {
			return nil, fmt.Errorf("searchParameters[%d]: empty entry", i)
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("searchParameters[%d]: %w", i, err)
		}
	}
	return f.SearchParameters, nil
}
