package model

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

type document struct {
	Models []Model `yaml:"models"`
}

// ParseYAML decodes a models document:
//
//	models:
//	  - name: Restaurant
//	    fields:
//	      - {name: name, type: String, required: true}
//
// Unknown keys are rejected. The result is validated.
func ParseYAML(data []byte) ([]Model, error) {
	var doc document
	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("model: %s", yaml.FormatError(err, false, true))
	}
	if err := Validate(doc.Models); err != nil {
		return nil, err
	}
	return doc.Models, nil
}

// LoadYAML reads and parses the models file at path.
func LoadYAML(path string) ([]Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model: read %s: %w", path, err)
	}
	return ParseYAML(data)
}
