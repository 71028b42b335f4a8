package compiler

import (
	"errors"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Parser is responsible for converting raw bytes into a TreeDescription.
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes a YAML description. JSON descriptions are accepted too,
// since JSON documents are valid YAML.
func (p *Parser) Parse(data []byte) (*domain.TreeDescription, error) {
	var desc domain.TreeDescription
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("failed to parse tree: %w", err)
	}
	if desc.ID == "" {
		return nil, errors.New("tree missing ID")
	}
	return &desc, nil
}
