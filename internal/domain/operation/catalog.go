package operation

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultCatalogYAML []byte

type catalogFile struct {
	Operations []operationSpec `yaml:"operations"`
}

type operationSpec struct {
	Name            string       `yaml:"name"`
	Description     string       `yaml:"description"`
	Instruction     string       `yaml:"instruction"`
	MinLengthRatio  float64      `yaml:"min_length_ratio"`
	RequiredMarkers []markerSpec `yaml:"required_markers"`
}

type markerSpec struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

// Catalog maps operation type tags to operations.
type Catalog struct {
	operations map[string]*Operation
}

// NewCatalog builds a catalog from already constructed operations.
func NewCatalog(ops ...*Operation) (*Catalog, error) {
	c := &Catalog{operations: make(map[string]*Operation, len(ops))}
	for _, op := range ops {
		if op == nil || op.Name == "" {
			return nil, errors.New("operation name is required")
		}
		if _, dup := c.operations[op.Name]; dup {
			return nil, fmt.Errorf("duplicate operation: %s", op.Name)
		}
		c.operations[op.Name] = op
	}
	return c, nil
}

// LoadCatalog parses a YAML catalog.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode operations catalog: %w", err)
	}
	if len(file.Operations) == 0 {
		return nil, errors.New("operations catalog is empty")
	}

	ops := make([]*Operation, 0, len(file.Operations))
	for _, spec := range file.Operations {
		op, err := spec.build()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return NewCatalog(ops...)
}

// LoadCatalogFile reads a catalog from path, or the built-in catalog when path is empty.
func LoadCatalogFile(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	f, err := os.Open(path) //nolint:gosec // operator supplied config path
	if err != nil {
		return nil, fmt.Errorf("failed to open operations catalog: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadCatalog(f)
}

// DefaultCatalog returns the built-in operations.
func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(bytes.NewReader(defaultCatalogYAML))
}

// Lookup returns the operation registered for opType.
func (c *Catalog) Lookup(opType string) (*Operation, bool) {
	op, ok := c.operations[opType]
	return op, ok
}

// Names returns the registered operation names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.operations))
	for name := range c.operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s operationSpec) build() (*Operation, error) {
	if s.Name == "" {
		return nil, errors.New("operation name is required")
	}
	if s.Instruction == "" {
		return nil, fmt.Errorf("operation %s: instruction is required", s.Name)
	}
	if s.MinLengthRatio < 0 || s.MinLengthRatio > 2 {
		return nil, fmt.Errorf("operation %s: min_length_ratio must be between 0 and 2", s.Name)
	}

	op := &Operation{
		Name:           s.Name,
		Description:    s.Description,
		Instruction:    s.Instruction,
		MinLengthRatio: s.MinLengthRatio,
	}
	for _, m := range s.RequiredMarkers {
		marker, err := NewMarker(m.Name, m.Pattern)
		if err != nil {
			return nil, fmt.Errorf("operation %s: %w", s.Name, err)
		}
		op.RequiredMarkers = append(op.RequiredMarkers, marker)
	}
	return op, nil
}
