package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed content.yaml
var defaultContent []byte

// Parse decodes a YAML definition. Unknown keys are rejected so a typo in a
// field name does not silently drop content.
func Parse(data []byte) (Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("decode catalog: %w", err)
	}
	return def, nil
}

// Load reads, parses and validates the definition stored at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return New(def)
}

// Default builds the catalog shipped with the binary.
func Default() (*Catalog, error) {
	def, err := Parse(defaultContent)
	if err != nil {
		return nil, err
	}
	return New(def)
}
