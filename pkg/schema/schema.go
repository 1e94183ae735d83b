// Package schema compiles the embedded JSON Schemas that guard documents
// read from outside the process: policies, policy envelopes and registries.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const baseURL = "https://immuva.schemas.local/"

// Compile compiles a Draft 2020-12 schema registered under name.
func Compile(name, src string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := baseURL + name + ".schema.json"
	if err := c.AddResource(url, strings.NewReader(src)); err != nil {
		return nil, fmt.Errorf("schema: load %s: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema: compile %s: %w", name, err)
	}
	return compiled, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(name, src string) *jsonschema.Schema {
	s, err := Compile(name, src)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateJSON decodes raw JSON and validates it against s. It returns the
// decoded value so callers do not parse twice.
func ValidateJSON(s *jsonschema.Schema, data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("schema: decode: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return v, nil
}
