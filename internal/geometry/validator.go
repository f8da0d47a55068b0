// Package geometry checks geometry fields: GeoJSON structural validity,
// territory adequacy and spatial spread, plus WKT hiding in text fields.
package geometry

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://rk-analyzer.local/schema/"

// schema documents in dependency order; geojson.json is the root
var schemaFiles = []string{"bbox.json", "crs.json", "geometry.json", "geojson.json"}

// Validator checks values against the GeoJSON schema. It is built once and
// is safe for concurrent use.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded GeoJSON schema documents
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7

	for _, name := range schemaFiles {
		data, err := schemaFS.ReadFile("schema/" + name)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", name, err)
		}
		if err := compiler.AddResource(schemaBaseURL+name, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
		}
	}

	schema, err := compiler.Compile(schemaBaseURL + "geojson.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile GeoJSON schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Valid reports whether v is a structurally valid GeoJSON object. Values that
// cannot be encoded are invalid.
func (v *Validator) Valid(value any) bool {
	normalized, err := roundTrip(value)
	if err != nil {
		return false
	}
	return v.schema.Validate(normalized) == nil
}

// roundTrip re-decodes the value so the schema sees plain JSON types
func roundTrip(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Navigate follows the dotted path from doc. When a segment is missing or
// the current value is not a nested document, it stops and returns the
// deepest value reached so far.
func Navigate(doc map[string]any, path []string) any {
	var cur any = doc
	for _, part := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			break
		}
		next, ok := m[part]
		if !ok {
			break
		}
		cur = next
	}
	return cur
}
