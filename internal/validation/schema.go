package validation

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Schema names, one per embedded file under schemas/
const (
	SchemaInsight               = "insight"
	SchemaOptions               = "options"
	SchemaMarketAnalysis        = "market_analysis"
	SchemaCompetitiveAnalysis   = "competitive_analysis"
	SchemaSwotAnalysis          = "swot_analysis"
	SchemaCustomerSegmentation  = "customer_segmentation"
	SchemaStrategicImplications = "strategic_implications"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

var (
	schemaCache = make(map[string]*gojsonschema.Schema)
	schemaMutex sync.Mutex
)

// LoadSchema compiles (once) and returns an embedded schema by name
func LoadSchema(name string) (*gojsonschema.Schema, error) {
	schemaMutex.Lock()
	defer schemaMutex.Unlock()

	if schema, ok := schemaCache[name]; ok {
		return schema, nil
	}

	schemaData, err := schemaFiles.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", name, err)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaData))
	if err != nil {
		return nil, fmt.Errorf("failed to create schema %s: %w", name, err)
	}

	schemaCache[name] = schema
	return schema, nil
}

// Validate validates a JSON document against a schema
func Validate(documentJSON string, schema *gojsonschema.Schema) error {
	documentLoader := gojsonschema.NewStringLoader(documentJSON)
	result, err := schema.Validate(documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate: %w", err)
	}

	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}
		return fmt.Errorf("validation failed: %v", errors)
	}

	return nil
}

// ValidateAndParse validates a JSON document against the named schema and unmarshals it
func ValidateAndParse[T any](documentJSON string, schemaName string) (*T, error) {
	schema, err := LoadSchema(schemaName)
	if err != nil {
		return nil, err
	}

	if err := Validate(documentJSON, schema); err != nil {
		return nil, err
	}

	var value T
	if err := json.Unmarshal([]byte(documentJSON), &value); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return &value, nil
}
