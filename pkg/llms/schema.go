package llms

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaFor derives a strict JSON schema map from a Go struct type, suitable
// for the response_format field of OpenAI-compatible endpoints.
func SchemaFor(v interface{}) (map[string]interface{}, error) {
	reflector := jsonschema.Reflector{
		// Strict mode rejects unknown fields and inlines definitions.
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}

	schema := reflector.Reflect(v)

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
	}

	// The $schema marker confuses some OpenAI-compatible servers.
	delete(out, "$schema")

	return out, nil
}

// MustSchemaFor is SchemaFor for package-level schema variables.
func MustSchemaFor(v interface{}) map[string]interface{} {
	schema, err := SchemaFor(v)
	if err != nil {
		panic(err)
	}
	return schema
}
