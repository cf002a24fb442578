package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildResultJSONSchema returns the output contract as a JSON-Schema
// (draft 2020-12 subset) generic map. Scalar leaves admit null so the model
// can say "not found" without inventing values; list leaves must be string
// arrays.
func BuildResultJSONSchema() map[string]any {
	nullableString := map[string]any{"type": []string{"string", "null"}}
	stringArray := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"dadesAlumne": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"nomCognoms":    nullableString,
					"dataNaixement": nullableString,
					"curs":          nullableString,
				},
			},
			"motiu": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"diagnostic": nullableString,
				},
			},
			"adaptacionsGenerals": stringArray,
			"orientacions":        stringArray,
		},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
