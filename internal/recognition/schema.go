package recognition

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const decimalPattern = `^-?\d+(\.\d+)?$`

// BuildPrimaryResponseSchema describes the sanitized primary recognizer payload.
// Amounts arrive as decimal strings after sanitizing.
func BuildPrimaryResponseSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"success"},
		"properties": map[string]any{
			"success":        map[string]any{"type": "boolean"},
			"invoice_number": map[string]any{"type": "string", "maxLength": 64},
			"invoice_date":   map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
			"provider_name":  map[string]any{"type": "string", "maxLength": 200},
			"subtotal":       decimalProp(),
			"tax":            decimalProp(),
			"total":          decimalProp(),
			"confidence":     map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"raw_text":       map[string]any{"type": "string"},
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"product_name", "quantity", "unit_price"},
					"properties": map[string]any{
						"product_name": map[string]any{"type": "string", "minLength": 1},
						"quantity":     decimalProp(),
						"unit_price":   decimalProp(),
						"total_price":  decimalProp(),
					},
				},
			},
		},
	}
}

func decimalProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": decimalPattern,
	}
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("primary.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("primary.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// validateAgainst checks sanitized JSON against a compiled schema.
func validateAgainst(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
