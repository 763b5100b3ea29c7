package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
)

// SchemaFetcher retrieves schema bytes from a URL, the external
// collaborator spec.md §6 names for schema retrieval.
type SchemaFetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// SchemaValidator checks data against the schema named by schemaURL.
// The only in-repo implementation (jsonSchemaValidator) performs a
// structural required-field/type check rather than full JSON Schema
// evaluation; see DESIGN.md for why no example repo grounds a richer
// validator.
type SchemaValidator interface {
	Validate(ctx context.Context, schemaURL string, data []byte) error
}

// jsonSchemaField is the minimal subset of JSON Schema's object
// keywords this validator understands: required field presence and a
// "type" per property drawn from {"string","number","boolean","object","array"}.
type jsonSchemaField struct {
	Type       string                     `json:"type"`
	Required   []string                   `json:"required"`
	Properties map[string]jsonSchemaField `json:"properties"`
}

// jsonSchemaValidator fetches a schema document via a SchemaFetcher
// and checks that data's top-level required properties are present
// and, where declared, hold a value of the expected JSON type.
type jsonSchemaValidator struct {
	fetcher SchemaFetcher
}

// NewSchemaValidator builds a SchemaValidator that fetches schema
// documents through fetcher.
func NewSchemaValidator(fetcher SchemaFetcher) SchemaValidator {
	return &jsonSchemaValidator{fetcher: fetcher}
}

func (v *jsonSchemaValidator) Validate(ctx context.Context, schemaURL string, data []byte) error {
	raw, err := v.fetcher.Get(ctx, schemaURL)
	if err != nil {
		return newError(KindSchemaViolation, "schema.fetch", fmt.Errorf("failed to fetch schema %q: %w", schemaURL, err))
	}

	var schema jsonSchemaField

	if err := json.Unmarshal(raw, &schema); err != nil {
		return newError(KindSchemaViolation, "schema.parse", fmt.Errorf("failed to parse schema %q: %w", schemaURL, err))
	}

	var doc map[string]any

	if err := json.Unmarshal(data, &doc); err != nil {
		return newError(KindSchemaViolation, "schema.parse_data", fmt.Errorf("data is not a JSON object, cannot validate against %q: %w", schemaURL, err))
	}

	if err := validateAgainst(schema, doc); err != nil {
		return newError(KindSchemaViolation, "schema.validate", err)
	}

	return nil
}

func validateAgainst(schema jsonSchemaField, doc map[string]any) error {
	for _, name := range schema.Required {
		if _, ok := doc[name]; !ok {
			return fmt.Errorf("required property %q is missing", name)
		}
	}

	for name, field := range schema.Properties {
		value, present := doc[name]
		if !present {
			continue
		}

		if err := checkType(name, field.Type, value); err != nil {
			return err
		}
	}

	return nil
}

func checkType(name, expected string, value any) error {
	if expected == "" {
		return nil
	}

	var ok bool

	switch expected {
	case "string":
		_, ok = value.(string)
	case "number":
		_, ok = value.(float64)
	case "boolean":
		_, ok = value.(bool)
	case "object":
		_, ok = value.(map[string]any)
	case "array":
		_, ok = value.([]any)
	default:
		ok = true
	}

	if !ok {
		return fmt.Errorf("property %q does not match schema type %q", name, expected)
	}

	return nil
}
