package internal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/lychee-technology/tabula"
)

type jsonSchemaValidator struct {
	config tabula.ValidationConfig
}

// NewSchemaValidator returns the validation gate backed by jsonschema-go.
func NewSchemaValidator(config tabula.ValidationConfig) SchemaValidator {
	return &jsonSchemaValidator{config: config}
}

func (v *jsonSchemaValidator) ValidateSchema(ctx context.Context, raw any) (tabula.StorageSchema, error) {
	var shape tabula.StorageSchema
	switch s := raw.(type) {
	case nil:
		return tabula.StorageSchema{}, tabula.NewValidationError("schema", "schema is required")
	case tabula.Schema:
		if err := s.Validate(); err != nil {
			return tabula.StorageSchema{}, err
		}
		shape = s.ToStorageShape()
	case *tabula.Schema:
		if s == nil {
			return tabula.StorageSchema{}, tabula.NewValidationError("schema", "schema is required")
		}
		if err := s.Validate(); err != nil {
			return tabula.StorageSchema{}, err
		}
		shape = s.ToStorageShape()
	case tabula.StorageSchema:
		shape = s
	default:
		doc, err := json.Marshal(raw)
		if err != nil {
			return tabula.StorageSchema{}, tabula.NewError(tabula.ErrorTypeInvalidInput, tabula.ErrCodeInvalidJSON, "schema is not serializable").
				WithField("schema").WithCause(err)
		}
		decoded, err := decodeSchemaDocument(doc)
		if err != nil {
			return tabula.StorageSchema{}, err
		}
		shape = decoded
	}

	schema, err := tabula.FromStorageShape(shape)
	if err != nil {
		return tabula.StorageSchema{}, err
	}
	if len(schema.Fields) == 0 {
		return tabula.StorageSchema{}, tabula.NewValidationError("schema", "Please add at least one field to the schema")
	}
	if v.config.MaxSchemaFields > 0 && len(schema.Fields) > v.config.MaxSchemaFields {
		return tabula.StorageSchema{}, tabula.NewValidationError("schema", fmt.Sprintf("schema declares %d fields, limit is %d", len(schema.Fields), v.config.MaxSchemaFields))
	}

	normalized := schema.ToStorageShape()
	if _, err := resolveStorageSchema(normalized); err != nil {
		return tabula.StorageSchema{}, tabula.NewError(tabula.ErrorTypeInvalidInput, tabula.ErrCodeInvalidSchema, "schema does not resolve").
			WithField("schema").WithCause(err)
	}
	return normalized, nil
}

// decodeSchemaDocument accepts either a field list ({"fields":[...]}) or a
// storage shape with a properties object.
func decodeSchemaDocument(doc []byte) (tabula.StorageSchema, error) {
	var head struct {
		Fields json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(doc, &head); err != nil {
		return tabula.StorageSchema{}, tabula.NewError(tabula.ErrorTypeInvalidInput, tabula.ErrCodeInvalidSchema, "schema must be a JSON object").
			WithField("schema").WithCause(err)
	}

	if len(head.Fields) > 0 {
		var schema tabula.Schema
		if err := json.Unmarshal(doc, &schema); err != nil {
			return tabula.StorageSchema{}, tabula.NewError(tabula.ErrorTypeInvalidInput, tabula.ErrCodeInvalidSchema, "schema fields must be a list of {name, type, required}").
				WithField("schema.fields").WithCause(err)
		}
		if err := schema.Validate(); err != nil {
			return tabula.StorageSchema{}, err
		}
		return schema.ToStorageShape(), nil
	}

	var shape tabula.StorageSchema
	if err := json.Unmarshal(doc, &shape); err != nil {
		return tabula.StorageSchema{}, tabula.NewError(tabula.ErrorTypeInvalidInput, tabula.ErrCodeInvalidSchema, "schema must be a JSON object with type, properties and required").
			WithField("schema").WithCause(err)
	}
	return shape, nil
}

func (v *jsonSchemaValidator) ValidateData(ctx context.Context, schema tabula.StorageSchema, raw any) (map[string]any, error) {
	if raw == nil {
		return nil, tabula.NewValidationError("data", "data is required")
	}

	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, tabula.NewError(tabula.ErrorTypeInvalidInput, tabula.ErrCodeInvalidJSON, "data is not serializable").
			WithField("data").WithCause(err)
	}
	if v.config.MaxDataBytes > 0 && len(payload) > v.config.MaxDataBytes {
		return nil, tabula.NewValidationError("data", fmt.Sprintf("data exceeds %d bytes", v.config.MaxDataBytes))
	}

	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, tabula.NewError(tabula.ErrorTypeInvalidInput, tabula.ErrCodeInvalidJSON, "data is not valid JSON").
			WithField("data").WithCause(err)
	}
	data, ok := decoded.(map[string]any)
	if !ok || data == nil {
		return nil, tabula.NewValidationError("data", "data must be a JSON object")
	}

	if !v.config.EnforceFieldTypes {
		return data, nil
	}

	resolved, err := resolveStorageSchema(schema)
	if err != nil {
		return nil, tabula.NewInternalError("resolve stored schema", err)
	}
	if err := resolved.Validate(data); err != nil {
		return nil, tabula.NewError(tabula.ErrorTypeInvalidInput, tabula.ErrCodeTypeMismatch, "data does not match dataset schema").
			WithField("data").
			WithDetail("reason", err.Error()).
			WithCause(err)
	}
	return data, nil
}

func resolveStorageSchema(shape tabula.StorageSchema) (*jsonschema.Resolved, error) {
	schemaBytes, err := json.Marshal(shape)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema for validation: %w", err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(schemaBytes, &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into jsonschema.Schema: %w", err)
	}
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve JSON schema: %w", err)
	}
	return resolved, nil
}
