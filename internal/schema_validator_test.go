package internal

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/lychee-technology/tabula"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeJSON(t *testing.T, doc string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(doc), &v))
	return v
}

func TestValidateSchemaAcceptsStorageDocument(t *testing.T) {
	v := NewSchemaValidator(tabula.DefaultConfig().Validation)

	raw := decodeJSON(t, `{
		"type": "object",
		"properties": {
			"product": {"type": "string", "description": "Product name"},
			"amount": {"type": "number"},
			"tags": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["product", "amount"]
	}`)

	shape, err := v.ValidateSchema(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "object", shape.Type)
	assert.Len(t, shape.Properties, 3)
	assert.ElementsMatch(t, []string{"product", "amount"}, shape.Required)
}

func TestValidateSchemaPreservesDeclaredOrder(t *testing.T) {
	v := NewSchemaValidator(tabula.DefaultConfig().Validation)

	raw := json.RawMessage(`{"type":"object","properties":{"zeta":{"type":"string"},"alpha":{"type":"number"}},"required":[]}`)

	shape, err := v.ValidateSchema(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, shape.Properties, 2)
	assert.Equal(t, "zeta", shape.Properties[0].Name)
	assert.Equal(t, "alpha", shape.Properties[1].Name)
}

func TestValidateSchemaAcceptsFieldList(t *testing.T) {
	v := NewSchemaValidator(tabula.DefaultConfig().Validation)

	schema := tabula.Schema{Fields: []tabula.Field{{Name: "on", Type: tabula.FieldTypeBoolean, Required: true}}}
	shape, err := v.ValidateSchema(context.Background(), schema)
	require.NoError(t, err)
	assert.Equal(t, []string{"on"}, shape.Required)

	shape, err = v.ValidateSchema(context.Background(), &schema)
	require.NoError(t, err)
	assert.Len(t, shape.Properties, 1)
}

func TestValidateSchemaKeepsOrderOfDecodedBody(t *testing.T) {
	v := NewSchemaValidator(tabula.DefaultConfig().Validation)

	var in tabula.DatasetInput
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Prices","schema":{"type":"object","properties":{"zeta":{"type":"string"},"alpha":{"type":"number"}},"required":["alpha"]}}`), &in))

	shape, err := v.ValidateSchema(context.Background(), in.Schema)
	require.NoError(t, err)
	require.Len(t, shape.Properties, 2)
	assert.Equal(t, "zeta", shape.Properties[0].Name)
	assert.Equal(t, "alpha", shape.Properties[1].Name)
	assert.Equal(t, []string{"alpha"}, shape.Required)
}

func TestValidateSchemaAcceptsFieldListDocument(t *testing.T) {
	v := NewSchemaValidator(tabula.DefaultConfig().Validation)

	raw := json.RawMessage(`{"fields":[{"name":"product","type":"string","required":true},{"name":"amount","type":"number"}]}`)
	shape, err := v.ValidateSchema(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, shape.Properties, 2)
	assert.Equal(t, "product", shape.Properties[0].Name)
	assert.Equal(t, "number", shape.Properties[1].Type)
	assert.Equal(t, []string{"product"}, shape.Required)
}

func TestValidateSchemaRejects(t *testing.T) {
	v := NewSchemaValidator(tabula.ValidationConfig{EnforceFieldTypes: true, MaxSchemaFields: 2})

	cyclic := map[string]any{}
	cyclic["self"] = cyclic

	tests := []struct {
		name string
		raw  any
		code string
	}{
		{name: "nil", raw: nil, code: tabula.ErrCodeValidationFailed},
		{name: "unknown type", raw: decodeJSON(t, `{"properties":{"born":{"type":"date"}}}`), code: tabula.ErrCodeValidationFailed},
		{name: "not an object", raw: decodeJSON(t, `["a"]`), code: tabula.ErrCodeInvalidSchema},
		{name: "properties not an object", raw: decodeJSON(t, `{"properties":"x"}`), code: tabula.ErrCodeInvalidSchema},
		{name: "empty document", raw: json.RawMessage(`{}`), code: tabula.ErrCodeInvalidSchema},
		{name: "no properties", raw: decodeJSON(t, `{"type":"object","required":[]}`), code: tabula.ErrCodeInvalidSchema},
		{name: "zero properties", raw: decodeJSON(t, `{"type":"object","properties":{},"required":[]}`), code: tabula.ErrCodeValidationFailed},
		{name: "empty field list", raw: json.RawMessage(`{"fields":[]}`), code: tabula.ErrCodeValidationFailed},
		{name: "field list not a list", raw: json.RawMessage(`{"fields":{"a":"string"}}`), code: tabula.ErrCodeInvalidSchema},
		{name: "field list bad type", raw: json.RawMessage(`{"fields":[{"name":"born","type":"date"}]}`), code: tabula.ErrCodeValidationFailed},
		{name: "unserializable", raw: map[string]any{"fn": func() {}}, code: tabula.ErrCodeInvalidJSON},
		{name: "cyclic", raw: cyclic, code: tabula.ErrCodeInvalidJSON},
		{name: "required undeclared", raw: decodeJSON(t, `{"properties":{"a":{"type":"string"}},"required":["b"]}`), code: tabula.ErrCodeValidationFailed},
		{name: "too many fields", raw: decodeJSON(t, `{"properties":{"a":{"type":"string"},"b":{"type":"string"},"c":{"type":"string"}}}`), code: tabula.ErrCodeValidationFailed},
		{name: "duplicate field", raw: tabula.Schema{Fields: []tabula.Field{{Name: "a", Type: "string"}, {Name: "a", Type: "number"}}}, code: tabula.ErrCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateSchema(context.Background(), tt.raw)
			require.Error(t, err)
			var typed *tabula.Error
			require.ErrorAs(t, err, &typed)
			assert.Equal(t, tabula.ErrorTypeInvalidInput, typed.Type)
			assert.Equal(t, tt.code, typed.Code)
		})
	}
}

func TestValidateData(t *testing.T) {
	v := NewSchemaValidator(tabula.DefaultConfig().Validation)
	schema := pricesStorageSchema()

	data, err := v.ValidateData(context.Background(), schema, decodeJSON(t, `{"product":"Widget","amount":150.5,"tags":["a"],"legacy":1}`))
	require.NoError(t, err)
	assert.Equal(t, 150.5, data["amount"])
	assert.Equal(t, float64(1), data["legacy"])
}

func TestValidateDataNormalizesGoValues(t *testing.T) {
	v := NewSchemaValidator(tabula.DefaultConfig().Validation)

	data, err := v.ValidateData(context.Background(), pricesStorageSchema(), map[string]any{
		"product": "Widget",
		"amount":  42,
		"tags":    []string{"x"},
	})
	require.NoError(t, err)
	assert.Equal(t, float64(42), data["amount"])
	assert.Equal(t, []any{"x"}, data["tags"])
}

func TestValidateDataRejects(t *testing.T) {
	v := NewSchemaValidator(tabula.ValidationConfig{EnforceFieldTypes: true, MaxDataBytes: 64})
	schema := pricesStorageSchema()

	tests := []struct {
		name string
		raw  any
		code string
	}{
		{name: "nil", raw: nil, code: tabula.ErrCodeValidationFailed},
		{name: "array", raw: decodeJSON(t, `[1,2]`), code: tabula.ErrCodeValidationFailed},
		{name: "scalar", raw: "text", code: tabula.ErrCodeValidationFailed},
		{name: "json null", raw: json.RawMessage(`null`), code: tabula.ErrCodeValidationFailed},
		{name: "number as string", raw: decodeJSON(t, `{"product":"Widget","amount":"150.5"}`), code: tabula.ErrCodeTypeMismatch},
		{name: "array of numbers", raw: decodeJSON(t, `{"product":"Widget","amount":1,"tags":[1]}`), code: tabula.ErrCodeTypeMismatch},
		{name: "missing required", raw: decodeJSON(t, `{"product":"Widget"}`), code: tabula.ErrCodeTypeMismatch},
		{name: "unserializable", raw: map[string]any{"ch": make(chan int)}, code: tabula.ErrCodeInvalidJSON},
		{name: "too large", raw: map[string]any{"product": string(make([]byte, 100)), "amount": 1}, code: tabula.ErrCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateData(context.Background(), schema, tt.raw)
			require.Error(t, err)
			var typed *tabula.Error
			require.ErrorAs(t, err, &typed)
			assert.Equal(t, tabula.ErrorTypeInvalidInput, typed.Type)
			assert.Equal(t, tt.code, typed.Code)
		})
	}
}

func TestValidateDataWithoutFieldTypeEnforcement(t *testing.T) {
	v := NewSchemaValidator(tabula.ValidationConfig{EnforceFieldTypes: false})

	data, err := v.ValidateData(context.Background(), pricesStorageSchema(), decodeJSON(t, `{"amount":"150.5"}`))
	require.NoError(t, err)
	assert.Equal(t, "150.5", data["amount"])
}
