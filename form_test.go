package tabula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlankRecord(t *testing.T) {
	record := BlankRecord(pricesSchema())

	assert.Equal(t, map[string]any{
		"product":    "",
		"amount":     float64(0),
		"discounted": false,
		"tags":       []string{},
	}, record)
}

func TestBind_Defaults(t *testing.T) {
	bindings := Bind(pricesSchema(), nil)

	require.Len(t, bindings, 4)
	assert.Equal(t, "product", bindings[0].Name)
	assert.Equal(t, WidgetText, bindings[0].Widget)
	assert.True(t, bindings[0].Required)
	assert.Equal(t, "", bindings[0].Value)

	assert.Equal(t, WidgetNumber, bindings[1].Widget)
	assert.Equal(t, "0", bindings[1].Value)
	assert.Equal(t, "Price in USD", bindings[1].HelpText)

	assert.Equal(t, WidgetSelect, bindings[2].Widget)
	assert.Equal(t, []string{"true", "false"}, bindings[2].Options)
	assert.Equal(t, "false", bindings[2].Value)

	assert.Equal(t, WidgetList, bindings[3].Widget)
	assert.Equal(t, "", bindings[3].Value)
}

func TestBind_StoredRecord(t *testing.T) {
	record := map[string]any{
		"product":    "Widget",
		"amount":     19.99,
		"discounted": true,
		"tags":       []any{"new", "sale"},
	}

	bindings := Bind(pricesSchema(), record)

	values := make([]string, len(bindings))
	for i, b := range bindings {
		values[i] = b.Value
	}
	assert.Equal(t, []string{"Widget", "19.99", "true", "new, sale"}, values)
}

func TestBind_MissingKeyUsesDefault(t *testing.T) {
	bindings := Bind(pricesSchema(), map[string]any{"product": "Widget"})

	assert.Equal(t, "0", bindings[1].Value)
	assert.Equal(t, "false", bindings[2].Value)
}

func TestDecodeForm(t *testing.T) {
	raw := map[string]string{
		"product":    "Widget",
		"amount":     "150.5",
		"discounted": "true",
		"tags":       "a, b,,c",
		"extra":      "dropped",
	}

	data := DecodeForm(pricesSchema(), raw)

	assert.Equal(t, map[string]any{
		"product":    "Widget",
		"amount":     150.5,
		"discounted": true,
		"tags":       []string{"a", "b", "c"},
	}, data)
}

func TestDecodeForm_MissingInputs(t *testing.T) {
	data := DecodeForm(pricesSchema(), map[string]string{})

	assert.Equal(t, BlankRecord(pricesSchema()), data)
}

func TestBuildReadView(t *testing.T) {
	data := map[string]any{
		"amount":     150.5,
		"product":    "Widget",
		"discounted": false,
		"tags":       []any{"x", "y"},
		"legacy":     "old",
		"archived":   true,
	}

	view := BuildReadView(pricesSchema(), data)

	assert.Equal(t, []DisplayRow{
		{Name: "product", Value: "Widget"},
		{Name: "amount", Value: "150.5"},
		{Name: "discounted", Value: "False"},
		{Name: "tags", Value: "x, y"},
	}, view.Rows)
	assert.Equal(t, []string{"archived", "legacy"}, view.StaleKeys)
}

func TestBuildReadView_SkipsAbsentFields(t *testing.T) {
	view := BuildReadView(pricesSchema(), map[string]any{"product": "Widget"})

	assert.Len(t, view.Rows, 1)
	assert.Empty(t, view.StaleKeys)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "hi", "hi"},
		{"true", true, "True"},
		{"false", false, "False"},
		{"integral float", float64(42), "42"},
		{"fraction", 0.25, "0.25"},
		{"string slice", []string{"a", "b"}, "a, b"},
		{"any slice", []any{"a", 1.5}, "a, 1.5"},
		{"empty slice", []string{}, ""},
		{"int", 7, "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.in))
		})
	}
}
