package tabula

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FieldBinding is the data-binding contract of one generated form control.
type FieldBinding struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Widget   Widget    `json:"widget"`
	Options  []string  `json:"options,omitempty"`
	Required bool      `json:"required"`
	HelpText string    `json:"helpText,omitempty"`
	Value    string    `json:"value"`
}

// DisplayRow is one rendered value of the read view.
type DisplayRow struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ReadView renders a stored record against the current schema.
// StaleKeys lists stored keys the schema no longer declares.
type ReadView struct {
	Rows      []DisplayRow `json:"rows"`
	StaleKeys []string     `json:"staleKeys,omitempty"`
}

// BlankRecord returns a record holding the default value of every field.
func BlankRecord(schema Schema) map[string]any {
	record := make(map[string]any, len(schema.Fields))
	for _, f := range schema.Fields {
		record[f.Name] = f.Type.Default()
	}
	return record
}

// Bind produces one binding per field in schema order. A nil record binds defaults.
func Bind(schema Schema, record map[string]any) []FieldBinding {
	if record == nil {
		record = BlankRecord(schema)
	}
	bindings := make([]FieldBinding, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		c := codecFor(f.Type)
		value, ok := record[f.Name]
		if !ok {
			value = c.zero()
		}
		bindings = append(bindings, FieldBinding{
			Name:     f.Name,
			Type:     f.Type,
			Widget:   c.widget,
			Options:  c.options,
			Required: f.Required,
			HelpText: f.Description,
			Value:    c.input(value),
		})
	}
	return bindings
}

// DecodeForm turns raw form state into a complete data mapping. Every schema field
// is present in the result; missing inputs decode from the empty string.
// Keys the schema does not declare are dropped.
func DecodeForm(schema Schema, raw map[string]string) map[string]any {
	data := make(map[string]any, len(schema.Fields))
	for _, f := range schema.Fields {
		data[f.Name] = f.Type.Decode(raw[f.Name])
	}
	return data
}

// BuildReadView renders data for display against schema.
func BuildReadView(schema Schema, data map[string]any) ReadView {
	view := ReadView{Rows: make([]DisplayRow, 0, len(schema.Fields))}
	for _, f := range schema.Fields {
		v, ok := data[f.Name]
		if !ok {
			continue
		}
		view.Rows = append(view.Rows, DisplayRow{Name: f.Name, Value: FormatValue(v)})
	}
	for key := range data {
		if _, declared := schema.Field(key); !declared {
			view.StaleKeys = append(view.StaleKeys, key)
		}
	}
	sort.Strings(view.StaleKeys)
	return view
}

// FormatValue renders a stored value by its runtime kind.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []string:
		return strings.Join(val, ", ")
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = FormatValue(item)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(val)
	}
}
