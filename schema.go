package tabula

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/buger/jsonparser"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// FieldType is the closed set of value kinds a dataset field may declare.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeArray   FieldType = "array" // elements are always strings
)

// FieldTypes lists the recognized kinds in display order.
var FieldTypes = []FieldType{FieldTypeString, FieldTypeNumber, FieldTypeBoolean, FieldTypeArray}

// ParseFieldType converts a raw type name into a FieldType.
func ParseFieldType(s string) (FieldType, error) {
	switch ft := FieldType(s); ft {
	case FieldTypeString, FieldTypeNumber, FieldTypeBoolean, FieldTypeArray:
		return ft, nil
	default:
		return "", fmt.Errorf("unsupported field type %q", s)
	}
}

// Valid reports whether t is one of the recognized kinds.
func (t FieldType) Valid() bool {
	_, err := ParseFieldType(string(t))
	return err == nil
}

// Field is one named entry of a dataset schema.
type Field struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
}

// Schema is the ordered field list describing a dataset's records.
// Order drives display; validation ignores it.
type Schema struct {
	Fields []Field `json:"fields"`
}

// Field returns the field with the given name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Validate checks that names are present and unique and that every type is recognized.
func (s Schema) Validate() error {
	seen := make(map[string]struct{}, len(s.Fields))
	for i, f := range s.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return NewValidationError(fmt.Sprintf("schema.fields[%d].name", i), "field name is required")
		}
		if _, dup := seen[f.Name]; dup {
			return NewValidationError(f.Name, "duplicate field name")
		}
		seen[f.Name] = struct{}{}
		if !f.Type.Valid() {
			return NewValidationError(f.Name, fmt.Sprintf("unsupported field type %q", f.Type))
		}
	}
	return nil
}

// StorageSchema is the persisted JSON Schema document of a dataset:
//
//	{"type":"object","properties":{...},"required":[...]}
//
// Properties keep the order in which they appear in the document.
type StorageSchema struct {
	Type       string
	Properties []StorageProperty
	Required   []string
}

// StorageProperty is one entry of the properties map.
type StorageProperty struct {
	Name        string        `json:"-"`
	Type        string        `json:"type"`
	Description string        `json:"description,omitempty"`
	Items       *StorageItems `json:"items,omitempty"`
}

// StorageItems describes array elements.
type StorageItems struct {
	Type string `json:"type"`
}

// ToStorageShape converts s into its persisted representation.
func (s Schema) ToStorageShape() StorageSchema {
	out := StorageSchema{
		Type:       "object",
		Properties: make([]StorageProperty, 0, len(s.Fields)),
		Required:   []string{},
	}
	for _, f := range s.Fields {
		prop := StorageProperty{
			Name:        f.Name,
			Type:        string(f.Type),
			Description: f.Description,
		}
		if f.Type == FieldTypeArray {
			prop.Items = &StorageItems{Type: string(FieldTypeString)}
		}
		out.Properties = append(out.Properties, prop)
		if f.Required {
			out.Required = append(out.Required, f.Name)
		}
	}
	return out
}

// FromStorageShape rebuilds a Schema from its persisted representation.
func FromStorageShape(doc StorageSchema) (Schema, error) {
	if doc.Type != "" && doc.Type != "object" {
		return Schema{}, NewValidationError("schema.type", fmt.Sprintf("schema type must be \"object\", got %q", doc.Type))
	}

	required := make(map[string]bool, len(doc.Required))
	for _, name := range doc.Required {
		required[name] = true
	}

	schema := Schema{Fields: make([]Field, 0, len(doc.Properties))}
	for _, prop := range doc.Properties {
		ft, err := ParseFieldType(prop.Type)
		if err != nil {
			return Schema{}, NewValidationError(prop.Name, err.Error())
		}
		if ft == FieldTypeArray && prop.Items != nil && prop.Items.Type != string(FieldTypeString) {
			return Schema{}, NewValidationError(prop.Name, "array items must be of type \"string\"")
		}
		schema.Fields = append(schema.Fields, Field{
			Name:        prop.Name,
			Type:        ft,
			Required:    required[prop.Name],
			Description: prop.Description,
		})
	}

	for _, name := range doc.Required {
		if _, ok := schema.Field(name); !ok {
			return Schema{}, NewValidationError(name, "required field is not declared in properties")
		}
	}

	if err := schema.Validate(); err != nil {
		return Schema{}, err
	}
	return schema, nil
}

// storageDocument is the wire form of StorageSchema.
type storageDocument struct {
	Type       string                                          `json:"type"`
	Properties *orderedmap.OrderedMap[string, StorageProperty] `json:"properties"`
	Required   []string                                        `json:"required"`
}

// MarshalJSON writes properties in slice order.
func (s StorageSchema) MarshalJSON() ([]byte, error) {
	doc := storageDocument{
		Type:       s.Type,
		Properties: orderedmap.New[string, StorageProperty](),
		Required:   s.Required,
	}
	if doc.Type == "" {
		doc.Type = "object"
	}
	if doc.Required == nil {
		doc.Required = []string{}
	}
	for _, prop := range s.Properties {
		doc.Properties.Set(prop.Name, prop)
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads the document keeping the key order of properties.
// Unknown top-level keys are ignored; a missing properties object is an error.
func (s *StorageSchema) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var wire struct {
		Type       string          `json:"type"`
		Properties json.RawMessage `json:"properties"`
		Required   []string        `json:"required"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("schema must be a JSON object: %w", err)
	}
	props, err := decodeProperties(wire.Properties)
	if err != nil {
		return err
	}

	*s = StorageSchema{Type: wire.Type, Properties: props, Required: wire.Required}
	return nil
}

func decodeProperties(raw json.RawMessage) ([]StorageProperty, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("schema properties are required")
	}
	if raw[0] != '{' {
		return nil, fmt.Errorf("schema properties must be a JSON object")
	}

	seen := make(map[string]struct{})
	err := jsonparser.ObjectEach(raw, func(key []byte, _ []byte, _ jsonparser.ValueType, _ int) error {
		name, err := jsonparser.ParseString(key)
		if err != nil {
			return err
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate property %q", name)
		}
		seen[name] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("schema properties: %w", err)
	}

	om := orderedmap.New[string, StorageProperty]()
	if err := om.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("schema properties: %w", err)
	}
	props := make([]StorageProperty, 0, om.Len())
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		prop := pair.Value
		prop.Name = pair.Key
		props = append(props, prop)
	}
	return props, nil
}
