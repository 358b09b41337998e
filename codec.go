package tabula

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Widget names the input control a field is bound to.
type Widget string

const (
	WidgetText   Widget = "text"   // free text
	WidgetNumber Widget = "number" // numeric input
	WidgetSelect Widget = "select" // true/false choice
	WidgetList   Widget = "list"   // comma-separated text
)

// fieldCodec bundles everything that depends on a field's type.
type fieldCodec struct {
	widget  Widget
	options []string
	zero    func() any
	decode  func(raw string) any
	input   func(v any) string
}

// codecs is the single dispatch table for default synthesis, form decoding
// and widget binding. Every FieldType has exactly one entry.
var codecs = map[FieldType]fieldCodec{
	FieldTypeString: {
		widget: WidgetText,
		zero:   func() any { return "" },
		decode: func(raw string) any { return raw },
		input:  FormatValue,
	},
	FieldTypeNumber: {
		widget: WidgetNumber,
		zero:   func() any { return float64(0) },
		decode: decodeNumber,
		input:  FormatValue,
	},
	FieldTypeBoolean: {
		widget:  WidgetSelect,
		options: []string{"true", "false"},
		zero:    func() any { return false },
		decode:  func(raw string) any { return raw == "true" },
		input: func(v any) string {
			if b, ok := v.(bool); ok && b {
				return "true"
			}
			return "false"
		},
	},
	FieldTypeArray: {
		widget: WidgetList,
		zero:   func() any { return []string{} },
		decode: decodeList,
		input:  FormatValue,
	},
}

// inert is used for types outside the enum; such schemas never pass validation.
var inert = fieldCodec{
	widget: WidgetText,
	zero:   func() any { return nil },
	decode: func(raw string) any { return raw },
	input:  FormatValue,
}

func codecFor(t FieldType) fieldCodec {
	if c, ok := codecs[t]; ok {
		return c
	}
	return inert
}

// Default returns the value a blank record holds for a field of type t.
func (t FieldType) Default() any {
	return codecFor(t).zero()
}

// Decode converts raw form input into the normalized value for t. It never fails:
// unparsable numbers become 0 and anything but "true" is false.
func (t FieldType) Decode(raw string) any {
	return codecFor(t).decode(raw)
}

// Encode returns the storage form of a normalized value, which is the value itself.
func (t FieldType) Encode(v any) any {
	return v
}

// Widget returns the input control for t.
func (t FieldType) Widget() Widget {
	return codecFor(t).widget
}

// numberPrefix matches the leading decimal literal of a form value.
var numberPrefix = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// decodeNumber reads the longest leading decimal literal, so "12abc" is 12
// and "1e" is 1. No literal, or a non-finite result, decodes to 0.
func decodeNumber(raw string) any {
	lit := numberPrefix.FindString(strings.TrimSpace(raw))
	if lit == "" {
		return float64(0)
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return float64(0)
	}
	return f
}

func decodeList(raw string) any {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
