// Package field turns field definitions of a node schematic into editor
// widgets and converts operator input back into typed field values.
package field

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/meikuraledutech/pipeline"
)

var (
	ErrReadOnly      = errors.New("field: read-only field")
	ErrInvalidValue  = errors.New("field: invalid value")
	ErrInvalidChoice = errors.New("field: value is not one of the choices")
)

// Preview placeholders.
const (
	NotSet      = "Not set"
	Auto        = "Auto"
	JSONPreview = "{ ... }"
)

// Format renders the static preview of value.
func Format(def pipeline.FieldDefinition, value any) string {
	kind := def.Kind()
	switch kind {
	case pipeline.KindBoolean:
		if b, _ := value.(bool); b {
			return "On"
		}
		return "Off"
	case pipeline.KindChoice:
		if isEmpty(value) {
			return NotSet
		}
		if c, ok := matchChoice(def.Choices, value); ok {
			return c.Label
		}
		return stringify(value)
	case pipeline.KindInteger, pipeline.KindFloat:
		if value == nil {
			return NotSet
		}
		return stringify(value)
	case pipeline.KindTimestamp:
		if isEmpty(value) {
			return Auto
		}
		return stringify(value)
	case pipeline.KindRelation:
		if isEmpty(value) {
			return NotSet
		}
		return "ID: " + stringify(value)
	case pipeline.KindJSON:
		if value == nil {
			return NotSet
		}
		return JSONPreview
	case pipeline.KindText:
		if isEmpty(value) {
			return NotSet
		}
		return stringify(value)
	}
	panic(fmt.Sprintf("field: unhandled kind %s", kind))
}

// EditText is the text an input widget starts from.
func EditText(def pipeline.FieldDefinition, value any) string {
	if value == nil {
		return ""
	}
	if def.Kind() == pipeline.KindJSON {
		if s, ok := value.(string); ok {
			return s
		}
		b, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(b)
	}
	return stringify(value)
}

// Parse converts operator input to the value stored for def. Structured
// fields that do not parse as JSON keep the raw text so that an edit in
// progress is never rejected. Empty input clears nullable fields.
func Parse(def pipeline.FieldDefinition, input string) (any, error) {
	kind := def.Kind()
	trimmed := strings.TrimSpace(input)
	switch kind {
	case pipeline.KindText:
		if def.Nullable && trimmed == "" {
			return nil, nil
		}
		return input, nil
	case pipeline.KindInteger:
		if trimmed == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, input)
		}
		return n, nil
	case pipeline.KindFloat:
		if trimmed == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, input)
		}
		return f, nil
	case pipeline.KindBoolean:
		b, err := strconv.ParseBool(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, input)
		}
		return b, nil
	case pipeline.KindChoice:
		if trimmed == "" {
			return nil, nil
		}
		for _, c := range def.Choices {
			if stringify(c.Value) == trimmed || c.Label == trimmed {
				return c.Value, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrInvalidChoice, input)
	case pipeline.KindRelation:
		if trimmed == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a related id", ErrInvalidValue, input)
		}
		return n, nil
	case pipeline.KindJSON:
		if def.Nullable && trimmed == "" {
			return nil, nil
		}
		var v any
		if err := json.Unmarshal([]byte(input), &v); err != nil {
			return input, nil
		}
		return v, nil
	case pipeline.KindTimestamp:
		return nil, fmt.Errorf("%w: %s", ErrReadOnly, def.Name)
	}
	panic(fmt.Sprintf("field: unhandled kind %s", kind))
}

func matchChoice(choices []pipeline.Choice, value any) (pipeline.Choice, bool) {
	s := stringify(value)
	for _, c := range choices {
		if stringify(c.Value) == s {
			return c, true
		}
	}
	return pipeline.Choice{}, false
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(v)
	}
}
