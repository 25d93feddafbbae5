package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/meikuraledutech/pipeline"
	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidField is returned when a field value does not fit its
// definition.
var ErrInvalidField = errors.New("catalog: invalid field value")

func (r *Registry) validate(ctx context.Context, k Kind, fields pipeline.Fields) error {
	for name, value := range fields {
		def, ok := k.Schematic.Field(name)
		if !ok {
			return fmt.Errorf("%w: %s has no field %q", ErrInvalidField, k.Schematic.TypeName, name)
		}
		// Absent and null both mean unset.
		if value == nil {
			continue
		}
		if err := r.validateValue(ctx, k, def, value); err != nil {
			return fmt.Errorf("%w: %s.%s: %w", ErrInvalidField, k.Schematic.TypeName, name, err)
		}
	}
	return nil
}

func (r *Registry) validateValue(ctx context.Context, k Kind, def pipeline.FieldDefinition, value any) error {
	switch def.Kind() {
	case pipeline.KindBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("want boolean, got %T", value)
		}
	case pipeline.KindChoice:
		for _, c := range def.Choices {
			if sameValue(c.Value, value) {
				return nil
			}
		}
		return fmt.Errorf("%v is not one of the choices", value)
	case pipeline.KindInteger:
		if _, ok := asInt(value); !ok {
			return fmt.Errorf("want integer, got %v", value)
		}
	case pipeline.KindFloat:
		if _, ok := asFloat(value); !ok {
			return fmt.Errorf("want number, got %v", value)
		}
	case pipeline.KindRelation:
		id, ok := asInt(value)
		if !ok {
			return fmt.Errorf("want id, got %v", value)
		}
		return r.validateRelation(ctx, k, def, id)
	case pipeline.KindJSON:
		return validateJSON(k.JSONSchemas[def.Name], value)
	case pipeline.KindTimestamp:
		// Server owned, overwritten on save.
	case pipeline.KindText:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("want text, got %T", value)
		}
	default:
		panic(fmt.Sprintf("catalog: unhandled kind %s", def.Kind()))
	}
	return nil
}

func (r *Registry) validateRelation(ctx context.Context, k Kind, def pipeline.FieldDefinition, id int64) error {
	options, ok := k.Relations[def.Name]
	if !ok {
		return nil
	}
	opts, err := options(ctx, r.devices)
	if err != nil {
		return fmt.Errorf("load options: %w", err)
	}
	want := strconv.FormatInt(id, 10)
	for _, o := range opts {
		if o.ID.String() == want {
			return nil
		}
	}
	return fmt.Errorf("%d is not a valid target", id)
}

// validateJSON checks value against schema. A nil schema accepts any value.
func validateJSON(schema map[string]any, value any) error {
	if schema == nil {
		return nil
	}
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(value))
	if err != nil {
		return err
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case json.Number:
		i, err := x.Int64()
		return i, err == nil
	}
	f, ok := asFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func sameValue(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		return ok && fa == fb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
