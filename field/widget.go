package field

import (
	"fmt"

	"github.com/meikuraledutech/pipeline"
)

// Mode says how a widget is presented.
type Mode uint8

const (
	// ModePreview shows Preview only; the owning node is not selected.
	ModePreview Mode = iota
	// ModeEdit overlays an input on top of the preview.
	ModeEdit
	// ModeToggle is the boolean switch, interactive in every selection state.
	ModeToggle
	// ModeDisplay is a non editable value shown while selected.
	ModeDisplay
)

// Input is the kind of input control used in ModeEdit.
type Input uint8

const (
	InputNone Input = iota
	InputText
	InputNumber
	InputSelect
	InputRelation
	InputTextArea
)

// RelationKey identifies the option list of a relation field.
type RelationKey struct {
	Kind  string
	Field string
}

// Path is the schematic scoped lookup endpoint of the options.
func (k RelationKey) Path() string {
	return "/pipelines/schematics/" + k.Kind + "/" + k.Field
}

// Widget is the render description of one field of one node.
type Widget struct {
	Field pipeline.FieldDefinition
	Kind  pipeline.FieldKind
	Mode  Mode
	Input Input

	// Preview is computed in every mode; edit controls overlay it so that
	// switching modes keeps the same footprint.
	Preview     string
	Text        string
	Placeholder string
	Checked     bool
	Choices     []pipeline.Choice
	Step        float64
	Clearable   bool

	// Relation is set for relation fields.
	Relation *RelationKey
	Loading  bool
	Options  []pipeline.RelationOption
	OptErr   error

	value    any
	onChange func(any)
}

// Render builds the widget of def for a node of nodeKind. onChange receives
// every accepted value.
func Render(nodeKind string, def pipeline.FieldDefinition, value any, selected bool, onChange func(any)) Widget {
	w := Widget{
		Field:    def,
		Kind:     def.Kind(),
		Preview:  Format(def, value),
		Text:     EditText(def, value),
		value:    value,
		onChange: onChange,
	}

	switch w.Kind {
	case pipeline.KindBoolean:
		b, _ := value.(bool)
		w.Mode = ModeToggle
		w.Checked = b
		return w
	case pipeline.KindChoice:
		w.Input = InputSelect
		w.Choices = def.Choices
		w.Placeholder = "Select..."
	case pipeline.KindInteger:
		w.Input = InputNumber
		w.Step = 1
		w.Placeholder = "Enter number..."
	case pipeline.KindFloat:
		w.Input = InputNumber
		w.Step = 0.1
		w.Placeholder = "Enter number..."
	case pipeline.KindTimestamp:
		w.Input = InputNone
	case pipeline.KindRelation:
		w.Input = InputRelation
		w.Relation = &RelationKey{Kind: nodeKind, Field: def.Name}
		w.Clearable = def.Nullable
		w.Placeholder = "Select..."
	case pipeline.KindJSON:
		w.Input = InputTextArea
		w.Placeholder = "Enter JSON..."
	case pipeline.KindText:
		w.Input = InputText
		w.Placeholder = "Enter text..."
	default:
		panic(fmt.Sprintf("field: unhandled kind %s", w.Kind))
	}

	switch {
	case !selected:
		w.Mode = ModePreview
	case w.Kind == pipeline.KindTimestamp:
		w.Mode = ModeDisplay
	default:
		w.Mode = ModeEdit
	}
	return w
}

// Editable reports whether the widget currently accepts input.
func (w Widget) Editable() bool {
	return w.Mode == ModeEdit || w.Mode == ModeToggle
}

// Submit parses input and hands the value to onChange.
func (w Widget) Submit(input string) error {
	switch w.Mode {
	case ModeEdit, ModeToggle:
	case ModeDisplay:
		return fmt.Errorf("%w: %s", ErrReadOnly, w.Field.Name)
	default:
		return fmt.Errorf("%w: %s is not being edited", ErrReadOnly, w.Field.Name)
	}
	v, err := Parse(w.Field, input)
	if err != nil {
		return err
	}
	w.emit(v)
	return nil
}

// Toggle flips a boolean field.
func (w Widget) Toggle() error {
	if w.Mode != ModeToggle {
		return fmt.Errorf("%w: %s is not a boolean", ErrInvalidValue, w.Field.Name)
	}
	w.emit(!w.Checked)
	return nil
}

// Choose picks choices[i] of an enumerated field.
func (w Widget) Choose(i int) error {
	if w.Mode != ModeEdit || w.Input != InputSelect {
		return fmt.Errorf("%w: %s has no choices to pick", ErrInvalidChoice, w.Field.Name)
	}
	if i < 0 || i >= len(w.Choices) {
		return fmt.Errorf("%w: index %d", ErrInvalidChoice, i)
	}
	w.emit(w.Choices[i].Value)
	return nil
}

// WithRelation fills relation options from state. A value that matches a
// loaded option previews with the option's label.
func (w Widget) WithRelation(state RelationState) Widget {
	if w.Relation == nil {
		return w
	}
	w.Loading = state.Loading
	w.Options = state.Options
	w.OptErr = state.Err
	if state.Loading {
		w.Placeholder = "Loading..."
	}
	if !isEmpty(w.value) {
		s := stringify(w.value)
		for _, o := range state.Options {
			if o.ID.String() == s {
				w.Preview = o.Label()
				break
			}
		}
	}
	return w
}

func (w Widget) emit(v any) {
	if w.onChange != nil {
		w.onChange(v)
	}
}
