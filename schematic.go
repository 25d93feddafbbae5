package pipeline

import (
	"fmt"
	"strings"
)

// FieldKind is the semantic type of a field. The set is closed: every switch
// over FieldKind is expected to handle all of the values below.
type FieldKind uint8

const (
	KindText FieldKind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindChoice
	KindRelation
	KindJSON
	KindTimestamp
)

var kindNames = [...]string{
	KindText:      "text",
	KindInteger:   "integer",
	KindFloat:     "float",
	KindBoolean:   "boolean",
	KindChoice:    "choice",
	KindRelation:  "relation",
	KindJSON:      "json",
	KindTimestamp: "timestamp",
}

func (k FieldKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("FieldKind(%d)", k)
}

// Choice is one allowed value of an enumerated field.
type Choice struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

// FieldDefinition describes one editable field of a node kind. Type is the
// server side field class name, e.g. "FloatField" or "JSONField".
type FieldDefinition struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Choices    []Choice `json:"choices,omitempty"`
	Nullable   bool     `json:"nullable"`
	HelpText   string   `json:"help_text,omitempty"`
	IsRelation bool     `json:"is_relation"`
}

// Kind resolves the semantic type of the field from its class name, choices
// and relation flag.
func (f FieldDefinition) Kind() FieldKind {
	t := f.Type
	switch {
	case t == "BooleanField":
		return KindBoolean
	case len(f.Choices) > 0:
		return KindChoice
	case strings.Contains(t, "Integer"), strings.Contains(t, "BigAuto"):
		return KindInteger
	case strings.Contains(t, "Float"), strings.Contains(t, "Decimal"):
		return KindFloat
	case strings.Contains(t, "Date"):
		return KindTimestamp
	case f.IsRelation:
		return KindRelation
	case t == "JSONField":
		return KindJSON
	default:
		return KindText
	}
}

// Connection types carried by slots.
const (
	ConnectionAudio   = "AUDIO"
	ConnectionControl = "CONTROL"
)

// SlotDirection tells which side of a node a slot is exposed on.
type SlotDirection string

const (
	SlotInput  SlotDirection = "INPUT"
	SlotOutput SlotDirection = "OUTPUT"
	SlotAll    SlotDirection = "ALL"
)

// Slot is a typed connection point on a node.
type Slot struct {
	Name      string        `json:"name"`
	Type      string        `json:"type"`
	Direction SlotDirection `json:"direction"`
}

// AcceptsInput reports whether the slot can be the target of an edge.
func (s Slot) AcceptsInput() bool {
	return s.Direction == SlotInput || s.Direction == SlotAll
}

// ProvidesOutput reports whether the slot can be the source of an edge.
func (s Slot) ProvidesOutput() bool {
	return s.Direction == SlotOutput || s.Direction == SlotAll
}

// Schematic is the server declared description of a node kind.
type Schematic struct {
	TypeName string            `json:"type_name"`
	Fields   []FieldDefinition `json:"fields"`
	Slots    []Slot            `json:"slots"`
}

// Field returns the definition of the named field.
func (s Schematic) Field(name string) (FieldDefinition, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// Catalog is the ordered set of node kinds available in an editing session.
type Catalog struct {
	kinds []Schematic
	index map[string]int
}

// NewCatalog indexes schematics by type name. Empty or repeated type names
// are rejected.
func NewCatalog(schematics []Schematic) (Catalog, error) {
	c := Catalog{
		kinds: make([]Schematic, 0, len(schematics)),
		index: make(map[string]int, len(schematics)),
	}
	for _, s := range schematics {
		if s.TypeName == "" {
			return Catalog{}, fmt.Errorf("%w: schematic without type_name", ErrSchemaUnavailable)
		}
		if _, dup := c.index[s.TypeName]; dup {
			return Catalog{}, fmt.Errorf("%w: duplicate schematic %q", ErrSchemaUnavailable, s.TypeName)
		}
		c.index[s.TypeName] = len(c.kinds)
		c.kinds = append(c.kinds, s)
	}
	return c, nil
}

// Lookup returns the schematic of kind.
func (c Catalog) Lookup(kind string) (Schematic, bool) {
	i, ok := c.index[kind]
	if !ok {
		return Schematic{}, false
	}
	return c.kinds[i], true
}

// All returns the schematics in server order.
func (c Catalog) All() []Schematic {
	out := make([]Schematic, len(c.kinds))
	copy(out, c.kinds)
	return out
}

// Len is the number of kinds in the catalog.
func (c Catalog) Len() int { return len(c.kinds) }

// CatalogResponse is the wire shape of GET /pipelines/schematics.
type CatalogResponse struct {
	IO []Schematic `json:"io"`
}
