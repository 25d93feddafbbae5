package editor

import (
	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/layout"
)

// Node is a snapshot of one node of the graph. Mutations go through Graph;
// changing a snapshot has no effect on the graph.
type Node struct {
	ID        string
	BackendID int64
	Kind      string

	// Schematic is the zero value when Resolved is false.
	Schematic pipeline.Schematic
	Resolved  bool

	Fields       pipeline.Fields
	DynamicSlots []pipeline.Slot

	Position layout.Point
	Width    float64
	Height   float64

	State        State
	IsNew        bool
	IsDirty      bool
	IsSaving     bool
	Inconsistent bool
	LastError    error
}

// Slots is the effective slot set: static slots followed by dynamic slots
// whose names are not already taken.
func (n Node) Slots() []pipeline.Slot {
	out := make([]pipeline.Slot, 0, len(n.Schematic.Slots)+len(n.DynamicSlots))
	seen := make(map[string]bool, cap(out))
	for _, group := range [][]pipeline.Slot{n.Schematic.Slots, n.DynamicSlots} {
		for _, s := range group {
			if seen[s.Name] {
				continue
			}
			seen[s.Name] = true
			out = append(out, s)
		}
	}
	return out
}

// Edge is a visual connection between two node ids.
type Edge struct {
	ID     string
	Source string
	Target string
}

// entry is the mutable record behind a Node. key never changes, unlike id
// which is rewritten when a draft receives its backend id.
type entry struct {
	key       uint64
	id        string
	backendID int64
	kind      string
	schematic pipeline.Schematic
	resolved  bool
	fields    pipeline.Fields
	dynamic   []pipeline.Slot
	position  layout.Point
	width     float64
	height    float64

	life         lifecycle
	inconsistent bool
	lastErr      error
}

func (e *entry) snapshot() Node {
	return Node{
		ID:           e.id,
		BackendID:    e.backendID,
		Kind:         e.kind,
		Schematic:    e.schematic,
		Resolved:     e.resolved,
		Fields:       e.fields.Clone(),
		DynamicSlots: append([]pipeline.Slot(nil), e.dynamic...),
		Position:     e.position,
		Width:        e.width,
		Height:       e.height,
		State:        e.life.state,
		IsNew:        e.backendID == 0,
		IsDirty:      e.life.dirty(),
		IsSaving:     e.life.saving(),
		Inconsistent: e.inconsistent,
		LastError:    e.lastErr,
	}
}
