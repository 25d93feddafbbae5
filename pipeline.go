package pipeline

import (
	"encoding/json"
	"strconv"
)

// Fields maps a node's field names to their current values.
type Fields map[string]any

// Clone returns a shallow copy of f. A nil map clones to an empty one.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Pipeline is the persisted graph of a single audio pipeline.
// Edges address nodes by their position in Nodes, never by node id.
type Pipeline struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is a persisted pipeline node.
type Node struct {
	ID           int64  `json:"id"`
	TypeName     string `json:"type_name"`
	Fields       Fields `json:"fields"`
	DynamicSlots []Slot `json:"dynamic_slots_schematics,omitempty"`
}

// Edge connects Nodes[NodeA] to Nodes[NodeB] of the owning pipeline.
type Edge struct {
	ID    int64 `json:"id"`
	NodeA int   `json:"node_a"`
	NodeB int   `json:"node_b"`
}

// NodeInput is the body of node create/update calls and one entry of a Payload.
type NodeInput struct {
	TypeName string `json:"type_name" validate:"required"`
	Fields   Fields `json:"fields"`
}

// EdgeRef is an index based edge inside a Payload.
type EdgeRef struct {
	NodeA int `json:"node_a" validate:"gte=0"`
	NodeB int `json:"node_b" validate:"gte=0"`
}

// Payload is the backend shape of a whole graph. Edge indices refer to
// positions in Nodes and are only meaningful together with that exact order.
type Payload struct {
	Nodes []NodeInput `json:"nodes" validate:"dive"`
	Edges []EdgeRef   `json:"edges" validate:"dive"`
}

// NodeResult is returned by node create and update calls.
type NodeResult struct {
	ID           int64  `json:"id"`
	DynamicSlots []Slot `json:"dynamicSlots,omitempty"`
}

// NodeState is returned when reading a single node.
type NodeState struct {
	Fields       Fields `json:"fields"`
	DynamicSlots []Slot `json:"dynamic_slots_schematics"`
}

// RelationOption is one selectable target of a relation field.
type RelationOption struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name,omitempty"`
}

// Label is the text shown for the option, falling back to its id.
func (o RelationOption) Label() string {
	if o.Name != "" {
		return o.Name
	}
	return "ID: " + o.ID.String()
}

// Device type values reported by the appliance.
const (
	DeviceCapture  = "CAPTURE"
	DevicePlayback = "PLAYBACK"
)

// Device is a hardware audio endpoint known to the appliance.
type Device struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	DeviceType string `json:"device_type"`
	Active     bool   `json:"active"`
	Backend    string `json:"backend,omitempty"`
	Format     string `json:"format,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

// IsCapture reports whether d is an audio source.
func (d Device) IsCapture() bool { return d.DeviceType == DeviceCapture }

// IsPlayback reports whether d is an audio sink.
func (d Device) IsPlayback() bool { return d.DeviceType == DevicePlayback }

// NodeRef is the visual id of a persisted node.
func NodeRef(id int64) string {
	return "node-" + strconv.FormatInt(id, 10)
}

// EdgeRefID is the visual id of a persisted edge.
func EdgeRefID(id int64) string {
	return "edge-" + strconv.FormatInt(id, 10)
}

// Device endpoints are added to a graph as nodes of this kind, with the
// device id seeded into DeviceField.
const (
	DeviceNodeKind = "AudioPipelineDeviceNode"
	DeviceField    = "device"
)
