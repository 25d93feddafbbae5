// Package catalog is the server side registry of node kinds: the
// schematics served to editors, validation of node input, evaluation of
// dynamic slots and relation options.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/meikuraledutech/pipeline"
)

// DeviceSource is the part of the store the catalog reads devices from.
type DeviceSource interface {
	GetDevice(ctx context.Context, id int64) (*pipeline.Device, error)
	ListDevices(ctx context.Context) ([]pipeline.Device, error)
}

// OptionsFunc lists the selectable targets of a relation field.
type OptionsFunc func(ctx context.Context, devices DeviceSource) ([]pipeline.RelationOption, error)

// SlotsFunc derives the dynamic slots of a node from its field values.
type SlotsFunc func(ctx context.Context, fields pipeline.Fields, devices DeviceSource) ([]pipeline.Slot, error)

// Kind is one node kind.
type Kind struct {
	Schematic pipeline.Schematic
	// Relations maps relation field names to their option providers.
	Relations map[string]OptionsFunc
	// JSONSchemas maps JSON field names to the schema their values must
	// satisfy.
	JSONSchemas map[string]map[string]any
	// Dynamic evaluates dynamic slots; nil means the kind has none.
	Dynamic SlotsFunc
}

// Registry holds the node kinds of a server.
type Registry struct {
	kinds   []Kind
	index   map[string]int
	devices DeviceSource
	now     func() time.Time
}

// New builds a registry over kinds. Kind names must be unique.
func New(devices DeviceSource, kinds ...Kind) (*Registry, error) {
	r := &Registry{
		index:   make(map[string]int, len(kinds)),
		devices: devices,
		now:     time.Now,
	}
	for _, k := range kinds {
		name := k.Schematic.TypeName
		if name == "" {
			return nil, fmt.Errorf("catalog: kind without type_name")
		}
		if _, dup := r.index[name]; dup {
			return nil, fmt.Errorf("catalog: duplicate kind %q", name)
		}
		r.index[name] = len(r.kinds)
		r.kinds = append(r.kinds, k)
	}
	return r, nil
}

// Schematics returns the schematics of every kind in registration order.
func (r *Registry) Schematics() []pipeline.Schematic {
	out := make([]pipeline.Schematic, 0, len(r.kinds))
	for _, k := range r.kinds {
		out = append(out, k.Schematic)
	}
	return out
}

// Kind looks up a kind by name.
func (r *Registry) Kind(name string) (Kind, bool) {
	i, ok := r.index[name]
	if !ok {
		return Kind{}, false
	}
	return r.kinds[i], true
}

// Prepare validates in, stamps server owned timestamp fields and evaluates
// the node's dynamic slots. The returned input is what gets stored.
func (r *Registry) Prepare(ctx context.Context, in pipeline.NodeInput) (pipeline.NodeInput, []pipeline.Slot, error) {
	k, ok := r.Kind(in.TypeName)
	if !ok {
		return pipeline.NodeInput{}, nil, fmt.Errorf("%w: %q", pipeline.ErrSchematicNotFound, in.TypeName)
	}

	fields := in.Fields.Clone()
	if err := r.validate(ctx, k, fields); err != nil {
		return pipeline.NodeInput{}, nil, err
	}
	stamp := r.now().UTC().Format(time.RFC3339)
	for _, def := range k.Schematic.Fields {
		if def.Kind() == pipeline.KindTimestamp {
			fields[def.Name] = stamp
		}
	}
	out := pipeline.NodeInput{TypeName: in.TypeName, Fields: fields}

	if k.Dynamic == nil {
		return out, []pipeline.Slot{}, nil
	}
	slots, err := k.Dynamic(ctx, fields, r.devices)
	if err != nil {
		return pipeline.NodeInput{}, nil, fmt.Errorf("catalog: evaluate slots of %s: %w", in.TypeName, err)
	}
	return out, slots, nil
}

// PrepareGraph runs Prepare over every node of p.
func (r *Registry) PrepareGraph(ctx context.Context, p pipeline.Payload) (pipeline.Payload, [][]pipeline.Slot, error) {
	out := pipeline.Payload{
		Nodes: make([]pipeline.NodeInput, 0, len(p.Nodes)),
		Edges: p.Edges,
	}
	dynamic := make([][]pipeline.Slot, 0, len(p.Nodes))
	for i, in := range p.Nodes {
		prepared, slots, err := r.Prepare(ctx, in)
		if err != nil {
			return pipeline.Payload{}, nil, fmt.Errorf("node %d: %w", i, err)
		}
		out.Nodes = append(out.Nodes, prepared)
		dynamic = append(dynamic, slots)
	}
	return out, dynamic, nil
}

// RelationOptions lists the targets of the relation field of kind.
func (r *Registry) RelationOptions(ctx context.Context, kind, field string) ([]pipeline.RelationOption, error) {
	k, ok := r.Kind(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", pipeline.ErrSchematicNotFound, kind)
	}
	options, ok := k.Relations[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no relation field %q", pipeline.ErrSchematicNotFound, kind, field)
	}
	out, err := options(ctx, r.devices)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %w", pipeline.ErrRelationOptionsUnavailable, kind, field, err)
	}
	if out == nil {
		out = []pipeline.RelationOption{}
	}
	return out, nil
}
