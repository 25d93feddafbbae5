package editor

import (
	"fmt"

	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/layout"
)

// ToBackend converts a visual graph into the backend shape. The order of
// nodes is the index space of the returned edges, so both are derived from
// the same slice here and must be sent together. Edges whose endpoints are
// not in nodes are dropped.
func ToBackend(nodes []Node, edges []Edge) pipeline.Payload {
	index := make(map[string]int, len(nodes))
	out := pipeline.Payload{
		Nodes: make([]pipeline.NodeInput, 0, len(nodes)),
		Edges: make([]pipeline.EdgeRef, 0, len(edges)),
	}
	for i, n := range nodes {
		index[n.ID] = i
		fields := n.Fields
		if fields == nil {
			fields = pipeline.Fields{}
		}
		out.Nodes = append(out.Nodes, pipeline.NodeInput{TypeName: n.Kind, Fields: fields})
	}
	for _, e := range edges {
		a, okA := index[e.Source]
		b, okB := index[e.Target]
		if !okA || !okB {
			continue
		}
		out.Edges = append(out.Edges, pipeline.EdgeRef{NodeA: a, NodeB: b})
	}
	return out
}

// FromBackend rebuilds the visual graph of a persisted pipeline. Node ids
// are node-{id}, edge ids edge-{id}, and edge endpoints are resolved by
// position in p.Nodes. Nodes of unknown kinds are kept without fields or
// slots and reported as pipeline.ErrSchematicNotFound warnings. Edges
// pointing outside the node list are dropped with an ErrEdgeOutOfRange
// warning.
func FromBackend(p *pipeline.Pipeline, catalog pipeline.Catalog) ([]Node, []Edge, []error) {
	var warnings []error

	nodes := make([]Node, 0, len(p.Nodes))
	for i, pn := range p.Nodes {
		schematic, ok := catalog.Lookup(pn.TypeName)
		if !ok {
			warnings = append(warnings, fmt.Errorf("%w: node %d has kind %q", pipeline.ErrSchematicNotFound, pn.ID, pn.TypeName))
		}
		fields := pn.Fields.Clone()
		nodes = append(nodes, Node{
			ID:           pipeline.NodeRef(pn.ID),
			BackendID:    pn.ID,
			Kind:         pn.TypeName,
			Schematic:    schematic,
			Resolved:     ok,
			Fields:       fields,
			DynamicSlots: append([]pipeline.Slot(nil), pn.DynamicSlots...),
			Position:     layout.Point{X: float64(i) * 300, Y: float64(i) * 150},
			State:        StateClean,
		})
	}

	edges := make([]Edge, 0, len(p.Edges))
	for _, pe := range p.Edges {
		if pe.NodeA < 0 || pe.NodeA >= len(nodes) || pe.NodeB < 0 || pe.NodeB >= len(nodes) {
			warnings = append(warnings, fmt.Errorf("%w: edge %d (%d -> %d)", pipeline.ErrEdgeOutOfRange, pe.ID, pe.NodeA, pe.NodeB))
			continue
		}
		edges = append(edges, Edge{
			ID:     pipeline.EdgeRefID(pe.ID),
			Source: nodes[pe.NodeA].ID,
			Target: nodes[pe.NodeB].ID,
		})
	}
	return nodes, edges, warnings
}
