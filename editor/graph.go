// Package editor holds the headless pipeline graph editor: the graph state,
// per node lifecycle against the backend, serialization to the backend
// shape and automatic layout. A renderer reads snapshots from Graph and
// feeds operator gestures back through its methods.
package editor

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/field"
	"github.com/meikuraledutech/pipeline/layout"
)

// Sink receives the backend shape of the graph after every change.
type Sink interface {
	GraphChanged(p pipeline.Payload)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(p pipeline.Payload)

func (f SinkFunc) GraphChanged(p pipeline.Payload) { f(p) }

type hydrationKey struct {
	pipelineID int64
	nodeCount  int
}

// Graph owns the nodes and edges being edited. It is safe for concurrent
// use; network completions re-enter it through the same methods as
// operator gestures.
type Graph struct {
	logger *slog.Logger
	engine layout.Engine
	sink   Sink

	mu         sync.Mutex
	catalog    pipeline.Catalog
	pipelineID int64
	hydrated   *hydrationKey
	generation uint64
	nextKey    uint64
	nodes      []*entry
	edges      []Edge
	depth      int
	changed    bool

	// flushing is set while a delivery to sink runs. Changes made meanwhile,
	// including by the sink itself, are delivered by that same flusher.
	flushing bool
}

// NewGraph creates an empty graph. sink may be nil; a nil logger means
// slog.Default().
func NewGraph(logger *slog.Logger, engine layout.Engine, sink Sink) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = layout.NewLayered(layout.DefaultOptions())
	}
	return &Graph{logger: logger, engine: engine, sink: sink}
}

// Hydrate replaces the graph with p. It only runs when the pipeline id or
// its node count differ from the last hydration, so that refetching the
// same pipeline does not discard edits in progress. It reports whether the
// graph was replaced, along with non fatal warnings.
func (g *Graph) Hydrate(p *pipeline.Pipeline, catalog pipeline.Catalog) (bool, []error) {
	key := hydrationKey{pipelineID: p.ID, nodeCount: len(p.Nodes)}

	g.mu.Lock()
	if g.hydrated != nil && *g.hydrated == key {
		g.mu.Unlock()
		return false, nil
	}

	nodes, edges, warnings := FromBackend(p, catalog)
	g.catalog = catalog
	g.pipelineID = p.ID
	g.hydrated = &key
	g.generation++
	g.nodes = make([]*entry, 0, len(nodes))
	for _, n := range nodes {
		g.nodes = append(g.nodes, g.newEntryLocked(n, persistedLifecycle()))
	}
	g.edges = edges
	notify := g.touchLocked()
	g.mu.Unlock()

	for _, w := range warnings {
		g.logger.Warn("Hydrated pipeline with degraded content", "pipeline_id", p.ID, "warning", w)
	}
	if notify {
		g.flush()
	}
	return true, warnings
}

// Reset forgets the last hydration so that the next Hydrate always runs.
func (g *Graph) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hydrated = nil
}

// PipelineID is the id of the hydrated pipeline.
func (g *Graph) PipelineID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pipelineID
}

// Catalog is the schematic catalog of the session.
func (g *Graph) Catalog() pipeline.Catalog {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.catalog
}

// SetCatalog installs the schematic catalog used by AddNode. Hydrate also
// sets it.
func (g *Graph) SetCatalog(c pipeline.Catalog) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.catalog = c
}

// AddNode appends a draft node of kind with empty field values and returns
// its placeholder id.
func (g *Graph) AddNode(kind string) (string, error) {
	return g.addDraft(kind, pipeline.Fields{})
}

// AddDevice appends a draft device node seeded with the device id.
func (g *Graph) AddDevice(d pipeline.Device) (string, error) {
	return g.addDraft(pipeline.DeviceNodeKind, pipeline.Fields{pipeline.DeviceField: d.ID})
}

func (g *Graph) addDraft(kind string, fields pipeline.Fields) (string, error) {
	g.mu.Lock()
	schematic, ok := g.catalog.Lookup(kind)
	if !ok {
		g.mu.Unlock()
		g.logger.Warn("Cannot add node of unknown kind", "kind", kind)
		return "", pipeline.ErrSchematicNotFound
	}
	e := g.newEntryLocked(Node{
		ID:        "temp-" + uuid.NewString(),
		Kind:      kind,
		Schematic: schematic,
		Resolved:  true,
		Fields:    fields,
	}, draftLifecycle())
	g.nodes = append(g.nodes, e)
	id := e.id
	notify := g.touchLocked()
	g.mu.Unlock()

	if notify {
		g.flush()
	}
	return id, nil
}

// Connect adds an edge from source to target. Nothing happens when either
// endpoint is missing or the same edge already exists; ok is false then.
func (g *Graph) Connect(source, target string) (id string, ok bool) {
	g.mu.Lock()
	if g.findLocked(source) == nil || g.findLocked(target) == nil {
		g.mu.Unlock()
		return "", false
	}
	for _, e := range g.edges {
		if e.Source == source && e.Target == target {
			g.mu.Unlock()
			return e.ID, false
		}
	}
	id = "edge-" + uuid.NewString()
	g.edges = append(g.edges, Edge{ID: id, Source: source, Target: target})
	notify := g.touchLocked()
	g.mu.Unlock()

	if notify {
		g.flush()
	}
	return id, true
}

// RemoveEdge deletes the edge with id.
func (g *Graph) RemoveEdge(id string) bool {
	g.mu.Lock()
	found := false
	kept := g.edges[:0]
	for _, e := range g.edges {
		if e.ID == id {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept
	notify := found && g.touchLocked()
	g.mu.Unlock()

	if notify {
		g.flush()
	}
	return found
}

// RemoveNode deletes a node and every edge touching it without calling the
// backend. Nodes with a lifecycle operation in flight are left alone; use
// Controller.Delete to remove persisted nodes.
func (g *Graph) RemoveNode(id string) bool {
	g.mu.Lock()
	e := g.findLocked(id)
	if e == nil || e.life.inFlight() {
		g.mu.Unlock()
		return false
	}
	e.life.state = StateDeleted
	g.removeLocked(e)
	notify := g.touchLocked()
	g.mu.Unlock()

	if notify {
		g.flush()
	}
	return true
}

// SetField stores value under name. The change is local until saved.
func (g *Graph) SetField(id, name string, value any) error {
	return g.editFields(id, func(f pipeline.Fields) pipeline.Fields {
		f = f.Clone()
		f[name] = value
		return f
	})
}

// ReplaceFields swaps all field values of a node at once.
func (g *Graph) ReplaceFields(id string, fields pipeline.Fields) error {
	return g.editFields(id, func(pipeline.Fields) pipeline.Fields { return fields.Clone() })
}

// ClearFields empties the field values of a node.
func (g *Graph) ClearFields(id string) error {
	return g.ReplaceFields(id, pipeline.Fields{})
}

func (g *Graph) editFields(id string, change func(pipeline.Fields) pipeline.Fields) error {
	g.mu.Lock()
	e := g.findLocked(id)
	if e == nil {
		g.mu.Unlock()
		return pipeline.ErrNodeNotFound
	}
	if err := e.life.edit(); err != nil {
		g.mu.Unlock()
		return err
	}
	e.fields = change(e.fields)
	notify := g.touchLocked()
	g.mu.Unlock()

	if notify {
		g.flush()
	}
	return nil
}

// Widgets renders the field editors of a node. Accepted widget input is
// written back with SetField.
func (g *Graph) Widgets(id string, selected bool) ([]field.Widget, bool) {
	n, ok := g.Node(id)
	if !ok {
		return nil, false
	}
	out := make([]field.Widget, 0, len(n.Schematic.Fields))
	for _, def := range n.Schematic.Fields {
		name := def.Name
		out = append(out, field.Render(n.Kind, def, n.Fields[name], selected, func(v any) {
			if err := g.SetField(id, name, v); err != nil {
				g.logger.Warn("Dropped field edit", "node_id", id, "field", name, "error", err)
			}
		}))
	}
	return out, true
}

// SetPosition moves a node. Positions are cosmetic and do not notify.
func (g *Graph) SetPosition(id string, p layout.Point) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.findLocked(id)
	if e == nil {
		return false
	}
	e.position = p
	return true
}

// SetSize records the measured pixel size of a node for layout.
func (g *Graph) SetSize(id string, width, height float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.findLocked(id)
	if e == nil {
		return false
	}
	e.width, e.height = width, height
	return true
}

// Node returns a snapshot of the node with id.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.findLocked(id)
	if e == nil {
		return Node{}, false
	}
	return e.snapshot(), true
}

// Nodes returns snapshots of all nodes in display order.
func (g *Graph) Nodes() []Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodesLocked()
}

// Edges returns a copy of all edges.
func (g *Graph) Edges() []Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Edge(nil), g.edges...)
}

// Payload serializes the current graph.
func (g *Graph) Payload() pipeline.Payload {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ToBackend(g.nodesLocked(), g.edges)
}

// Batch runs fn and delivers a single notification for every change made
// inside it, including changes made by nested batches.
func (g *Graph) Batch(fn func()) {
	g.mu.Lock()
	g.depth++
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.depth--
		notify := g.depth == 0 && g.changed
		g.mu.Unlock()
		if notify {
			g.flush()
		}
	}()

	fn()
}

// touchLocked marks the graph changed and reports whether the caller must
// flush now, i.e. it is outside any batch.
func (g *Graph) touchLocked() bool {
	g.changed = true
	return g.depth == 0
}

func (g *Graph) flush() {
	g.mu.Lock()
	if g.flushing {
		g.mu.Unlock()
		return
	}
	g.flushing = true
	defer func() {
		g.mu.Lock()
		g.flushing = false
		g.mu.Unlock()
	}()

	for g.changed && g.depth == 0 {
		g.changed = false
		payload := ToBackend(g.nodesLocked(), g.edges)
		g.mu.Unlock()

		if g.sink != nil {
			g.sink.GraphChanged(payload)
		}
		g.mu.Lock()
	}
	g.mu.Unlock()
}

func (g *Graph) nodesLocked() []Node {
	out := make([]Node, len(g.nodes))
	for i, e := range g.nodes {
		out[i] = e.snapshot()
	}
	return out
}

func (g *Graph) newEntryLocked(n Node, life lifecycle) *entry {
	g.nextKey++
	fields := n.Fields
	if fields == nil {
		fields = pipeline.Fields{}
	}
	return &entry{
		key:       g.nextKey,
		id:        n.ID,
		backendID: n.BackendID,
		kind:      n.Kind,
		schematic: n.Schematic,
		resolved:  n.Resolved,
		fields:    fields,
		dynamic:   n.DynamicSlots,
		position:  n.Position,
		life:      life,
	}
}

func (g *Graph) findLocked(id string) *entry {
	for _, e := range g.nodes {
		if e.id == id {
			return e
		}
	}
	return nil
}

func (g *Graph) findKeyLocked(key uint64) *entry {
	for _, e := range g.nodes {
		if e.key == key {
			return e
		}
	}
	return nil
}

// removeLocked drops e and cascades to its edges.
func (g *Graph) removeLocked(e *entry) {
	nodes := g.nodes[:0]
	for _, n := range g.nodes {
		if n != e {
			nodes = append(nodes, n)
		}
	}
	for i := len(nodes); i < len(g.nodes); i++ {
		g.nodes[i] = nil
	}
	g.nodes = nodes

	edges := g.edges[:0]
	for _, ed := range g.edges {
		if ed.Source != e.id && ed.Target != e.id {
			edges = append(edges, ed)
		}
	}
	g.edges = edges
}

// remapLocked gives e a new id and rewrites every edge endpoint that used
// the old one. It refuses when another node already carries id.
func (g *Graph) remapLocked(e *entry, id string) bool {
	old := e.id
	if old == id {
		return true
	}
	if g.findLocked(id) != nil {
		return false
	}
	e.id = id
	for i := range g.edges {
		if g.edges[i].Source == old {
			g.edges[i].Source = id
		}
		if g.edges[i].Target == old {
			g.edges[i].Target = id
		}
	}
	return true
}
