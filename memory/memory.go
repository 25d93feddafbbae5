// Package memory is an in-process pipeline.Store. It backs tests and the
// seeded demo server.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/meikuraledutech/pipeline"
)

var _ pipeline.Store = (*Store)(nil)

type node struct {
	id       int64
	position int
	in       pipeline.NodeInput
	dynamic  []pipeline.Slot
}

type edge struct {
	id    int64
	nodeA int64
	nodeB int64
}

type record struct {
	id    int64
	name  string
	nodes []*node
	edges []edge
}

// Store keeps pipelines and devices in memory. Ids are allocated from
// counters shared by all pipelines, like database sequences.
type Store struct {
	mu        sync.RWMutex
	pipelines map[int64]*record
	devices   map[int64]pipeline.Device
	seq       struct{ pipeline, node, edge, device int64 }
}

// New returns an empty store.
func New() *Store {
	return &Store{
		pipelines: make(map[int64]*record),
		devices:   make(map[int64]pipeline.Device),
	}
}

// CreateSchema is a no-op.
func (s *Store) CreateSchema(context.Context) error { return nil }

// DropSchema forgets everything.
func (s *Store) DropSchema(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipelines = make(map[int64]*record)
	s.devices = make(map[int64]pipeline.Device)
	return nil
}

func (s *Store) CreatePipeline(_ context.Context, name string) (*pipeline.Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq.pipeline++
	r := &record{id: s.seq.pipeline, name: name}
	s.pipelines[r.id] = r
	return r.snapshot(), nil
}

func (s *Store) GetPipeline(_ context.Context, pipelineID int64) (*pipeline.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.pipelines[pipelineID]
	if !ok {
		return nil, pipeline.ErrPipelineNotFound
	}
	return r.snapshot(), nil
}

func (s *Store) ListPipelines(context.Context) ([]pipeline.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pipeline.Pipeline, 0, len(s.pipelines))
	for _, r := range s.pipelines {
		out = append(out, pipeline.Pipeline{ID: r.id, Name: r.name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ReplaceGraph(_ context.Context, pipelineID int64, p pipeline.Payload, dynamic [][]pipeline.Slot) (*pipeline.Pipeline, error) {
	if err := pipeline.ValidateGraph(p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.pipelines[pipelineID]
	if !ok {
		return nil, pipeline.ErrPipelineNotFound
	}

	r.nodes = make([]*node, 0, len(p.Nodes))
	for i, in := range p.Nodes {
		var slots []pipeline.Slot
		if i < len(dynamic) {
			slots = dynamic[i]
		}
		s.seq.node++
		r.nodes = append(r.nodes, &node{id: s.seq.node, position: i, in: cloneInput(in), dynamic: cloneSlots(slots)})
	}
	r.edges = make([]edge, 0, len(p.Edges))
	for _, e := range p.Edges {
		s.seq.edge++
		r.edges = append(r.edges, edge{id: s.seq.edge, nodeA: r.nodes[e.NodeA].id, nodeB: r.nodes[e.NodeB].id})
	}
	return r.snapshot(), nil
}

func (s *Store) DeletePipeline(_ context.Context, pipelineID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pipelines[pipelineID]; !ok {
		return pipeline.ErrPipelineNotFound
	}
	delete(s.pipelines, pipelineID)
	return nil
}

func (s *Store) AddNode(_ context.Context, pipelineID int64, in pipeline.NodeInput, dynamic []pipeline.Slot) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.pipelines[pipelineID]
	if !ok {
		return 0, pipeline.ErrPipelineNotFound
	}
	position := 0
	if len(r.nodes) > 0 {
		position = r.nodes[len(r.nodes)-1].position + 1
	}
	s.seq.node++
	r.nodes = append(r.nodes, &node{id: s.seq.node, position: position, in: cloneInput(in), dynamic: cloneSlots(dynamic)})
	return s.seq.node, nil
}

func (s *Store) GetNode(_ context.Context, pipelineID, nodeID int64) (*pipeline.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, err := s.findLocked(pipelineID, nodeID)
	if err != nil {
		return nil, err
	}
	out := n.snapshot()
	return &out, nil
}

func (s *Store) UpdateNode(_ context.Context, pipelineID, nodeID int64, in pipeline.NodeInput, dynamic []pipeline.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.findLocked(pipelineID, nodeID)
	if err != nil {
		return err
	}
	n.in = cloneInput(in)
	n.dynamic = cloneSlots(dynamic)
	return nil
}

// DeleteNode removes a node and the edges touching it.
func (s *Store) DeleteNode(_ context.Context, pipelineID, nodeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.pipelines[pipelineID]
	if !ok {
		return pipeline.ErrNodeNotFound
	}
	kept := r.nodes[:0]
	found := false
	for _, n := range r.nodes {
		if n.id == nodeID {
			found = true
			continue
		}
		kept = append(kept, n)
	}
	if !found {
		return pipeline.ErrNodeNotFound
	}
	r.nodes = kept
	edges := r.edges[:0]
	for _, e := range r.edges {
		if e.nodeA != nodeID && e.nodeB != nodeID {
			edges = append(edges, e)
		}
	}
	r.edges = edges
	return nil
}

// UpsertDevice matches devices by name.
func (s *Store) UpsertDevice(_ context.Context, d *pipeline.Device) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.devices {
		if existing.Name == d.Name {
			d.ID = id
			s.devices[id] = *d
			return id, nil
		}
	}
	s.seq.device++
	d.ID = s.seq.device
	s.devices[d.ID] = *d
	return d.ID, nil
}

func (s *Store) GetDevice(_ context.Context, id int64) (*pipeline.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[id]
	if !ok {
		return nil, pipeline.ErrDeviceNotFound
	}
	return &d, nil
}

func (s *Store) ListDevices(context.Context) ([]pipeline.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pipeline.Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) findLocked(pipelineID, nodeID int64) (*node, error) {
	r, ok := s.pipelines[pipelineID]
	if !ok {
		return nil, pipeline.ErrNodeNotFound
	}
	for _, n := range r.nodes {
		if n.id == nodeID {
			return n, nil
		}
	}
	return nil, pipeline.ErrNodeNotFound
}

func (r *record) snapshot() *pipeline.Pipeline {
	p := &pipeline.Pipeline{
		ID:    r.id,
		Name:  r.name,
		Nodes: make([]pipeline.Node, 0, len(r.nodes)),
		Edges: make([]pipeline.Edge, 0, len(r.edges)),
	}
	index := make(map[int64]int, len(r.nodes))
	for i, n := range r.nodes {
		index[n.id] = i
		p.Nodes = append(p.Nodes, n.snapshot())
	}
	for _, e := range r.edges {
		p.Edges = append(p.Edges, pipeline.Edge{ID: e.id, NodeA: index[e.nodeA], NodeB: index[e.nodeB]})
	}
	return p
}

func (n *node) snapshot() pipeline.Node {
	return pipeline.Node{
		ID:           n.id,
		TypeName:     n.in.TypeName,
		Fields:       n.in.Fields.Clone(),
		DynamicSlots: cloneSlots(n.dynamic),
	}
}

func cloneInput(in pipeline.NodeInput) pipeline.NodeInput {
	return pipeline.NodeInput{TypeName: in.TypeName, Fields: in.Fields.Clone()}
}

func cloneSlots(s []pipeline.Slot) []pipeline.Slot {
	return append([]pipeline.Slot{}, s...)
}
