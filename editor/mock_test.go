package editor

import (
	"context"
	"sync"
	"testing"

	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) CreateNode(ctx context.Context, pipelineID int64, in pipeline.NodeInput) (pipeline.NodeResult, error) {
	args := m.Called(ctx, pipelineID, in)

	return args.Get(0).(pipeline.NodeResult), args.Error(1)
}

func (m *MockBackend) UpdateNode(ctx context.Context, pipelineID, nodeID int64, in pipeline.NodeInput) (pipeline.NodeResult, error) {
	args := m.Called(ctx, pipelineID, nodeID, in)

	return args.Get(0).(pipeline.NodeResult), args.Error(1)
}

func (m *MockBackend) GetNode(ctx context.Context, pipelineID, nodeID int64) (pipeline.NodeState, error) {
	args := m.Called(ctx, pipelineID, nodeID)

	return args.Get(0).(pipeline.NodeState), args.Error(1)
}

func (m *MockBackend) DeleteNode(ctx context.Context, pipelineID, nodeID int64) error {
	args := m.Called(ctx, pipelineID, nodeID)

	return args.Error(0)
}

func (m *MockBackend) RelationOptions(ctx context.Context, kind, field string) ([]pipeline.RelationOption, error) {
	args := m.Called(ctx, kind, field)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]pipeline.RelationOption), args.Error(1)
}

func (m *MockBackend) Schematics(ctx context.Context) (pipeline.Catalog, error) {
	args := m.Called(ctx)

	return args.Get(0).(pipeline.Catalog), args.Error(1)
}

func (m *MockBackend) Pipeline(ctx context.Context, pipelineID int64) (*pipeline.Pipeline, error) {
	args := m.Called(ctx, pipelineID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*pipeline.Pipeline), args.Error(1)
}

func (m *MockBackend) UpdatePipeline(ctx context.Context, pipelineID int64, p pipeline.Payload) (*pipeline.Pipeline, error) {
	args := m.Called(ctx, pipelineID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*pipeline.Pipeline), args.Error(1)
}

func (m *MockBackend) Devices(ctx context.Context) ([]pipeline.Device, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]pipeline.Device), args.Error(1)
}

// recorder collects notifications and sink deliveries.
type recorder struct {
	mu            sync.Mutex
	payloads      []pipeline.Payload
	notifications []Notification
}

func (r *recorder) GraphChanged(p pipeline.Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
}

func (r *recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recorder) deliveries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func (r *recorder) last() pipeline.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payloads[len(r.payloads)-1]
}

func (r *recorder) levels() []Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Level, 0, len(r.notifications))
	for _, n := range r.notifications {
		out = append(out, n.Level)
	}
	return out
}

func testCatalog(t *testing.T) pipeline.Catalog {
	t.Helper()
	c, err := pipeline.NewCatalog([]pipeline.Schematic{
		{
			TypeName: pipeline.DeviceNodeKind,
			Fields:   []pipeline.FieldDefinition{{Name: pipeline.DeviceField, Type: "ForeignKey", IsRelation: true}},
		},
		{
			TypeName: "Gain",
			Fields:   []pipeline.FieldDefinition{{Name: "db", Type: "FloatField"}},
			Slots: []pipeline.Slot{
				{Name: "in", Type: pipeline.ConnectionAudio, Direction: pipeline.SlotInput},
				{Name: "out", Type: pipeline.ConnectionAudio, Direction: pipeline.SlotOutput},
			},
		},
		{
			TypeName: "Mixer",
			Fields:   []pipeline.FieldDefinition{{Name: "inputs", Type: "IntegerField"}},
		},
	})
	require.NoError(t, err)
	return c
}

func newTestGraph(t *testing.T, sink Sink) *Graph {
	t.Helper()
	g := NewGraph(log.Discard(), nil, sink)
	g.SetCatalog(testCatalog(t))
	return g
}

// assertEdgesResolve checks that every edge names two nodes of the graph.
func assertEdgesResolve(t *testing.T, g *Graph) {
	t.Helper()
	ids := make(map[string]bool)
	for _, n := range g.Nodes() {
		ids[n.ID] = true
	}
	for _, e := range g.Edges() {
		assert.True(t, ids[e.Source], "edge %s source %s", e.ID, e.Source)
		assert.True(t, ids[e.Target], "edge %s target %s", e.ID, e.Target)
	}
}
