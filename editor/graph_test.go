package editor

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNode(t *testing.T) {
	g := newTestGraph(t, nil)

	id, err := g.AddNode("Gain")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "temp-"))

	n, ok := g.Node(id)
	require.True(t, ok)
	assert.Equal(t, "Gain", n.Kind)
	assert.True(t, n.Resolved)
	assert.True(t, n.IsNew)
	assert.True(t, n.IsDirty)
	assert.Equal(t, StateDraft, n.State)
	assert.Empty(t, n.Fields)
	assert.Len(t, n.Slots(), 2)
}

func TestAddNodeUnknownKind(t *testing.T) {
	g := newTestGraph(t, nil)

	_, err := g.AddNode("Reverb")
	assert.ErrorIs(t, err, pipeline.ErrSchematicNotFound)
	assert.Empty(t, g.Nodes())
}

func TestAddDevice(t *testing.T) {
	g := newTestGraph(t, nil)

	id, err := g.AddDevice(pipeline.Device{ID: 7, Name: "hw:0", DeviceType: pipeline.DeviceCapture})
	require.NoError(t, err)

	n, _ := g.Node(id)
	assert.Equal(t, pipeline.DeviceNodeKind, n.Kind)
	assert.Equal(t, pipeline.Fields{pipeline.DeviceField: int64(7)}, n.Fields)
}

func TestConnect(t *testing.T) {
	g := newTestGraph(t, nil)
	a, _ := g.AddNode("Gain")
	b, _ := g.AddNode("Gain")

	id, ok := g.Connect(a, b)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(id, "edge-"))

	again, ok := g.Connect(a, b)
	assert.False(t, ok)
	assert.Equal(t, id, again)

	_, ok = g.Connect(a, "node-404")
	assert.False(t, ok)
	assert.Len(t, g.Edges(), 1)

	assert.True(t, g.RemoveEdge(id))
	assert.False(t, g.RemoveEdge(id))
	assert.Empty(t, g.Edges())
}

func TestRemoveNodeCascadesToEdges(t *testing.T) {
	g := newTestGraph(t, nil)
	a, _ := g.AddNode("Gain")
	b, _ := g.AddNode("Gain")
	c, _ := g.AddNode("Mixer")
	g.Connect(a, b)
	g.Connect(b, c)
	g.Connect(a, c)

	require.True(t, g.RemoveNode(b))

	edges := g.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, a, edges[0].Source)
	assert.Equal(t, c, edges[0].Target)
	assert.False(t, g.RemoveNode(b))
	assertEdgesResolve(t, g)
}

func TestRandomEditsKeepEdgesResolvable(t *testing.T) {
	g := newTestGraph(t, nil)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 500; i++ {
		nodes := g.Nodes()
		switch op := rng.Intn(4); {
		case op == 0 || len(nodes) < 2:
			_, err := g.AddNode("Gain")
			require.NoError(t, err)
		case op == 1:
			g.Connect(nodes[rng.Intn(len(nodes))].ID, nodes[rng.Intn(len(nodes))].ID)
		case op == 2:
			g.RemoveNode(nodes[rng.Intn(len(nodes))].ID)
		default:
			if edges := g.Edges(); len(edges) > 0 {
				g.RemoveEdge(edges[rng.Intn(len(edges))].ID)
			}
		}
		assertEdgesResolve(t, g)
	}
}

func TestSetField(t *testing.T) {
	g := newTestGraph(t, nil)
	id, _ := g.AddNode("Gain")

	require.NoError(t, g.SetField(id, "db", -6.0))
	n, _ := g.Node(id)
	assert.Equal(t, -6.0, n.Fields["db"])

	n.Fields["db"] = 3.0
	again, _ := g.Node(id)
	assert.Equal(t, -6.0, again.Fields["db"], "snapshots must not alias graph state")

	require.NoError(t, g.ClearFields(id))
	n, _ = g.Node(id)
	assert.Empty(t, n.Fields)

	assert.ErrorIs(t, g.SetField("node-404", "db", 1.0), pipeline.ErrNodeNotFound)
}

func TestWidgetsWriteBack(t *testing.T) {
	g := newTestGraph(t, nil)
	id, _ := g.AddNode("Gain")

	widgets, ok := g.Widgets(id, true)
	require.True(t, ok)
	require.Len(t, widgets, 1)
	require.NoError(t, widgets[0].Submit("-3.5"))

	n, _ := g.Node(id)
	assert.Equal(t, -3.5, n.Fields["db"])

	_, ok = g.Widgets("node-404", true)
	assert.False(t, ok)
}

func TestSinkReceivesEveryChange(t *testing.T) {
	rec := &recorder{}
	g := newTestGraph(t, rec)

	a, _ := g.AddNode("Gain")
	b, _ := g.AddNode("Gain")
	g.Connect(a, b)
	require.Equal(t, 3, rec.deliveries())

	last := rec.last()
	require.Len(t, last.Nodes, 2)
	assert.Equal(t, []pipeline.EdgeRef{{NodeA: 0, NodeB: 1}}, last.Edges)

	g.SetPosition(a, layout.Point{X: 10, Y: 20})
	g.SetSize(a, 200, 100)
	assert.Equal(t, 3, rec.deliveries(), "cosmetic changes do not notify")
}

func TestSinkMayEditGraph(t *testing.T) {
	var (
		g        *Graph
		payloads []pipeline.Payload
	)
	g = newTestGraph(t, SinkFunc(func(p pipeline.Payload) {
		payloads = append(payloads, p)
		if len(payloads) > 1 {
			return
		}
		first := g.Nodes()[0].ID
		second, err := g.AddNode("Gain")
		assert.NoError(t, err)
		_, ok := g.Connect(first, second)
		assert.True(t, ok)
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = g.AddNode("Gain")
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("AddNode did not return while the sink edited the graph")
	}

	require.Len(t, payloads, 2, "edits made by the sink are delivered once, after it returns")
	assert.Len(t, payloads[0].Nodes, 1)
	assert.Len(t, payloads[1].Nodes, 2)
	assert.Equal(t, []pipeline.EdgeRef{{NodeA: 0, NodeB: 1}}, payloads[1].Edges)

	_, err := g.AddNode("Mixer")
	require.NoError(t, err)
	assert.Len(t, payloads, 3, "later edits still notify")
}

func TestNilLoggerDefaults(t *testing.T) {
	g := NewGraph(nil, nil, nil)

	_, err := g.AddNode("Gain")
	assert.ErrorIs(t, err, pipeline.ErrSchematicNotFound, "warning for an empty catalog must not panic")

	c := NewController(g, &MockBackend{}, nil, nil)
	assert.ErrorIs(t, c.Save(context.Background(), "node-404"), pipeline.ErrNodeNotFound)
}

func TestBatchCoalescesNotifications(t *testing.T) {
	rec := &recorder{}
	g := newTestGraph(t, rec)

	g.Batch(func() {
		a, _ := g.AddNode("Gain")
		b, _ := g.AddNode("Gain")
		g.Batch(func() {
			g.Connect(a, b)
			_ = g.SetField(a, "db", 1.0)
		})
		assert.Zero(t, rec.deliveries(), "nested batch must not flush early")
	})

	require.Equal(t, 1, rec.deliveries())
	last := rec.last()
	assert.Len(t, last.Nodes, 2)
	assert.Len(t, last.Edges, 1)

	g.Batch(func() {})
	assert.Equal(t, 1, rec.deliveries(), "empty batch does not notify")
}

func TestHydrateOnlyOnKeyChange(t *testing.T) {
	rec := &recorder{}
	g := newTestGraph(t, rec)
	catalog := testCatalog(t)

	p := &pipeline.Pipeline{
		ID: 1,
		Nodes: []pipeline.Node{
			{ID: 10, TypeName: "Gain", Fields: pipeline.Fields{"db": 0.0}},
			{ID: 11, TypeName: "Mixer"},
		},
		Edges: []pipeline.Edge{{ID: 5, NodeA: 0, NodeB: 1}},
	}

	replaced, warnings := g.Hydrate(p, catalog)
	require.True(t, replaced)
	assert.Empty(t, warnings)
	assert.Equal(t, 1, rec.deliveries())
	assert.Equal(t, int64(1), g.PipelineID())

	require.NoError(t, g.SetField("node-10", "db", -12.0))

	replaced, _ = g.Hydrate(p, catalog)
	assert.False(t, replaced)
	n, _ := g.Node("node-10")
	assert.Equal(t, -12.0, n.Fields["db"], "same key keeps local edits")

	grown := *p
	grown.Nodes = append(append([]pipeline.Node(nil), p.Nodes...), pipeline.Node{ID: 12, TypeName: "Gain"})
	replaced, _ = g.Hydrate(&grown, catalog)
	assert.True(t, replaced)
	assert.Len(t, g.Nodes(), 3)
	n, _ = g.Node("node-10")
	assert.Equal(t, 0.0, n.Fields["db"])

	g.Reset()
	replaced, _ = g.Hydrate(&grown, catalog)
	assert.True(t, replaced)
}

func TestHydrateUnknownKind(t *testing.T) {
	g := newTestGraph(t, nil)

	replaced, warnings := g.Hydrate(&pipeline.Pipeline{
		ID:    3,
		Nodes: []pipeline.Node{{ID: 1, TypeName: "Vocoder"}},
	}, testCatalog(t))

	require.True(t, replaced)
	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], pipeline.ErrSchematicNotFound)

	n, ok := g.Node("node-1")
	require.True(t, ok)
	assert.False(t, n.Resolved)
	assert.Empty(t, n.Slots())
}

func TestAutoLayout(t *testing.T) {
	g := newTestGraph(t, nil)
	a, _ := g.AddNode("Gain")
	b, _ := g.AddNode("Gain")
	g.Connect(a, b)
	g.SetSize(a, 200, 80)

	require.NoError(t, g.AutoLayout(t.Context()))

	na, _ := g.Node(a)
	nb, _ := g.Node(b)
	assert.Less(t, na.Position.X, nb.Position.X)
	assert.Len(t, g.Edges(), 1)
	assert.Equal(t, a, g.Edges()[0].Source)
}
