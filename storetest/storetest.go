// Package storetest holds behaviour tests shared by every pipeline.Store
// implementation.
package storetest

import (
	"context"
	"testing"

	"github.com/meikuraledutech/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a store. newStore must return an empty store with its
// schema created.
func Run(t *testing.T, newStore func(t *testing.T) pipeline.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, ctx context.Context, s pipeline.Store)
	}{
		{"pipeline lifecycle", testPipelineLifecycle},
		{"replace graph", testReplaceGraph},
		{"replace graph rejects bad edges", testReplaceGraphRejects},
		{"node crud", testNodeCRUD},
		{"delete node cascades", testDeleteNodeCascades},
		{"devices", testDevices},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, context.Background(), newStore(t))
		})
	}
}

func testPipelineLifecycle(t *testing.T, ctx context.Context, s pipeline.Store) {
	p, err := s.CreatePipeline(ctx, "studio")
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, "studio", p.Name)

	got, err := s.GetPipeline(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "studio", got.Name)
	assert.Empty(t, got.Nodes)
	assert.Empty(t, got.Edges)

	_, err = s.CreatePipeline(ctx, "stage")
	require.NoError(t, err)

	all, err := s.ListPipelines(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "studio", all[0].Name)

	require.NoError(t, s.DeletePipeline(ctx, p.ID))
	_, err = s.GetPipeline(ctx, p.ID)
	assert.ErrorIs(t, err, pipeline.ErrPipelineNotFound)
	assert.ErrorIs(t, s.DeletePipeline(ctx, p.ID), pipeline.ErrPipelineNotFound)
}

func testReplaceGraph(t *testing.T, ctx context.Context, s pipeline.Store) {
	p, err := s.CreatePipeline(ctx, "studio")
	require.NoError(t, err)

	slots := []pipeline.Slot{{Name: "in_1", Type: pipeline.ConnectionAudio, Direction: pipeline.SlotInput}}
	payload := pipeline.Payload{
		Nodes: []pipeline.NodeInput{
			{TypeName: "A", Fields: pipeline.Fields{"label": "a"}},
			{TypeName: "B"},
			{TypeName: "C", Fields: pipeline.Fields{"inputs": 2.0}},
		},
		Edges: []pipeline.EdgeRef{{NodeA: 0, NodeB: 2}},
	}

	stored, err := s.ReplaceGraph(ctx, p.ID, payload, [][]pipeline.Slot{nil, nil, slots})
	require.NoError(t, err)
	require.Len(t, stored.Nodes, 3)
	for i, n := range stored.Nodes {
		assert.Equal(t, payload.Nodes[i].TypeName, n.TypeName, "order is preserved")
		assert.NotZero(t, n.ID)
	}
	assert.Equal(t, "a", stored.Nodes[0].Fields["label"])
	assert.NotNil(t, stored.Nodes[1].Fields)
	assert.Equal(t, slots, stored.Nodes[2].DynamicSlots)

	require.Len(t, stored.Edges, 1)
	assert.Equal(t, 0, stored.Edges[0].NodeA)
	assert.Equal(t, 2, stored.Edges[0].NodeB)

	again, err := s.GetPipeline(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, stored, again)

	empty, err := s.ReplaceGraph(ctx, p.ID, pipeline.Payload{}, nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Nodes)
	assert.Empty(t, empty.Edges)

	_, err = s.ReplaceGraph(ctx, p.ID+1000, payload, nil)
	assert.ErrorIs(t, err, pipeline.ErrPipelineNotFound)
}

func testReplaceGraphRejects(t *testing.T, ctx context.Context, s pipeline.Store) {
	p, err := s.CreatePipeline(ctx, "studio")
	require.NoError(t, err)
	nodes := []pipeline.NodeInput{{TypeName: "A"}, {TypeName: "B"}}

	_, err = s.ReplaceGraph(ctx, p.ID, pipeline.Payload{Nodes: nodes, Edges: []pipeline.EdgeRef{{NodeA: 0, NodeB: 1}, {NodeA: 1, NodeB: 0}}}, nil)
	assert.ErrorIs(t, err, pipeline.ErrCycleDetected)

	_, err = s.ReplaceGraph(ctx, p.ID, pipeline.Payload{Nodes: nodes, Edges: []pipeline.EdgeRef{{NodeA: 0, NodeB: 5}}}, nil)
	assert.ErrorIs(t, err, pipeline.ErrEdgeOutOfRange)

	got, err := s.GetPipeline(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Nodes, "rejected graphs leave nothing behind")
}

func testNodeCRUD(t *testing.T, ctx context.Context, s pipeline.Store) {
	p, err := s.CreatePipeline(ctx, "studio")
	require.NoError(t, err)

	id, err := s.AddNode(ctx, p.ID, pipeline.NodeInput{TypeName: "Gain", Fields: pipeline.Fields{"db": -6.0}}, nil)
	require.NoError(t, err)
	second, err := s.AddNode(ctx, p.ID, pipeline.NodeInput{TypeName: "Mixer"}, nil)
	require.NoError(t, err)

	n, err := s.GetNode(ctx, p.ID, id)
	require.NoError(t, err)
	assert.Equal(t, "Gain", n.TypeName)
	assert.Equal(t, -6.0, n.Fields["db"])

	slots := []pipeline.Slot{{Name: "out_1", Type: pipeline.ConnectionAudio, Direction: pipeline.SlotOutput}}
	require.NoError(t, s.UpdateNode(ctx, p.ID, second, pipeline.NodeInput{TypeName: "Mixer", Fields: pipeline.Fields{"outputs": 1.0}}, slots))

	got, err := s.GetPipeline(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Nodes, 2)
	assert.Equal(t, id, got.Nodes[0].ID, "nodes are appended")
	assert.Equal(t, slots, got.Nodes[1].DynamicSlots)

	_, err = s.GetNode(ctx, p.ID, 99999)
	assert.ErrorIs(t, err, pipeline.ErrNodeNotFound)
	assert.ErrorIs(t, s.UpdateNode(ctx, p.ID, 99999, pipeline.NodeInput{TypeName: "Gain"}, nil), pipeline.ErrNodeNotFound)
	assert.ErrorIs(t, s.DeleteNode(ctx, p.ID, 99999), pipeline.ErrNodeNotFound)

	_, err = s.AddNode(ctx, p.ID+1000, pipeline.NodeInput{TypeName: "Gain"}, nil)
	assert.ErrorIs(t, err, pipeline.ErrPipelineNotFound)
}

func testDeleteNodeCascades(t *testing.T, ctx context.Context, s pipeline.Store) {
	p, err := s.CreatePipeline(ctx, "studio")
	require.NoError(t, err)

	stored, err := s.ReplaceGraph(ctx, p.ID, pipeline.Payload{
		Nodes: []pipeline.NodeInput{{TypeName: "A"}, {TypeName: "B"}, {TypeName: "C"}},
		Edges: []pipeline.EdgeRef{{NodeA: 0, NodeB: 1}, {NodeA: 1, NodeB: 2}, {NodeA: 0, NodeB: 2}},
	}, nil)
	require.NoError(t, err)

	require.NoError(t, s.DeleteNode(ctx, p.ID, stored.Nodes[1].ID))

	got, err := s.GetPipeline(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Nodes, 2)
	require.Len(t, got.Edges, 1)
	assert.Equal(t, 0, got.Edges[0].NodeA)
	assert.Equal(t, 1, got.Edges[0].NodeB, "indices follow the remaining order")
}

func testDevices(t *testing.T, ctx context.Context, s pipeline.Store) {
	mic := &pipeline.Device{Name: "hw:0,0", DeviceType: pipeline.DeviceCapture, Active: true, Channels: 2}
	id, err := s.UpsertDevice(ctx, mic)
	require.NoError(t, err)
	assert.Equal(t, id, mic.ID)

	_, err = s.UpsertDevice(ctx, &pipeline.Device{Name: "hw:1,0", DeviceType: pipeline.DevicePlayback, Active: true})
	require.NoError(t, err)

	again, err := s.UpsertDevice(ctx, &pipeline.Device{Name: "hw:0,0", DeviceType: pipeline.DeviceCapture, Channels: 4})
	require.NoError(t, err)
	assert.Equal(t, id, again, "same name updates in place")

	d, err := s.GetDevice(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, d.Channels)
	assert.False(t, d.Active)

	all, err := s.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, id, all[0].ID)

	_, err = s.GetDevice(ctx, 99999)
	assert.ErrorIs(t, err, pipeline.ErrDeviceNotFound)
}
