package api_test

import (
	"context"
	"net"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/api"
	"github.com/meikuraledutech/pipeline/catalog"
	"github.com/meikuraledutech/pipeline/client"
	"github.com/meikuraledutech/pipeline/editor"
	"github.com/meikuraledutech/pipeline/field"
	"github.com/meikuraledutech/pipeline/log"
	"github.com/meikuraledutech/pipeline/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serve runs the API on a loopback port until the test ends.
func serve(t *testing.T, store pipeline.Store) string {
	t.Helper()
	app := api.New(log.Discard(), store, catalog.Default(store)).App()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = app.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	t.Cleanup(func() {
		if err := app.Shutdown(); err != nil {
			t.Logf("Failed to shut down app: %v", err)
		}
	})
	return "http://" + ln.Addr().String()
}

func TestEditingSessionAgainstAPI(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	mic := &pipeline.Device{Name: "mic", DeviceType: pipeline.DeviceCapture, Active: true, Channels: 2}
	_, err := store.UpsertDevice(ctx, mic)
	require.NoError(t, err)
	p, err := store.CreatePipeline(ctx, "studio")
	require.NoError(t, err)

	cl := client.New(serve(t, store), client.WithLogger(log.Discard()))
	s, err := editor.Open(ctx, cl, p.ID, editor.Config{SettleDelay: -1}, log.Discard(), nil)
	require.NoError(t, err)
	defer s.Close()
	require.Len(t, s.CaptureDevices(), 1)

	// A device node gets its slots from the server once saved.
	micID, err := s.Graph.AddDevice(s.CaptureDevices()[0])
	require.NoError(t, err)
	require.NoError(t, s.Controller.Save(ctx, micID))

	micNode, ok := s.Graph.Node(pipeline.NodeRef(1))
	require.True(t, ok, "draft id replaced by the server id")
	assert.False(t, micNode.IsNew)
	assert.False(t, micNode.IsDirty)
	assert.Equal(t, []string{"out_1", "out_2"}, slotNames(micNode))

	gainID, err := s.Graph.AddNode("Gain")
	require.NoError(t, err)
	require.NoError(t, s.Graph.SetField(gainID, "db", -6.0))
	_, ok = s.Graph.Connect(micNode.ID, gainID)
	require.True(t, ok)
	require.NoError(t, s.Controller.Save(ctx, gainID))

	edges := s.Graph.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, pipeline.NodeRef(2), edges[0].Target, "edge follows the remapped id")

	// Invalid values are refused by the server and the node stays dirty.
	gain := pipeline.NodeRef(2)
	require.NoError(t, s.Graph.SetField(gain, "db", "loud"))
	err = s.Controller.Save(ctx, gain)
	require.ErrorIs(t, err, pipeline.ErrSaveFailed)
	assert.True(t, client.IsStatus(err, 400))
	n, _ := s.Graph.Node(gain)
	assert.True(t, n.IsDirty)
	require.NoError(t, s.Graph.SetField(gain, "db", -3.0))

	require.NoError(t, s.Submit(ctx))

	stored, err := store.GetPipeline(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, stored.Nodes, 2)
	assert.Equal(t, pipeline.DeviceNodeKind, stored.Nodes[0].TypeName)
	assert.Len(t, stored.Nodes[0].DynamicSlots, 2)
	assert.Equal(t, -3.0, stored.Nodes[1].Fields["db"])
	require.Len(t, stored.Edges, 1)
	assert.Equal(t, 0, stored.Edges[0].NodeA)
	assert.Equal(t, 1, stored.Edges[0].NodeB)

	nodes := s.Graph.Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, pipeline.NodeRef(stored.Nodes[0].ID), nodes[0].ID, "graph rebuilt from the stored result")
}

func TestSessionRelationAgainstAPI(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	_, err := store.UpsertDevice(ctx, &pipeline.Device{Name: "speakers", DeviceType: pipeline.DevicePlayback, Active: true})
	require.NoError(t, err)
	p, err := store.CreatePipeline(ctx, "stage")
	require.NoError(t, err)

	cl := client.New(serve(t, store), client.WithLogger(log.Discard()))
	s, err := editor.Open(ctx, cl, p.ID, editor.Config{SettleDelay: -1}, log.Discard(), nil)
	require.NoError(t, err)
	defer s.Close()

	id, err := s.Graph.AddNode("Send")
	require.NoError(t, err)
	require.NoError(t, s.Graph.SetField(id, "amp_id", int64(1)))

	widgets, ok := s.Graph.Widgets(id, false)
	require.True(t, ok)
	var amp field.Widget
	for _, w := range widgets {
		if w.Field.Name == "amp_id" {
			amp = w
		}
	}
	require.NotNil(t, amp.Relation)

	w, err := s.Relation(ctx, amp)
	require.NoError(t, err)
	require.Len(t, w.Options, 1)
	assert.Equal(t, "speakers", w.Preview)
}

func slotNames(n editor.Node) []string {
	var out []string
	for _, s := range n.DynamicSlots {
		out = append(out, s.Name)
	}
	return out
}
