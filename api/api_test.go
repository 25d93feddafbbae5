package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/api"
	"github.com/meikuraledutech/pipeline/catalog"
	"github.com/meikuraledutech/pipeline/log"
	"github.com/meikuraledutech/pipeline/memory"
	"github.com/moogar0880/problems"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, *memory.Store) {
	t.Helper()
	store := memory.New()
	return api.New(log.Discard(), store, catalog.Default(store)).App(), store
}

func call(t *testing.T, app *fiber.App, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func createPipeline(t *testing.T, app *fiber.App, name string) pipeline.Pipeline {
	t.Helper()
	status, body := call(t, app, http.MethodPost, "/pipelines", map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, status, string(body))
	return decode[pipeline.Pipeline](t, body)
}

func TestAPI_Livez(t *testing.T) {
	app, _ := setupTestApp(t)

	status, body := call(t, app, http.MethodGet, "/livez", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", string(body))
}

func TestAPI_Schematics(t *testing.T) {
	app, _ := setupTestApp(t)

	status, body := call(t, app, http.MethodGet, "/pipelines/schematics", nil)
	require.Equal(t, http.StatusOK, status)

	resp := decode[pipeline.CatalogResponse](t, body)
	c, err := pipeline.NewCatalog(resp.IO)
	require.NoError(t, err)

	gain, ok := c.Lookup("Gain")
	require.True(t, ok)
	db, ok := gain.Field("db")
	require.True(t, ok)
	assert.Equal(t, pipeline.KindFloat, db.Kind())
	assert.Len(t, gain.Slots, 2)
}

func TestAPI_RelationOptions(t *testing.T) {
	app, store := setupTestApp(t)

	status, body := call(t, app, http.MethodGet, "/pipelines/schematics/Send/amp_id", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body), "no targets is an empty list, not an error")

	_, err := store.UpsertDevice(context.Background(), &pipeline.Device{Name: "speakers", DeviceType: pipeline.DevicePlayback, Active: true})
	require.NoError(t, err)

	status, body = call(t, app, http.MethodGet, "/pipelines/schematics/Send/amp_id", nil)
	require.Equal(t, http.StatusOK, status)
	opts := decode[[]pipeline.RelationOption](t, body)
	require.Len(t, opts, 1)
	assert.Equal(t, "speakers", opts[0].Name)

	status, body = call(t, app, http.MethodGet, "/pipelines/schematics/Reverb/room", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "schematic_not_found", decode[problems.Problem](t, body).Type)
}

func TestAPI_PipelineLifecycle(t *testing.T) {
	app, _ := setupTestApp(t)

	p := createPipeline(t, app, "studio")
	assert.NotZero(t, p.ID)

	status, body := call(t, app, http.MethodGet, "/pipelines", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]pipeline.Pipeline](t, body), 1)

	status, _ = call(t, app, http.MethodDelete, "/pipelines/1", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = call(t, app, http.MethodGet, "/pipelines/1", nil)
	assert.Equal(t, http.StatusNotFound, status)
	problem := decode[problems.Problem](t, body)
	assert.Equal(t, "pipeline_not_found", problem.Type)
	assert.Equal(t, "/pipelines/1", problem.Instance)
}

func TestAPI_CreatePipelineValidation(t *testing.T) {
	app, _ := setupTestApp(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing name", map[string]string{}},
		{"not an object", []int{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, app, http.MethodPost, "/pipelines", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "validation_error", decode[problems.Problem](t, body).Type)
		})
	}
}

func TestAPI_UpdatePipeline(t *testing.T) {
	app, _ := setupTestApp(t)
	p := createPipeline(t, app, "studio")

	payload := pipeline.Payload{
		Nodes: []pipeline.NodeInput{
			{TypeName: "Gain", Fields: pipeline.Fields{"db": -3.0}},
			{TypeName: "Mixer", Fields: pipeline.Fields{"input_channels": 1, "output_channels": 2}},
		},
		Edges: []pipeline.EdgeRef{{NodeA: 0, NodeB: 1}},
	}
	status, body := call(t, app, http.MethodPatch, "/pipelines/1", payload)
	require.Equal(t, http.StatusOK, status, string(body))

	got := decode[pipeline.Pipeline](t, body)
	assert.Equal(t, p.ID, got.ID)
	require.Len(t, got.Nodes, 2)
	assert.Equal(t, "Gain", got.Nodes[0].TypeName)
	assert.Equal(t, -3.0, got.Nodes[0].Fields["db"])
	assert.Len(t, got.Nodes[1].DynamicSlots, 3, "one input and two outputs")
	require.Len(t, got.Edges, 1)
	assert.Equal(t, 0, got.Edges[0].NodeA)
	assert.Equal(t, 1, got.Edges[0].NodeB)
}

func TestAPI_UpdatePipelineRejects(t *testing.T) {
	app, _ := setupTestApp(t)
	createPipeline(t, app, "studio")
	two := []pipeline.NodeInput{{TypeName: "Gain"}, {TypeName: "Gain"}}

	tests := []struct {
		name    string
		path    string
		payload pipeline.Payload
		status  int
		kind    string
	}{
		{
			name:    "cycle",
			path:    "/pipelines/1",
			payload: pipeline.Payload{Nodes: two, Edges: []pipeline.EdgeRef{{NodeA: 0, NodeB: 1}, {NodeA: 1, NodeB: 0}}},
			status:  http.StatusBadRequest,
			kind:    "validation_error",
		},
		{
			name:    "edge out of range",
			path:    "/pipelines/1",
			payload: pipeline.Payload{Nodes: two, Edges: []pipeline.EdgeRef{{NodeA: 0, NodeB: 2}}},
			status:  http.StatusBadRequest,
			kind:    "validation_error",
		},
		{
			name:    "negative index",
			path:    "/pipelines/1",
			payload: pipeline.Payload{Nodes: two, Edges: []pipeline.EdgeRef{{NodeA: -1, NodeB: 0}}},
			status:  http.StatusBadRequest,
			kind:    "validation_error",
		},
		{
			name:    "missing type name",
			path:    "/pipelines/1",
			payload: pipeline.Payload{Nodes: []pipeline.NodeInput{{}}},
			status:  http.StatusBadRequest,
			kind:    "validation_error",
		},
		{
			name:    "unknown kind",
			path:    "/pipelines/1",
			payload: pipeline.Payload{Nodes: []pipeline.NodeInput{{TypeName: "Reverb"}}},
			status:  http.StatusBadRequest,
			kind:    "validation_error",
		},
		{
			name:    "invalid field",
			path:    "/pipelines/1",
			payload: pipeline.Payload{Nodes: []pipeline.NodeInput{{TypeName: "Gain", Fields: pipeline.Fields{"db": "loud"}}}},
			status:  http.StatusBadRequest,
			kind:    "validation_error",
		},
		{
			name:   "missing pipeline",
			path:   "/pipelines/99",
			status: http.StatusNotFound,
			kind:   "pipeline_not_found",
		},
		{
			name:   "bad id",
			path:   "/pipelines/abc",
			status: http.StatusBadRequest,
			kind:   "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, app, http.MethodPatch, tt.path, tt.payload)
			assert.Equal(t, tt.status, status, string(body))
			assert.Equal(t, tt.kind, decode[problems.Problem](t, body).Type)
		})
	}

	status, body := call(t, app, http.MethodGet, "/pipelines/1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[pipeline.Pipeline](t, body).Nodes, "rejected payloads store nothing")
}

func TestAPI_NodeLifecycle(t *testing.T) {
	app, store := setupTestApp(t)
	createPipeline(t, app, "studio")
	mic := &pipeline.Device{Name: "mic", DeviceType: pipeline.DeviceCapture, Active: true, Channels: 2}
	_, err := store.UpsertDevice(context.Background(), mic)
	require.NoError(t, err)

	status, body := call(t, app, http.MethodPost, "/pipelines/1/nodes", pipeline.NodeInput{
		TypeName: pipeline.DeviceNodeKind,
		Fields:   pipeline.Fields{pipeline.DeviceField: mic.ID},
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	created := decode[pipeline.NodeResult](t, body)
	assert.NotZero(t, created.ID)
	require.Len(t, created.DynamicSlots, 2)
	assert.Equal(t, "out_1", created.DynamicSlots[0].Name)

	path := "/pipelines/1/nodes/" + strconv.FormatInt(created.ID, 10)

	status, body = call(t, app, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, status)
	st := decode[pipeline.NodeState](t, body)
	assert.EqualValues(t, mic.ID, st.Fields[pipeline.DeviceField])
	assert.Len(t, st.DynamicSlots, 2)

	status, body = call(t, app, http.MethodPatch, path, pipeline.NodeInput{TypeName: pipeline.DeviceNodeKind})
	require.Equal(t, http.StatusOK, status, string(body))
	updated := decode[pipeline.NodeResult](t, body)
	assert.Equal(t, created.ID, updated.ID)
	assert.Empty(t, updated.DynamicSlots)

	status, body = call(t, app, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"fields":{},"dynamic_slots_schematics":[]}`, string(body))

	status, _ = call(t, app, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = call(t, app, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, status)
	problem := decode[problems.Problem](t, body)
	assert.Equal(t, "node_not_found", problem.Type)
	assert.Equal(t, "node not found", problem.Detail)
}

func TestAPI_CreateNodeErrors(t *testing.T) {
	app, _ := setupTestApp(t)
	createPipeline(t, app, "studio")

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"unknown kind", "/pipelines/1/nodes", pipeline.NodeInput{TypeName: "Reverb"}, http.StatusBadRequest},
		{"missing type name", "/pipelines/1/nodes", pipeline.NodeInput{}, http.StatusBadRequest},
		{"invalid choice", "/pipelines/1/nodes", pipeline.NodeInput{TypeName: "Delay", Fields: pipeline.Fields{"unit": "s"}}, http.StatusBadRequest},
		{"missing pipeline", "/pipelines/7/nodes", pipeline.NodeInput{TypeName: "Gain"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, app, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, status, string(body))
		})
	}
}

func TestAPI_Devices(t *testing.T) {
	app, store := setupTestApp(t)
	ctx := context.Background()
	for _, d := range []pipeline.Device{
		{Name: "mic", DeviceType: pipeline.DeviceCapture, Active: true},
		{Name: "speakers", DeviceType: pipeline.DevicePlayback},
	} {
		_, err := store.UpsertDevice(ctx, &d)
		require.NoError(t, err)
	}

	status, body := call(t, app, http.MethodGet, "/devices", nil)
	require.Equal(t, http.StatusOK, status)
	devices := decode[[]pipeline.Device](t, body)
	require.Len(t, devices, 2)
	assert.True(t, devices[0].IsCapture())
	assert.False(t, devices[1].Active)

	status, body = call(t, app, http.MethodGet, "/devices/2", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "speakers", decode[pipeline.Device](t, body).Name)

	status, _ = call(t, app, http.MethodGet, "/devices/9", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
