package api

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/pipeline"
)

type CreatePipelineRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// ── Schematics ───────────────────────────────────────────────────────

func (a *API) Schematics(c fiber.Ctx) error {
	return c.JSON(pipeline.CatalogResponse{IO: a.registry.Schematics()})
}

func (a *API) RelationOptions(c fiber.Ctx) error {
	kind, err := url.PathUnescape(c.Params("kind"))
	if err != nil {
		return badRequest(c, "invalid kind")
	}
	field, err := url.PathUnescape(c.Params("field"))
	if err != nil {
		return badRequest(c, "invalid field")
	}

	opts, err := a.registry.RelationOptions(c.Context(), kind, field)
	if err != nil {
		return a.handleError(c, err)
	}
	return c.JSON(opts)
}

// ── Pipelines ────────────────────────────────────────────────────────

func (a *API) CreatePipeline(c fiber.Ctx) error {
	var req CreatePipelineRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := a.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	p, err := a.store.CreatePipeline(c.Context(), req.Name)
	if err != nil {
		return a.handleError(c, err)
	}
	a.logger.InfoContext(c.Context(), "Pipeline created", "pipeline_id", p.ID, "name", p.Name)
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (a *API) ListPipelines(c fiber.Ctx) error {
	list, err := a.store.ListPipelines(c.Context())
	if err != nil {
		return a.handleError(c, err)
	}
	return c.JSON(list)
}

func (a *API) GetPipeline(c fiber.Ctx) error {
	pid, err := paramID(c, "pid")
	if err != nil {
		return badRequest(c, err.Error())
	}

	p, err := a.store.GetPipeline(c.Context(), pid)
	if err != nil {
		return a.handleError(c, err)
	}
	return c.JSON(p)
}

// UpdatePipeline replaces the whole graph. Edge indices in the body refer to
// positions in its node list.
func (a *API) UpdatePipeline(c fiber.Ctx) error {
	pid, err := paramID(c, "pid")
	if err != nil {
		return badRequest(c, err.Error())
	}
	var payload pipeline.Payload
	if err := c.Bind().JSON(&payload); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := a.validate.Struct(payload); err != nil {
		return badRequest(c, err.Error())
	}

	prepared, dynamic, err := a.registry.PrepareGraph(c.Context(), payload)
	if err != nil {
		return a.handleInputError(c, err)
	}
	p, err := a.store.ReplaceGraph(c.Context(), pid, prepared, dynamic)
	if err != nil {
		return a.handleError(c, err)
	}
	a.logger.InfoContext(c.Context(), "Pipeline graph replaced", "pipeline_id", pid, "nodes", len(p.Nodes), "edges", len(p.Edges))
	return c.JSON(p)
}

func (a *API) DeletePipeline(c fiber.Ctx) error {
	pid, err := paramID(c, "pid")
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := a.store.DeletePipeline(c.Context(), pid); err != nil {
		return a.handleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ── Nodes ────────────────────────────────────────────────────────────

func (a *API) CreateNode(c fiber.Ctx) error {
	pid, err := paramID(c, "pid")
	if err != nil {
		return badRequest(c, err.Error())
	}
	in, err := a.bindNode(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	prepared, slots, err := a.registry.Prepare(c.Context(), in)
	if err != nil {
		return a.handleInputError(c, err)
	}
	id, err := a.store.AddNode(c.Context(), pid, prepared, slots)
	if err != nil {
		return a.handleError(c, err)
	}
	a.logger.InfoContext(c.Context(), "Node created", "pipeline_id", pid, "node_id", id, "type_name", in.TypeName)
	return c.Status(fiber.StatusCreated).JSON(pipeline.NodeResult{ID: id, DynamicSlots: slots})
}

func (a *API) GetNode(c fiber.Ctx) error {
	pid, id, err := nodeParams(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	n, err := a.store.GetNode(c.Context(), pid, id)
	if err != nil {
		return a.handleError(c, err)
	}
	slots := n.DynamicSlots
	if slots == nil {
		slots = []pipeline.Slot{}
	}
	return c.JSON(pipeline.NodeState{Fields: n.Fields, DynamicSlots: slots})
}

func (a *API) UpdateNode(c fiber.Ctx) error {
	pid, id, err := nodeParams(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	in, err := a.bindNode(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	prepared, slots, err := a.registry.Prepare(c.Context(), in)
	if err != nil {
		return a.handleInputError(c, err)
	}
	if err := a.store.UpdateNode(c.Context(), pid, id, prepared, slots); err != nil {
		return a.handleError(c, err)
	}
	return c.JSON(pipeline.NodeResult{ID: id, DynamicSlots: slots})
}

func (a *API) DeleteNode(c fiber.Ctx) error {
	pid, id, err := nodeParams(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := a.store.DeleteNode(c.Context(), pid, id); err != nil {
		return a.handleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ── Devices ──────────────────────────────────────────────────────────

func (a *API) ListDevices(c fiber.Ctx) error {
	devices, err := a.store.ListDevices(c.Context())
	if err != nil {
		return a.handleError(c, err)
	}
	return c.JSON(devices)
}

func (a *API) GetDevice(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	d, err := a.store.GetDevice(c.Context(), id)
	if err != nil {
		return a.handleError(c, err)
	}
	return c.JSON(d)
}

// ── helpers ──────────────────────────────────────────────────────────

func (a *API) bindNode(c fiber.Ctx) (pipeline.NodeInput, error) {
	var in pipeline.NodeInput
	if err := c.Bind().JSON(&in); err != nil {
		return pipeline.NodeInput{}, errors.New("invalid body")
	}
	if err := a.validate.Struct(in); err != nil {
		return pipeline.NodeInput{}, err
	}
	return in, nil
}

// handleInputError treats an unknown kind in a request body as a client
// error rather than a missing resource.
func (a *API) handleInputError(c fiber.Ctx, err error) error {
	if errors.Is(err, pipeline.ErrSchematicNotFound) {
		return badRequest(c, err.Error())
	}
	return a.handleError(c, err)
}

func paramID(c fiber.Ctx, name string) (int64, error) {
	raw := c.Params(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

func nodeParams(c fiber.Ctx) (pid, id int64, err error) {
	if pid, err = paramID(c, "pid"); err != nil {
		return 0, 0, err
	}
	if id, err = paramID(c, "id"); err != nil {
		return 0, 0, err
	}
	return pid, id, nil
}
