package api

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/catalog"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, kind, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusNotFound).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleError maps store and catalog errors to problem responses.
func (a *API) handleError(c fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors

	switch {
	case errors.Is(err, pipeline.ErrPipelineNotFound):
		return notFound(c, "pipeline_not_found", "pipeline not found")
	case errors.Is(err, pipeline.ErrNodeNotFound):
		return notFound(c, "node_not_found", "node not found")
	case errors.Is(err, pipeline.ErrDeviceNotFound):
		return notFound(c, "device_not_found", "device not found")
	case errors.Is(err, pipeline.ErrSchematicNotFound):
		return notFound(c, "schematic_not_found", err.Error())

	case errors.As(err, &verrs),
		errors.Is(err, catalog.ErrInvalidField),
		errors.Is(err, pipeline.ErrCycleDetected),
		errors.Is(err, pipeline.ErrEdgeOutOfRange):
		return badRequest(c, err.Error())

	case errors.Is(err, pipeline.ErrRelationOptionsUnavailable):
		problem := problems.NewStatusProblem(fiber.StatusBadGateway).
			WithInstance(c.Path()).
			WithType("relation_options_unavailable").
			WithError(err)

		return c.Status(fiber.StatusBadGateway).JSON(problem)

	default:
		a.logger.ErrorContext(c.Context(), "Request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return internalError(c, err)
	}
}
