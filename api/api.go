// Package api is the reference HTTP backend of the pipeline editor: node
// kind schematics, relation options, pipeline and node persistence and the
// device list.
package api

import (
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/catalog"
)

type API struct {
	logger   *slog.Logger
	store    pipeline.Store
	registry *catalog.Registry
	validate *validator.Validate
}

func New(logger *slog.Logger, store pipeline.Store, registry *catalog.Registry) *API {
	return &API{
		logger:   logger,
		store:    store,
		registry: registry,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// App builds the fiber application serving every route.
func (a *API) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(a.logRequests)

	app.Get("/livez", func(c fiber.Ctx) error {
		return c.SendString("OK")
	})

	// Registered before /:pid so "schematics" is never read as an id.
	p := app.Group("/pipelines")
	p.Get("/schematics", a.Schematics)
	p.Get("/schematics/:kind/:field", a.RelationOptions)

	p.Post("/", a.CreatePipeline)
	p.Get("/", a.ListPipelines)
	p.Get("/:pid", a.GetPipeline)
	p.Patch("/:pid", a.UpdatePipeline)
	p.Delete("/:pid", a.DeletePipeline)

	p.Post("/:pid/nodes", a.CreateNode)
	p.Get("/:pid/nodes/:id", a.GetNode)
	p.Patch("/:pid/nodes/:id", a.UpdateNode)
	p.Delete("/:pid/nodes/:id", a.DeleteNode)

	d := app.Group("/devices")
	d.Get("/", a.ListDevices)
	d.Get("/:id", a.GetDevice)

	return app
}

func (a *API) logRequests(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	a.logger.DebugContext(c.Context(), "HTTP request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
	)
	return err
}
