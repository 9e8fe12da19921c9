// Package main provides the CallFlow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/callforge/callflow/pkg/eventbus"
	"github.com/callforge/callflow/pkg/persistence"
	"github.com/callforge/callflow/pkg/registry"
	"github.com/callforge/callflow/pkg/services"
	"github.com/callforge/callflow/pkg/web"
	"github.com/callforge/callflow/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	reg *registry.Registry,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:      logger,
		persistence: store,
		registry:    reg,
		eventBus:    eventBus,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	validatorEngine := workflow.NewValidator(a.registry)
	executor := workflow.NewExecutor(
		a.persistence.ExecutionRepository(),
		a.registry,
		a.eventBus,
		a.tracer,
		a.logger,
	)

	workflowService := services.NewWorkflow(a.persistence, validatorEngine, executor, a.eventBus, a.logger)
	templateService := services.NewTemplate(workflowService)

	handlers := web.NewAPIHandlers(workflowService, templateService, a.validate, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("CallFlow API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)

	w.Post("/:id/activate", handlers.ActivateWorkflow)
	w.Post("/:id/deactivate", handlers.DeactivateWorkflow)
	w.Put("/:id/cultural-settings", handlers.UpdateCulturalSettings)

	w.Post("/:id/execute", handlers.ExecuteWorkflow)
	w.Post("/:id/test", handlers.TestWorkflow)
	w.Post("/:id/deploy", handlers.DeployWorkflow)
	w.Post("/:id/validate", handlers.ValidateWorkflow)
	w.Get("/:id/preview", handlers.PreviewWorkflow)
	w.Get("/:id/export", handlers.ExportWorkflow)
	w.Post("/:id/clone", handlers.CloneWorkflow)
	w.Post("/import", handlers.ImportWorkflow)

	w.Get("/:id/versions", handlers.GetWorkflowVersions)
	w.Get("/:id/executions", handlers.GetWorkflowExecutions)

	w.Delete("/:id/nodes/:nodeId", handlers.DeleteWorkflowNode)
	w.Delete("/:id/connections/:connectionId", handlers.DeleteWorkflowConnection)

	t := app.Group("/templates")
	t.Get("/", handlers.GetTemplates)
	t.Post("/instantiate", handlers.CreateFromTemplate)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
