// Package main provides the journey API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/hivecrm/journey/pkg/contacts"
	"github.com/hivecrm/journey/pkg/eventbus"
	"github.com/hivecrm/journey/pkg/persistence"
	"github.com/hivecrm/journey/pkg/registry"
	"github.com/hivecrm/journey/pkg/scheduler"
	"github.com/hivecrm/journey/pkg/services"
	"github.com/hivecrm/journey/pkg/web"
	"github.com/hivecrm/journey/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	facts       contacts.FactsProvider
	eventBus    eventbus.EventBus
	resumeStore scheduler.ResumeStore
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	reg *registry.Registry,
	facts contacts.FactsProvider,
	eventBus eventbus.EventBus,
	resumeStore scheduler.ResumeStore,
) *API {
	return &API{
		logger:      logger,
		persistence: store,
		registry:    reg,
		facts:       facts,
		eventBus:    eventBus,
		resumeStore: resumeStore,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	// Wait steps parked by API-run executions register wake-ups in the
	// shared resume store; the worker fleet's schedulers pick them up.
	resumeScheduler := scheduler.NewStoreScheduler(a.resumeStore)

	engine := workflow.NewEngine(a.logger, a.persistence, a.registry, a.facts,
		workflow.WithPublisher(a.eventBus),
		workflow.WithScheduler(resumeScheduler))

	journeyService := services.NewJourney(a.logger, a.persistence, engine,
		services.WithPublisher(a.eventBus),
		services.WithResumeCanceller(resumeScheduler))

	handlers := web.NewAPIHandlers(journeyService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Journey API")
	})

	handlers.RegisterRoutes(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
