package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/hivecrm/journey/pkg/cmd"
	"github.com/hivecrm/journey/pkg/contacts"
	"github.com/hivecrm/journey/pkg/log"
	"github.com/hivecrm/journey/pkg/otelhelper"
)

func main() {
	command := &cli.Command{
		Name:                  "journey-worker",
		EnableShellCompletion: true,
		Usage:                 "Run journey executions driven by contact events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for persistence",
				Value:   "memory://",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "resume-store",
				Usage:   "Wait-step resume store (redis, memory)",
				Value:   "memory",
				Sources: cli.EnvVars("RESUME_STORE"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the resume store",
				Value:   "localhost:6379",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("journey-worker").With("worker_id", workerID)
			logger.InfoContext(ctx, "Initializing journey worker")

			tracerProvider, err := otelhelper.InitTracer(ctx, "journey-worker")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "journey-worker", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			resumeStore := cmd.NewResumeStore(logger, command.String("resume-store"), command.String("redis-addr"))
			defer func() {
				if err := resumeStore.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close resume store", "error", err)
				}
			}()

			contactStore := contacts.NewMemoryStore()
			registry := cmd.NewRegistry(logger, contactStore)

			worker := NewWorkerManager(workerID, persistence, eventBus, registry, contactStore, resumeStore, logger)

			return worker.Start(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
