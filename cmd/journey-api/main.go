package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/hivecrm/journey/pkg/cmd"
	"github.com/hivecrm/journey/pkg/contacts"
	"github.com/hivecrm/journey/pkg/log"
	"github.com/hivecrm/journey/pkg/otelhelper"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "journey-api",
		Usage:                 "Manage enrollments and executions",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
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

			logger.InfoContext(ctx, "Initializing journey API")

			tracerProvider, err := otelhelper.InitTracer(ctx, "journey-api")
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

			eventBus := cmd.NewEventBus(command.String("event-bus"), "journey-api", logger)
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

			api := NewAPI(logger, persistence, registry, contactStore, eventBus, resumeStore)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
