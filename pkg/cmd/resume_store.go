package cmd

import (
	"log/slog"
	"os"

	"github.com/hivecrm/journey/pkg/scheduler"
)

// NewResumeStore builds the wait-step resume store shared by the API and
// worker processes. Redis keeps wake-ups visible across the fleet; memory
// only serves single-process setups.
func NewResumeStore(logger *slog.Logger, provider, redisAddr string) scheduler.ResumeStore {
	switch provider {
	case "redis":
		store, err := scheduler.NewRedisStore(map[string]string{
			"addr":     redisAddr,
			"password": os.Getenv("REDIS_PASSWORD"),
			"db":       os.Getenv("REDIS_DB"),
		})
		if err != nil {
			panic("failed to create redis resume store: " + err.Error())
		}

		return store
	default:
		logger.Info("Using in-memory resume store, wait steps will not survive a restart")

		return scheduler.NewMemoryStore()
	}
}
