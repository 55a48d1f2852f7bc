package session

import (
	"time"

	"github.com/go-co-op/gocron"

	"mediscan-backend/internal/config"
	"mediscan-backend/internal/logger"
)

// StartJanitor schedules periodic cleanup of idle sessions and their
// on-disk artifacts. The returned scheduler should be stopped on
// shutdown.
func StartJanitor(store *Store, cfg *config.Config) *gocron.Scheduler {
	ttl := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	interval := time.Duration(cfg.CleanupIntervalMin) * time.Minute

	scheduler := gocron.NewScheduler(time.UTC)
	if _, err := scheduler.Every(interval).Do(func() {
		if removed := store.Cleanup(ttl); removed > 0 {
			logger.Info("Session cleanup pass", "removed", removed, "remaining", store.Count())
		}
	}); err != nil {
		logger.Error("Failed to schedule session cleanup", "error", err)
	}
	scheduler.StartAsync()

	logger.Info("Session janitor started", "ttl_minutes", cfg.SessionTTLMinutes, "interval_minutes", cfg.CleanupIntervalMin)
	return scheduler
}
