package smsconfig

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RefreshWorker periodically reloads the configuration so that rows written
// by other replicas, or directly in the database, take effect.
type RefreshWorker struct {
	service  *Service
	interval time.Duration
}

func NewRefreshWorker(service *Service, interval time.Duration) *RefreshWorker {
	return &RefreshWorker{
		service:  service,
		interval: interval,
	}
}

// Start blocks until ctx is cancelled. A non-positive interval disables it.
func (w *RefreshWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		slog.Info("Configuration refresh disabled")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	slog.Info("Starting configuration refresh worker", "interval", w.interval)

	for {
		select {
		case <-ticker.C:
			w.refresh(ctx)
		case <-ctx.Done():
			slog.Info("Configuration refresh worker stopped")
			return
		}
	}
}

func (w *RefreshWorker) refresh(ctx context.Context) {
	cfg, err := w.service.Refresh(ctx)
	switch {
	case errors.Is(err, ErrNoConfiguration):
		slog.Warn("No SMS configuration to refresh")
	case err != nil:
		slog.Error("Error refreshing configuration", "error", err)
	default:
		slog.Debug("Configuration refreshed", "id", cfg.ID)
	}
}
