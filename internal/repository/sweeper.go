package repository

import (
	"context"
	"log/slog"
	"time"
)

type sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// RunSweeper - periodically removes expired rooms until ctx is done.
func RunSweeper(ctx context.Context, logger *slog.Logger, store sweeper, interval time.Duration) {
	log := logger.With("method", "RunSweeper")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.Sweep(ctx)
			if err != nil {
				log.Warn("failed to sweep expired rooms", "error", err)
				continue
			}

			if removed > 0 {
				log.Info("expired rooms removed", "count", removed)
			}
		}
	}
}
