package store

import (
	"context"
	"log/slog"
	"time"
)

const ttlWorkerInterval = 5 * time.Minute

// StartTTLWorker runs a background goroutine that periodically sweeps idle
// sessions out of the repository. For backends with native expiry (Redis)
// the sweep is a no-op.
func StartTTLWorker(ctx context.Context, repo Repository, ttl time.Duration) {
	ticker := time.NewTicker(ttlWorkerInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", ttlWorkerInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				if deleted, err := repo.CleanupExpired(ctx, ttl); err != nil {
					slog.Error("TTL worker sweep failed", "error", err)
				} else if deleted > 0 {
					slog.Info("TTL worker removed idle sessions", "count", deleted)
				}
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
