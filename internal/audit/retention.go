package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartRetention prunes events older than maxAge once at start and then
// every interval until ctx is done.
func StartRetention(ctx context.Context, r *Recorder, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		prune(ctx, r, maxAge)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				prune(ctx, r, maxAge)
			}
		}
	}()
}

func prune(ctx context.Context, r *Recorder, maxAge time.Duration) {
	n, err := r.Prune(ctx, maxAge)
	if err != nil {
		r.log.Warn("audit retention failed", zap.Error(err))
		return
	}
	if n > 0 {
		r.log.Info("audit retention", zap.Int64("removed", n))
	}
}
