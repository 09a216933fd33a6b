package ticker

import (
	"context"
	"log/slog"
	"time"
)

// Periodically runs task every interval until ctx is done. A failing task is
// logged and retried on the next tick; it does not stop the loop.
func Periodically(ctx context.Context, interval time.Duration, name string, task func(context.Context) error) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := task(ctx); err != nil {
				slog.Warn("periodic task failed", "task", name, "err", err)
			}
		}
	}
}
