package bmsguard

import (
	"context"
	"time"
)

// runHeartbeat re-sends the tracked relay state every interval so the
// relay controller's own safety timeout does not trip while we are alive.
func runHeartbeat(ctx context.Context, sup *Supervisor, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := sup.Heartbeat(); err != nil {
			return err
		}
	}
}
