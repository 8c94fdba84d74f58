package gameserver

import (
	"context"
	"log/slog"
	"time"
)

// RunStatsLoop logs connection and scheduler counts every interval until ctx is done.
func (cm *ClientManager) RunStatsLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			slog.Info("registry stats",
				"connections", cm.Count(),
				"active_tasks", cm.TaskCount())
		}
	}
}
