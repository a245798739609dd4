package realtime

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Monitor detects retrospective connections that stopped heartbeating and
// force-closes them. Estimation sessions rely on transport-level presence
// alone, so the sweep only looks at retro clients.
type Monitor struct {
	hub      *Hub
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

// NewMonitor creates a heartbeat monitor; interval is how often to sweep,
// timeout how long a connection may stay silent.
func NewMonitor(hub *Hub, interval, timeout time.Duration, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{hub: hub, interval: interval, timeout: timeout, logger: logger}
}

// Run sweeps until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.hub.CloseStale(now.Add(-m.timeout)); n > 0 {
				m.logger.Info("heartbeat sweep closed stale connections", zap.Int("count", n))
			}
		}
	}
}
