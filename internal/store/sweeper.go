package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulseboard/backend/internal/models"
)

// ExpiredHandler is called for every session the sweeper deletes, so the
// caller can drop its identities and close its connections.
type ExpiredHandler func(sessionID uuid.UUID)

// Sweeper periodically purges sessions past their expiry timestamp,
// regardless of activity.
type Sweeper struct {
	estimation *Store[*models.EstimationSession]
	retro      *Store[*models.RetroSession]
	interval   time.Duration
	onExpired  ExpiredHandler
	logger     *zap.Logger
}

// NewSweeper creates a sweeper over both session registries.
func NewSweeper(est *Store[*models.EstimationSession], retro *Store[*models.RetroSession], interval time.Duration, onExpired ExpiredHandler, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		estimation: est,
		retro:      retro,
		interval:   interval,
		onExpired:  onExpired,
		logger:     logger,
	}
}

// Run sweeps on a ticker until the context is cancelled.
func (sw *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sw.SweepOnce(now)
		}
	}
}

// SweepOnce deletes everything expired as of now.
func (sw *Sweeper) SweepOnce(now time.Time) {
	expired := sw.estimation.Sweep(now)
	expired = append(expired, sw.retro.Sweep(now)...)
	for _, id := range expired {
		if sw.onExpired != nil {
			sw.onExpired(id)
		}
		sw.logger.Info("session expired", zap.String("session_id", id.String()))
	}
}
