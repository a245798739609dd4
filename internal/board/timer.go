package board

import (
	"time"

	"github.com/pulseboard/backend/internal/models"
)

// RemainingTime derives the live countdown value from the stored timer
// state. A running timer counts down from StartedAt by wall clock; a paused
// one is whatever was stored. Never negative.
func RemainingTime(now time.Time, t models.Timer) int {
	if !t.IsRunning {
		if t.TimeLeft < 0 {
			return 0
		}
		return t.TimeLeft
	}
	elapsed := int(now.Sub(t.StartedAt) / time.Second)
	left := t.TimeLeft - elapsed
	if left < 0 {
		return 0
	}
	return left
}
