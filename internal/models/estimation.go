package models

import (
	"time"

	"github.com/google/uuid"
)

// EstimationMode selects the scoring algorithm for an estimation session.
type EstimationMode string

const (
	ModeSingleMetric  EstimationMode = "single_metric"
	ModeWeightedMulti EstimationMode = "weighted_multi"
)

// StoryPointMetric is the metric name that receives Fibonacci rounding
// instead of a plain average.
const StoryPointMetric = "storyPoint"

// Metric is one votable dimension in an estimation session.
type Metric struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Weight        float64  `json:"weight"`
	AllowedValues []string `json:"allowed_values,omitempty"`
}

// EstimationParticipant is the session-side view of a participant in an
// estimation session. Vote history survives disconnects; only session
// expiry or explicit removal deletes it.
type EstimationParticipant struct {
	ID        int               `json:"id"`
	Nickname  string            `json:"nickname"`
	Avatar    string            `json:"avatar,omitempty"`
	Votes     map[string]string `json:"votes"`
	IsOwner   bool              `json:"is_owner"`
	Connected bool              `json:"connected"`
}

// EstimationSession is a story-point voting room. Score and MetricAverages
// are derived by the scoring engine, never set by clients.
type EstimationSession struct {
	ID             uuid.UUID                      `json:"id"`
	Title          string                         `json:"title"`
	Mode           EstimationMode                 `json:"mode"`
	Metrics        []Metric                       `json:"metrics"`
	Participants   map[int]*EstimationParticipant `json:"participants"`
	Score          string                         `json:"score"`
	MetricAverages map[string]float64             `json:"metric_averages,omitempty"`
	IsResultShown  bool                           `json:"is_result_shown"`
	CreatedAt      time.Time                      `json:"created_at"`
	ExpiresAt      time.Time                      `json:"expires_at"`
}

// Expiry implements store.Session.
func (s *EstimationSession) Expiry() time.Time { return s.ExpiresAt }

// HasMetric reports whether name is one of the session's configured metrics.
func (s *EstimationSession) HasMetric(name string) bool {
	for _, m := range s.Metrics {
		if m.Name == name {
			return true
		}
	}
	return false
}
