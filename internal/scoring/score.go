// Package scoring folds participant votes into an estimation session score.
// All functions mutate only the session they are handed and perform no I/O,
// so callers decide locking and broadcast.
package scoring

import (
	"fmt"
	"math"
	"strconv"

	"github.com/pulseboard/backend/internal/models"
)

// RecordVote replaces the participant's votes wholesale (not merged) and
// recomputes the session score. Vote keys must name configured metrics.
func RecordVote(s *models.EstimationSession, participantID int, votes map[string]string) error {
	p, ok := s.Participants[participantID]
	if !ok {
		return models.ErrCredentials("unknown participant")
	}
	for name := range votes {
		if !s.HasMetric(name) {
			return models.ErrValidation("unknown metric: " + name)
		}
	}
	if votes == nil {
		votes = map[string]string{}
	}
	p.Votes = votes
	Recompute(s)
	return nil
}

// ShowResults marks results visible. Idempotent; resets nothing.
func ShowResults(s *models.EstimationSession) {
	s.IsResultShown = true
}

// ResetVotes clears every participant's votes along with the derived score
// and hides results again.
func ResetVotes(s *models.EstimationSession) {
	for _, p := range s.Participants {
		p.Votes = map[string]string{}
	}
	s.Score = ""
	s.MetricAverages = nil
	s.IsResultShown = false
}

// Recompute derives Score (and, in weighted mode, MetricAverages) from the
// current vote map.
func Recompute(s *models.EstimationSession) {
	switch s.Mode {
	case models.ModeWeightedMulti:
		recomputeWeighted(s)
	default:
		recomputeSingle(s)
	}
}

// recomputeSingle averages the numeric storyPoint votes and snaps the mean
// to the nearest Fibonacci number. Non-numeric tokens such as "?" are
// excluded from the mean, not counted as zero.
func recomputeSingle(s *models.EstimationSession) {
	var sum float64
	var n int
	for _, p := range s.Participants {
		v, voted := p.Votes[models.StoryPointMetric]
		if !voted {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		sum += f
		n++
	}
	if n == 0 {
		s.Score = "0.00"
		return
	}
	s.Score = fmt.Sprintf("%.2f", float64(NearestFibonacci(sum/float64(n))))
}

// recomputeWeighted implements the multi-metric scale: every non-storyPoint
// metric contributes its average over the participants who actually cast a
// numeric vote and are still connected; the averaged averages are mapped
// from the 1..5 range onto a score centered at 3 -> 50.
func recomputeWeighted(s *models.EstimationSession) {
	participantCount := len(s.Participants)
	averages := make(map[string]float64, len(s.Metrics))

	var metricSum float64
	var metricCount int
	for _, m := range s.Metrics {
		if m.Name == models.StoryPointMetric {
			// Story points keep Fibonacci semantics in weighted mode too.
			averages[m.Name] = storyPointFib(s)
			continue
		}
		var total float64
		missing := 0
		for _, p := range s.Participants {
			v, voted := p.Votes[m.Name]
			if !voted || !p.Connected {
				missing++
				continue
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				missing++
				continue
			}
			total += f
		}
		avg := 0.0
		if divisor := participantCount - missing; divisor > 0 {
			avg = total / float64(divisor)
		}
		averages[m.Name] = round2(avg)
		metricSum += avg
		metricCount++
	}

	s.MetricAverages = averages
	if metricCount == 0 {
		s.Score = "0.00"
		return
	}
	s.Score = fmt.Sprintf("%.2f", metricSum/float64(metricCount)*25-25)
}

func storyPointFib(s *models.EstimationSession) float64 {
	var sum float64
	var n int
	for _, p := range s.Participants {
		v, voted := p.Votes[models.StoryPointMetric]
		if !voted {
			continue
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			sum += f
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(NearestFibonacci(sum / float64(n)))
}

// NearestFibonacci walks the sequence 1,1,2,3,5,... until it exceeds x and
// returns whichever neighbor is closer. Ties favor the lower value (strict
// comparison). Non-positive input returns 0.
func NearestFibonacci(x float64) int {
	if x <= 0 {
		return 0
	}
	prev, cur := 1, 1
	for float64(cur) < x {
		prev, cur = cur, prev+cur
	}
	if math.Abs(x-float64(cur)) < math.Abs(x-float64(prev)) {
		return cur
	}
	return prev
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
