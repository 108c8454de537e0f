package scheduler

import (
	"time"

	"github.com/arnavshah/shift-solver-api/pkg/models"
)

// HistoryAggregator computes the fairness baseline from past shifts
type HistoryAggregator struct {
	opts Options
}

// NewHistoryAggregator creates an aggregator using opts for difficulty defaults
// and the critical threshold
func NewHistoryAggregator(opts Options) *HistoryAggregator {
	return &HistoryAggregator{opts: opts.withDefaults()}
}

// AggregateHistory sums the workload of every person in personIDs over the
// windowDays days ending at end, using the default options.
func AggregateHistory(past []models.Shift, templates []models.TaskTemplate, personIDs []string, end time.Time, windowDays int) map[string]models.HistoryScore {
	return NewHistoryAggregator(DefaultOptions()).Aggregate(past, templates, personIDs, end, windowDays)
}

// Aggregate returns, per person, the duration-times-difficulty load of the
// shifts they worked that started inside [end-windowDays, end). Every listed
// person gets an entry; an empty personIDs aggregates everyone seen.
// Cancelled shifts and shifts with an unknown template are ignored.
func (a *HistoryAggregator) Aggregate(past []models.Shift, templates []models.TaskTemplate, personIDs []string, end time.Time, windowDays int) map[string]models.HistoryScore {
	if windowDays <= 0 {
		windowDays = DefaultHistoryDays
	}
	from := end.AddDate(0, 0, -windowDays)
	catalog := NewCatalog(templates, a.opts)

	scores := make(map[string]models.HistoryScore, len(personIDs))
	for _, id := range personIDs {
		scores[id] = models.HistoryScore{}
	}
	restrict := len(personIDs) > 0

	for i := range past {
		sh := &past[i]
		if sh.IsCancelled || sh.Start.Before(from) || !sh.Start.Before(end) {
			continue
		}
		seg, ok := catalog.Segment(sh)
		if !ok {
			continue
		}
		difficulty := seg.Difficulty
		if difficulty <= 0 {
			difficulty = a.opts.DefaultDifficulty
		}
		load := sh.DurationHours() * difficulty

		for _, pid := range sh.AssignedPersonIDs {
			score, known := scores[pid]
			if restrict && !known {
				continue
			}
			score.TotalLoadScore += load
			score.ShiftsCount++
			if difficulty >= a.opts.CriticalDifficulty {
				score.CriticalShiftCount++
			}
			scores[pid] = score
		}
	}
	return scores
}
