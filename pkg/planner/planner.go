// Package planner solves a date range one day at a time against a store,
// persisting each day before the next is solved.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arnavshah/shift-solver-api/pkg/logging"
	"github.com/arnavshah/shift-solver-api/pkg/metrics"
	"github.com/arnavshah/shift-solver-api/pkg/models"
	"github.com/arnavshah/shift-solver-api/pkg/scheduler"
)

// ErrInvalidRange is returned when the range ends before it starts
var ErrInvalidRange = errors.New("range end is before its start")

// Window is the span of data one day's solve needs
type Window struct {
	Day time.Time
	// ShiftsFrom and ShiftsTo bound the shifts that can affect the day: the
	// previous day for spillover through the lookahead horizon.
	ShiftsFrom time.Time
	ShiftsTo   time.Time
	// HistoryFrom is the start of the trailing history window; it ends at Day.
	HistoryFrom time.Time
}

// Snapshot is the data loaded for one window
type Snapshot struct {
	People      []models.Person
	Templates   []models.TaskTemplate
	Shifts      []models.Shift
	Constraints []models.SchedulingConstraint
	PastShifts  []models.Shift
}

// Store is the persistence the planner runs against
type Store interface {
	LoadWindow(ctx context.Context, w Window) (*Snapshot, error)
	SaveShifts(ctx context.Context, shifts []models.Shift) error
}

// RunOptions narrows a range run
type RunOptions struct {
	SelectedTaskIDs []string
	ResetUnlocked   bool
}

// Planner orchestrates multi-day runs
type Planner struct {
	store       Store
	solver      *scheduler.Solver
	history     *scheduler.HistoryAggregator
	historyDays int
	logger      *zap.Logger
	metrics     *metrics.Collector
}

// Option configures a Planner
type Option func(*Planner)

// WithLogger sets the planner's logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Planner) { p.logger = logging.OrNop(l) }
}

// WithMetrics sets the collector day outcomes are recorded on
func WithMetrics(m *metrics.Collector) Option {
	return func(p *Planner) { p.metrics = m }
}

// WithHistoryDays sets the trailing history window
func WithHistoryDays(days int) Option {
	return func(p *Planner) {
		if days > 0 {
			p.historyDays = days
		}
	}
}

// New creates a planner over store using solver
func New(store Store, solver *scheduler.Solver, opts ...Option) *Planner {
	p := &Planner{
		store:       store,
		solver:      solver,
		history:     scheduler.NewHistoryAggregator(solver.Options()),
		historyDays: scheduler.DefaultHistoryDays,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run solves every day in [from, to] in order. A failing day is recorded and
// the run moves on. Cancelling ctx stops the run between days; the results so
// far are returned with the context error.
func (p *Planner) Run(ctx context.Context, from, to time.Time, opts RunOptions) ([]models.DayResult, error) {
	loc := p.solver.Options().Location
	first, _ := scheduler.DayBounds(from, loc)
	last, _ := scheduler.DayBounds(to, loc)
	if last.Before(first) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, first.Format(models.DateLayout), last.Format(models.DateLayout))
	}

	var results []models.DayResult
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result := p.runDay(ctx, day, opts)
		p.metrics.RecordDay(result.Status)
		results = append(results, result)
	}
	return results, nil
}

// Summarize counts the outcomes of a run
func Summarize(days []models.DayResult) models.RangeResponse {
	resp := models.RangeResponse{Days: days}
	if resp.Days == nil {
		resp.Days = []models.DayResult{}
	}
	for _, d := range days {
		if d.Status == models.DaySucceeded {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	return resp
}

// WindowFor returns the data window needed to solve day
func (p *Planner) WindowFor(day time.Time) Window {
	opts := p.solver.Options()
	start, end := scheduler.DayBounds(day, opts.Location)
	return Window{
		Day:         start,
		ShiftsFrom:  start.AddDate(0, 0, -1),
		ShiftsTo:    end.Add(opts.Lookahead),
		HistoryFrom: start.AddDate(0, 0, -p.historyDays),
	}
}

func (p *Planner) runDay(ctx context.Context, day time.Time, opts RunOptions) models.DayResult {
	runID := uuid.NewString()
	date := day.Format(models.DateLayout)
	log := p.logger.With(zap.String("run_id", runID), zap.String("date", date))
	fail := func(stage string, err error) models.DayResult {
		log.Error("day failed", zap.String("stage", stage), zap.Error(err))
		if stage == "solve" {
			p.metrics.RecordSolveError()
		}
		return models.DayResult{Date: date, Status: models.DayFailed, RunID: runID, Error: fmt.Sprintf("%s: %v", stage, err)}
	}

	w := p.WindowFor(day)
	snap, err := p.store.LoadWindow(ctx, w)
	if err != nil {
		return fail("load", err)
	}

	generated, err := p.missingShifts(snap, day)
	if err != nil {
		return fail("generate", err)
	}
	shifts := append(append([]models.Shift{}, snap.Shifts...), generated...)

	personIDs := make([]string, 0, len(snap.People))
	for _, person := range snap.People {
		personIDs = append(personIDs, person.ID)
	}
	history := p.history.Aggregate(snap.PastShifts, snap.Templates, personIDs, w.Day, p.historyDays)

	started := time.Now()
	res, err := p.solver.Solve(scheduler.Input{
		Date:            day,
		People:          snap.People,
		Templates:       snap.Templates,
		Shifts:          shifts,
		Constraints:     snap.Constraints,
		History:         history,
		SelectedTaskIDs: opts.SelectedTaskIDs,
		ResetUnlocked:   opts.ResetUnlocked,
	})
	if err != nil {
		return fail("solve", err)
	}
	res.RunID = runID
	p.metrics.RecordSolve(res, time.Since(started))

	if err := p.store.SaveShifts(ctx, mergeByID(generated, res.Shifts)); err != nil {
		return fail("save", err)
	}

	for _, s := range res.Diagnostics.Shortfalls {
		log.Warn("shortfall",
			zap.String("shift_id", s.ShiftID),
			zap.String("task_id", s.TaskID),
			zap.String("role_id", s.RoleID),
			zap.Int("required", s.Required),
			zap.Int("filled", s.Filled),
		)
	}
	log.Info("day solved",
		zap.Int("generated", len(generated)),
		zap.Int("assigned", res.AssignedCount),
		zap.Int("shortfalls", len(res.Diagnostics.Shortfalls)),
		zap.Int("critical", len(res.Diagnostics.CriticalShiftIDs)),
		zap.Float64("fairness", res.FairnessScore),
	)
	return models.DayResult{
		Date:          date,
		Status:        models.DaySucceeded,
		AssignedCount: res.AssignedCount,
		Shortfalls:    len(res.Diagnostics.Shortfalls),
		RunID:         runID,
	}
}

// missingShifts generates the day's shifts that are not stored yet
func (p *Planner) missingShifts(snap *Snapshot, day time.Time) ([]models.Shift, error) {
	all, err := scheduler.GenerateShifts(snap.Templates, day, p.solver.Options().Location)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(snap.Shifts))
	for _, sh := range snap.Shifts {
		existing[sh.ID] = true
	}
	var missing []models.Shift
	for _, sh := range all {
		if !existing[sh.ID] {
			missing = append(missing, sh)
		}
	}
	return missing, nil
}

// mergeByID returns base with entries replaced by updates of the same id,
// followed by the updates not in base.
func mergeByID(base, updates []models.Shift) []models.Shift {
	idx := make(map[string]int, len(base))
	out := append([]models.Shift{}, base...)
	for i, sh := range out {
		idx[sh.ID] = i
	}
	for _, sh := range updates {
		if i, ok := idx[sh.ID]; ok {
			out[i] = sh
			continue
		}
		out = append(out, sh)
	}
	return out
}
