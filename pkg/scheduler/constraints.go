package scheduler

import (
	"time"

	"github.com/arnavshah/shift-solver-api/internal/timeline"
	"github.com/arnavshah/shift-solver-api/pkg/models"
)

// Initializer builds each person's starting timeline for one target day.
// Blocks are only ever added; later sources never remove earlier ones.
type Initializer struct {
	catalog  *Catalog
	opts     Options
	dayStart time.Time
	dayEnd   time.Time
	byPerson map[string][]*models.Shift
	blocks   []models.SchedulingConstraint
	skip     map[string]bool

	// Availability, Commitments and TimeBlocks select which sources are applied.
	Availability bool
	Commitments  bool
	TimeBlocks   bool
}

// NewInitializer indexes the committed shifts (current and lookahead) by assignee.
// Shifts listed in both slices are counted once.
func NewInitializer(catalog *Catalog, day time.Time, shifts, future []models.Shift, constraints []models.SchedulingConstraint, opts Options) *Initializer {
	opts = opts.withDefaults()
	start, end := DayBounds(day, opts.Location)
	ini := &Initializer{
		catalog:      catalog,
		opts:         opts,
		dayStart:     start,
		dayEnd:       end,
		byPerson:     make(map[string][]*models.Shift),
		skip:         make(map[string]bool),
		Availability: true,
		Commitments:  true,
		TimeBlocks:   true,
	}
	seen := make(map[string]bool, len(shifts)+len(future))
	index := func(list []models.Shift) {
		for i := range list {
			sh := &list[i]
			if sh.IsCancelled || seen[sh.ID] {
				continue
			}
			seen[sh.ID] = true
			for _, pid := range sh.AssignedPersonIDs {
				ini.byPerson[pid] = append(ini.byPerson[pid], sh)
			}
		}
	}
	index(shifts)
	index(future)
	for _, c := range constraints {
		if c.Type == models.TimeBlock && c.Start != nil && c.End != nil {
			ini.blocks = append(ini.blocks, c)
		}
	}
	return ini
}

// Skip excludes a shift's existing assignments from the commitments applied
func (i *Initializer) Skip(shiftID string) {
	i.skip[shiftID] = true
}

// Build returns the starting timeline for p
func (i *Initializer) Build(p *models.Person) *timeline.List {
	tl := timeline.New()
	if i.Availability {
		i.applyAvailability(tl, p)
	}
	if i.Commitments {
		i.applyCommitments(tl, p)
	}
	if i.TimeBlocks {
		i.applyTimeBlocks(tl, p)
	}
	return tl
}

func (i *Initializer) applyAvailability(tl *timeline.List, p *models.Person) {
	rec, ok := p.Availability[i.dayStart.Format(models.DateLayout)]
	if !ok {
		return
	}
	if !rec.IsAvailable {
		tl.Insert(timeline.Segment{Start: i.dayStart, End: i.dayEnd, Kind: timeline.External})
		return
	}
	if rec.StartHour != nil {
		arrival := clockOn(i.dayStart, *rec.StartHour, 0)
		tl.Insert(timeline.Segment{Start: i.dayStart, End: arrival, Kind: timeline.External})
	}
	if rec.EndHour != nil {
		departure := clockOn(i.dayStart, *rec.EndHour, 0)
		tl.Insert(timeline.Segment{Start: departure, End: i.dayEnd, Kind: timeline.External})
	}
}

func (i *Initializer) applyCommitments(tl *timeline.List, p *models.Person) {
	horizon := i.dayEnd.Add(i.opts.Lookahead)
	for _, sh := range i.byPerson[p.ID] {
		if i.skip[sh.ID] {
			continue
		}
		rest := i.catalog.Rest(sh)
		switch {
		case sh.Start.Before(i.dayStart):
			// spillover from an earlier day, including rest that runs past midnight
			if !sh.End.Add(rest).After(i.dayStart) && sh.End.Before(i.dayStart) {
				continue
			}
			tl.Insert(timeline.Segment{Start: i.dayStart, End: sh.End, Kind: timeline.Task, TaskID: sh.TaskID})
			tl.Insert(timeline.Segment{Start: sh.End, End: sh.End.Add(rest), Kind: timeline.Rest, TaskID: sh.TaskID})
		case sh.Start.Before(i.dayEnd):
			tl.Insert(timeline.Segment{Start: sh.Start, End: sh.End, Kind: timeline.Task, TaskID: sh.TaskID})
			tl.Insert(timeline.Segment{Start: sh.End, End: sh.End.Add(rest), Kind: timeline.Rest, TaskID: sh.TaskID})
		case sh.Start.Before(horizon):
			tl.Insert(timeline.Segment{Start: sh.Start, End: sh.End, Kind: timeline.External, TaskID: sh.TaskID})
			tl.Insert(timeline.Segment{Start: sh.End, End: sh.End.Add(rest), Kind: timeline.External, TaskID: sh.TaskID})
		}
	}
}

func (i *Initializer) applyTimeBlocks(tl *timeline.List, p *models.Person) {
	horizon := i.dayEnd.Add(i.opts.Lookahead)
	for k := range i.blocks {
		c := &i.blocks[k]
		if !c.AppliesTo(p) || !timeline.Overlap(*c.Start, *c.End, i.dayStart, horizon) {
			continue
		}
		tl.Insert(timeline.Segment{Start: *c.Start, End: *c.End, Kind: timeline.External})
	}
}
