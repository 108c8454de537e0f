package scheduler

import (
	"sort"
	"time"

	"github.com/arnavshah/shift-solver-api/internal/timeline"
	"github.com/arnavshah/shift-solver-api/pkg/models"
)

// Input is the snapshot one solve run reads. Shifts should cover the target
// day plus enough of the surrounding days to detect spillover and lookahead.
type Input struct {
	Date              time.Time
	People            []models.Person
	Templates         []models.TaskTemplate
	Shifts            []models.Shift
	Constraints       []models.SchedulingConstraint
	History           map[string]models.HistoryScore
	FutureAssignments []models.Shift
	// SelectedTaskIDs restricts the run to shifts of these tasks when non-empty.
	SelectedTaskIDs []string
	// ResetUnlocked drops the existing assignees of in-scope shifts before solving.
	ResetUnlocked bool
}

// algoUser is the solver's working copy of one person
type algoUser struct {
	person   *models.Person
	timeline *timeline.List
	load     float64
	shifts   int
	rules    []*models.SchedulingConstraint
}

// eligible applies the never_assign and always_assign rules to a task
func (u *algoUser) eligible(t *algoTask) bool {
	for _, c := range u.rules {
		if !c.ActiveDuring(t.shift.Start, t.shift.End) {
			continue
		}
		switch c.Type {
		case models.NeverAssign:
			if c.TaskID == t.shift.TaskID {
				return false
			}
		case models.AlwaysAssign:
			if c.TaskID != "" && c.TaskID != t.shift.TaskID {
				return false
			}
		}
	}
	return true
}

// Solver assigns people to the open shifts of one day
type Solver struct {
	opts Options
}

// NewSolver creates a new solver instance
func NewSolver(opts Options) *Solver {
	return &Solver{opts: opts.withDefaults()}
}

// Options returns the solver's effective tuning
func (s *Solver) Options() Options {
	return s.opts
}

// Solve runs the two-phase greedy assignment for in.Date. Critical shifts are
// processed before standard ones, each group in start order; within a shift
// role buckets are filled in declaration order from the least-loaded people
// who fit. Assignments are never revisited once made.
//
// Only shifts whose assignee list changed are returned. Unfilled buckets are
// reported in the diagnostics, not as errors.
func (s *Solver) Solve(in Input) (*models.SolveResult, error) {
	if err := ValidateInput(in); err != nil {
		return nil, err
	}
	dayStart, dayEnd := DayBounds(in.Date, s.opts.Location)
	catalog := NewCatalog(in.Templates, s.opts)

	people := make(map[string]*models.Person, len(in.People))
	for i := range in.People {
		people[in.People[i].ID] = &in.People[i]
	}

	// work on a copy so the caller's snapshot is left untouched
	shifts := make([]models.Shift, len(in.Shifts))
	copy(shifts, in.Shifts)

	n := &normalizer{
		catalog:  catalog,
		scarcity: NewScarcityIndex(in.People),
		people:   people,
		opts:     s.opts,
	}
	tasks, skipped := n.normalize(shifts, dayStart, dayEnd, toSet(in.SelectedTaskIDs), in.ResetUnlocked)

	ini := NewInitializer(catalog, dayStart, shifts, in.FutureAssignments, in.Constraints, s.opts)
	if in.ResetUnlocked {
		for _, t := range tasks {
			ini.Skip(t.shift.ID)
		}
	}
	users := s.buildUsers(in, ini)

	var critical, standard []*algoTask
	for _, t := range tasks {
		if t.critical {
			critical = append(critical, t)
		} else {
			standard = append(standard, t)
		}
	}
	sortByStart(critical)
	sortByStart(standard)

	result := &models.SolveResult{
		Date: dayStart.Format(models.DateLayout),
		Diagnostics: models.Diagnostics{
			Shortfalls:       []models.Shortfall{},
			CriticalShiftIDs: []string{},
			SkippedShiftIDs:  skipped,
		},
		Loads: make(map[string]models.PersonLoad, len(users)),
	}
	for _, t := range critical {
		result.Diagnostics.CriticalShiftIDs = append(result.Diagnostics.CriticalShiftIDs, t.shift.ID)
	}

	for _, phase := range [][]*algoTask{critical, standard} {
		for _, t := range phase {
			result.AssignedCount += s.assignTask(t, users, &result.Diagnostics)
		}
	}

	ordered := append(append([]*algoTask{}, critical...), standard...)
	sortByStart(ordered)
	result.Shifts = []models.Shift{}
	for _, t := range ordered {
		if !t.changed() {
			continue
		}
		out := *t.shift
		out.AssignedPersonIDs = append([]string{}, t.assigned...)
		result.Shifts = append(result.Shifts, out)
	}

	for _, u := range users {
		result.Loads[u.person.ID] = models.PersonLoad{LoadScore: u.load, ShiftCount: u.shifts}
	}
	result.FairnessScore = CalculateFairnessScore(result.Loads)
	return result, nil
}

func (s *Solver) buildUsers(in Input, ini *Initializer) []*algoUser {
	users := make([]*algoUser, 0, len(in.People))
	for i := range in.People {
		p := &in.People[i]
		u := &algoUser{
			person:   p,
			timeline: ini.Build(p),
			load:     in.History[p.ID].TotalLoadScore,
		}
		for k := range in.Constraints {
			c := &in.Constraints[k]
			if c.Type != models.TimeBlock && c.AppliesTo(p) {
				u.rules = append(u.rules, c)
			}
		}
		users = append(users, u)
	}
	return users
}

// assignTask fills each bucket of t and returns the number of people added
func (s *Solver) assignTask(t *algoTask, users []*algoUser, diag *models.Diagnostics) int {
	added := 0
	for _, b := range t.buckets {
		if b.open() <= 0 {
			continue
		}
		// never past the shift's headcount, even when earlier assignees hold no bucket
		need := max(min(b.open(), t.room()), 0)

		var candidates []*algoUser
		for _, u := range users {
			if !u.person.HasRole(b.roleID) || t.has(u.person.ID) || !u.eligible(t) {
				continue
			}
			if !u.timeline.Fits(t.shift.Start, t.shift.End, t.rest) {
				continue
			}
			candidates = append(candidates, u)
		}

		// least loaded first; person id keeps ties reproducible
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].load != candidates[j].load {
				return candidates[i].load < candidates[j].load
			}
			return candidates[i].person.ID < candidates[j].person.ID
		})
		if len(candidates) > need {
			candidates = candidates[:need]
		}

		for _, u := range candidates {
			if !u.timeline.Reserve(t.shift.Start, t.shift.End, t.rest, t.shift.TaskID) {
				continue
			}
			b.filled = append(b.filled, u.person.ID)
			t.assigned = append(t.assigned, u.person.ID)
			u.load += t.duration * t.difficulty
			u.shifts++
			added++
		}

		if b.open() > 0 {
			diag.Shortfalls = append(diag.Shortfalls, models.Shortfall{
				ShiftID:  t.shift.ID,
				TaskID:   t.shift.TaskID,
				RoleID:   b.roleID,
				Required: b.required,
				Filled:   len(b.filled),
			})
		}
	}
	return added
}

func sortByStart(tasks []*algoTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].shift, tasks[j].shift
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.ID < b.ID
	})
}

func toSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
