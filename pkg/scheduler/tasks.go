package scheduler

import (
	"time"

	"github.com/arnavshah/shift-solver-api/pkg/models"
)

// Requirements is the resolved staffing need of one shift
type Requirements struct {
	Roles          []models.RoleRequirement
	RequiredPeople int
	Rest           time.Duration
	Difficulty     float64
}

// Catalog resolves shifts to their template and segment
type Catalog struct {
	templates map[string]*models.TaskTemplate
	opts      Options
}

// NewCatalog indexes templates by id
func NewCatalog(templates []models.TaskTemplate, opts Options) *Catalog {
	c := &Catalog{
		templates: make(map[string]*models.TaskTemplate, len(templates)),
		opts:      opts.withDefaults(),
	}
	for i := range templates {
		c.templates[templates[i].ID] = &templates[i]
	}
	return c
}

// Segment returns the template segment a shift was generated from
func (c *Catalog) Segment(shift *models.Shift) (*models.Segment, bool) {
	tpl, ok := c.templates[shift.TaskID]
	if !ok {
		return nil, false
	}
	seg := tpl.Segment(shift.SegmentID)
	return seg, seg != nil
}

// Requirements resolves a shift's requirements, preferring the frozen snapshot
// over the owning segment. ok is false when neither is available.
func (c *Catalog) Requirements(shift *models.Shift) (Requirements, bool) {
	seg, hasSeg := c.Segment(shift)
	req := Requirements{Difficulty: c.opts.DefaultDifficulty}
	if hasSeg && seg.Difficulty > 0 {
		req.Difficulty = seg.Difficulty
	}
	switch {
	case shift.Requirements != nil:
		req.Roles = shift.Requirements.Roles
		req.RequiredPeople = shift.Requirements.RequiredPeople
		req.Rest = hours(shift.Requirements.MinRestHours)
	case hasSeg:
		req.Roles = seg.Roles
		req.RequiredPeople = seg.RequiredPeople
		req.Rest = hours(seg.MinRestHours)
	default:
		return req, false
	}
	return req, hasSeg
}

// Rest returns the rest period owed after a shift, zero when unknown
func (c *Catalog) Rest(shift *models.Shift) time.Duration {
	if shift.Requirements != nil {
		return hours(shift.Requirements.MinRestHours)
	}
	if seg, ok := c.Segment(shift); ok {
		return hours(seg.MinRestHours)
	}
	return 0
}

// Headcount returns the number of people a shift holds: the snapshot's
// headcount, else the segment's, else 1. A headcount of zero falls back to
// the sum of the role counts.
func (c *Catalog) Headcount(shift *models.Shift) int {
	if shift.Requirements != nil {
		if n := headcount(shift.Requirements.RequiredPeople, shift.Requirements.Roles); n > 0 {
			return n
		}
	}
	if seg, ok := c.Segment(shift); ok {
		if n := headcount(seg.RequiredPeople, seg.Roles); n > 0 {
			return n
		}
	}
	return 1
}

func headcount(required int, roles []models.RoleRequirement) int {
	if required > 0 {
		return required
	}
	n := 0
	for _, r := range roles {
		if r.Count > 0 {
			n += r.Count
		}
	}
	return n
}

// ScarcityIndex counts role holders across the whole roster
type ScarcityIndex map[string]int

// NewScarcityIndex builds the index once per run
func NewScarcityIndex(people []models.Person) ScarcityIndex {
	idx := make(ScarcityIndex)
	for i := range people {
		seen := make(map[string]bool, len(people[i].RoleIDs))
		for _, r := range people[i].RoleIDs {
			if seen[r] {
				continue
			}
			seen[r] = true
			idx[r]++
		}
	}
	return idx
}

// Holders returns how many people hold roleID
func (s ScarcityIndex) Holders(roleID string) int {
	return s[roleID]
}

type bucket struct {
	roleID   string
	required int
	filled   []string
}

func (b *bucket) open() int {
	return b.required - len(b.filled)
}

// algoTask is the solver's working copy of one shift
type algoTask struct {
	shift      *models.Shift
	original   []string
	assigned   []string
	rest       time.Duration
	duration   float64
	difficulty float64
	critical   bool
	capacity   int
	buckets    []*bucket
}

func (t *algoTask) has(personID string) bool {
	for _, id := range t.assigned {
		if id == personID {
			return true
		}
	}
	return false
}

func (t *algoTask) changed() bool {
	if len(t.assigned) != len(t.original) {
		return true
	}
	for i := range t.assigned {
		if t.assigned[i] != t.original[i] {
			return true
		}
	}
	return false
}

// normalizer turns the day's open shifts into solver tasks
type normalizer struct {
	catalog  *Catalog
	scarcity ScarcityIndex
	people   map[string]*models.Person
	opts     Options
}

// normalize returns the in-scope tasks for [dayStart, dayEnd) and the ids of
// shifts skipped because their template could not be resolved.
func (n *normalizer) normalize(shifts []models.Shift, dayStart, dayEnd time.Time, selected map[string]bool, reset bool) ([]*algoTask, []string) {
	var tasks []*algoTask
	var skipped []string
	for i := range shifts {
		sh := &shifts[i]
		if sh.IsLocked || sh.IsCancelled {
			continue
		}
		if sh.Start.Before(dayStart) || !sh.Start.Before(dayEnd) {
			continue
		}
		if len(selected) > 0 && !selected[sh.TaskID] {
			continue
		}
		req, ok := n.catalog.Requirements(sh)
		if !ok {
			skipped = append(skipped, sh.ID)
			continue
		}
		t := n.newTask(sh, req, reset)
		if t.openSlots() == 0 {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, skipped
}

func (n *normalizer) newTask(sh *models.Shift, req Requirements, reset bool) *algoTask {
	t := &algoTask{
		shift:      sh,
		original:   append([]string(nil), sh.AssignedPersonIDs...),
		rest:       req.Rest,
		duration:   sh.DurationHours(),
		difficulty: req.Difficulty,
		capacity:   n.catalog.Headcount(sh),
	}
	for _, r := range req.Roles {
		if r.Count <= 0 {
			continue
		}
		t.buckets = append(t.buckets, &bucket{roleID: r.RoleID, required: r.Count})
	}
	if len(t.buckets) == 0 && req.RequiredPeople > 0 {
		t.buckets = append(t.buckets, &bucket{required: req.RequiredPeople})
	}

	if !reset {
		for _, id := range sh.AssignedPersonIDs {
			t.assigned = append(t.assigned, id)
			p, ok := n.people[id]
			if !ok {
				continue
			}
			for _, b := range t.buckets {
				if b.open() > 0 && p.HasRole(b.roleID) {
					b.filled = append(b.filled, id)
					break
				}
			}
		}
	}

	t.critical = t.difficulty >= n.opts.CriticalDifficulty
	for _, b := range t.buckets {
		if b.roleID != "" && n.scarcity.Holders(b.roleID) <= n.opts.ScarceRoleMax {
			t.critical = true
		}
	}
	return t
}

// room is how many more people fit on the shift as a whole
func (t *algoTask) room() int {
	return t.capacity - len(t.assigned)
}

func (t *algoTask) openSlots() int {
	open := 0
	for _, b := range t.buckets {
		if o := b.open(); o > 0 {
			open += o
		}
	}
	return open
}
