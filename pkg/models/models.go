package models

import (
	"slices"
	"time"
)

// DateLayout is the calendar-date key format used for availability maps and day results
const DateLayout = "2006-01-02"

// Availability is a person's availability record for one calendar date.
// Hours are offsets from the start of that day; a nil hour means no bound.
type Availability struct {
	IsAvailable bool `json:"is_available"`
	StartHour   *int `json:"start_hour,omitempty" validate:"omitempty,gte=0,lte=24"`
	EndHour     *int `json:"end_hour,omitempty" validate:"omitempty,gte=0,lte=24"`
}

// Person represents someone who can be assigned to shifts
type Person struct {
	ID           string                  `json:"id" validate:"required"`
	Name         string                  `json:"name"`
	RoleIDs      []string                `json:"role_ids"`
	TeamID       string                  `json:"team_id,omitempty"`
	Availability map[string]Availability `json:"availability,omitempty" validate:"dive"`
}

// HasRole reports whether the person holds roleID. The empty role matches everyone.
func (p *Person) HasRole(roleID string) bool {
	if roleID == "" {
		return true
	}
	return slices.Contains(p.RoleIDs, roleID)
}

// RecurrenceKind selects how a segment repeats
type RecurrenceKind string

const (
	RecurDaily  RecurrenceKind = "daily"
	RecurWeekly RecurrenceKind = "weekly"
	RecurOnDate RecurrenceKind = "date"
)

// Recurrence is the rule deciding on which days a segment produces a shift
type Recurrence struct {
	Kind     RecurrenceKind `json:"kind" validate:"omitempty,oneof=daily weekly date"`
	Weekdays []time.Weekday `json:"weekdays,omitempty"`
	Date     string         `json:"date,omitempty"`
}

// Matches reports whether the rule fires on day. An empty kind repeats daily.
func (r Recurrence) Matches(day time.Time) bool {
	switch r.Kind {
	case RecurDaily, "":
		return true
	case RecurWeekly:
		return slices.Contains(r.Weekdays, day.Weekday())
	case RecurOnDate:
		return r.Date == day.Format(DateLayout)
	}
	return false
}

// RoleRequirement is one bucket of a role composition: how many holders of RoleID are needed
type RoleRequirement struct {
	RoleID string `json:"role_id"`
	Count  int    `json:"count" validate:"gte=0"`
}

// Segment is a recurring time window inside a task template
type Segment struct {
	ID             string            `json:"id" validate:"required"`
	Name           string            `json:"name,omitempty"`
	Recurrence     Recurrence        `json:"recurrence"`
	StartTime      string            `json:"start_time" validate:"required,datetime=15:04"`
	DurationHours  float64           `json:"duration_hours" validate:"gt=0"`
	RequiredPeople int               `json:"required_people" validate:"gte=0"`
	Roles          []RoleRequirement `json:"roles,omitempty" validate:"dive"`
	MinRestHours   float64           `json:"min_rest_hours" validate:"gte=0"`
	Difficulty     float64           `json:"difficulty" validate:"gte=0"`
}

// TaskTemplate is a named recurring work definition
type TaskTemplate struct {
	ID       string    `json:"id" validate:"required"`
	Name     string    `json:"name"`
	Segments []Segment `json:"segments" validate:"dive"`
}

// Segment returns the segment with the given id. When id is empty and the
// template has exactly one segment, that segment is returned.
func (t *TaskTemplate) Segment(id string) *Segment {
	if id == "" && len(t.Segments) == 1 {
		return &t.Segments[0]
	}
	for i := range t.Segments {
		if t.Segments[i].ID == id {
			return &t.Segments[i]
		}
	}
	return nil
}

// RequirementsSnapshot is the copy of a segment's requirements frozen when a shift is generated
type RequirementsSnapshot struct {
	Roles          []RoleRequirement `json:"roles,omitempty" validate:"dive"`
	RequiredPeople int               `json:"required_people" validate:"gte=0"`
	MinRestHours   float64           `json:"min_rest_hours" validate:"gte=0"`
}

// Shift is one dated instance of a segment
type Shift struct {
	ID                string                `json:"id" validate:"required"`
	TaskID            string                `json:"task_id" validate:"required"`
	SegmentID         string                `json:"segment_id,omitempty"`
	Start             time.Time             `json:"start"`
	End               time.Time             `json:"end"`
	AssignedPersonIDs []string              `json:"assigned_person_ids"`
	IsLocked          bool                  `json:"is_locked"`
	IsCancelled       bool                  `json:"is_cancelled"`
	Requirements      *RequirementsSnapshot `json:"requirements,omitempty"`
}

// DurationHours returns the length of the shift window in hours
func (s *Shift) DurationHours() float64 {
	return s.End.Sub(s.Start).Hours()
}

// HasAssignee reports whether personID is already on the shift
func (s *Shift) HasAssignee(personID string) bool {
	return slices.Contains(s.AssignedPersonIDs, personID)
}

// ConstraintType names the behaviour of a scheduling constraint
type ConstraintType string

const (
	NeverAssign  ConstraintType = "never_assign"
	TimeBlock    ConstraintType = "time_block"
	AlwaysAssign ConstraintType = "always_assign"
)

// SchedulingConstraint binds people to an exclusion or inclusion rule.
// At least one of PersonID, TeamID or RoleID scopes who it applies to.
type SchedulingConstraint struct {
	ID       string         `json:"id"`
	Type     ConstraintType `json:"type" validate:"required,oneof=never_assign time_block always_assign"`
	PersonID string         `json:"person_id,omitempty"`
	TeamID   string         `json:"team_id,omitempty"`
	RoleID   string         `json:"role_id,omitempty"`
	TaskID   string         `json:"task_id,omitempty"`
	Start    *time.Time     `json:"start,omitempty"`
	End      *time.Time     `json:"end,omitempty"`
}

// AppliesTo reports whether the constraint's scope covers p
func (c *SchedulingConstraint) AppliesTo(p *Person) bool {
	if c.PersonID == "" && c.TeamID == "" && c.RoleID == "" {
		return false
	}
	if c.PersonID != "" && c.PersonID != p.ID {
		return false
	}
	if c.TeamID != "" && c.TeamID != p.TeamID {
		return false
	}
	if c.RoleID != "" && !p.HasRole(c.RoleID) {
		return false
	}
	return true
}

// ActiveDuring reports whether the constraint's window intersects [start, end).
// An open bound is unbounded on that side.
func (c *SchedulingConstraint) ActiveDuring(start, end time.Time) bool {
	if c.Start != nil && !c.Start.Before(end) {
		return false
	}
	if c.End != nil && !c.End.After(start) {
		return false
	}
	return true
}

// HistoryScore is a person's workload over the trailing history window
type HistoryScore struct {
	TotalLoadScore     float64 `json:"total_load_score"`
	ShiftsCount        int     `json:"shifts_count"`
	CriticalShiftCount int     `json:"critical_shift_count"`
}

// Shortfall records a role bucket the solver could not fill
type Shortfall struct {
	ShiftID  string `json:"shift_id"`
	TaskID   string `json:"task_id"`
	RoleID   string `json:"role_id"`
	Required int    `json:"required"`
	Filled   int    `json:"filled"`
}

// Diagnostics collects soft findings from one solve run
type Diagnostics struct {
	Shortfalls       []Shortfall `json:"shortfalls"`
	CriticalShiftIDs []string    `json:"critical_shift_ids"`
	SkippedShiftIDs  []string    `json:"skipped_shift_ids,omitempty"`
}

// PersonLoad is a person's load at the end of a run
type PersonLoad struct {
	LoadScore  float64 `json:"load_score"`
	ShiftCount int     `json:"shift_count"`
}

// SolveResult is the outcome of solving one day
type SolveResult struct {
	RunID         string                `json:"run_id,omitempty"`
	Date          string                `json:"date"`
	Shifts        []Shift               `json:"shifts"`
	AssignedCount int                   `json:"assigned_count"`
	Diagnostics   Diagnostics           `json:"diagnostics"`
	Loads         map[string]PersonLoad `json:"loads"`
	FairnessScore float64               `json:"fairness_score"`
}

// DayStatus is the outcome of one day in a multi-day run
type DayStatus string

const (
	DaySucceeded DayStatus = "success"
	DayFailed    DayStatus = "failed"
)

// DayResult is the per-day record returned by a multi-day run
type DayResult struct {
	Date          string    `json:"date"`
	Status        DayStatus `json:"status"`
	AssignedCount int       `json:"assigned_count"`
	Shortfalls    int       `json:"shortfalls"`
	RunID         string    `json:"run_id,omitempty"`
	Error         string    `json:"error,omitempty"`
}
