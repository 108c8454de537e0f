package scheduler

import (
	"errors"
	"fmt"

	"github.com/arnavshah/shift-solver-api/internal/timeline"
	"github.com/arnavshah/shift-solver-api/pkg/models"
)

// RejectionReason names the rule an interactive assignment broke
type RejectionReason string

const (
	ReasonShiftFull       RejectionReason = "shift-full"
	ReasonNeverAssign     RejectionReason = "never-assign-violation"
	ReasonTimeBlock       RejectionReason = "time-block-violation"
	ReasonExclusivity     RejectionReason = "exclusivity-violation"
	ReasonAlreadyAssigned RejectionReason = "already-assigned"
	ReasonRest            RejectionReason = "rest-violation"
	ReasonUnavailable     RejectionReason = "availability-violation"
)

// Rejection is returned by TryAssign when a rule refuses the assignment
type Rejection struct {
	Reason     RejectionReason
	ShiftID    string
	PersonID   string
	Constraint string
}

func (r *Rejection) Error() string {
	if r.Constraint != "" {
		return fmt.Sprintf("assign %s to %s: %s (constraint %s)", r.PersonID, r.ShiftID, r.Reason, r.Constraint)
	}
	return fmt.Sprintf("assign %s to %s: %s", r.PersonID, r.ShiftID, r.Reason)
}

// AsRejection extracts a *Rejection from err
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// ManualPolicy selects which batch-solver checks the interactive validator
// also applies. The zero value checks only capacity and constraints.
type ManualPolicy struct {
	EnforceRest         bool `yaml:"enforce_rest" json:"enforce_rest"`
	EnforceAvailability bool `yaml:"enforce_availability" json:"enforce_availability"`
}

// Validator checks single interactive assignments
type Validator struct {
	catalog *Catalog
	policy  ManualPolicy
	opts    Options
}

// NewValidator creates a validator over the given templates
func NewValidator(templates []models.TaskTemplate, policy ManualPolicy, opts Options) *Validator {
	opts = opts.withDefaults()
	return &Validator{
		catalog: NewCatalog(templates, opts),
		policy:  policy,
		opts:    opts,
	}
}

// Policy returns the validator's policy
func (v *Validator) Policy() ManualPolicy {
	return v.policy
}

// TryAssign checks whether person may be added to shift and returns the shift
// with the person appended. surrounding is only consulted when the policy
// enforces rest or availability; it should hold the person's other shifts
// around the shift's day. On rejection the returned error is a *Rejection and
// the shift is returned unchanged.
func (v *Validator) TryAssign(shift models.Shift, person models.Person, constraints []models.SchedulingConstraint, surrounding ...models.Shift) (models.Shift, error) {
	reject := func(reason RejectionReason, constraintID string) (models.Shift, error) {
		return shift, &Rejection{Reason: reason, ShiftID: shift.ID, PersonID: person.ID, Constraint: constraintID}
	}

	if len(shift.AssignedPersonIDs) >= v.catalog.Headcount(&shift) {
		return reject(ReasonShiftFull, "")
	}

	for i := range constraints {
		c := &constraints[i]
		if c.Type == models.NeverAssign && c.TaskID == shift.TaskID && c.AppliesTo(&person) && c.ActiveDuring(shift.Start, shift.End) {
			return reject(ReasonNeverAssign, c.ID)
		}
	}
	for i := range constraints {
		c := &constraints[i]
		if c.Type != models.TimeBlock || c.Start == nil || c.End == nil || !c.AppliesTo(&person) {
			continue
		}
		if timeline.Overlap(*c.Start, *c.End, shift.Start, shift.End) {
			return reject(ReasonTimeBlock, c.ID)
		}
	}
	for i := range constraints {
		c := &constraints[i]
		if c.Type == models.AlwaysAssign && c.TaskID != "" && c.TaskID != shift.TaskID && c.AppliesTo(&person) && c.ActiveDuring(shift.Start, shift.End) {
			return reject(ReasonExclusivity, c.ID)
		}
	}

	if shift.HasAssignee(person.ID) {
		return reject(ReasonAlreadyAssigned, "")
	}

	if v.policy.EnforceAvailability || v.policy.EnforceRest {
		if reason, ok := v.checkTimeline(shift, person, surrounding); !ok {
			return reject(reason, "")
		}
	}

	out := shift
	out.AssignedPersonIDs = append(append([]string{}, shift.AssignedPersonIDs...), person.ID)
	return out, nil
}

func (v *Validator) checkTimeline(shift models.Shift, person models.Person, surrounding []models.Shift) (RejectionReason, bool) {
	others := make([]models.Shift, 0, len(surrounding))
	for _, sh := range surrounding {
		if sh.ID != shift.ID {
			others = append(others, sh)
		}
	}
	rest := v.catalog.Rest(&shift)

	if v.policy.EnforceAvailability {
		ini := NewInitializer(v.catalog, shift.Start, nil, nil, nil, v.opts)
		ini.Commitments, ini.TimeBlocks = false, false
		if !ini.Build(&person).Fits(shift.Start, shift.End, 0) {
			return ReasonUnavailable, false
		}
	}
	if v.policy.EnforceRest {
		ini := NewInitializer(v.catalog, shift.Start, others, nil, nil, v.opts)
		ini.Availability, ini.TimeBlocks = false, false
		if !ini.Build(&person).Fits(shift.Start, shift.End, rest) {
			return ReasonRest, false
		}
	}
	return "", true
}
