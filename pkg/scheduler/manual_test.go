package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnavshah/shift-solver-api/pkg/models"
)

func newTestValidator(policy ManualPolicy) *Validator {
	return NewValidator([]models.TaskTemplate{
		template("t", 1, 2),
		template("pair", 1, 0, role("", 2)),
	}, policy, DefaultOptions())
}

func requireRejection(t *testing.T, err error, reason RejectionReason) *Rejection {
	t.Helper()
	require.Error(t, err)
	rej, ok := AsRejection(err)
	require.True(t, ok, "expected a rejection, got %v", err)
	assert.Equal(t, reason, rej.Reason)
	return rej
}

func TestTryAssign_NeverAssignWinsOverFreeCapacity(t *testing.T) {
	v := newTestValidator(ManualPolicy{})
	sh := shift("s1", "t", at(0, 8), at(0, 12))

	out, err := v.TryAssign(sh, person("p1"), []models.SchedulingConstraint{
		{ID: "c1", Type: models.NeverAssign, PersonID: "p1", TaskID: "t"},
	})

	rej := requireRejection(t, err, ReasonNeverAssign)
	assert.Equal(t, "c1", rej.Constraint)
	assert.Equal(t, "s1", rej.ShiftID)
	assert.Equal(t, "p1", rej.PersonID)
	assert.Empty(t, out.AssignedPersonIDs)
}

func TestTryAssign_Capacity(t *testing.T) {
	v := newTestValidator(ManualPolicy{})

	_, err := v.TryAssign(shift("s1", "t", at(0, 8), at(0, 12), "p2"), person("p1"), nil)
	requireRejection(t, err, ReasonShiftFull)

	out, err := v.TryAssign(shift("s2", "pair", at(0, 8), at(0, 12), "p2"), person("p1"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, out.AssignedPersonIDs)

	snap := shift("s3", "pair", at(0, 8), at(0, 12), "p2")
	snap.Requirements = &models.RequirementsSnapshot{RequiredPeople: 1}
	_, err = v.TryAssign(snap, person("p1"), nil)
	requireRejection(t, err, ReasonShiftFull)

	_, err = v.TryAssign(shift("s4", "unknown", at(0, 8), at(0, 12), "p2"), person("p1"), nil)
	requireRejection(t, err, ReasonShiftFull)
}

func TestTryAssign_RoleOnlySegmentCapacity(t *testing.T) {
	medics := models.TaskTemplate{ID: "ward", Segments: []models.Segment{{
		ID: "seg", StartTime: "08:00", DurationHours: 4,
		Roles: []models.RoleRequirement{role("medic", 3)},
	}}}
	v := NewValidator([]models.TaskTemplate{medics}, ManualPolicy{}, DefaultOptions())

	out, err := v.TryAssign(shift("s1", "ward", at(0, 8), at(0, 12), "a"), person("b", "medic"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out.AssignedPersonIDs)

	_, err = v.TryAssign(shift("s2", "ward", at(0, 8), at(0, 12), "a", "b", "c"), person("d", "medic"), nil)
	requireRejection(t, err, ReasonShiftFull)

	generated, err := GenerateShifts([]models.TaskTemplate{medics}, day, nil)
	require.NoError(t, err)
	require.Len(t, generated, 1)
	res := solve(t, Input{
		People:    []models.Person{person("a", "medic"), person("b", "medic"), person("c", "medic"), person("d", "medic")},
		Templates: []models.TaskTemplate{medics},
		Shifts:    generated,
	})
	require.Len(t, res.Shifts, 1)
	assert.Len(t, res.Shifts[0].AssignedPersonIDs, 3)
	_, err = v.TryAssign(res.Shifts[0], person("d", "medic"), nil)
	requireRejection(t, err, ReasonShiftFull)

	snap := shift("s3", "ward", at(0, 8), at(0, 12), "a", "b")
	snap.Requirements = &models.RequirementsSnapshot{Roles: []models.RoleRequirement{role("medic", 2)}}
	_, err = v.TryAssign(snap, person("c", "medic"), nil)
	requireRejection(t, err, ReasonShiftFull)
}

func TestTryAssign_FullCheckedBeforeConstraints(t *testing.T) {
	v := newTestValidator(ManualPolicy{})

	_, err := v.TryAssign(shift("s1", "t", at(0, 8), at(0, 12), "p2"), person("p1"), []models.SchedulingConstraint{
		{ID: "c1", Type: models.NeverAssign, PersonID: "p1", TaskID: "t"},
	})

	requireRejection(t, err, ReasonShiftFull)
}

func TestTryAssign_TimeBlock(t *testing.T) {
	v := newTestValidator(ManualPolicy{})
	start, end := at(0, 11), at(0, 13)
	constraints := []models.SchedulingConstraint{
		{ID: "b1", Type: models.TimeBlock, PersonID: "p1", Start: &start, End: &end},
	}

	_, err := v.TryAssign(shift("s1", "t", at(0, 8), at(0, 12)), person("p1"), constraints)
	requireRejection(t, err, ReasonTimeBlock)

	_, err = v.TryAssign(shift("s2", "t", at(0, 13), at(0, 15)), person("p1"), constraints)
	assert.NoError(t, err, "touching the block is allowed")
}

func TestTryAssign_AlwaysAssignExclusivity(t *testing.T) {
	v := newTestValidator(ManualPolicy{})
	constraints := []models.SchedulingConstraint{
		{ID: "a1", Type: models.AlwaysAssign, PersonID: "p1", TaskID: "pair"},
	}

	_, err := v.TryAssign(shift("s1", "t", at(0, 8), at(0, 12)), person("p1"), constraints)
	requireRejection(t, err, ReasonExclusivity)

	_, err = v.TryAssign(shift("s2", "pair", at(0, 8), at(0, 12)), person("p1"), constraints)
	assert.NoError(t, err)
}

func TestTryAssign_AlreadyAssigned(t *testing.T) {
	v := newTestValidator(ManualPolicy{})

	_, err := v.TryAssign(shift("s1", "pair", at(0, 8), at(0, 12), "p1"), person("p1"), nil)

	requireRejection(t, err, ReasonAlreadyAssigned)
}

func TestTryAssign_DoesNotMutateShift(t *testing.T) {
	v := newTestValidator(ManualPolicy{})
	sh := shift("s1", "pair", at(0, 8), at(0, 12), "p2")
	sh.AssignedPersonIDs = append(make([]string, 0, 4), sh.AssignedPersonIDs...)

	out, err := v.TryAssign(sh, person("p1"), nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, sh.AssignedPersonIDs)
	assert.Equal(t, []string{"p2", "p1"}, out.AssignedPersonIDs)
}

func TestTryAssign_PolicyRest(t *testing.T) {
	prev := shift("prev", "t", at(-1, 22), at(0, 7), "p1")
	next := shift("s1", "t", at(0, 8), at(0, 10))

	_, err := newTestValidator(ManualPolicy{}).TryAssign(next, person("p1"), nil, prev)
	assert.NoError(t, err, "rest is not checked by default")

	_, err = newTestValidator(ManualPolicy{EnforceRest: true}).TryAssign(next, person("p1"), nil, prev)
	requireRejection(t, err, ReasonRest)

	later := shift("s2", "t", at(0, 9), at(0, 10))
	_, err = newTestValidator(ManualPolicy{EnforceRest: true}).TryAssign(later, person("p1"), nil, prev)
	assert.NoError(t, err)
}

func TestTryAssign_PolicyAvailability(t *testing.T) {
	p := person("p1")
	p.Availability = map[string]models.Availability{
		day.Format(models.DateLayout): {IsAvailable: false},
	}
	sh := shift("s1", "t", at(0, 8), at(0, 10))

	_, err := newTestValidator(ManualPolicy{}).TryAssign(sh, p, nil)
	assert.NoError(t, err)

	_, err = newTestValidator(ManualPolicy{EnforceAvailability: true}).TryAssign(sh, p, nil)
	requireRejection(t, err, ReasonUnavailable)
}

func TestRejection_Error(t *testing.T) {
	err := error(&Rejection{Reason: ReasonNeverAssign, ShiftID: "s1", PersonID: "p1", Constraint: "c1"})
	assert.Equal(t, "assign p1 to s1: never-assign-violation (constraint c1)", err.Error())

	_, ok := AsRejection(errors.New("other"))
	assert.False(t, ok)
}
