package scheduler

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arnavshah/shift-solver-api/pkg/models"
)

// ShiftID returns the deterministic id of the shift a segment produces on day
func ShiftID(templateID, segmentID string, day time.Time) string {
	key := templateID + "|" + segmentID + "|" + day.Format(models.DateLayout)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// GenerateShifts materializes one unassigned shift for every segment whose
// recurrence fires on day, freezing the segment's requirements into it.
func GenerateShifts(templates []models.TaskTemplate, day time.Time, loc *time.Location) ([]models.Shift, error) {
	dayStart, _ := DayBounds(day, loc)
	var shifts []models.Shift
	for _, tpl := range templates {
		for _, seg := range tpl.Segments {
			if !seg.Recurrence.Matches(dayStart) {
				continue
			}
			clock, err := time.Parse("15:04", seg.StartTime)
			if err != nil {
				return nil, fmt.Errorf("template %s segment %s: start time: %w", tpl.ID, seg.ID, err)
			}
			start := clockOn(dayStart, clock.Hour(), clock.Minute())
			shifts = append(shifts, models.Shift{
				ID:                ShiftID(tpl.ID, seg.ID, dayStart),
				TaskID:            tpl.ID,
				SegmentID:         seg.ID,
				Start:             start,
				End:               start.Add(hours(seg.DurationHours)),
				AssignedPersonIDs: []string{},
				Requirements: &models.RequirementsSnapshot{
					Roles:          append([]models.RoleRequirement(nil), seg.Roles...),
					RequiredPeople: seg.RequiredPeople,
					MinRestHours:   seg.MinRestHours,
				},
			})
		}
	}
	return shifts, nil
}
