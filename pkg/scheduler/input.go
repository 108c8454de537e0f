package scheduler

import (
	"fmt"
	"time"

	"github.com/arnavshah/shift-solver-api/pkg/models"
)

// InputFromRequest converts a solve request into solver input
func InputFromRequest(req models.SolveRequest, loc *time.Location) (Input, error) {
	day, err := ParseDate(req.Date, loc)
	if err != nil {
		return Input{}, fmt.Errorf("%w: date: %w", ErrInvalidInput, err)
	}
	return Input{
		Date:              day,
		People:            req.People,
		Templates:         req.Templates,
		Shifts:            req.Shifts,
		Constraints:       req.Constraints,
		History:           req.History,
		FutureAssignments: req.FutureAssignments,
		SelectedTaskIDs:   req.SelectedTaskIDs,
		ResetUnlocked:     req.ResetUnlocked,
	}, nil
}
