package scheduler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/arnavshah/shift-solver-api/pkg/models"
)

var validate = validator.New()

// ValidateInput checks the snapshot for malformed records before solving.
// All problems found are joined into one error wrapping ErrInvalidInput.
func ValidateInput(in Input) error {
	var errs []error

	if in.Date.IsZero() {
		errs = append(errs, errors.New("date is required"))
	}

	personIDs := make(map[string]bool, len(in.People))
	for i := range in.People {
		p := &in.People[i]
		if err := validate.Struct(p); err != nil {
			errs = append(errs, fmt.Errorf("person %q: %w", p.ID, err))
		}
		if personIDs[p.ID] {
			errs = append(errs, fmt.Errorf("duplicate person id %q", p.ID))
		}
		personIDs[p.ID] = true
		for date, a := range p.Availability {
			if a.StartHour != nil && a.EndHour != nil && *a.StartHour > *a.EndHour {
				errs = append(errs, fmt.Errorf("person %q: availability on %s starts after it ends", p.ID, date))
			}
		}
	}

	templateIDs := make(map[string]bool, len(in.Templates))
	for i := range in.Templates {
		t := &in.Templates[i]
		if err := validate.Struct(t); err != nil {
			errs = append(errs, fmt.Errorf("template %q: %w", t.ID, err))
		}
		if templateIDs[t.ID] {
			errs = append(errs, fmt.Errorf("duplicate template id %q", t.ID))
		}
		templateIDs[t.ID] = true
	}

	errs = append(errs, validateShifts("shift", in.Shifts)...)
	errs = append(errs, validateShifts("future assignment", in.FutureAssignments)...)

	for i := range in.Constraints {
		if err := ValidateConstraint(&in.Constraints[i]); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, errors.Join(errs...))
}

func validateShifts(kind string, shifts []models.Shift) []error {
	var errs []error
	seen := make(map[string]bool, len(shifts))
	for i := range shifts {
		sh := &shifts[i]
		if err := validate.Struct(sh); err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", kind, sh.ID, err))
		}
		if seen[sh.ID] {
			errs = append(errs, fmt.Errorf("duplicate %s id %q", kind, sh.ID))
		}
		seen[sh.ID] = true
		if !sh.End.After(sh.Start) {
			errs = append(errs, fmt.Errorf("%s %q: end must be after start", kind, sh.ID))
		}
	}
	return errs
}

// ValidateConstraint checks one scheduling constraint's shape
func ValidateConstraint(c *models.SchedulingConstraint) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("constraint %q: %w", c.ID, err)
	}
	if c.PersonID == "" && c.TeamID == "" && c.RoleID == "" {
		return fmt.Errorf("constraint %q: needs a person, team or role scope", c.ID)
	}
	switch c.Type {
	case models.TimeBlock:
		if c.Start == nil || c.End == nil {
			return fmt.Errorf("constraint %q: time_block needs start and end", c.ID)
		}
	case models.NeverAssign, models.AlwaysAssign:
		if c.TaskID == "" {
			return fmt.Errorf("constraint %q: %s needs a task id", c.ID, c.Type)
		}
	}
	if c.Start != nil && c.End != nil && !c.End.After(*c.Start) {
		return fmt.Errorf("constraint %q: end must be after start", c.ID)
	}
	return nil
}
