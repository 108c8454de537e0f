package database

import (
	"time"

	"github.com/arnavshah/shift-solver-api/pkg/models"
)

// PersonRecord represents the people table
type PersonRecord struct {
	ID           string `gorm:"primaryKey"`
	Name         string
	RoleIDs      []string                       `gorm:"serializer:json"`
	TeamID       string                         `gorm:"index"`
	Availability map[string]models.Availability `gorm:"serializer:json"`
	UpdatedAt    time.Time
}

func (PersonRecord) TableName() string { return "people" }

// TemplateRecord represents the task_templates table
type TemplateRecord struct {
	ID        string `gorm:"primaryKey"`
	Name      string
	Segments  []models.Segment `gorm:"serializer:json"`
	UpdatedAt time.Time
}

func (TemplateRecord) TableName() string { return "task_templates" }

// ShiftRecord represents the shifts table
type ShiftRecord struct {
	ID                string `gorm:"primaryKey"`
	TaskID            string `gorm:"index;not null"`
	SegmentID         string
	StartsAt          time.Time `gorm:"index;not null"`
	EndsAt            time.Time `gorm:"not null"`
	AssignedPersonIDs []string  `gorm:"serializer:json"`
	IsLocked          bool
	IsCancelled       bool
	Requirements      *models.RequirementsSnapshot `gorm:"serializer:json"`
	UpdatedAt         time.Time
}

func (ShiftRecord) TableName() string { return "shifts" }

// ConstraintRecord represents the scheduling_constraints table
type ConstraintRecord struct {
	ID       string `gorm:"primaryKey"`
	Type     string `gorm:"not null"`
	PersonID string
	TeamID   string
	RoleID   string
	TaskID   string
	StartsAt *time.Time
	EndsAt   *time.Time
}

func (ConstraintRecord) TableName() string { return "scheduling_constraints" }

func personRecord(p models.Person) PersonRecord {
	return PersonRecord{ID: p.ID, Name: p.Name, RoleIDs: p.RoleIDs, TeamID: p.TeamID, Availability: p.Availability}
}

func (r PersonRecord) model() models.Person {
	return models.Person{ID: r.ID, Name: r.Name, RoleIDs: r.RoleIDs, TeamID: r.TeamID, Availability: r.Availability}
}

func templateRecord(t models.TaskTemplate) TemplateRecord {
	return TemplateRecord{ID: t.ID, Name: t.Name, Segments: t.Segments}
}

func (r TemplateRecord) model() models.TaskTemplate {
	return models.TaskTemplate{ID: r.ID, Name: r.Name, Segments: r.Segments}
}

func shiftRecord(s models.Shift) ShiftRecord {
	return ShiftRecord{
		ID:                s.ID,
		TaskID:            s.TaskID,
		SegmentID:         s.SegmentID,
		StartsAt:          s.Start.UTC(),
		EndsAt:            s.End.UTC(),
		AssignedPersonIDs: s.AssignedPersonIDs,
		IsLocked:          s.IsLocked,
		IsCancelled:       s.IsCancelled,
		Requirements:      s.Requirements,
	}
}

func (r ShiftRecord) model() models.Shift {
	assigned := r.AssignedPersonIDs
	if assigned == nil {
		assigned = []string{}
	}
	return models.Shift{
		ID:                r.ID,
		TaskID:            r.TaskID,
		SegmentID:         r.SegmentID,
		Start:             r.StartsAt.UTC(),
		End:               r.EndsAt.UTC(),
		AssignedPersonIDs: assigned,
		IsLocked:          r.IsLocked,
		IsCancelled:       r.IsCancelled,
		Requirements:      r.Requirements,
	}
}

func constraintRecord(c models.SchedulingConstraint) ConstraintRecord {
	return ConstraintRecord{
		ID:       c.ID,
		Type:     string(c.Type),
		PersonID: c.PersonID,
		TeamID:   c.TeamID,
		RoleID:   c.RoleID,
		TaskID:   c.TaskID,
		StartsAt: utcPtr(c.Start),
		EndsAt:   utcPtr(c.End),
	}
}

func (r ConstraintRecord) model() models.SchedulingConstraint {
	return models.SchedulingConstraint{
		ID:       r.ID,
		Type:     models.ConstraintType(r.Type),
		PersonID: r.PersonID,
		TeamID:   r.TeamID,
		RoleID:   r.RoleID,
		TaskID:   r.TaskID,
		Start:    utcPtr(r.StartsAt),
		End:      utcPtr(r.EndsAt),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
