package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arnavshah/shift-solver-api/pkg/models"
	"github.com/arnavshah/shift-solver-api/pkg/planner"
)

// Store persists the scheduling data
type Store struct {
	db *gorm.DB
}

var _ planner.Store = (*Store)(nil)

// NewStore wraps an open database
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection
func (s *Store) DB() *gorm.DB {
	return s.db
}

func upsert[T any](ctx context.Context, db *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
}

// SavePeople inserts or replaces people by id
func (s *Store) SavePeople(ctx context.Context, people []models.Person) error {
	rows := make([]PersonRecord, 0, len(people))
	for _, p := range people {
		rows = append(rows, personRecord(p))
	}
	return upsert(ctx, s.db, rows)
}

// SaveTemplates inserts or replaces task templates by id
func (s *Store) SaveTemplates(ctx context.Context, templates []models.TaskTemplate) error {
	rows := make([]TemplateRecord, 0, len(templates))
	for _, t := range templates {
		rows = append(rows, templateRecord(t))
	}
	return upsert(ctx, s.db, rows)
}

// SaveShifts inserts or replaces shifts by id
func (s *Store) SaveShifts(ctx context.Context, shifts []models.Shift) error {
	rows := make([]ShiftRecord, 0, len(shifts))
	for _, sh := range shifts {
		rows = append(rows, shiftRecord(sh))
	}
	return upsert(ctx, s.db, rows)
}

// SaveConstraints inserts or replaces constraints by id
func (s *Store) SaveConstraints(ctx context.Context, constraints []models.SchedulingConstraint) error {
	rows := make([]ConstraintRecord, 0, len(constraints))
	for _, c := range constraints {
		rows = append(rows, constraintRecord(c))
	}
	return upsert(ctx, s.db, rows)
}

// People returns every person ordered by id
func (s *Store) People(ctx context.Context) ([]models.Person, error) {
	var rows []PersonRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Person, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

// Templates returns every task template ordered by id
func (s *Store) Templates(ctx context.Context) ([]models.TaskTemplate, error) {
	var rows []TemplateRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.TaskTemplate, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

// Constraints returns every scheduling constraint ordered by id
func (s *Store) Constraints(ctx context.Context) ([]models.SchedulingConstraint, error) {
	var rows []ConstraintRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.SchedulingConstraint, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

// ShiftsStartingBetween returns the shifts starting in [from, to) in start order
func (s *Store) ShiftsStartingBetween(ctx context.Context, from, to time.Time) ([]models.Shift, error) {
	return shiftsStartingBetween(s.db.WithContext(ctx), from, to)
}

func shiftsStartingBetween(db *gorm.DB, from, to time.Time) ([]models.Shift, error) {
	var rows []ShiftRecord
	err := db.Where("starts_at >= ? AND starts_at < ?", from.UTC(), to.UTC()).
		Order("starts_at").Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.Shift, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

// ShiftsForPerson returns the shifts starting in [from, to) that personID is assigned to
func (s *Store) ShiftsForPerson(ctx context.Context, personID string, from, to time.Time) ([]models.Shift, error) {
	all, err := s.ShiftsStartingBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	var out []models.Shift
	for _, sh := range all {
		if sh.HasAssignee(personID) {
			out = append(out, sh)
		}
	}
	return out, nil
}

// Shift returns one shift by id
func (s *Store) Shift(ctx context.Context, id string) (models.Shift, error) {
	return getShift(s.db.WithContext(ctx), id)
}

func getShift(db *gorm.DB, id string) (models.Shift, error) {
	var row ShiftRecord
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Shift{}, ErrShiftNotFound
		}
		return models.Shift{}, err
	}
	return row.model(), nil
}

// Person returns one person by id
func (s *Store) Person(ctx context.Context, id string) (models.Person, error) {
	var row PersonRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Person{}, ErrPersonNotFound
		}
		return models.Person{}, err
	}
	return row.model(), nil
}

// UpdateShift re-reads a shift inside a transaction, applies fn and stores
// the result. An error from fn aborts the update and is returned as-is.
func (s *Store) UpdateShift(ctx context.Context, id string, fn func(models.Shift) (models.Shift, error)) (models.Shift, error) {
	var updated models.Shift
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := getShift(tx, id)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		next.ID = current.ID
		row := shiftRecord(next)
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		updated = next
		return nil
	})
	return updated, err
}

// LoadWindow reads everything one day's solve needs
func (s *Store) LoadWindow(ctx context.Context, w planner.Window) (*planner.Snapshot, error) {
	var (
		snap planner.Snapshot
		err  error
	)
	if snap.People, err = s.People(ctx); err != nil {
		return nil, err
	}
	if snap.Templates, err = s.Templates(ctx); err != nil {
		return nil, err
	}
	if snap.Constraints, err = s.Constraints(ctx); err != nil {
		return nil, err
	}
	if snap.Shifts, err = s.ShiftsStartingBetween(ctx, w.ShiftsFrom, w.ShiftsTo); err != nil {
		return nil, err
	}
	if snap.PastShifts, err = s.ShiftsStartingBetween(ctx, w.HistoryFrom, w.Day); err != nil {
		return nil, err
	}
	return &snap, nil
}
