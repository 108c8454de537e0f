package scheduler

import (
	"errors"
	"time"
)

var (
	// ErrInvalidInput wraps every precondition violation found before solving
	ErrInvalidInput = errors.New("invalid solver input")
)

const (
	// DefaultCriticalDifficulty is the difficulty at or above which a shift is critical
	DefaultCriticalDifficulty = 3.0
	// DefaultScarceRoleMax is the largest role population still considered scarce
	DefaultScarceRoleMax = 2
	// DefaultLookahead bounds how far past the target day committed shifts still block people
	DefaultLookahead = 48 * time.Hour
	// DefaultHistoryDays is the trailing window used for historical load
	DefaultHistoryDays = 30
	// DefaultDifficulty is used for segments that do not set a difficulty weight
	DefaultDifficulty = 1.0
)

// Options tunes the solver and its collaborators
type Options struct {
	CriticalDifficulty float64
	ScarceRoleMax      int
	Lookahead          time.Duration
	DefaultDifficulty  float64
	// Location defines calendar-day boundaries. Nil means UTC.
	Location *time.Location
}

// DefaultOptions returns the stock tuning
func DefaultOptions() Options {
	return Options{
		CriticalDifficulty: DefaultCriticalDifficulty,
		ScarceRoleMax:      DefaultScarceRoleMax,
		Lookahead:          DefaultLookahead,
		DefaultDifficulty:  DefaultDifficulty,
		Location:           time.UTC,
	}
}

func (o Options) withDefaults() Options {
	if o.CriticalDifficulty <= 0 {
		o.CriticalDifficulty = DefaultCriticalDifficulty
	}
	if o.ScarceRoleMax <= 0 {
		o.ScarceRoleMax = DefaultScarceRoleMax
	}
	if o.Lookahead <= 0 {
		o.Lookahead = DefaultLookahead
	}
	if o.DefaultDifficulty <= 0 {
		o.DefaultDifficulty = DefaultDifficulty
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// DayBounds returns the [start, end) of the calendar day containing t in loc
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// ParseDate parses a YYYY-MM-DD date as midnight in loc
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation("2006-01-02", s, loc)
}

// clockOn returns the wall-clock time hour:minute on day's date in day's
// location. Hour 24 is the following midnight.
func clockOn(day time.Time, hour, minute int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, day.Location())
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
