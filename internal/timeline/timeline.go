// Package timeline tracks the blocked intervals of one person during a solve run.
package timeline

import (
	"sort"
	"time"
)

// Kind identifies why a span of a person's timeline is blocked
type Kind string

const (
	Task     Kind = "TASK"
	Rest     Kind = "REST"
	External Kind = "EXTERNAL_CONSTRAINT"
)

// Segment is one blocked half-open interval [Start, End)
type Segment struct {
	Start  time.Time
	End    time.Time
	Kind   Kind
	TaskID string
}

// Timeline is the collision surface the solver works against
type Timeline interface {
	// Fits reports whether [start, end+rest) is free of every blocked segment.
	Fits(start, end time.Time, rest time.Duration) bool
	// Insert adds a blocked segment.
	Insert(seg Segment)
}

// List is a Timeline kept sorted by segment start. Overlapping segments from
// different sources are kept as-is.
type List struct {
	segs []Segment
}

var _ Timeline = (*List)(nil)

// New returns an empty timeline
func New() *List {
	return &List{}
}

// Overlap checks if two half-open time ranges overlap
func Overlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Fits reports whether [start, end+rest) collides with no existing segment
func (l *List) Fits(start, end time.Time, rest time.Duration) bool {
	until := end.Add(rest)
	for _, s := range l.segs {
		// sorted by start: nothing further can collide
		if !s.Start.Before(until) {
			break
		}
		if Overlap(start, until, s.Start, s.End) {
			return false
		}
	}
	return true
}

// Insert appends a segment and restores start order. Empty segments are dropped.
func (l *List) Insert(seg Segment) {
	if !seg.End.After(seg.Start) {
		return
	}
	l.segs = append(l.segs, seg)
	sort.SliceStable(l.segs, func(i, j int) bool {
		return l.segs[i].Start.Before(l.segs[j].Start)
	})
}

// Reserve inserts a TASK segment for [start, end) and a REST segment for
// [end, end+rest) only if the whole span fits. It reports whether it did.
func (l *List) Reserve(start, end time.Time, rest time.Duration, taskID string) bool {
	if !l.Fits(start, end, rest) {
		return false
	}
	l.Insert(Segment{Start: start, End: end, Kind: Task, TaskID: taskID})
	if rest > 0 {
		l.Insert(Segment{Start: end, End: end.Add(rest), Kind: Rest, TaskID: taskID})
	}
	return true
}

// Segments returns a copy of the blocked segments in start order
func (l *List) Segments() []Segment {
	out := make([]Segment, len(l.segs))
	copy(out, l.segs)
	return out
}

// Len returns the number of blocked segments
func (l *List) Len() int {
	return len(l.segs)
}
