// FILE: repertoire/internal/server/scheduler/scheduler.go
package scheduler

import (
	"time"

	"repertoire/internal/server/core"
)

// Scheduler applies review outcomes to edge schedules. It holds no state
// besides the curve and the clock.
type Scheduler struct {
	curve Curve
	now   func() time.Time
}

// New returns a scheduler using curve and the wall clock.
func New(curve Curve) *Scheduler {
	return &Scheduler{curve: curve, now: time.Now}
}

// WithClock replaces the clock, for tests and replays.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	return &Scheduler{curve: s.curve, now: now}
}

// Now is the scheduler's current time in UTC.
func (s *Scheduler) Now() time.Time {
	return s.now().UTC()
}

func (s *Scheduler) Curve() Curve {
	return s.curve
}

// Initial is the schedule of a freshly added edge: due immediately.
func (s *Scheduler) Initial() core.ScheduleState {
	return core.ScheduleState{DueAt: s.Now(), IntervalStage: MinStage}
}

// Review returns the schedule after one answer. Correct answers advance the
// stage (capped at the curve maximum) and push dueAt out by the stage
// interval; incorrect answers reset to MinStage and make the edge due now.
func (s *Scheduler) Review(st core.ScheduleState, correct bool) core.ScheduleState {
	now := s.Now()
	next := st
	next.ReviewCount++

	if !correct {
		next.IntervalStage = MinStage
		next.DueAt = now
		next.LastResult = core.ResultIncorrect
		return next
	}

	stage := st.IntervalStage + 1
	if stage > s.curve.MaxStage {
		stage = s.curve.MaxStage
	}
	next.IntervalStage = stage
	next.DueAt = now.Add(s.curve.Interval(stage))
	next.LastResult = core.ResultCorrect
	return next
}

// IsDue reports whether st is eligible for practice now.
func (s *Scheduler) IsDue(st core.ScheduleState) bool {
	return st.IsDue(s.Now())
}

// DueFENs reduces due edges, already ordered by dueAt then insertion, to the
// distinct source positions in first-seen order. A node keeps the FEN of
// its first arrival, so equal FEN strings mean equal nodes.
func DueFENs(edges []core.Edge) []string {
	seen := make(map[string]bool, len(edges))
	fens := make([]string, 0, len(edges))
	for _, e := range edges {
		if seen[e.FromFEN] {
			continue
		}
		seen[e.FromFEN] = true
		fens = append(fens, e.FromFEN)
	}
	return fens
}

// Judge decides a practice answer against the committed edges at one
// position. Any matching edge makes the answer correct.
func Judge(edges []core.Edge, canonicalSAN string) (match *core.Edge, expected []string) {
	expected = make([]string, 0, len(edges))
	for i := range edges {
		expected = append(expected, edges[i].SAN)
		if match == nil && edges[i].SAN == canonicalSAN {
			match = &edges[i]
		}
	}
	return match, expected
}
