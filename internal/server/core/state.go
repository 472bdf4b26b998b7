package core

import "time"

// ScheduleStatus is the review state of an edge at a given instant.
type ScheduleStatus int

const (
	StatusNew       ScheduleStatus = iota // never reviewed, due immediately
	StatusDue                             // dueAt has passed
	StatusScheduled                       // waiting for dueAt
)

func (s ScheduleStatus) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusDue:
		return "due"
	case StatusScheduled:
		return "scheduled"
	default:
		return "unknown"
	}
}

// ReviewResult is the outcome recorded on the last review of an edge.
type ReviewResult int

const (
	ResultNone ReviewResult = iota
	ResultCorrect
	ResultIncorrect
)

func (r ReviewResult) String() string {
	switch r {
	case ResultCorrect:
		return "correct"
	case ResultIncorrect:
		return "incorrect"
	default:
		return "none"
	}
}

// ScheduleState is attached to an edge and mutated only by the scheduler.
type ScheduleState struct {
	DueAt         time.Time    `json:"dueAt"`
	IntervalStage int          `json:"intervalStage"`
	LastResult    ReviewResult `json:"lastResult"`
	ReviewCount   int          `json:"reviewCount"`
}

// Status reports the state machine position of s at now.
func (s ScheduleState) Status(now time.Time) ScheduleStatus {
	if s.DueAt.After(now) {
		return StatusScheduled
	}
	if s.ReviewCount == 0 {
		return StatusNew
	}
	return StatusDue
}

// IsDue is true for new and due edges.
func (s ScheduleState) IsDue(now time.Time) bool {
	return !s.DueAt.After(now)
}
