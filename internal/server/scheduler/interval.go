package scheduler

import (
	"fmt"
	"math"
	"time"
)

// MinStage is the stage of a new or failed edge.
const MinStage = 0

// MaxInterval bounds every curve. Longer waits overflow time.Duration
// arithmetic long before they mean anything for practice.
const MaxInterval = 10 * 365 * 24 * time.Hour

// IntervalFunc maps a stage >= 1 to the wait before the next review. It must
// be strictly increasing over 1..MaxStage and positive.
type IntervalFunc func(stage int) time.Duration

// Curve pairs an interval function with the highest stage it is defined for.
type Curve struct {
	Name     string
	Interval IntervalFunc
	MaxStage int
}

var leitnerIntervals = []time.Duration{
	24 * time.Hour,       // 1 day
	3 * 24 * time.Hour,   // 3 days
	7 * 24 * time.Hour,   // 1 week
	21 * 24 * time.Hour,  // 3 weeks
	60 * 24 * time.Hour,  // 2 months
	180 * 24 * time.Hour, // 6 months
}

// Leitner is the box schedule: 1d, 3d, 1w, 3w, 2mo, 6mo.
func Leitner() Curve {
	return Curve{
		Name:     "leitner",
		MaxStage: len(leitnerIntervals),
		Interval: func(stage int) time.Duration {
			if stage < 1 {
				stage = 1
			}
			if stage > len(leitnerIntervals) {
				stage = len(leitnerIntervals)
			}
			return leitnerIntervals[stage-1]
		},
	}
}

// Exponential waits base * factor^(stage-1), up to maxStage. The interval at
// maxStage must not exceed MaxInterval.
func Exponential(base time.Duration, factor float64, maxStage int) (Curve, error) {
	if base <= 0 {
		return Curve{}, fmt.Errorf("exponential curve: base must be positive")
	}
	if factor <= 1 {
		return Curve{}, fmt.Errorf("exponential curve: factor must exceed 1")
	}
	if maxStage < 1 {
		return Curve{}, fmt.Errorf("exponential curve: max stage must be at least 1")
	}
	if top := float64(base) * math.Pow(factor, float64(maxStage-1)); top > float64(MaxInterval) {
		return Curve{}, fmt.Errorf("exponential curve: stage %d waits longer than %s, lower factor or max_stage",
			maxStage, MaxInterval)
	}
	return Curve{
		Name:     "exponential",
		MaxStage: maxStage,
		Interval: func(stage int) time.Duration {
			if stage < 1 {
				stage = 1
			}
			if stage > maxStage {
				stage = maxStage
			}
			return time.Duration(float64(base) * math.Pow(factor, float64(stage-1)))
		},
	}, nil
}

// NewCurve builds a curve by name ("leitner" or "exponential").
func NewCurve(name string, base time.Duration, factor float64, maxStage int) (Curve, error) {
	switch name {
	case "", "leitner":
		return Leitner(), nil
	case "exponential":
		return Exponential(base, factor, maxStage)
	default:
		return Curve{}, fmt.Errorf("unknown interval curve %q", name)
	}
}
