// Package apcheck defines the result vocabulary shared by the safety,
// temporal and bounded-time checkers.
package apcheck

import (
	"fmt"

	"github.com/gordian-engine/alpenglow/ap/apexplore"
	"github.com/gordian-engine/alpenglow/ap/apmodel"
)

// Outcome is the overall verdict of one check.
type Outcome uint8

const (
	// OutcomePass means exploration completed and no violation was found.
	OutcomePass Outcome = iota + 1

	// OutcomeFail means at least one violation was found.
	OutcomeFail

	// OutcomeInconclusive means no violation was found but the state or
	// trial budget was exhausted before exploration completed.
	// It must never be reported as a pass.
	OutcomeInconclusive
)

func (o Outcome) String() string {
	switch o {
	case OutcomePass:
		return "pass"
	case OutcomeFail:
		return "fail"
	case OutcomeInconclusive:
		return "inconclusive"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

// Violation is one discovered property breach.
type Violation struct {
	// Property names the invariant or temporal property,
	// e.g. "NoFork" or "HonestLeaderFinalization".
	Property string

	// Slot, Round and Time locate the offending state.
	Slot  apmodel.Slot
	Round apmodel.Round
	Time  int64

	// Detail is a human-readable description of the breach.
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s violated at slot=%d %s t=%d: %s", v.Property, v.Slot, v.Round, v.Time, v.Detail)
}

// Stats summarizes the exploration behind a report.
type Stats struct {
	StatesVisited    int
	StatesDiscovered int
	Transitions      int
	PeakQueueLen     int

	// Exhaustive is false when the budget cut exploration short.
	Exhaustive bool
}

// StatsFromExploration copies the explorer's statistics.
func StatsFromExploration[S any](res *apexplore.Result[S]) Stats {
	return Stats{
		StatesVisited:    res.Stats.StatesVisited,
		StatesDiscovered: res.Stats.StatesDiscovered,
		Transitions:      res.Stats.Transitions,
		PeakQueueLen:     res.Stats.PeakQueueLen,
		Exhaustive:       res.Exhaustive,
	}
}

// Report is the structured result of one checker invocation.
type Report struct {
	// Name identifies the check, e.g. "safety" or "bounded-time".
	Name string

	Outcome    Outcome
	Violations []Violation
	Stats      Stats

	// Metrics carries check-specific numeric results,
	// such as optimal-path finalization times.
	Metrics map[string]float64
}

// Resolve derives the outcome from the violations and exploration stats:
// any violation fails; otherwise a truncated exploration is inconclusive.
func (r *Report) Resolve() {
	switch {
	case len(r.Violations) > 0:
		r.Outcome = OutcomeFail
	case !r.Stats.Exhaustive:
		r.Outcome = OutcomeInconclusive
	default:
		r.Outcome = OutcomePass
	}
}
