// Package aptemporal verifies temporal (liveness) properties by
// reachability analysis over the fully explored state graph.
//
// The properties are existence properties: exploration covers every
// nondeterministic schedule, and the question is whether some schedule
// makes progress. This is deliberately weaker than the "all fair paths
// eventually complete" of full temporal-logic model checking, which
// would require an explicit fairness model; the existence semantics must
// not be silently strengthened.
package aptemporal

import (
	"fmt"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/gordian-engine/alpenglow/ap/apcheck"
	"github.com/gordian-engine/alpenglow/ap/apexplore"
	"github.com/gordian-engine/alpenglow/ap/apmodel"
)

// Options configures a temporal check.
type Options struct {
	// MaxStates caps exploration; zero uses the explorer default.
	MaxStates int

	Log *slog.Logger
}

// allSlotsDecided reports whether every slot up to maxSlot is finalized
// or skipped in s.
func allSlotsDecided(s apmodel.State, maxSlot apmodel.Slot) bool {
	for slot := apmodel.Slot(0); slot <= maxSlot; slot++ {
		if !s.SlotDecided(slot) {
			return false
		}
	}
	return true
}

// CheckEventualProgress verifies that some reachable state has every
// slot from 0 through cfg.MaxSlot either finalized or skipped.
func CheckEventualProgress(cfg apmodel.Config, opts Options) (apcheck.Report, error) {
	rep := apcheck.Report{Name: "eventual-progress"}

	if err := cfg.Validate(); err != nil {
		return rep, fmt.Errorf("invalid model config: %w", err)
	}

	res, err := apexplore.Explore(cfg.Initial(), cfg.Transitions, apmodel.State.Key, apexplore.Options[apmodel.State]{
		MaxStates: opts.MaxStates,
		Log:       opts.Log,
	})
	if err != nil {
		return rep, fmt.Errorf("exploration failed: %w", err)
	}
	rep.Stats = apcheck.StatsFromExploration(res)

	completing := 0
	for _, k := range res.Order {
		if allSlotsDecided(res.States[k], cfg.MaxSlot) {
			completing++
		}
	}
	rep.Metrics = map[string]float64{"completing_states": float64(completing)}

	switch {
	case completing > 0:
		// Existence is proven even if the budget truncated exploration.
		rep.Outcome = apcheck.OutcomePass
	case !res.Exhaustive:
		rep.Outcome = apcheck.OutcomeInconclusive
	default:
		rep.Violations = append(rep.Violations, apcheck.Violation{
			Property: "EventualProgress",
			Detail: fmt.Sprintf(
				"no reachable state decides all slots 0..%d (%d states explored)",
				cfg.MaxSlot, res.Stats.StatesVisited,
			),
		})
		rep.Outcome = apcheck.OutcomeFail
	}

	if opts.Log != nil {
		opts.Log.Info(
			"EventualProgress check complete",
			"outcome", rep.Outcome,
			"states", rep.Stats.StatesVisited,
			"completingStates", completing,
		)
	}
	return rep, nil
}

// CheckHonestLeaderFinalization verifies that from every visited state
// where an honest leader has proposed, some path through the state graph
// reaches a state finalizing that slot.
func CheckHonestLeaderFinalization(cfg apmodel.Config, opts Options) (apcheck.Report, error) {
	rep := apcheck.Report{Name: "honest-leader-finalization"}

	if err := cfg.Validate(); err != nil {
		return rep, fmt.Errorf("invalid model config: %w", err)
	}

	res, err := apexplore.Explore(cfg.Initial(), cfg.Transitions, apmodel.State.Key, apexplore.Options[apmodel.State]{
		MaxStates:   opts.MaxStates,
		RetainGraph: true,
		Log:         opts.Log,
	})
	if err != nil {
		return rep, fmt.Errorf("exploration failed: %w", err)
	}
	rep.Stats = apcheck.StatsFromExploration(res)

	proposals := 0
	for _, k := range res.Order {
		s := res.States[k]
		if !s.HasProposal || !cfg.Validators.IsHonest(s.Leader) {
			continue
		}
		proposals++

		// A truncated exploration leaves the frontier's successors out of
		// the graph, so the absence of a finalizing path would be an
		// artifact of the state budget, not of the model. Skipping the
		// search leaves no violations and Resolve reports the truncation
		// as inconclusive.
		if !res.Exhaustive {
			continue
		}

		if !canReachFinalization(res, k, s.Slot) {
			rep.Violations = append(rep.Violations, apcheck.Violation{
				Property: "HonestLeaderFinalization",
				Slot:     s.Slot,
				Round:    s.Round,
				Time:     s.Time,
				Detail: fmt.Sprintf(
					"no path from honest proposal of block %d finalizes slot %d",
					s.Proposal, s.Slot,
				),
			})
		}
	}
	rep.Metrics = map[string]float64{"proposal_states": float64(proposals)}

	rep.Resolve()

	if opts.Log != nil {
		opts.Log.Info(
			"HonestLeaderFinalization check complete",
			"outcome", rep.Outcome,
			"states", rep.Stats.StatesVisited,
			"proposalStates", proposals,
			"violations", len(rep.Violations),
		)
	}
	return rep, nil
}

// canReachFinalization runs a forward breadth-first search over the
// retained adjacency relation, looking for a state that finalizes slot.
func canReachFinalization(res *apexplore.Result[apmodel.State], from string, slot apmodel.Slot) bool {
	seen := mapset.NewThreadUnsafeSet(from)
	queue := []string{from}

	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]

		if res.States[k].IsFinalized(slot) {
			return true
		}

		for _, nk := range res.Graph[k] {
			if seen.Add(nk) {
				queue = append(queue, nk)
			}
		}
	}
	return false
}
