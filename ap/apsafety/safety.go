// Package apsafety checks the structural safety invariants of the
// protocol model against every reachable state.
package apsafety

import (
	"fmt"
	"log/slog"

	"github.com/gordian-engine/alpenglow/ap/apcheck"
	"github.com/gordian-engine/alpenglow/ap/apexplore"
	"github.com/gordian-engine/alpenglow/ap/apmodel"
)

// Options configures one safety check.
type Options struct {
	// MaxStates caps exploration; zero uses the explorer default.
	MaxStates int

	Log *slog.Logger
}

// Invariant is a named predicate evaluated independently against each
// visited state. It returns one violation per breach, or nil.
type Invariant struct {
	Name string
	Eval func(cfg apmodel.Config, s apmodel.State) []apcheck.Violation
}

// Invariants returns the safety invariants, in evaluation order.
func Invariants() []Invariant {
	return []Invariant{
		{Name: "NoFork", Eval: evalNoFork},
		{Name: "QuorumValidity", Eval: evalQuorumValidity},
	}
}

// evalNoFork rejects two different blocks finalized in the same slot.
func evalNoFork(_ apmodel.Config, s apmodel.State) []apcheck.Violation {
	var out []apcheck.Violation

	seen := make(map[apmodel.Slot]apmodel.Finalization, len(s.Final))
	for _, f := range s.Final {
		prev, ok := seen[f.Slot]
		if !ok {
			seen[f.Slot] = f
			continue
		}
		if prev.Block != f.Block {
			out = append(out, apcheck.Violation{
				Property: "NoFork",
				Slot:     s.Slot,
				Round:    s.Round,
				Time:     s.Time,
				Detail: fmt.Sprintf(
					"slot %d finalized block %d (%s) and block %d (%s)",
					f.Slot, prev.Block, prev.Round, f.Block, f.Round,
				),
			})
		}
	}

	return out
}

// evalQuorumValidity rejects finalizations whose recorded vote stake is
// below the round-appropriate quorum. This guards against transition-rule
// bugs that finalize without sufficient stake, rather than an emergent
// protocol property.
func evalQuorumValidity(cfg apmodel.Config, s apmodel.State) []apcheck.Violation {
	var out []apcheck.Violation

	for _, f := range s.Final {
		var quorum uint64
		switch f.Round {
		case apmodel.Round1:
			quorum = cfg.Validators.FastQuorum()
		case apmodel.Round2:
			quorum = cfg.Validators.FallbackQuorum()
		}

		if f.Stake < quorum {
			out = append(out, apcheck.Violation{
				Property: "QuorumValidity",
				Slot:     s.Slot,
				Round:    s.Round,
				Time:     s.Time,
				Detail: fmt.Sprintf(
					"finalization of block %d at slot %d (%s) recorded stake %d below quorum %d",
					f.Block, f.Slot, f.Round, f.Stake, quorum,
				),
			})
			continue
		}

		// For the current slot the vote sets are still live,
		// so cross-check the recorded stake against a recount.
		if f.Slot != s.Slot {
			continue
		}
		votes := s.VotesR1
		if f.Round == apmodel.Round2 {
			votes = s.VotesR2
		}
		if live := votes.StakeFor(f.Block, cfg.Validators); live < quorum {
			out = append(out, apcheck.Violation{
				Property: "QuorumValidity",
				Slot:     s.Slot,
				Round:    s.Round,
				Time:     s.Time,
				Detail: fmt.Sprintf(
					"finalization of block %d at slot %d (%s) has live vote stake %d below quorum %d",
					f.Block, f.Slot, f.Round, live, quorum,
				),
			})
		}
	}

	return out
}

// Check explores the state space of cfg and evaluates every safety
// invariant against every visited state. A violation never stops
// exploration; all violations are collected so the full failure surface
// is visible in one run.
func Check(cfg apmodel.Config, opts Options) (apcheck.Report, error) {
	rep := apcheck.Report{Name: "safety"}

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

	invs := Invariants()
	for _, k := range res.Order {
		s := res.States[k]
		for _, inv := range invs {
			rep.Violations = append(rep.Violations, inv.Eval(cfg, s)...)
		}
	}

	rep.Stats = apcheck.StatsFromExploration(res)
	rep.Resolve()

	if opts.Log != nil {
		opts.Log.Info(
			"Safety check complete",
			"outcome", rep.Outcome,
			"states", rep.Stats.StatesVisited,
			"violations", len(rep.Violations),
		)
	}
	return rep, nil
}
