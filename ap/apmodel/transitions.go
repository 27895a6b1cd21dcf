package apmodel

import "fmt"

// Reference timing parameterization, shared by the bounded-time checker
// and the statistical simulator.
// Times are in simulated milliseconds.
const (
	// Round1TimeoutMS is the fast-path target: a round-1 finalization
	// should be achievable within this budget.
	Round1TimeoutMS = 100

	// Round2TimeoutMS is the additional fallback budget after a
	// round-1 timeout.
	Round2TimeoutMS = 250

	// NetworkLatencyMS is the optimistic per-message propagation cost
	// used by the millisecond-resolution model.
	NetworkLatencyMS = 5

	// TimeCutoffMS bounds millisecond-model exploration: states past
	// this simulated time are pruned to break timeout/retry cycles.
	TimeCutoffMS = 500
)

// Default gates for the step-counter models.
const (
	DefaultTimeoutGateSteps = 5
	DefaultSkipGateSteps    = 15
	DefaultMaxTimeSteps     = 20
)

// Config parameterizes the protocol transition system.
// The same transition relation serves the safety, liveness and
// bounded-time checkers; the gates and costs select the variant.
type Config struct {
	Validators ValidatorSet

	// Blocks is the fixed block universe leaders may propose from.
	Blocks []BlockID

	// MaxSlot is the last slot; AdvanceSlot is disabled beyond it.
	MaxSlot Slot

	// StepCost is the time added by propose, vote and finalize actions.
	// Zero in the step-counter models, NetworkLatencyMS in the
	// millisecond model.
	StepCost int64

	// TimeoutCost is the time added by TimeoutToRound2.
	TimeoutCost int64

	// TimeoutGate is the minimum elapsed time before TimeoutToRound2
	// is enabled. Zero leaves the timeout unconditional.
	TimeoutGate int64

	// SkipAfter is the minimum elapsed time before an unproposed slot
	// may be skipped.
	SkipAfter int64

	// MaxTime, when positive, enables the AdvanceTime no-op action up
	// to this clock value, letting exploration discover all
	// time-ordered behaviors without fixing a schedule.
	MaxTime int64

	// TimeStep is the AdvanceTime increment. Defaults to 1.
	TimeStep int64
}

// SafetyConfig is the exhaustive safety-checking variant:
// no time progression, an unconditional round-1 timeout costing one tick,
// and a two-block universe so vote-split behaviors are reachable.
func SafetyConfig(vs ValidatorSet, maxSlot Slot) Config {
	return Config{
		Validators:  vs,
		Blocks:      []BlockID{0, 1},
		MaxSlot:     maxSlot,
		TimeoutCost: 1,
		SkipAfter:   DefaultSkipGateSteps,
	}
}

// LivenessConfig is the temporal-checking variant: the clock advances
// through the explicit AdvanceTime action, and the round-1 timeout and
// slot skip are gated on elapsed time.
func LivenessConfig(vs ValidatorSet, maxSlot Slot) Config {
	return Config{
		Validators:  vs,
		Blocks:      []BlockID{0, 1},
		MaxSlot:     maxSlot,
		TimeoutGate: DefaultTimeoutGateSteps,
		SkipAfter:   DefaultSkipGateSteps,
		MaxTime:     DefaultMaxTimeSteps,
		TimeStep:    1,
	}
}

// BoundedTimeConfig is the millisecond-resolution variant used for
// optimal-path timing analysis. Every protocol action costs
// NetworkLatencyMS and the round-1 timeout costs Round1TimeoutMS.
// Callers should prune exploration at TimeCutoffMS.
func BoundedTimeConfig(vs ValidatorSet, maxSlot Slot) Config {
	return Config{
		Validators:  vs,
		Blocks:      []BlockID{0, 1},
		MaxSlot:     maxSlot,
		StepCost:    NetworkLatencyMS,
		TimeoutCost: Round1TimeoutMS,
		SkipAfter:   Round1TimeoutMS + Round2TimeoutMS,
	}
}

// Validate reports configuration errors that would make the transition
// relation degenerate.
func (c Config) Validate() error {
	if c.Validators.Len() == 0 {
		return fmt.Errorf("config has no validators")
	}
	if len(c.Blocks) == 0 {
		return fmt.Errorf("config has an empty block universe")
	}
	if c.MaxTime > 0 && c.TimeStep <= 0 {
		return fmt.Errorf("config enables AdvanceTime (MaxTime=%d) without a positive TimeStep", c.MaxTime)
	}
	return nil
}

// Initial returns the starting state: slot 0, the slot-0 leader,
// no proposal, empty vote and finalization sets, round 1, time 0.
func (c Config) Initial() State {
	return State{
		Slot:    0,
		Leader:  c.Validators.Leader(0),
		VotesR1: NewVoteSet(),
		VotesR2: NewVoteSet(),
		Round:   Round1,
	}
}

// Transitions enumerates every legal successor of s, in a fixed order:
// AdvanceTime, Propose, VoteRound1, FinalizeFast, TimeoutToRound2,
// VoteRound2, FinalizeFallback, SkipSlot, AdvanceSlot.
// Within an action, blocks follow the configured universe order and
// validators follow the set's canonical order, so the enumeration is
// deterministic across runs.
//
// Every successor is a fresh value; s is never modified.
func (c Config) Transitions(s State) []State {
	var out []State

	nVals := uint(c.Validators.Len())

	// AdvanceTime: a no-op action moving only the clock, so that
	// time-gated transitions become eventually enabled during BFS.
	if c.MaxTime > 0 && s.Time < c.MaxTime {
		ns := s
		ns.Time += c.TimeStep
		out = append(out, ns)
	}

	// Propose: one successor per candidate block.
	// Byzantine and offline leaders never propose in this model;
	// their slots are eventually skipped instead.
	if !s.HasProposal && c.Validators.IsHonest(s.Leader) {
		for _, b := range c.Blocks {
			ns := s
			ns.HasProposal = true
			ns.Proposal = b
			ns.Time += c.StepCost
			out = append(out, ns)
		}
	}

	if s.HasProposal && s.Round == Round1 {
		// VoteRound1: each honest validator that has not yet voted
		// for the proposal.
		for i := 0; i < c.Validators.Len(); i++ {
			v := c.Validators.ByIndex(i)
			if v.Byzantine || v.Offline {
				continue
			}
			if s.VotesR1.Has(s.Proposal, uint(i)) {
				continue
			}
			ns := s
			ns.VotesR1 = s.VotesR1.With(s.Proposal, uint(i), nVals)
			ns.Time += c.StepCost
			out = append(out, ns)
		}

		stake := s.VotesR1.StakeFor(s.Proposal, c.Validators)

		// FinalizeFast: the fast quorum is met in round 1.
		if stake >= c.Validators.FastQuorum() && !s.HasFinalization(s.Proposal, s.Slot, Round1) {
			ns := s
			ns.Time += c.StepCost
			ns.Final = withFinalization(s.Final, Finalization{
				Block: s.Proposal,
				Slot:  s.Slot,
				Round: Round1,
				Time:  ns.Time,
				Stake: stake,
			})
			out = append(out, ns)
		}

		// TimeoutToRound2: the fast quorum is out of reach so far.
		if stake < c.Validators.FastQuorum() && s.Time >= c.TimeoutGate {
			ns := s
			ns.Round = Round2
			ns.Time += c.TimeoutCost
			out = append(out, ns)
		}
	}

	if s.HasProposal && s.Round == Round2 {
		// VoteRound2: symmetric to round 1.
		for i := 0; i < c.Validators.Len(); i++ {
			v := c.Validators.ByIndex(i)
			if v.Byzantine || v.Offline {
				continue
			}
			if s.VotesR2.Has(s.Proposal, uint(i)) {
				continue
			}
			ns := s
			ns.VotesR2 = s.VotesR2.With(s.Proposal, uint(i), nVals)
			ns.Time += c.StepCost
			out = append(out, ns)
		}

		// FinalizeFallback: the fallback quorum is met in round 2.
		stake := s.VotesR2.StakeFor(s.Proposal, c.Validators)
		if stake >= c.Validators.FallbackQuorum() && !s.HasFinalization(s.Proposal, s.Slot, Round2) {
			ns := s
			ns.Time += c.StepCost
			ns.Final = withFinalization(s.Final, Finalization{
				Block: s.Proposal,
				Slot:  s.Slot,
				Round: Round2,
				Time:  ns.Time,
				Stake: stake,
			})
			out = append(out, ns)
		}
	}

	// SkipSlot: nothing was proposed and the skip timeout has elapsed.
	if !s.HasProposal && s.Time >= c.SkipAfter && !s.IsSkipped(s.Slot) {
		ns := s
		ns.Skipped = withSkipped(s.Skipped, s.Slot)
		out = append(out, ns)
	}

	// AdvanceSlot: the current slot is decided. Per-slot proposal and
	// vote state is fully cleared; finalized and skipped sets carry over.
	if s.SlotDecided(s.Slot) && s.Slot < c.MaxSlot {
		next := s.Slot + 1
		out = append(out, State{
			Slot:    next,
			Leader:  c.Validators.Leader(next),
			VotesR1: NewVoteSet(),
			VotesR2: NewVoteSet(),
			Final:   s.Final,
			Skipped: s.Skipped,
			Round:   Round1,
		})
	}

	return out
}
