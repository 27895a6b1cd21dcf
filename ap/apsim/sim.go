// Package apsim is the Monte-Carlo simulator for single consensus rounds
// at validator counts far beyond exhaustive-exploration limits.
//
// Each simulated slot is independent: the simulator draws per-validator
// participation from fixed Bernoulli distributions, accumulates stake
// against the quorums, and records which path finalized and how long it
// took. It builds no state graph and needs no deduplication; it provides
// probabilistic evidence, not proof.
package apsim

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/gordian-engine/alpenglow/ap/apmodel"
	"github.com/gordian-engine/alpenglow/ap/aprotor"
)

// Participation probabilities and timing penalties of the reference
// parameterization.
const (
	// DefaultHonestVoteProbR1 is the chance an honest online validator
	// receives the proposal in time to vote in round 1.
	DefaultHonestVoteProbR1 = 0.95

	// DefaultHonestVoteProbR2 is the round-2 equivalent; retries make
	// delivery more likely by then.
	DefaultHonestVoteProbR2 = 0.98

	// DefaultByzantineVoteProbR1 and R2 model Byzantine validators
	// withholding votes part of the time.
	DefaultByzantineVoteProbR1 = 0.7
	DefaultByzantineVoteProbR2 = 0.8

	// DefaultByzantineWithholdProb is the chance a Byzantine leader
	// withholds its proposal entirely.
	DefaultByzantineWithholdProb = 0.3

	// DefaultSkipLatency is the recorded latency of a slot abandoned
	// because no proposal arrived.
	DefaultSkipLatency = 250 * time.Millisecond

	// DefaultInterRoundPenalty is the fixed timeout cost separating
	// round 1 from round 2.
	DefaultInterRoundPenalty = 100 * time.Millisecond
)

// Config parameterizes one simulation run.
type Config struct {
	// Validators, with Byzantine/Offline flags and latencies populated.
	Validators []apmodel.Validator

	// Slots is the number of independent consensus rounds to simulate.
	Slots int

	// Quorum percentages; zero values use the 80/60 defaults.
	FastQuorumPct     uint64
	FallbackQuorumPct uint64

	// Participation probabilities; zero values use the defaults above.
	HonestVoteProbR1    float64
	HonestVoteProbR2    float64
	ByzantineVoteProbR1 float64
	ByzantineVoteProbR2 float64

	// ByzantineWithholdProb is the chance a Byzantine leader skips
	// proposing; zero uses the default. Set negative for never.
	ByzantineWithholdProb float64

	SkipLatency       time.Duration
	InterRoundPenalty time.Duration

	// Rotor, when set, replaces the flat leader-latency proposal model
	// with the relay-tree dissemination model.
	Rotor *aprotor.Disseminator

	// Seed makes runs reproducible.
	Seed uint64
}

// NewConfig builds a run configuration in the shape of the reference
// scale tests: nValidators equal-stake validators, the first
// byzantinePct percent Byzantine, the next offlinePct percent offline,
// and per-validator latencies drawn uniformly from [10ms, 200ms).
func NewConfig(nValidators int, byzantinePct, offlinePct int, slots int, seed uint64) (Config, error) {
	if nValidators <= 0 {
		return Config{}, fmt.Errorf("validator count must be positive, got %d", nValidators)
	}
	if byzantinePct < 0 || offlinePct < 0 || byzantinePct+offlinePct > 100 {
		return Config{}, fmt.Errorf("invalid fault percentages: %d byzantine + %d offline", byzantinePct, offlinePct)
	}

	rng := rand.New(rand.NewPCG(seed, seed))

	nByz := nValidators * byzantinePct / 100
	nOff := nValidators * offlinePct / 100

	vals := make([]apmodel.Validator, nValidators)
	for i := range vals {
		vals[i] = apmodel.Validator{
			ID:        apmodel.ValidatorID(i),
			Stake:     100,
			Byzantine: i < nByz,
			Offline:   i >= nByz && i < nByz+nOff,
			Latency:   time.Duration(10+rng.IntN(190)) * time.Millisecond,
		}
	}

	return Config{
		Validators: vals,
		Slots:      slots,
		Seed:       seed,
	}, nil
}

func (c Config) withDefaults() Config {
	if c.FastQuorumPct == 0 {
		c.FastQuorumPct = apmodel.DefaultFastQuorumPct
	}
	if c.FallbackQuorumPct == 0 {
		c.FallbackQuorumPct = apmodel.DefaultFallbackQuorumPct
	}
	if c.HonestVoteProbR1 == 0 {
		c.HonestVoteProbR1 = DefaultHonestVoteProbR1
	}
	if c.HonestVoteProbR2 == 0 {
		c.HonestVoteProbR2 = DefaultHonestVoteProbR2
	}
	if c.ByzantineVoteProbR1 == 0 {
		c.ByzantineVoteProbR1 = DefaultByzantineVoteProbR1
	}
	if c.ByzantineVoteProbR2 == 0 {
		c.ByzantineVoteProbR2 = DefaultByzantineVoteProbR2
	}
	if c.ByzantineWithholdProb == 0 {
		c.ByzantineWithholdProb = DefaultByzantineWithholdProb
	}
	if c.SkipLatency == 0 {
		c.SkipLatency = DefaultSkipLatency
	}
	if c.InterRoundPenalty == 0 {
		c.InterRoundPenalty = DefaultInterRoundPenalty
	}
	return c
}

// SlotOutcome classifies one simulated slot.
type SlotOutcome uint8

const (
	// OutcomeFastPath means round 1 met the fast quorum.
	OutcomeFastPath SlotOutcome = iota + 1

	// OutcomeFallbackPath means round 2 met the fallback quorum after a
	// round-1 timeout.
	OutcomeFallbackPath

	// OutcomeSkipped means no proposal arrived (offline or withholding
	// leader) and the slot timed out.
	OutcomeSkipped

	// OutcomeFailed means both quorums fell short.
	OutcomeFailed
)

// Summary aggregates a simulation run.
type Summary struct {
	Slots int

	Successes    int
	FastPath     int
	FallbackPath int
	Skipped      int
	Failed       int

	// SuccessRate is Successes/Slots; FastShare and FallbackShare are
	// fractions of the successes.
	SuccessRate   float64
	FastShare     float64
	FallbackShare float64

	Latency LatencyStats
}

// Run executes the Monte-Carlo simulation.
func Run(cfg Config, log *slog.Logger) (Summary, error) {
	if len(cfg.Validators) == 0 {
		return Summary{}, fmt.Errorf("no validators configured")
	}
	if cfg.Slots <= 0 {
		return Summary{}, fmt.Errorf("slot count must be positive, got %d", cfg.Slots)
	}
	cfg = cfg.withDefaults()

	vs, err := apmodel.NewValidatorSet(cfg.Validators, cfg.FastQuorumPct, cfg.FallbackQuorumPct)
	if err != nil {
		return Summary{}, fmt.Errorf("invalid validator set: %w", err)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))

	sum := Summary{Slots: cfg.Slots}
	latencies := make([]time.Duration, 0, cfg.Slots)

	for slot := 0; slot < cfg.Slots; slot++ {
		outcome, latency := simulateSlot(cfg, vs, apmodel.Slot(slot), rng)

		switch outcome {
		case OutcomeFastPath:
			sum.Successes++
			sum.FastPath++
			latencies = append(latencies, latency)
		case OutcomeFallbackPath:
			sum.Successes++
			sum.FallbackPath++
			latencies = append(latencies, latency)
		case OutcomeSkipped:
			sum.Skipped++
		case OutcomeFailed:
			sum.Failed++
		}
	}

	sum.SuccessRate = float64(sum.Successes) / float64(sum.Slots)
	if sum.Successes > 0 {
		sum.FastShare = float64(sum.FastPath) / float64(sum.Successes)
		sum.FallbackShare = float64(sum.FallbackPath) / float64(sum.Successes)
	}
	sum.Latency = computeLatencyStats(latencies)

	if log != nil {
		log.Info(
			"Simulation complete",
			"slots", sum.Slots,
			"successRate", sum.SuccessRate,
			"fastPath", sum.FastPath,
			"fallbackPath", sum.FallbackPath,
			"p99", sum.Latency.P99,
		)
	}
	return sum, nil
}

// simulateSlot runs one independent consensus round.
// Finalization latency follows the synchronous model: the proposal must
// propagate, then the slowest participating voter gates the quorum.
func simulateSlot(cfg Config, vs apmodel.ValidatorSet, slot apmodel.Slot, rng *rand.Rand) (SlotOutcome, time.Duration) {
	leaderIdx := int(slot) % vs.Len()
	leader := vs.ByIndex(leaderIdx)

	// An offline leader, or a Byzantine leader that withholds,
	// produces no proposal; the slot times out into a skip.
	if leader.Offline || (leader.Byzantine && rng.Float64() < cfg.ByzantineWithholdProb) {
		return OutcomeSkipped, cfg.SkipLatency
	}

	proposalTime := func(v apmodel.Validator) time.Duration {
		if cfg.Rotor != nil {
			return leader.Latency + cfg.Rotor.ArrivalTime(leader.ID, v.ID)
		}
		return leader.Latency
	}

	// Round 1: voting waits on proposal propagation plus the voter's
	// own latency.
	r1Vote := func(v apmodel.Validator) time.Duration {
		return proposalTime(v) + v.Latency
	}
	r1Stake, r1Slowest, r1Receivers := sampleRound(vs, r1Vote, cfg.HonestVoteProbR1, cfg.ByzantineVoteProbR1, rng)

	// Under the rotor model the block must also be reconstructible from
	// the shreds that reached online validators.
	if cfg.Rotor != nil && !cfg.Rotor.CanReconstruct(r1Receivers) {
		return OutcomeSkipped, cfg.SkipLatency
	}

	r1Time := r1Slowest
	if r1Stake >= vs.FastQuorum() {
		return OutcomeFastPath, r1Time
	}

	// Round 2, after the fixed inter-round timeout. Participants
	// already hold the proposal, so only their vote latency counts.
	r2Vote := func(v apmodel.Validator) time.Duration { return v.Latency }
	r2Stake, r2Slowest, _ := sampleRound(vs, r2Vote, cfg.HonestVoteProbR2, cfg.ByzantineVoteProbR2, rng)

	r2Time := r1Time + cfg.InterRoundPenalty + r2Slowest
	if r2Stake >= vs.FallbackQuorum() {
		return OutcomeFallbackPath, r2Time
	}
	return OutcomeFailed, r2Time
}

// sampleRound draws one voting round: each online validator participates
// with its honesty-dependent probability. It returns the participating
// stake, the completion time of the slowest participant, and the count
// of online validators reached.
func sampleRound(
	vs apmodel.ValidatorSet,
	voteTime func(apmodel.Validator) time.Duration,
	honestProb, byzantineProb float64,
	rng *rand.Rand,
) (stake uint64, slowest time.Duration, receivers int) {
	for i := 0; i < vs.Len(); i++ {
		v := vs.ByIndex(i)
		if v.Offline {
			continue
		}
		receivers++

		prob := honestProb
		if v.Byzantine {
			prob = byzantineProb
		}
		if rng.Float64() >= prob {
			continue
		}

		stake += v.Stake
		if t := voteTime(v); t > slowest {
			slowest = t
		}
	}
	return stake, slowest, receivers
}
