package apmodel

import (
	"fmt"
	"slices"
	"time"

	"github.com/bits-and-blooms/bitset"
)

// Validator is a single protocol participant.
// A validator is immutable once its set is constructed for a run.
type Validator struct {
	ID    ValidatorID
	Stake uint64

	// Byzantine validators deviate from the protocol:
	// they never propose in the exhaustive model,
	// and they vote only probabilistically in the statistical simulator.
	Byzantine bool

	// Offline validators neither propose nor vote.
	// Only the statistical simulator distinguishes offline from Byzantine.
	Offline bool

	// Simulated one-way network latency.
	// Only consulted by the statistical simulator.
	Latency time.Duration
}

// ValidatorSet is an ordered, immutable collection of validators
// with the run's quorum thresholds computed once at construction.
type ValidatorSet struct {
	vals    []Validator
	idxByID map[ValidatorID]int

	totalStake     uint64
	fastQuorum     uint64
	fallbackQuorum uint64
}

// Default quorum percentages for the two finalization paths.
const (
	DefaultFastQuorumPct     = 80
	DefaultFallbackQuorumPct = 60
)

// NewValidatorSet builds a validator set and computes the stake quorums.
// The quorum thresholds are floor(totalStake * pct / 100),
// and a vote stake meets a quorum when it is greater than or equal to the threshold.
func NewValidatorSet(vals []Validator, fastPct, fallbackPct uint64) (ValidatorSet, error) {
	if len(vals) == 0 {
		return ValidatorSet{}, fmt.Errorf("validator set must not be empty")
	}
	if fastPct == 0 || fastPct > 100 {
		return ValidatorSet{}, fmt.Errorf("fast quorum percentage %d out of range (0, 100]", fastPct)
	}
	if fallbackPct == 0 || fallbackPct > 100 {
		return ValidatorSet{}, fmt.Errorf("fallback quorum percentage %d out of range (0, 100]", fallbackPct)
	}
	if fallbackPct > fastPct {
		return ValidatorSet{}, fmt.Errorf("fallback quorum percentage %d exceeds fast quorum percentage %d", fallbackPct, fastPct)
	}

	vs := ValidatorSet{
		vals:    slices.Clone(vals),
		idxByID: make(map[ValidatorID]int, len(vals)),
	}
	for i, v := range vs.vals {
		if v.Stake == 0 {
			return ValidatorSet{}, fmt.Errorf("validator %d has zero stake", v.ID)
		}
		if _, dup := vs.idxByID[v.ID]; dup {
			return ValidatorSet{}, fmt.Errorf("duplicate validator ID %d", v.ID)
		}
		vs.idxByID[v.ID] = i
		vs.totalStake += v.Stake
	}

	vs.fastQuorum = vs.totalStake * fastPct / 100
	vs.fallbackQuorum = vs.totalStake * fallbackPct / 100
	return vs, nil
}

func (vs ValidatorSet) Len() int {
	return len(vs.vals)
}

// ByIndex returns the validator at position i in the set's canonical order.
func (vs ValidatorSet) ByIndex(i int) Validator {
	return vs.vals[i]
}

// IndexOf returns the position of the validator with the given ID,
// or -1 if the ID is not in the set.
func (vs ValidatorSet) IndexOf(id ValidatorID) int {
	i, ok := vs.idxByID[id]
	if !ok {
		return -1
	}
	return i
}

// Validators returns a copy of the validators in canonical order.
func (vs ValidatorSet) Validators() []Validator {
	return slices.Clone(vs.vals)
}

func (vs ValidatorSet) TotalStake() uint64 {
	return vs.totalStake
}

func (vs ValidatorSet) FastQuorum() uint64 {
	return vs.fastQuorum
}

func (vs ValidatorSet) FallbackQuorum() uint64 {
	return vs.fallbackQuorum
}

// Leader returns the deterministic leader for the given slot:
// the validator at index slot mod len.
func (vs ValidatorSet) Leader(s Slot) ValidatorID {
	return vs.vals[int(s)%len(vs.vals)].ID
}

// IsHonest reports whether the validator with the given ID
// follows the protocol faithfully.
// Unknown IDs are not honest.
func (vs ValidatorSet) IsHonest(id ValidatorID) bool {
	i, ok := vs.idxByID[id]
	if !ok {
		return false
	}
	return !vs.vals[i].Byzantine && !vs.vals[i].Offline
}

// StakeOf sums the stake of the validators whose indices are set in mask.
func (vs ValidatorSet) StakeOf(mask *bitset.BitSet) uint64 {
	var stake uint64
	for i, ok := mask.NextSet(0); ok; i, ok = mask.NextSet(i + 1) {
		if int(i) >= len(vs.vals) {
			break
		}
		stake += vs.vals[i].Stake
	}
	return stake
}
