package apmodeltest

import (
	"math/rand/v2"
	"time"

	"github.com/gordian-engine/alpenglow/ap/apmodel"
)

// DeterministicValidatorSet returns an equal-stake validator set of size n
// with the default 80/60 quorum percentages.
//
// Each validator gets ID equal to its index and stake 100,
// matching the reference parameterization,
// so logs and violation output stay stable across test runs.
func DeterministicValidatorSet(n int) apmodel.ValidatorSet {
	vs, err := apmodel.NewValidatorSet(
		EqualStakeValidators(n),
		apmodel.DefaultFastQuorumPct,
		apmodel.DefaultFallbackQuorumPct,
	)
	if err != nil {
		panic(err)
	}
	return vs
}

// ByzantineValidatorSet is like DeterministicValidatorSet
// with the listed validator IDs marked Byzantine.
func ByzantineValidatorSet(n int, byzantine ...apmodel.ValidatorID) apmodel.ValidatorSet {
	vals := EqualStakeValidators(n)
	for _, id := range byzantine {
		vals[int(id)].Byzantine = true
	}

	vs, err := apmodel.NewValidatorSet(
		vals,
		apmodel.DefaultFastQuorumPct,
		apmodel.DefaultFallbackQuorumPct,
	)
	if err != nil {
		panic(err)
	}
	return vs
}

// EqualStakeValidators returns n honest validators with stake 100 each.
func EqualStakeValidators(n int) []apmodel.Validator {
	vals := make([]apmodel.Validator, n)
	for i := range vals {
		vals[i] = apmodel.Validator{
			ID:    apmodel.ValidatorID(i),
			Stake: 100,
		}
	}
	return vals
}

// LatencyValidators returns n honest validators with stake 100 and
// per-validator latencies drawn uniformly from [10ms, 200ms)
// using a deterministic seeded source.
func LatencyValidators(n int, seed uint64) []apmodel.Validator {
	rng := rand.New(rand.NewPCG(seed, seed))

	vals := EqualStakeValidators(n)
	for i := range vals {
		vals[i].Latency = time.Duration(10+rng.IntN(190)) * time.Millisecond
	}
	return vals
}
