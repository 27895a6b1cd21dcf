package aptemporal_test

import (
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"

	"github.com/gordian-engine/alpenglow/ap/apcheck"
	"github.com/gordian-engine/alpenglow/ap/apmodel"
	"github.com/gordian-engine/alpenglow/ap/apmodel/apmodeltest"
	"github.com/gordian-engine/alpenglow/ap/aptemporal"
)

func compactBoundedConfig(vs apmodel.ValidatorSet, maxSlot apmodel.Slot) apmodel.Config {
	cfg := apmodel.BoundedTimeConfig(vs, maxSlot)
	cfg.Blocks = []apmodel.BlockID{0}
	return cfg
}

func TestCheckBoundedTime_AllHonest(t *testing.T) {
	t.Parallel()

	cfg := compactBoundedConfig(apmodeltest.DeterministicValidatorSet(3), 0)

	rep, err := aptemporal.CheckBoundedTime(cfg, aptemporal.BoundedTimeOptions{
		Options: aptemporal.Options{Log: slogt.New(t)},
	})
	require.NoError(t, err)

	require.Equal(t, apcheck.OutcomePass, rep.Outcome)
	require.Empty(t, rep.Violations)
	require.True(t, rep.Stats.Exhaustive)

	// Optimal fast path: propose, three votes, finalize,
	// each costing one network hop of 5ms.
	require.Equal(t, float64(1), rep.Metrics["fast_slots"])
	require.Equal(t, float64(25), rep.Metrics["fast_optimal_min_ms"])

	// Optimal fallback path: propose, immediate round-1 timeout,
	// two votes, finalize: 5 + 100 + 10 + 5.
	require.Equal(t, float64(1), rep.Metrics["fallback_slots"])
	require.Equal(t, float64(120), rep.Metrics["fallback_optimal_min_ms"])
}

func TestCheckBoundedTime_FallbackOnlyUnderByzantineStake(t *testing.T) {
	t.Parallel()

	// One Byzantine of four: the fast quorum is out of reach,
	// and the only finalizations observed are fallback ones.
	cfg := compactBoundedConfig(apmodeltest.ByzantineValidatorSet(4, 1), 0)

	rep, err := aptemporal.CheckBoundedTime(cfg, aptemporal.BoundedTimeOptions{
		Options: aptemporal.Options{Log: slogt.New(t)},
	})
	require.NoError(t, err)

	require.Equal(t, apcheck.OutcomePass, rep.Outcome)
	require.Zero(t, rep.Metrics["fast_slots"])
	require.Equal(t, float64(1), rep.Metrics["fallback_slots"])
}

func TestCheckBoundedTime_ViolationOnTightBudget(t *testing.T) {
	t.Parallel()

	// A 20ms fast budget is unachievable: the optimal fast path needs 25ms.
	cfg := compactBoundedConfig(apmodeltest.DeterministicValidatorSet(3), 0)

	rep, err := aptemporal.CheckBoundedTime(cfg, aptemporal.BoundedTimeOptions{
		FastBudget: 20,
	})
	require.NoError(t, err)

	require.Equal(t, apcheck.OutcomeFail, rep.Outcome)

	var found bool
	for _, v := range rep.Violations {
		if v.Round == apmodel.Round1 {
			found = true
			require.Equal(t, "BoundedTime", v.Property)
			require.Equal(t, int64(25), v.Time)
		}
	}
	require.True(t, found)
}

func TestCheckBoundedTime_TruncationIsInconclusive(t *testing.T) {
	t.Parallel()

	cfg := compactBoundedConfig(apmodeltest.DeterministicValidatorSet(3), 0)

	rep, err := aptemporal.CheckBoundedTime(cfg, aptemporal.BoundedTimeOptions{
		Options: aptemporal.Options{MaxStates: 10},
	})
	require.NoError(t, err)

	require.False(t, rep.Stats.Exhaustive)
	require.Empty(t, rep.Violations)
	require.Equal(t, apcheck.OutcomeInconclusive, rep.Outcome)
}

func TestCheckBoundedTime_CutoffPrunes(t *testing.T) {
	t.Parallel()

	cfg := compactBoundedConfig(apmodeltest.DeterministicValidatorSet(3), 0)

	full, err := aptemporal.CheckBoundedTime(cfg, aptemporal.BoundedTimeOptions{})
	require.NoError(t, err)

	tight, err := aptemporal.CheckBoundedTime(cfg, aptemporal.BoundedTimeOptions{
		TimeCutoff: 30,
	})
	require.NoError(t, err)

	// The tighter cutoff prunes the fallback path entirely
	// but keeps the fast one.
	require.Less(t, tight.Stats.StatesDiscovered, full.Stats.StatesDiscovered)
	require.Equal(t, float64(1), tight.Metrics["fast_slots"])
	require.Zero(t, tight.Metrics["fallback_slots"])
}
