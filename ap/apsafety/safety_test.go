package apsafety_test

import (
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"

	"github.com/gordian-engine/alpenglow/ap/apcheck"
	"github.com/gordian-engine/alpenglow/ap/apmodel"
	"github.com/gordian-engine/alpenglow/ap/apmodel/apmodeltest"
	"github.com/gordian-engine/alpenglow/ap/apsafety"
)

func invariantByName(t *testing.T, name string) apsafety.Invariant {
	t.Helper()

	for _, inv := range apsafety.Invariants() {
		if inv.Name == name {
			return inv
		}
	}
	t.Fatalf("no invariant named %q", name)
	return apsafety.Invariant{}
}

func TestCheck_AllHonest(t *testing.T) {
	t.Parallel()

	cfg := apmodel.SafetyConfig(apmodeltest.DeterministicValidatorSet(3), 1)

	rep, err := apsafety.Check(cfg, apsafety.Options{Log: slogt.New(t)})
	require.NoError(t, err)

	require.Equal(t, apcheck.OutcomePass, rep.Outcome)
	require.Empty(t, rep.Violations)
	require.True(t, rep.Stats.Exhaustive)
	require.Positive(t, rep.Stats.StatesVisited)
}

func TestCheck_FiveHonest(t *testing.T) {
	t.Parallel()

	cfg := apmodel.SafetyConfig(apmodeltest.DeterministicValidatorSet(5), 0)

	rep, err := apsafety.Check(cfg, apsafety.Options{Log: slogt.New(t)})
	require.NoError(t, err)

	require.Equal(t, apcheck.OutcomePass, rep.Outcome)
	require.Empty(t, rep.Violations)
	require.True(t, rep.Stats.Exhaustive)
}

func TestCheck_ByzantineMinority(t *testing.T) {
	t.Parallel()

	// One Byzantine of five: 400 of 500 honest stake,
	// exactly the fast quorum.
	cfg := apmodel.SafetyConfig(apmodeltest.ByzantineValidatorSet(5, 1), 0)

	rep, err := apsafety.Check(cfg, apsafety.Options{Log: slogt.New(t)})
	require.NoError(t, err)

	require.Equal(t, apcheck.OutcomePass, rep.Outcome)
	require.Empty(t, rep.Violations)
	require.True(t, rep.Stats.Exhaustive)

	// Even under a tight state budget no fork may surface.
	rep, err = apsafety.Check(cfg, apsafety.Options{MaxStates: 5000})
	require.NoError(t, err)
	require.Empty(t, rep.Violations)
}

func TestCheck_Idempotent(t *testing.T) {
	t.Parallel()

	cfg := apmodel.SafetyConfig(apmodeltest.DeterministicValidatorSet(4), 1)

	a, err := apsafety.Check(cfg, apsafety.Options{})
	require.NoError(t, err)

	b, err := apsafety.Check(cfg, apsafety.Options{})
	require.NoError(t, err)

	require.Equal(t, a.Stats, b.Stats)
	require.Equal(t, a.Outcome, b.Outcome)
}

func TestCheck_FallbackOnly(t *testing.T) {
	t.Parallel()

	// One Byzantine of four: 300 honest stake misses the 320 fast quorum,
	// so only round-2 finalizations are reachable, and they must be safe.
	cfg := apmodel.SafetyConfig(apmodeltest.ByzantineValidatorSet(4, 1), 0)

	rep, err := apsafety.Check(cfg, apsafety.Options{Log: slogt.New(t)})
	require.NoError(t, err)

	require.Equal(t, apcheck.OutcomePass, rep.Outcome)
	require.Empty(t, rep.Violations)
}

func TestCheck_TruncationIsInconclusive(t *testing.T) {
	t.Parallel()

	cfg := apmodel.SafetyConfig(apmodeltest.DeterministicValidatorSet(4), 2)

	rep, err := apsafety.Check(cfg, apsafety.Options{MaxStates: 10})
	require.NoError(t, err)

	require.Equal(t, apcheck.OutcomeInconclusive, rep.Outcome)
	require.False(t, rep.Stats.Exhaustive)
}

func TestNoFork_FlagsConflict(t *testing.T) {
	t.Parallel()

	cfg := apmodel.SafetyConfig(apmodeltest.DeterministicValidatorSet(3), 1)
	inv := invariantByName(t, "NoFork")

	// Finalizing the same block in both rounds is not a fork.
	s := apmodel.State{
		Slot: 1,
		Final: []apmodel.Finalization{
			{Block: 0, Slot: 0, Round: apmodel.Round1, Time: 2, Stake: 300},
			{Block: 0, Slot: 0, Round: apmodel.Round2, Time: 5, Stake: 200},
		},
	}
	require.Empty(t, inv.Eval(cfg, s))

	// Two different blocks in one slot is.
	s.Final = []apmodel.Finalization{
		{Block: 0, Slot: 0, Round: apmodel.Round1, Time: 2, Stake: 300},
		{Block: 1, Slot: 0, Round: apmodel.Round2, Time: 5, Stake: 200},
	}
	vios := inv.Eval(cfg, s)
	require.Len(t, vios, 1)
	require.Equal(t, "NoFork", vios[0].Property)
	require.Contains(t, vios[0].Detail, "slot 0")
}

func TestQuorumValidity_FlagsUnderweightFinalization(t *testing.T) {
	t.Parallel()

	cfg := apmodel.SafetyConfig(apmodeltest.DeterministicValidatorSet(3), 1)
	inv := invariantByName(t, "QuorumValidity")

	// A past-slot entry at exactly the fallback quorum is fine.
	s := apmodel.State{
		Slot: 1,
		Final: []apmodel.Finalization{
			{Block: 0, Slot: 0, Round: apmodel.Round2, Time: 5, Stake: 180},
		},
	}
	require.Empty(t, inv.Eval(cfg, s))

	// One unit short of the fast quorum is flagged.
	s.Final = []apmodel.Finalization{
		{Block: 0, Slot: 0, Round: apmodel.Round1, Time: 2, Stake: 239},
	}
	vios := inv.Eval(cfg, s)
	require.Len(t, vios, 1)
	require.Equal(t, "QuorumValidity", vios[0].Property)
}

func TestQuorumValidity_RecountsLiveSlot(t *testing.T) {
	t.Parallel()

	cfg := apmodel.SafetyConfig(apmodeltest.DeterministicValidatorSet(3), 0)
	inv := invariantByName(t, "QuorumValidity")

	// The recorded stake claims a quorum but the live votes disagree.
	s := apmodel.State{
		Slot:        0,
		HasProposal: true,
		VotesR1:     apmodel.NewVoteSet().With(0, 0, 3),
		VotesR2:     apmodel.NewVoteSet(),
		Final: []apmodel.Finalization{
			{Block: 0, Slot: 0, Round: apmodel.Round1, Time: 2, Stake: 300},
		},
	}
	vios := inv.Eval(cfg, s)
	require.Len(t, vios, 1)
	require.Contains(t, vios[0].Detail, "live vote stake")
}
