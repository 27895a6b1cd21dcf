package apmodel_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gordian-engine/alpenglow/ap/apmodel"
)

func TestStateKey_Structural(t *testing.T) {
	t.Parallel()

	// Two states assembled through different vote orders
	// must produce identical keys.
	a := apmodel.State{
		Slot:        1,
		Leader:      1,
		HasProposal: true,
		Proposal:    0,
		VotesR1:     apmodel.NewVoteSet().With(0, 0, 3).With(0, 2, 3),
		VotesR2:     apmodel.NewVoteSet(),
		Round:       apmodel.Round1,
	}
	b := a
	b.VotesR1 = apmodel.NewVoteSet().With(0, 2, 3).With(0, 0, 3)

	require.Equal(t, a.Key(), b.Key())
}

func TestStateKey_Distinguishes(t *testing.T) {
	t.Parallel()

	base := apmodel.State{
		Slot:    0,
		Leader:  0,
		VotesR1: apmodel.NewVoteSet(),
		VotesR2: apmodel.NewVoteSet(),
		Round:   apmodel.Round1,
	}

	keys := map[string]string{"base": base.Key()}

	s := base
	s.Slot = 1
	keys["slot"] = s.Key()

	s = base
	s.HasProposal = true
	keys["proposal"] = s.Key()

	s = base
	s.Round = apmodel.Round2
	keys["round"] = s.Key()

	s = base
	s.Time = 1
	keys["time"] = s.Key()

	s = base
	s.VotesR1 = base.VotesR1.With(0, 0, 3)
	keys["r1 vote"] = s.Key()

	s = base
	s.VotesR2 = base.VotesR2.With(0, 0, 3)
	keys["r2 vote"] = s.Key()

	s = base
	s.Final = []apmodel.Finalization{{Block: 0, Slot: 0, Round: apmodel.Round1, Time: 3, Stake: 300}}
	keys["finalization"] = s.Key()

	s = base
	s.Skipped = []apmodel.Slot{0}
	keys["skip"] = s.Key()

	seen := make(map[string]string, len(keys))
	for name, k := range keys {
		prev, dup := seen[k]
		require.Falsef(t, dup, "states %q and %q share a key", prev, name)
		seen[k] = name
	}
}

func TestState_SlotDecided(t *testing.T) {
	t.Parallel()

	s := apmodel.State{
		Final: []apmodel.Finalization{
			{Block: 1, Slot: 2, Round: apmodel.Round2, Time: 4, Stake: 200},
		},
		Skipped: []apmodel.Slot{0},
	}

	require.True(t, s.IsSkipped(0))
	require.False(t, s.IsFinalized(0))
	require.True(t, s.SlotDecided(0))

	require.False(t, s.SlotDecided(1))

	require.True(t, s.IsFinalized(2))
	require.False(t, s.IsSkipped(2))
	require.True(t, s.SlotDecided(2))
}

func TestState_HasFinalization(t *testing.T) {
	t.Parallel()

	s := apmodel.State{
		Final: []apmodel.Finalization{
			{Block: 1, Slot: 0, Round: apmodel.Round1, Time: 4, Stake: 300},
		},
	}

	require.True(t, s.HasFinalization(1, 0, apmodel.Round1))
	require.False(t, s.HasFinalization(1, 0, apmodel.Round2))
	require.False(t, s.HasFinalization(0, 0, apmodel.Round1))
	require.False(t, s.HasFinalization(1, 1, apmodel.Round1))
}
