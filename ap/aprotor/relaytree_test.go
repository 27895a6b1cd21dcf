package aprotor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gordian-engine/alpenglow/ap/apmodel"
	"github.com/gordian-engine/alpenglow/ap/apmodel/apmodeltest"
	"github.com/gordian-engine/alpenglow/ap/aprotor"
)

// With a branch factor of 3 the layers look like:
//
//	0 (L0)
//	1 2 3 (L1)
//	4 5 6 7 8 9 10 11 12 (L2)
//	13 14 15 16... (L3)

func TestRelayTree_Layer(t *testing.T) {
	t.Parallel()

	tree := aprotor.RelayTree{BranchFactor: 3}
	require.Equal(t, 0, tree.Layer(0))
	require.Equal(t, 1, tree.Layer(1))
	require.Equal(t, 1, tree.Layer(3))
	require.Equal(t, 2, tree.Layer(4))
	require.Equal(t, 2, tree.Layer(12))
	require.Equal(t, 3, tree.Layer(13))

	tree.BranchFactor = 5
	require.Equal(t, 0, tree.Layer(0))
	require.Equal(t, 1, tree.Layer(4))
	require.Equal(t, 2, tree.Layer(6))
}

func TestDisseminator_ArrivalTimes(t *testing.T) {
	t.Parallel()

	const hop = 5 * time.Millisecond

	// Ten equal-stake validators order by ID;
	// with branch factor 4: position 0 is one hop out,
	// positions 1-4 two hops, positions 5-9 three hops.
	d, err := aprotor.NewDisseminator(apmodeltest.EqualStakeValidators(10), 4, hop)
	require.NoError(t, err)

	require.Equal(t, time.Duration(0), d.ArrivalTime(0, 0))
	require.Equal(t, 1*hop, d.ArrivalTime(3, 0))
	require.Equal(t, 2*hop, d.ArrivalTime(0, 1))
	require.Equal(t, 2*hop, d.ArrivalTime(0, 4))
	require.Equal(t, 3*hop, d.ArrivalTime(0, 5))
	require.Equal(t, 3*hop, d.ArrivalTime(0, 9))
}

func TestDisseminator_StakeOrdering(t *testing.T) {
	t.Parallel()

	const hop = 5 * time.Millisecond

	// The heaviest validator takes the root relay position
	// regardless of its ID.
	vals := []apmodel.Validator{
		{ID: 0, Stake: 100},
		{ID: 1, Stake: 500},
		{ID: 2, Stake: 100},
	}

	d, err := aprotor.NewDisseminator(vals, 4, hop)
	require.NoError(t, err)

	require.Equal(t, 1*hop, d.ArrivalTime(2, 1))
	require.Equal(t, 2*hop, d.ArrivalTime(2, 0))
}

func TestDisseminator_Reconstruction(t *testing.T) {
	t.Parallel()

	// 10 validators: 8 data shreds, 2 parity shreds.
	d, err := aprotor.NewDisseminator(apmodeltest.EqualStakeValidators(10), 4, 5*time.Millisecond)
	require.NoError(t, err)

	require.Equal(t, 8, d.MinReceivers())
	require.False(t, d.CanReconstruct(7))
	require.True(t, d.CanReconstruct(8))
	require.True(t, d.CanReconstruct(10))

	payload := make([]byte, 256)
	for i := range payload {
		payload[i] = byte(i)
	}

	shreds, err := d.ShredPayload(payload)
	require.NoError(t, err)
	require.Len(t, shreds, 10)

	shreds[1] = nil
	shreds[6] = nil

	got, err := d.ReassemblePayload(shreds, len(payload))
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestNewDisseminator_Invalid(t *testing.T) {
	t.Parallel()

	_, err := aprotor.NewDisseminator(nil, 4, 5*time.Millisecond)
	require.Error(t, err)

	_, err = aprotor.NewDisseminator(apmodeltest.EqualStakeValidators(4), 4, 0)
	require.Error(t, err)
}
