package aprotor

import (
	"fmt"
	"slices"
	"time"

	"github.com/gordian-engine/alpenglow/ap/apmodel"
)

// Disseminator models how long a proposal takes to reach each validator.
//
// Validators are assigned relay-tree positions in stake order, highest
// stake first, so the stake needed for a quorum concentrates in the
// shallow layers. A validator's proposal-arrival latency is one hop to
// reach the root relay plus one hop per layer below it.
type Disseminator struct {
	shredder *Shredder
	tree     RelayTree
	hop      time.Duration

	// arrival latency per validator ID, fixed at construction.
	arrivals map[apmodel.ValidatorID]time.Duration
}

// DefaultBranchFactor is the relay fan-out used when a config does not
// override it.
const DefaultBranchFactor = 4

// NewDisseminator builds the dissemination model for the given validators.
// The payload is shredded into one shred per validator, with the data
// shred count set to 80% of the total, mirroring the reconstruction
// threshold of the dissemination protocol.
func NewDisseminator(vals []apmodel.Validator, branchFactor int, hop time.Duration) (*Disseminator, error) {
	if len(vals) == 0 {
		return nil, fmt.Errorf("no validators")
	}
	if branchFactor <= 0 {
		branchFactor = DefaultBranchFactor
	}
	if hop <= 0 {
		return nil, fmt.Errorf("hop latency must be positive, got %v", hop)
	}

	dataShreds := len(vals) * 80 / 100
	if dataShreds == 0 {
		dataShreds = 1
	}
	shredder, err := NewShredder(dataShreds, len(vals)-dataShreds)
	if err != nil {
		return nil, fmt.Errorf("failed to build shredder: %w", err)
	}

	// Stake order, ties broken by ID for determinism.
	ordered := slices.Clone(vals)
	slices.SortFunc(ordered, func(a, b apmodel.Validator) int {
		if a.Stake != b.Stake {
			if a.Stake > b.Stake {
				return -1
			}
			return 1
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	tree := RelayTree{BranchFactor: branchFactor}
	arrivals := make(map[apmodel.ValidatorID]time.Duration, len(ordered))
	for pos, v := range ordered {
		hops := tree.Layer(pos) + 1
		arrivals[v.ID] = time.Duration(hops) * hop
	}

	return &Disseminator{
		shredder: shredder,
		tree:     tree,
		hop:      hop,
		arrivals: arrivals,
	}, nil
}

// ArrivalTime returns the proposal-arrival latency for the validator,
// not counting the leader's own send latency.
// The leader observes its own proposal immediately.
func (d *Disseminator) ArrivalTime(leader, v apmodel.ValidatorID) time.Duration {
	if v == leader {
		return 0
	}
	return d.arrivals[v]
}

// MinReceivers is the number of validators that must receive shreds for
// the block to be reconstructible anywhere in the network.
func (d *Disseminator) MinReceivers() int {
	return d.shredder.MinShreds()
}

// CanReconstruct reports whether the given number of shred-receiving
// validators suffices to reassemble the block.
func (d *Disseminator) CanReconstruct(receivers int) bool {
	return receivers >= d.shredder.MinShreds()
}

// ShredPayload erasure-codes a concrete payload with this disseminator's
// per-validator shred layout.
func (d *Disseminator) ShredPayload(payload []byte) ([][]byte, error) {
	return d.shredder.Shred(payload)
}

// ReassemblePayload reconstructs a payload of the given size from a
// partially received shred slice.
func (d *Disseminator) ReassemblePayload(shreds [][]byte, size int) ([]byte, error) {
	return d.shredder.Reassemble(shreds, size)
}
