package apmodel

import "fmt"

// ValidatorID identifies a validator within a [ValidatorSet].
// Fixtures conventionally assign IDs equal to the validator's index,
// but the model only requires IDs to be unique.
type ValidatorID uint16

// BlockID identifies a candidate block within the configured block universe.
type BlockID uint16

// Slot is a discrete consensus instance producing at most one finalized block.
type Slot uint32

// Round is the voting round within a slot.
//
// Round 1 is the notarization round targeting the fast quorum;
// round 2 is the finalization round targeting the fallback quorum
// after a round-1 timeout.
type Round uint8

const (
	Round1 Round = 1
	Round2 Round = 2
)

func (r Round) String() string {
	switch r {
	case Round1:
		return "round1"
	case Round2:
		return "round2"
	default:
		return fmt.Sprintf("Round(%d)", uint8(r))
	}
}

// Finalization is an irrevocable commit of a block for a slot at a round.
//
// Time and Stake are recorded at the moment the finalizing transition fires:
// Time is the logical clock of the successor state,
// and Stake is the vote stake that satisfied the quorum.
// Recording the stake on the entry keeps quorum validity checkable
// after an AdvanceSlot transition has cleared the per-slot vote sets.
type Finalization struct {
	Block BlockID
	Slot  Slot
	Round Round
	Time  int64
	Stake uint64
}
