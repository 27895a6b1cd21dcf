package apmodel

import (
	"encoding/binary"
	"slices"
)

// State is one node of the protocol transition system.
//
// A State is a pure value: transitions derive new states and never mutate
// their input, and equality is structural, so two states with identical
// fields are the same node regardless of the paths that produced them.
// Structural identity is what makes visited-state deduplication sound.
type State struct {
	Slot   Slot
	Leader ValidatorID

	// Proposal for the current slot, if HasProposal is set.
	HasProposal bool
	Proposal    BlockID

	VotesR1 VoteSet
	VotesR2 VoteSet

	// Final holds every finalization so far, sorted by (slot, round, block).
	// It is carried forward across AdvanceSlot.
	Final []Finalization

	// Skipped holds the slots abandoned by skip certificates, sorted.
	Skipped []Slot

	Round Round

	// Time is the logical clock: a step counter or simulated milliseconds,
	// depending on the configuration driving the transitions.
	Time int64
}

// Key returns a canonical binary encoding of the state,
// suitable for use as a map key for structural deduplication.
// All set-valued fields are encoded in sorted order.
func (s State) Key() string {
	buf := make([]byte, 0, 64)

	buf = binary.BigEndian.AppendUint32(buf, uint32(s.Slot))
	buf = binary.BigEndian.AppendUint16(buf, uint16(s.Leader))
	if s.HasProposal {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(s.Proposal))
	buf = append(buf, byte(s.Round))
	buf = binary.BigEndian.AppendUint64(buf, uint64(s.Time))

	buf = s.VotesR1.appendKey(buf)
	buf = s.VotesR2.appendKey(buf)

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s.Final)))
	for _, f := range s.Final {
		buf = binary.BigEndian.AppendUint16(buf, uint16(f.Block))
		buf = binary.BigEndian.AppendUint32(buf, uint32(f.Slot))
		buf = append(buf, byte(f.Round))
		buf = binary.BigEndian.AppendUint64(buf, uint64(f.Time))
		buf = binary.BigEndian.AppendUint64(buf, f.Stake)
	}

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s.Skipped)))
	for _, sl := range s.Skipped {
		buf = binary.BigEndian.AppendUint32(buf, uint32(sl))
	}

	return string(buf)
}

// IsFinalized reports whether any block has been finalized for the slot.
func (s State) IsFinalized(slot Slot) bool {
	for _, f := range s.Final {
		if f.Slot == slot {
			return true
		}
	}
	return false
}

// IsSkipped reports whether the slot holds a skip certificate.
func (s State) IsSkipped(slot Slot) bool {
	_, ok := slices.BinarySearch(s.Skipped, slot)
	return ok
}

// SlotDecided reports whether the slot is finalized or skipped.
func (s State) SlotDecided(slot Slot) bool {
	return s.IsFinalized(slot) || s.IsSkipped(slot)
}

// HasFinalization reports whether the exact (block, slot, round) entry exists,
// ignoring the recorded time and stake.
func (s State) HasFinalization(b BlockID, slot Slot, r Round) bool {
	for _, f := range s.Final {
		if f.Block == b && f.Slot == slot && f.Round == r {
			return true
		}
	}
	return false
}

func cmpFinalization(a, b Finalization) int {
	if a.Slot != b.Slot {
		if a.Slot < b.Slot {
			return -1
		}
		return 1
	}
	if a.Round != b.Round {
		if a.Round < b.Round {
			return -1
		}
		return 1
	}
	if a.Block != b.Block {
		if a.Block < b.Block {
			return -1
		}
		return 1
	}
	if a.Time != b.Time {
		if a.Time < b.Time {
			return -1
		}
		return 1
	}
	switch {
	case a.Stake < b.Stake:
		return -1
	case a.Stake > b.Stake:
		return 1
	default:
		return 0
	}
}

// withFinalization returns a sorted copy of fins with f inserted.
func withFinalization(fins []Finalization, f Finalization) []Finalization {
	i, _ := slices.BinarySearchFunc(fins, f, cmpFinalization)
	out := make([]Finalization, 0, len(fins)+1)
	out = append(out, fins[:i]...)
	out = append(out, f)
	out = append(out, fins[i:]...)
	return out
}

// withSkipped returns a sorted copy of skipped with slot inserted.
func withSkipped(skipped []Slot, slot Slot) []Slot {
	i, _ := slices.BinarySearch(skipped, slot)
	out := make([]Slot, 0, len(skipped)+1)
	out = append(out, skipped[:i]...)
	out = append(out, slot)
	out = append(out, skipped[i:]...)
	return out
}
