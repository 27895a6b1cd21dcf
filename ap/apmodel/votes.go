package apmodel

import (
	"encoding/binary"
	"slices"

	"github.com/bits-and-blooms/bitset"
)

// VoteSet records which validators voted for which blocks within one round.
// Votes per block are kept as a bitset over validator indices,
// so a validator appears at most once per block,
// while a Byzantine validator may still appear under multiple blocks.
//
// A VoteSet is treated as immutable: With returns a derived set
// and shares unmodified per-block bitsets with its parent.
type VoteSet struct {
	m map[BlockID]*bitset.BitSet
}

// NewVoteSet returns an empty vote set.
func NewVoteSet() VoteSet {
	return VoteSet{}
}

// Has reports whether the validator at index idx has voted for block b.
func (v VoteSet) Has(b BlockID, idx uint) bool {
	bs, ok := v.m[b]
	return ok && bs.Test(idx)
}

// With returns a new vote set that additionally records a vote
// for block b by the validator at index idx.
// nVals fixes the bitset width so that structurally equal sets
// produce identical canonical encodings.
func (v VoteSet) With(b BlockID, idx uint, nVals uint) VoteSet {
	m := make(map[BlockID]*bitset.BitSet, len(v.m)+1)
	for k, bs := range v.m {
		m[k] = bs
	}

	bs := bitset.New(nVals)
	if prev, ok := v.m[b]; ok {
		prev.CopyFull(bs)
	}
	bs.Set(idx)
	m[b] = bs

	return VoteSet{m: m}
}

// Count returns the number of votes recorded for block b.
func (v VoteSet) Count(b BlockID) uint {
	bs, ok := v.m[b]
	if !ok {
		return 0
	}
	return bs.Count()
}

// StakeFor returns the total stake voted for block b.
func (v VoteSet) StakeFor(b BlockID, vs ValidatorSet) uint64 {
	bs, ok := v.m[b]
	if !ok {
		return 0
	}
	return vs.StakeOf(bs)
}

// Blocks returns the block IDs with at least one vote, in ascending order.
func (v VoteSet) Blocks() []BlockID {
	out := make([]BlockID, 0, len(v.m))
	for b := range v.m {
		out = append(out, b)
	}
	slices.Sort(out)
	return out
}

// Voters returns a copy of the vote bitset for block b, or nil if none voted.
func (v VoteSet) Voters(b BlockID) *bitset.BitSet {
	bs, ok := v.m[b]
	if !ok {
		return nil
	}
	return bs.Clone()
}

// appendKey appends a canonical encoding of the vote set to buf.
// Blocks are encoded in sorted order so that structurally equal sets
// always encode identically, regardless of map iteration order.
func (v VoteSet) appendKey(buf []byte) []byte {
	blocks := v.Blocks()
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(blocks)))
	for _, b := range blocks {
		buf = binary.BigEndian.AppendUint16(buf, uint16(b))
		words := v.m[b].Bytes()
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(words)))
		for _, w := range words {
			buf = binary.BigEndian.AppendUint64(buf, w)
		}
	}
	return buf
}
