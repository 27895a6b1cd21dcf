// Package aprotor models the block-dissemination layer: proposals are
// erasure-coded into shreds and relayed through a stake-ordered fan-out
// tree, so that a sufficient fraction of stake receives the block before
// voting begins.
//
// The statistical simulator uses this package for its proposal-latency
// model; the exhaustive checkers abstract dissemination away entirely.
package aprotor

import (
	"bytes"
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// Shredder erasure-codes a block payload into data and parity shreds.
// Any MinShreds of the produced shreds suffice to reassemble the payload.
type Shredder struct {
	enc reedsolomon.Encoder

	dataShreds   int
	parityShreds int
}

// NewShredder returns a Shredder producing dataShreds+parityShreds shreds.
func NewShredder(dataShreds, parityShreds int) (*Shredder, error) {
	if dataShreds <= 0 {
		return nil, fmt.Errorf("data shred count must be positive, got %d", dataShreds)
	}
	if parityShreds < 0 {
		return nil, fmt.Errorf("parity shred count must not be negative, got %d", parityShreds)
	}

	enc, err := reedsolomon.New(dataShreds, parityShreds)
	if err != nil {
		return nil, fmt.Errorf("failed to build reed-solomon encoder: %w", err)
	}

	return &Shredder{
		enc:          enc,
		dataShreds:   dataShreds,
		parityShreds: parityShreds,
	}, nil
}

// MinShreds is the number of shreds required to reassemble a payload.
func (s *Shredder) MinShreds() int {
	return s.dataShreds
}

// TotalShreds is the number of shreds Shred produces.
func (s *Shredder) TotalShreds() int {
	return s.dataShreds + s.parityShreds
}

// Shred splits the payload into data shreds and appends parity shreds.
func (s *Shredder) Shred(payload []byte) ([][]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	shards, err := s.enc.Split(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to split payload: %w", err)
	}
	if err := s.enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("failed to encode parity shreds: %w", err)
	}
	return shards, nil
}

// Reassemble reconstructs the original payload of the given size from a
// shred slice with nil entries for missing shreds.
func (s *Shredder) Reassemble(shreds [][]byte, size int) ([]byte, error) {
	if len(shreds) != s.TotalShreds() {
		return nil, fmt.Errorf("got %d shred slots, want %d", len(shreds), s.TotalShreds())
	}

	if err := s.enc.Reconstruct(shreds); err != nil {
		return nil, fmt.Errorf("failed to reconstruct payload: %w", err)
	}

	var buf bytes.Buffer
	if err := s.enc.Join(&buf, shreds, size); err != nil {
		return nil, fmt.Errorf("failed to join shreds: %w", err)
	}
	return buf.Bytes(), nil
}
