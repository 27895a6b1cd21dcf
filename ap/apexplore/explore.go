// Package apexplore implements exhaustive breadth-first exploration of a
// transition system with visited-state deduplication.
//
// The explorer is generic over the state type: it only needs a successor
// function and a canonical key function. Keys must be structural, so two
// states with identical fields share one key regardless of the path that
// reached them.
package apexplore

import (
	"fmt"
	"log/slog"
)

// Options configures a single exploration.
type Options[S any] struct {
	// MaxStates is the hard cap on dequeued states.
	// Exploration that hits the cap is reported as truncated,
	// never as exhaustive.
	MaxStates int

	// RetainGraph keeps the full forward adjacency relation,
	// which path-existence queries (liveness) need.
	// Leave it off for invariant-per-state checking to save memory.
	RetainGraph bool

	// Prune, when set, rejects successors before they are enqueued.
	// The bounded-time model uses it to cut states past the
	// simulated-time cutoff.
	Prune func(S) bool

	// Log, when set, receives periodic progress records.
	Log *slog.Logger

	// ProgressEvery controls how often progress is logged,
	// in dequeued states. Defaults to 1000 when Log is set.
	ProgressEvery int
}

// DefaultMaxStates bounds exploration when Options.MaxStates is zero.
// State-space explosion is expected above single-digit validator counts,
// so exhaustive mode is meant for small configurations.
const DefaultMaxStates = 100_000

// Stats records the resource footprint of an exploration.
type Stats struct {
	// StatesVisited counts dequeued states, i.e. states whose
	// successors were generated.
	StatesVisited int

	// StatesDiscovered counts unique states ever enqueued,
	// including those still queued at truncation.
	StatesDiscovered int

	// Transitions counts successor edges generated.
	Transitions int

	// PeakQueueLen is the high-water mark of the BFS frontier.
	PeakQueueLen int
}

// Result is the outcome of one exploration.
type Result[S any] struct {
	// States maps canonical key to state, for every discovered state.
	States map[string]S

	// Order lists the keys of dequeued states in BFS order.
	// Iterating Order gives checkers a deterministic, reproducible
	// traversal of the checked states.
	Order []string

	// Graph maps a dequeued state's key to its successors' keys.
	// Nil unless Options.RetainGraph was set.
	Graph map[string][]string

	// Exhaustive is true when the frontier emptied before the state
	// budget was hit. A truncated run means "inconclusive", and callers
	// must never conflate it with a completed proof.
	Exhaustive bool

	Stats Stats
}

// Explore runs breadth-first search from initial over the next relation.
// A state is enqueued at most once, keyed by key(state).
func Explore[S any](initial S, next func(S) []S, key func(S) string, opts Options[S]) (*Result[S], error) {
	if next == nil {
		return nil, fmt.Errorf("nil transition function")
	}
	if key == nil {
		return nil, fmt.Errorf("nil key function")
	}

	maxStates := opts.MaxStates
	if maxStates <= 0 {
		maxStates = DefaultMaxStates
	}
	progressEvery := opts.ProgressEvery
	if progressEvery <= 0 {
		progressEvery = 1000
	}

	res := &Result[S]{
		States: make(map[string]S),
	}
	if opts.RetainGraph {
		res.Graph = make(map[string][]string)
	}

	initKey := key(initial)
	res.States[initKey] = initial
	queue := []string{initKey}
	res.Stats.PeakQueueLen = 1

	for len(queue) > 0 {
		if res.Stats.StatesVisited >= maxStates {
			// Budget exhausted with work still queued.
			res.Stats.StatesDiscovered = len(res.States)
			return res, nil
		}

		k := queue[0]
		queue = queue[1:]
		s := res.States[k]

		res.Order = append(res.Order, k)
		res.Stats.StatesVisited++

		var succKeys []string
		for _, ns := range next(s) {
			res.Stats.Transitions++

			nk := key(ns)
			_, seen := res.States[nk]

			// Pruned successors stay out of the retained graph too,
			// so every recorded edge resolves in States.
			if !seen && opts.Prune != nil && opts.Prune(ns) {
				continue
			}
			if opts.RetainGraph {
				succKeys = append(succKeys, nk)
			}
			if seen {
				continue
			}

			res.States[nk] = ns
			queue = append(queue, nk)
			if len(queue) > res.Stats.PeakQueueLen {
				res.Stats.PeakQueueLen = len(queue)
			}
		}
		if opts.RetainGraph {
			res.Graph[k] = succKeys
		}

		if opts.Log != nil && res.Stats.StatesVisited%progressEvery == 0 {
			opts.Log.Info(
				"Exploration progress",
				"visited", res.Stats.StatesVisited,
				"queued", len(queue),
				"discovered", len(res.States),
			)
		}
	}

	res.Exhaustive = true
	res.Stats.StatesDiscovered = len(res.States)
	return res, nil
}
