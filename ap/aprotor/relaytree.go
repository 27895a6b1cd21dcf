package aprotor

// RelayTree arranges relay positions in layers with a fixed number of
// children per node. With BranchFactor=3, positions fall into layers like:
//
//	0 (L0)
//	1 2 3 (L1)
//	4 5 6 7 8 9 10 11 12 (L2)
//
// Position 0 is the relay that receives shreds directly from the leader;
// a position's layer is the number of relay hops behind it.
type RelayTree struct {
	BranchFactor int
}

// Layer returns the layer containing the given position.
func (t RelayTree) Layer(position int) int {
	if position == 0 {
		return 0
	}

	layer := 1
	layerWidth := t.BranchFactor
	entriesSoFar := 1 + t.BranchFactor

	for {
		if position < entriesSoFar {
			return layer
		}

		layer++
		layerWidth *= t.BranchFactor
		entriesSoFar += layerWidth
	}
}
