package bandrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Dims stores the fixed dimensions of a model.
type Dims struct {
	// Steps is the sequence length, i.e. the number of
	// spectral bands.
	Steps int

	// Height and Width are the dimensions of every
	// single-band image.
	Height int
	Width  int

	// Classes is the size of the score vectors.
	// It is also the size of the recurrent state.
	Classes int
}

// ImageSize returns the number of components in one
// single-band image.
func (d Dims) ImageSize() int {
	return d.Height * d.Width
}

// A State is a batch of hidden and cell states.
//
// Both fields are packed batches with one vector of
// Dims.Classes components per sequence.
// Either both fields are set or neither is.
type State struct {
	Hidden anydiff.Res
	Cell   anydiff.Res
}

// ZeroState creates a State of n all-zero vectors.
func ZeroState(c anyvec.Creator, n, size int) *State {
	return &State{
		Hidden: anydiff.NewConst(c.MakeVector(n * size)),
		Cell:   anydiff.NewConst(c.MakeVector(n * size)),
	}
}

// startState resolves the initial state of a run.
//
// A nil State selects the zero state.
// A half-specified State is rejected rather than filled
// in with zeros.
func startState(c anyvec.Creator, s *State, n, size int) (*State, error) {
	if s == nil {
		return ZeroState(c, n, size), nil
	}
	if s.Hidden == nil || s.Cell == nil {
		return nil, shapeError("initial state (hidden, cell)", []int{n * size, n * size},
			[]int{packedLen(s.Hidden), packedLen(s.Cell)})
	}
	for _, x := range []struct {
		name string
		res  anydiff.Res
	}{{"initial hidden state", s.Hidden}, {"initial cell state", s.Cell}} {
		if x.res.Output().Len() != n*size {
			return nil, shapeError(x.name+" (packed N*classes)", []int{n * size},
				[]int{x.res.Output().Len()})
		}
	}
	return s, nil
}

func packedLen(r anydiff.Res) int {
	if r == nil {
		return 0
	}
	return r.Output().Len()
}
