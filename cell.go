package bandrnn

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
)

// Direction is the order in which a Cell visits the
// timesteps of a sequence.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// String returns "forward" or "backward".
func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// index maps the t-th visited timestep to its index in
// the sequence.
func (d Direction) index(t, steps int) int {
	if d == Backward {
		return steps - t - 1
	}
	return t
}

// A Branch computes the pre-activation of one gate from
// the current image and the previous hidden state.
type Branch struct {
	Extractor Extractor
	Hidden    *anynet.FC
}

func newBranch(c anyvec.Creator, classes int, f ExtractorFactory) *Branch {
	return &Branch{
		Extractor: f(),
		Hidden:    anynet.NewFC(c, classes, classes),
	}
}

// apply computes Extractor(images) + Hidden(hidden).
func (b *Branch) apply(images, hidden anydiff.Res, n, classes int) (anydiff.Res, error) {
	scores, err := b.Extractor.Extract(images, n)
	if err != nil {
		return nil, err
	}
	if scores.Output().Len() != n*classes {
		return nil, shapeError("extractor output (packed N*classes)", []int{n * classes},
			[]int{scores.Output().Len()})
	}
	return anydiff.Add(scores, b.Hidden.Apply(hidden, n)), nil
}

// Parameters returns the FC parameters followed by the
// extractor's parameters, if it has any.
func (b *Branch) Parameters() []*anydiff.Var {
	res := b.Hidden.Parameters()
	if p, ok := b.Extractor.(anynet.Parameterizer); ok {
		res = append(res, p.Parameters()...)
	}
	return res
}

// A Cell is a gated recurrent unit which runs over a
// sequence of single-channel images in one direction.
//
// At every visited timestep, with image x, hidden state h
// and cell state C:
//
//     f  = sigmoid(Forget(x, h))
//     i  = sigmoid(Input(x, h))
//     c  = tanh(Candidate(x, h))
//     C' = f*C + i*c
//     o  = sigmoid(Output(x, h))
//     h' = o*tanh(C')
//
// The output for the timestep is h'.
type Cell struct {
	Forget    *Branch
	Input     *Branch
	Candidate *Branch
	Output    *Branch

	creator anyvec.Creator
	dims    Dims
	dir     Direction
}

// NewCell creates a Cell with four extractors from f and
// randomly initialized hidden-state layers.
func NewCell(c anyvec.Creator, d Dims, dir Direction, f ExtractorFactory) *Cell {
	return &Cell{
		Forget:    newBranch(c, d.Classes, f),
		Input:     newBranch(c, d.Classes, f),
		Candidate: newBranch(c, d.Classes, f),
		Output:    newBranch(c, d.Classes, f),

		creator: c,
		dims:    d,
		dir:     dir,
	}
}

// Dims returns the dimensions the Cell was created with.
func (c *Cell) Dims() Dims {
	return c.dims
}

// Direction returns the Cell's traversal order.
func (c *Cell) Direction() Direction {
	return c.dir
}

// Parameters returns the parameters of every branch.
func (c *Cell) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for _, b := range c.branches() {
		res = append(res, b.Parameters()...)
	}
	return res
}

// A CellResult is the outcome of running a Cell over a
// sequence.
type CellResult struct {
	// Output stores the hidden state produced at every
	// timestep, in the order of the input sequence.
	Output anyseq.Seq

	// Hidden and Cell are the states after the last
	// visited timestep.
	Hidden anydiff.Res
	Cell   anydiff.Res
}

// Apply runs the Cell over a batch of sequences.
//
// Every timestep of in must have all of its sequences
// present, and each packed image must have
// Dims().ImageSize() components.
//
// If start is nil, the Cell starts from the zero state.
//
// Errors from extractors are returned as-is.
func (c *Cell) Apply(in anyseq.Seq, start *State) (*CellResult, error) {
	n, err := checkSeq(in, c.dims)
	if err != nil {
		return nil, err
	}
	start, err = startState(in.Creator(), start, n, c.dims.Classes)
	if err != nil {
		return nil, err
	}

	pool := newInputPool(in)
	outs := make([]*anyseq.ResBatch, c.dims.Steps)

	hidden, cell := start.Hidden, start.Cell
	for t := 0; t < c.dims.Steps; t++ {
		idx := c.dir.index(t, c.dims.Steps)
		hidden, cell, err = c.step(pool.Vars[idx], hidden, cell, n)
		if err != nil {
			return nil, err
		}
		outs[idx] = &anyseq.ResBatch{
			Packed:  hidden,
			Present: pool.Presents[idx],
		}
	}

	return &CellResult{
		Output: pool.Wrap(anyseq.ResSeq(in.Creator(), outs)),
		Hidden: hidden,
		Cell:   cell,
	}, nil
}

// step computes the next hidden and cell state.
func (c *Cell) step(images, hidden, cell anydiff.Res, n int) (anydiff.Res,
	anydiff.Res, error) {
	var pre [4]anydiff.Res
	for i, b := range c.branches() {
		var err error
		pre[i], err = b.apply(images, hidden, n, c.dims.Classes)
		if err != nil {
			return nil, nil, err
		}
	}

	forget := anydiff.Sigmoid(pre[0])
	input := anydiff.Sigmoid(pre[1])
	candidate := anydiff.Tanh(pre[2])
	newCell := anydiff.Add(anydiff.Mul(forget, cell), anydiff.Mul(input, candidate))

	output := anydiff.Sigmoid(pre[3])
	newHidden := anydiff.Mul(output, anydiff.Tanh(newCell))

	return newHidden, newCell, nil
}

func (c *Cell) branches() []*Branch {
	return []*Branch{c.Forget, c.Input, c.Candidate, c.Output}
}

// checkSeq makes sure that a sequence is a full batch of
// d.Steps timesteps of single-channel images.
//
// It returns the batch size.
func checkSeq(in anyseq.Seq, d Dims) (int, error) {
	outs := in.Output()
	if len(outs) != d.Steps || len(outs) == 0 {
		return 0, shapeError("sequence length (T)", []int{d.Steps}, []int{len(outs)})
	}
	n := len(outs[0].Present)
	if n == 0 {
		return 0, shapeError("batch size (N)", []int{1}, []int{0})
	}
	imageSize := d.ImageSize()
	for t, batch := range outs {
		if len(batch.Present) != n || batch.NumPresent() != n {
			return 0, shapeError(fmt.Sprintf("timestep %d present sequences", t),
				[]int{n}, []int{batch.NumPresent()})
		}
		if batch.Packed.Len() != n*imageSize {
			return 0, shapeError(fmt.Sprintf("timestep %d images (N, 1, H*W)", t),
				[]int{n, 1, imageSize}, []int{n, 1, batch.Packed.Len() / n})
		}
	}
	return n, nil
}
