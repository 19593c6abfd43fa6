package bandrnn

import (
	"sync"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
)

// Bidir runs a forward and a backward Cell over the same
// sequence and mixes their outputs at every timestep.
//
// The first input to the Mixer comes from the forward
// Cell; the second from the backward Cell.
type Bidir struct {
	Forward  *Cell
	Backward *Cell
	Mixer    anynet.Mixer

	// Sequential prevents the two Cells from running at
	// the same time.
	// The results are the same either way, and so are
	// panics raised by extractors.
	Sequential bool
}

// NewBidir creates a Bidir with two independently
// parameterized Cells and a FuseMixer.
// The factory is called eight times.
func NewBidir(c anyvec.Creator, d Dims, f ExtractorFactory) *Bidir {
	return &Bidir{
		Forward:  NewCell(c, d, Forward, f),
		Backward: NewCell(c, d, Backward, f),
		Mixer:    NewFuseMixer(c, d.Classes),
	}
}

// Apply applies the bidirectional RNN.
//
// Both Cells start from the same initial state.
// If start is nil, that state is all zeros.
//
// If either Cell fails, Apply fails.
func (b *Bidir) Apply(in anyseq.Seq, start *State) (anyseq.Seq, error) {
	var err error
	res := anyseq.Pool(in, func(in anyseq.Seq) anyseq.Seq {
		var forw, back *CellResult
		forw, back, err = b.applyCells(in, start)
		if err != nil {
			return in
		}
		return anyseq.MapN(func(n int, v ...anydiff.Res) anydiff.Res {
			return b.Mixer.Mix(v[0], v[1], n)
		}, forw.Output, back.Output)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Parameters returns the parameters of the Cells and the
// Mixer, if it implements anynet.Parameterizer.
func (b *Bidir) Parameters() []*anydiff.Var {
	res := append(b.Forward.Parameters(), b.Backward.Parameters()...)
	if p, ok := b.Mixer.(anynet.Parameterizer); ok {
		res = append(res, p.Parameters()...)
	}
	return res
}

func (b *Bidir) applyCells(in anyseq.Seq, start *State) (forw, back *CellResult,
	err error) {
	if b.Sequential {
		if forw, err = b.Forward.Apply(in, start); err != nil {
			return nil, nil, err
		}
		if back, err = b.Backward.Apply(in, start); err != nil {
			return nil, nil, err
		}
		return forw, back, nil
	}

	// Make sure lazily computed fields of the input are
	// filled in before it is shared.
	in.Output()
	in.Vars()

	// Panics are moved to the calling goroutine so that
	// they can be recovered like in sequential mode.
	var forwErr, backErr error
	var forwPanic, backPanic interface{}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer func() {
			forwPanic = recover()
		}()
		forw, forwErr = b.Forward.Apply(in, start)
	}()
	go func() {
		defer wg.Done()
		defer func() {
			backPanic = recover()
		}()
		back, backErr = b.Backward.Apply(in, start)
	}()
	wg.Wait()

	if forwPanic != nil {
		panic(forwPanic)
	} else if backPanic != nil {
		panic(backPanic)
	}

	if forwErr != nil {
		return nil, nil, forwErr
	} else if backErr != nil {
		return nil, nil, backErr
	}
	return forw, back, nil
}

// FuseMixer mixes a forward and a backward output by
// applying a fully-connected layer to their concatenation.
//
// The layer's inputs are the forward vector followed by
// the backward vector.
type FuseMixer struct {
	FC *anynet.FC
}

// NewFuseMixer creates a randomly initialized FuseMixer
// for vectors of the given size.
func NewFuseMixer(c anyvec.Creator, size int) *FuseMixer {
	return &FuseMixer{FC: anynet.NewFC(c, size*2, size)}
}

// Mix applies the layer to the per-sample concatenation
// of the batches.
func (f *FuseMixer) Mix(forw, back anydiff.Res, n int) anydiff.Res {
	return f.FC.Apply(interleave(forw, back, n), n)
}

// Parameters returns the layer's parameters.
func (f *FuseMixer) Parameters() []*anydiff.Var {
	return f.FC.Parameters()
}

// interleave joins two packed batches of n vectors so that
// each vector from a is followed by the corresponding
// vector from b.
func interleave(a, b anydiff.Res, n int) anydiff.Res {
	if n == 1 {
		return anydiff.Concat(a, b)
	}
	sizeA := a.Output().Len() / n
	sizeB := b.Output().Len() / n
	parts := make([]anydiff.Res, 0, n*2)
	for i := 0; i < n; i++ {
		parts = append(parts,
			anydiff.Slice(a, i*sizeA, (i+1)*sizeA),
			anydiff.Slice(b, i*sizeB, (i+1)*sizeB))
	}
	return anydiff.Concat(parts...)
}
