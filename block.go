package bandrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet/anyrnn"
	"github.com/unixpickle/anyvec"
)

// Block creates an anyrnn.Block which performs the same
// timestep computation as the Cell.
//
// The Block always steps through its inputs in the order
// it is fed them, regardless of the Cell's direction.
// Since an anyrnn.Block cannot return errors, the Block
// panics if an extractor fails.
func (c *Cell) Block() anyrnn.Block {
	return &cellBlock{Cell: c}
}

type cellBlock struct {
	Cell *Cell
}

func (b *cellBlock) Start(n int) anyrnn.State {
	size := n * b.Cell.dims.Classes
	present := make(anyrnn.PresentMap, n)
	for i := range present {
		present[i] = true
	}
	return &blockState{
		Hidden:     b.Cell.creator.MakeVector(size),
		Cell:       b.Cell.creator.MakeVector(size),
		PresentMap: present,
	}
}

// PropagateStart does nothing, since the start state is
// constant.
func (b *cellBlock) PropagateStart(s anyrnn.StateGrad, g anydiff.Grad) {
}

func (b *cellBlock) Step(s anyrnn.State, in anyvec.Vector) anyrnn.Res {
	state := s.(*blockState)
	inPool := anydiff.NewVar(in)
	hiddenPool := anydiff.NewVar(state.Hidden)
	cellPool := anydiff.NewVar(state.Cell)

	n := state.PresentMap.NumPresent()
	hidden, cell, err := b.Cell.step(inPool, hiddenPool, cellPool, n)
	if err != nil {
		panic(err)
	}

	joined := anydiff.Concat(hidden, cell)
	var params []*anydiff.Var
	for v := range joined.Vars() {
		if v != inPool && v != hiddenPool && v != cellPool {
			params = append(params, v)
		}
	}
	vars := anydiff.NewVarSet(params...)

	return &blockRes{
		Classes:    b.Cell.dims.Classes,
		InPool:     inPool,
		HiddenPool: hiddenPool,
		CellPool:   cellPool,
		Joined:     joined,
		OutState: &blockState{
			Hidden:     hidden.Output(),
			Cell:       cell.Output(),
			PresentMap: state.PresentMap,
		},
		V: vars,
	}
}

type blockState struct {
	Hidden     anyvec.Vector
	Cell       anyvec.Vector
	PresentMap anyrnn.PresentMap
}

func (b *blockState) Present() anyrnn.PresentMap {
	return b.PresentMap
}

func (b *blockState) Reduce(p anyrnn.PresentMap) anyrnn.State {
	return &blockState{
		Hidden:     reducePacked(b.Hidden, b.PresentMap, p),
		Cell:       reducePacked(b.Cell, b.PresentMap, p),
		PresentMap: p,
	}
}

type blockGrad struct {
	Hidden     anyvec.Vector
	Cell       anyvec.Vector
	PresentMap anyrnn.PresentMap
	Size       int
}

func (b *blockGrad) Present() anyrnn.PresentMap {
	return b.PresentMap
}

func (b *blockGrad) Expand(p anyrnn.PresentMap) anyrnn.StateGrad {
	union := make(anyrnn.PresentMap, len(b.PresentMap))
	for i, x := range b.PresentMap {
		union[i] = x || p[i]
	}
	return &blockGrad{
		Hidden:     expandPacked(b.Hidden, b.PresentMap, union, b.Size),
		Cell:       expandPacked(b.Cell, b.PresentMap, union, b.Size),
		PresentMap: union,
		Size:       b.Size,
	}
}

type blockRes struct {
	Classes int

	InPool     *anydiff.Var
	HiddenPool *anydiff.Var
	CellPool   *anydiff.Var

	// Joined is the new hidden state followed by the new
	// cell state.
	Joined   anydiff.Res
	OutState *blockState
	V        anydiff.VarSet
}

func (b *blockRes) State() anyrnn.State {
	return b.OutState
}

func (b *blockRes) Output() anyvec.Vector {
	return b.OutState.Hidden
}

func (b *blockRes) Vars() anydiff.VarSet {
	return b.V
}

func (b *blockRes) Propagate(u anyvec.Vector, s anyrnn.StateGrad,
	g anydiff.Grad) (anyvec.Vector, anyrnn.StateGrad) {
	c := u.Creator()
	size := b.OutState.Hidden.Len()

	var upstream anyvec.Vector
	if s == nil {
		upstream = c.Concat(u, c.MakeVector(size))
	} else {
		stateGrad := s.(*blockGrad)
		u.Add(stateGrad.Hidden)
		upstream = c.Concat(u, stateGrad.Cell)
	}

	pools := []*anydiff.Var{b.InPool, b.HiddenPool, b.CellPool}
	for _, p := range pools {
		g[p] = p.Vector.Creator().MakeVector(p.Vector.Len())
	}

	b.Joined.Propagate(upstream, g)

	down := g[b.InPool]
	stateDown := &blockGrad{
		Hidden:     g[b.HiddenPool],
		Cell:       g[b.CellPool],
		PresentMap: b.OutState.PresentMap,
		Size:       b.Classes,
	}
	for _, p := range pools {
		delete(g, p)
	}
	return down, stateDown
}

// reducePacked removes the vectors of sequences which are
// present in oldPres but not in newPres.
func reducePacked(v anyvec.Vector, oldPres, newPres anyrnn.PresentMap) anyvec.Vector {
	numPres := oldPres.NumPresent()
	if numPres == 0 {
		return v
	}
	size := v.Len() / numPres
	var kept []anyvec.Vector
	var offset int
	for i, pres := range oldPres {
		if !pres {
			continue
		}
		if newPres[i] {
			kept = append(kept, v.Slice(offset, offset+size))
		}
		offset += size
	}
	return v.Creator().Concat(kept...)
}

// expandPacked inserts zero vectors for sequences which
// are present in newPres but not in oldPres.
func expandPacked(v anyvec.Vector, oldPres, newPres anyrnn.PresentMap,
	size int) anyvec.Vector {
	var parts []anyvec.Vector
	var offset int
	for i, pres := range newPres {
		if !pres {
			continue
		}
		if oldPres[i] {
			parts = append(parts, v.Slice(offset, offset+size))
			offset += size
		} else {
			parts = append(parts, v.Creator().MakeVector(size))
		}
	}
	return v.Creator().Concat(parts...)
}
