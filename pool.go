package bandrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
)

// An inputPool stores one variable per timestep of a
// sequence so that a computation can use the timesteps
// directly and still back-propagate through the sequence
// exactly once.
type inputPool struct {
	In       anyseq.Seq
	Vars     []*anydiff.Var
	Presents [][]bool
}

func newInputPool(in anyseq.Seq) *inputPool {
	res := &inputPool{In: in}
	for _, batch := range in.Output() {
		res.Vars = append(res.Vars, anydiff.NewVar(batch.Packed))
		res.Presents = append(res.Presents, batch.Present)
	}
	return res
}

// Wrap produces a sequence equivalent to out which
// propagates the gradients of the pool variables into the
// pooled sequence.
func (p *inputPool) Wrap(out anyseq.Seq) anyseq.Seq {
	vars := anydiff.MergeVarSets(p.In.Vars(), out.Vars())
	for _, v := range p.Vars {
		vars.Del(v)
	}
	return &pooledSeq{Pool: p, Out: out, V: vars}
}

type pooledSeq struct {
	Pool *inputPool
	Out  anyseq.Seq
	V    anydiff.VarSet
}

func (p *pooledSeq) Creator() anyvec.Creator {
	return p.Out.Creator()
}

func (p *pooledSeq) Output() []*anyseq.Batch {
	return p.Out.Output()
}

func (p *pooledSeq) Vars() anydiff.VarSet {
	return p.V
}

func (p *pooledSeq) Propagate(upstream []*anyseq.Batch, g anydiff.Grad) {
	if !g.Intersects(p.Pool.In.Vars()) {
		p.Out.Propagate(upstream, g)
		return
	}

	for _, v := range p.Pool.Vars {
		g[v] = v.Vector.Creator().MakeVector(v.Vector.Len())
	}

	p.Out.Propagate(upstream, g)

	downstream := make([]*anyseq.Batch, len(p.Pool.Vars))
	for i, v := range p.Pool.Vars {
		downstream[i] = &anyseq.Batch{
			Packed:  g[v],
			Present: p.Pool.Presents[i],
		}
		delete(g, v)
	}

	p.Pool.In.Propagate(downstream, g)
}
