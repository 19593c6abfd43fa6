package bandrnn

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
)

// testSeq generates a batch of n image sequences.
//
// The resulting sequence depends on one variable per
// timestep, i.e. it is not constant.
func testSeq(c anyvec.Creator, n int, d Dims) anyseq.Seq {
	var seqs [][]anyvec.Vector
	for i := 0; i < n; i++ {
		var seq []anyvec.Vector
		for j := 0; j < d.Steps; j++ {
			vec := c.MakeVector(d.ImageSize())
			anyvec.Rand(vec, anyvec.Normal, nil)
			seq = append(seq, vec)
		}
		seqs = append(seqs, seq)
	}
	return varSeq(c, anyseq.ConstSeqList(c, seqs))
}

// varSeq turns every timestep of a sequence into a
// variable.
func varSeq(c anyvec.Creator, seq anyseq.Seq) anyseq.Seq {
	resBatches := make([]*anyseq.ResBatch, len(seq.Output()))
	for i, x := range seq.Output() {
		resBatches[i] = &anyseq.ResBatch{
			Packed:  anydiff.NewVar(x.Packed),
			Present: x.Present,
		}
	}
	return anyseq.ResSeq(c, resBatches)
}

// denseFactory creates randomly initialized single-layer
// extractors.
func denseFactory(c anyvec.Creator, d Dims) ExtractorFactory {
	return func() Extractor {
		return &LayerExtractor{Layer: anynet.NewFC(c, d.ImageSize(), d.Classes)}
	}
}

// constFactory creates extractors which produce the same
// scores for every image.
func constFactory(c anyvec.Creator, scores []float64) ExtractorFactory {
	return func() Extractor {
		return ExtractorFunc(func(images anydiff.Res, n int) (anydiff.Res, error) {
			var data []float64
			for i := 0; i < n; i++ {
				data = append(data, scores...)
			}
			return anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(data))), nil
		})
	}
}

func zeroHiddenLayers(c *Cell) {
	for _, b := range c.branches() {
		zero := b.Hidden.Weights.Vector.Creator().MakeNumeric(0)
		b.Hidden.Weights.Vector.Scale(zero)
		b.Hidden.Biases.Vector.Scale(zero)
	}
}

// testEquivalent ensures that two ways of producing an
// anyseq.Seq are equivalent.
func testEquivalent(t *testing.T, actual, expected func() anyseq.Seq) {
	t.Run("Vars", func(t *testing.T) {
		testVarEquivalence(t, actual, expected)
	})
	t.Run("Out", func(t *testing.T) {
		testOutEquivalence(t, actual(), expected())
	})
	t.Run("Grad", func(t *testing.T) {
		testGradEquivalence(t, actual, expected)
	})
}

func testVarEquivalence(t *testing.T, actual, expected func() anyseq.Seq) {
	vars1 := actual().Vars()
	vars2 := expected().Vars()
	if len(vars1) != len(vars2) {
		t.Errorf("variable mismatch: expected %d vars got %d", len(vars2), len(vars1))
	} else {
		for x := range vars1 {
			if !vars2.Has(x) {
				t.Error("variable mismatch")
			}
		}
	}
}

func testOutEquivalence(t *testing.T, actual, expected anyseq.Seq) {
	actOut := actual.Output()
	expOut := expected.Output()
	if len(actOut) != len(expOut) {
		t.Errorf("output length: expected %d got %d", len(expOut), len(actOut))
		return
	}
	for i, actBatch := range actOut {
		expBatch := expOut[i]
		if !reflect.DeepEqual(actBatch.Present, expBatch.Present) {
			t.Errorf("present mismatch: time %d: expected %v got %v", i,
				expBatch.Present, actBatch.Present)
			return
		}
		if !vectorsClose(actBatch.Packed, expBatch.Packed, 1e-4) {
			t.Errorf("output mismatch: time %d: expected %v got %v", i,
				expBatch.Packed.Data(), actBatch.Packed.Data())
			return
		}
	}
}

func testGradEquivalence(t *testing.T, actual, expected func() anyseq.Seq) {
	t.Run("AllVars", func(t *testing.T) {
		actGrad := computeGradient(actual(), nil)
		expGrad := computeGradient(expected(), nil)
		gradientsEquivalent(t, actGrad, expGrad)
	})
	t.Run("SingleVar", func(t *testing.T) {
		for v := range actual().Vars() {
			vs := anydiff.NewVarSet(v)
			actGrad := computeGradient(actual(), vs)
			expGrad := computeGradient(expected(), vs)
			gradientsEquivalent(t, actGrad, expGrad)
		}
	})
}

func computeGradient(seq anyseq.Seq, vars anydiff.VarSet) anydiff.Grad {
	if vars == nil {
		vars = seq.Vars()
	}

	grad := anydiff.NewGrad(vars.Slice()...)

	upstream := make([]*anyseq.Batch, len(seq.Output()))
	for i, data := range computeGradientUpstream(seq) {
		x := seq.Output()[i]
		upstream[i] = &anyseq.Batch{
			Present: x.Present,
			Packed:  x.Packed.Creator().MakeVectorData(data),
		}
	}

	seq.Propagate(upstream, grad)
	return grad
}

// computeGradientUpstream generates the deterministic
// upstream used by computeGradient.
func computeGradientUpstream(seq anyseq.Seq) [][]float64 {
	gen := rand.New(rand.NewSource(1337))
	var res [][]float64
	for _, x := range seq.Output() {
		data := make([]float64, x.Packed.Len())
		for i := range data {
			data[i] = gen.NormFloat64()
		}
		res = append(res, data)
	}
	return res
}

func gradientsEquivalent(t *testing.T, actGrad, expGrad anydiff.Grad) {
	for variable, vec := range actGrad {
		expVec := expGrad[variable]
		if expVec == nil {
			t.Error("excess variable")
			continue
		}
		if !vectorsClose(vec, expVec, 1e-4) {
			t.Errorf("gradient mismatch: expected %v got %v", expVec.Data(),
				vec.Data())
			return
		}
	}
}

func vectorsClose(actual, expected anyvec.Vector, tol float64) bool {
	if actual.Len() != expected.Len() {
		return false
	}
	diff := actual.Copy()
	diff.Sub(expected)
	return diff.Len() == 0 || anyvec.AbsMax(diff).(float64) <= tol
}
