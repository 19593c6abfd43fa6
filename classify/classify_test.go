package classify

import (
	"math"
	"reflect"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestMeanScores(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	seq := anyseq.ConstSeqList(c, [][]anyvec.Vector{
		{
			c.MakeVectorData([]float64{1, 2}),
			c.MakeVectorData([]float64{3, 6}),
		},
		{
			c.MakeVectorData([]float64{-1, 0}),
			c.MakeVectorData([]float64{1, 4}),
		},
	})
	actual := MeanScores(seq).Output().Data().([]float64)
	expected := []float64{2, 4, 0, 2}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("expected %v but got %v", expected, actual)
	}

	empty := MeanScores(anyseq.ConstSeqList(c, [][]anyvec.Vector{}))
	if empty.Output().Len() != 0 {
		t.Errorf("expected empty result but got %v", empty.Output().Data())
	}
}

func TestMeanScoresGradient(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	v1 := anydiff.NewVar(c.MakeVectorData([]float64{1, 2}))
	v2 := anydiff.NewVar(c.MakeVectorData([]float64{3, 4}))
	seq := anyseq.ResSeq(c, []*anyseq.ResBatch{
		{Packed: v1, Present: []bool{true}},
		{Packed: v2, Present: []bool{true}},
	})
	mean := MeanScores(seq)
	grad := anydiff.NewGrad(v1, v2)
	mean.Propagate(c.MakeVectorData([]float64{1, -1}), grad)
	for _, v := range []*anydiff.Var{v1, v2} {
		actual := grad[v].Data().([]float64)
		if !reflect.DeepEqual(actual, []float64{0.5, -0.5}) {
			t.Errorf("unexpected gradient: %v", actual)
		}
	}
}

func TestPredict(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	scores := c.MakeVectorData(c.MakeNumericList([]float64{
		0, 3, 1,
		5, 5, -1,
		-2, -3, -1,
	}))
	actual := Predict(scores, 3)
	expected := []int{1, 0, 2}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("expected %v but got %v", expected, actual)
	}
}

func TestSoftmax(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	scores := c.MakeVectorData([]float64{
		0, 0,
		1000, 1000 + math.Log(3),
	})
	actual := Softmax(scores, 2)
	expected := [][]float64{{0.5, 0.5}, {0.25, 0.75}}
	for i, row := range expected {
		for j, x := range row {
			if math.Abs(actual[i][j]-x) > 1e-8 {
				t.Errorf("row %d: expected %v but got %v", i, row, actual[i])
				break
			}
		}
	}
}

func TestAccuracy(t *testing.T) {
	acc, err := Accuracy([]int{1, 2, 3, 4}, []int{1, 0, 3, 0})
	if err != nil {
		t.Fatal(err)
	}
	if acc != 0.5 {
		t.Errorf("expected 0.5 but got %f", acc)
	}
	if _, err := Accuracy([]int{1}, []int{1, 2}); err == nil {
		t.Error("expected length error")
	}
	if _, err := Accuracy(nil, nil); err == nil {
		t.Error("expected empty error")
	}
}
