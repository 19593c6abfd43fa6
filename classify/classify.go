// Package classify turns band-wise score sequences into
// class predictions.
package classify

import (
	"math"

	"github.com/pkg/errors"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
)

// MeanScores averages the score vectors of each sequence
// over all of its timesteps.
//
// Every sequence must be present at every timestep.
// The result is a packed batch with one vector per
// sequence.
func MeanScores(seq anyseq.Seq) anydiff.Res {
	steps := len(seq.Output())
	if steps == 0 {
		return anydiff.NewConst(seq.Creator().MakeVector(0))
	}
	scaler := seq.Creator().MakeNumeric(1 / float64(steps))
	return anydiff.Scale(anyseq.SumEach(seq), scaler)
}

// Softmax computes class probabilities for a packed batch
// of score vectors with numClasses components each.
func Softmax(scores anyvec.Vector, numClasses int) [][]float64 {
	var res [][]float64
	for _, row := range rows(scores, numClasses) {
		max := math.Inf(-1)
		for _, x := range row {
			max = math.Max(max, x)
		}
		probs := make([]float64, len(row))
		var sum float64
		for i, x := range row {
			probs[i] = math.Exp(x - max)
			sum += probs[i]
		}
		for i := range probs {
			probs[i] /= sum
		}
		res = append(res, probs)
	}
	return res
}

// Predict returns the highest-scoring class for every
// vector in a packed batch.
//
// Ties go to the lowest class index.
func Predict(scores anyvec.Vector, numClasses int) []int {
	var res []int
	for _, row := range rows(scores, numClasses) {
		var best int
		for i, x := range row {
			if x > row[best] {
				best = i
			}
		}
		res = append(res, best)
	}
	return res
}

// Accuracy computes the fraction of correct predictions.
func Accuracy(predictions, labels []int) (float64, error) {
	if len(predictions) != len(labels) {
		return 0, errors.Errorf("have %d predictions but %d labels", len(predictions),
			len(labels))
	} else if len(labels) == 0 {
		return 0, errors.New("no labels")
	}
	var correct int
	for i, p := range predictions {
		if p == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(labels)), nil
}

func rows(v anyvec.Vector, size int) [][]float64 {
	if size <= 0 || v.Len()%size != 0 {
		panic("vector size not divisible by class count")
	}
	data := float64s(v)
	res := make([][]float64, len(data)/size)
	for i := range res {
		res[i] = data[i*size : (i+1)*size]
	}
	return res
}

func float64s(v anyvec.Vector) []float64 {
	switch data := v.Data().(type) {
	case []float64:
		return data
	case []float32:
		res := make([]float64, len(data))
		for i, x := range data {
			res[i] = float64(x)
		}
		return res
	default:
		panic("unsupported numeric type")
	}
}
