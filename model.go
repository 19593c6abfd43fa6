package bandrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// Images is a batch of multi-band images.
//
// Data is packed sample by sample, then band by band, with
// each band stored as a row-major H*W image.
type Images struct {
	Data anydiff.Res

	N int
	C int
	H int
	W int
}

// A Model classifies multi-band images by treating the
// spectral bands as the timesteps of a Bidir.
type Model struct {
	Bidir *Bidir
}

// NewModel creates a Model whose Bidir expects d.Steps
// bands per image.
func NewModel(c anyvec.Creator, d Dims, f ExtractorFactory) *Model {
	return &Model{Bidir: NewBidir(c, d, f)}
}

// Dims returns the dimensions of the model.
func (m *Model) Dims() Dims {
	return m.Bidir.Forward.Dims()
}

// Apply produces one score vector per band per sample.
//
// The number of bands must equal Dims().Steps.
// The result has img.C timesteps, each with img.N score
// vectors.
func (m *Model) Apply(img *Images) (anyseq.Seq, error) {
	seq, err := BandSeq(img, m.Dims())
	if err != nil {
		return nil, err
	}
	return m.Bidir.Apply(seq, nil)
}

// Parameters returns the parameters of the Bidir.
func (m *Model) Parameters() []*anydiff.Var {
	return m.Bidir.Parameters()
}

// BandSeq converts a batch of multi-band images into a
// sequence with one single-channel image per band.
//
// Pixel values are not modified.
func BandSeq(img *Images, d Dims) (anyseq.Seq, error) {
	if img.N <= 0 || img.C != d.Steps || img.H != d.Height || img.W != d.Width {
		return nil, shapeError("images (N, C, H, W)",
			[]int{essentials.MaxInt(img.N, 1), d.Steps, d.Height, d.Width},
			[]int{img.N, img.C, img.H, img.W})
	}
	imageSize := img.H * img.W
	if img.Data.Output().Len() != img.N*img.C*imageSize {
		return nil, shapeError("image data (packed N*C*H*W)",
			[]int{img.N * img.C * imageSize}, []int{img.Data.Output().Len()})
	}

	batches := make([]*anyseq.ResBatch, img.C)
	for band := range batches {
		parts := make([]anydiff.Res, img.N)
		present := make([]bool, img.N)
		for i := range parts {
			start := (i*img.C + band) * imageSize
			parts[i] = anydiff.Slice(img.Data, start, start+imageSize)
			present[i] = true
		}
		batches[band] = &anyseq.ResBatch{
			Packed:  anydiff.Concat(parts...),
			Present: present,
		}
	}
	return anyseq.ResSeq(img.Data.Output().Creator(), batches), nil
}

// Scores splits a score sequence up by sample.
//
// The result is indexed first by sample, then by
// timestep.
func Scores(seq anyseq.Seq) [][]anyvec.Vector {
	return anyseq.SeparateSeqs(seq.Output())
}
