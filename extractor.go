// Package bandrnn classifies multi-band images by running
// a bidirectional gated RNN over the spectral bands.
//
// Each band is treated as one timestep.
// At every timestep, the gates of the RNN are computed by
// injected Extractors, which turn single-band images into
// class scores.
package bandrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
)

// An Extractor maps single-channel images to unnormalized
// class scores.
//
// The images argument is a packed batch of n images, one
// after another.
// The result must be a packed batch of n score vectors.
//
// Errors returned by an Extractor are passed through the
// recurrent layers without modification.
type Extractor interface {
	Extract(images anydiff.Res, n int) (anydiff.Res, error)
}

// An ExtractorFactory creates a new, independently
// parameterized Extractor every time it is called.
type ExtractorFactory func() Extractor

// ExtractorFunc is an Extractor which calls itself.
type ExtractorFunc func(images anydiff.Res, n int) (anydiff.Res, error)

// Extract calls f.
func (f ExtractorFunc) Extract(images anydiff.Res, n int) (anydiff.Res, error) {
	return f(images, n)
}

// LayerExtractor uses an anynet.Layer as an Extractor.
//
// Layers report bad input sizes by panicking, so the
// layer must accept packed images of the size the model
// is configured for.
type LayerExtractor struct {
	Layer anynet.Layer
}

// Extract applies the layer.
func (l *LayerExtractor) Extract(images anydiff.Res, n int) (anydiff.Res, error) {
	return l.Layer.Apply(images, n), nil
}

// Parameters returns the layer's parameters if it is an
// anynet.Parameterizer.
func (l *LayerExtractor) Parameters() []*anydiff.Var {
	if p, ok := l.Layer.(anynet.Parameterizer); ok {
		return p.Parameters()
	}
	return nil
}
