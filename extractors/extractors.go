// Package extractors provides neural network Extractors
// for bandrnn models.
package extractors

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/bandrnn"
)

// Names of the built-in extractors.
const (
	DenseName = "dense"
	MLPName   = "mlp"
)

// Dense is an Extractor which applies a single
// fully-connected layer to the flattened image.
type Dense struct {
	FC *anynet.FC
}

// NewDense creates a randomly initialized Dense.
func NewDense(c anyvec.Creator, inSize, outSize int) *Dense {
	return &Dense{FC: anynet.NewFC(c, inSize, outSize)}
}

// Extract applies the layer.
func (d *Dense) Extract(images anydiff.Res, n int) (anydiff.Res, error) {
	if err := checkInput(images, n, d.FC.InCount); err != nil {
		return nil, err
	}
	return d.FC.Apply(images, n), nil
}

// Parameters returns the layer's parameters.
func (d *Dense) Parameters() []*anydiff.Var {
	return d.FC.Parameters()
}

// MLP is an Extractor with one tanh hidden layer.
type MLP struct {
	InSize int
	Net    anynet.Net
}

// NewMLP creates a randomly initialized MLP.
func NewMLP(c anyvec.Creator, inSize, hidden, outSize int) *MLP {
	return &MLP{
		InSize: inSize,
		Net: anynet.Net{
			anynet.NewFC(c, inSize, hidden),
			anynet.Tanh,
			anynet.NewFC(c, hidden, outSize),
		},
	}
}

// Extract applies the network.
func (m *MLP) Extract(images anydiff.Res, n int) (anydiff.Res, error) {
	if err := checkInput(images, n, m.InSize); err != nil {
		return nil, err
	}
	return m.Net.Apply(images, n), nil
}

// Parameters returns the network's parameters.
func (m *MLP) Parameters() []*anydiff.Var {
	return m.Net.Parameters()
}

// New creates a factory for the named extractor.
//
// The hidden size is only used by MLP extractors.
func New(c anyvec.Creator, name string, inSize, outSize,
	hidden int) (bandrnn.ExtractorFactory, error) {
	if inSize <= 0 || outSize <= 0 {
		return nil, errors.Errorf("invalid extractor sizes: in=%d out=%d", inSize, outSize)
	}
	switch name {
	case DenseName:
		return func() bandrnn.Extractor {
			return NewDense(c, inSize, outSize)
		}, nil
	case MLPName:
		if hidden <= 0 {
			return nil, errors.Errorf("invalid hidden size for %s extractor: %d", name,
				hidden)
		}
		return func() bandrnn.Extractor {
			return NewMLP(c, inSize, hidden, outSize)
		}, nil
	default:
		return nil, errors.Errorf("unknown extractor: %q", name)
	}
}

func checkInput(images anydiff.Res, n, inSize int) error {
	if images.Output().Len() != n*inSize {
		return errors.WithStack(&bandrnn.ShapeError{
			Context:  fmt.Sprintf("extractor input (packed N*%d)", inSize),
			Expected: []int{n * inSize},
			Actual:   []int{images.Output().Len()},
		})
	}
	return nil
}
