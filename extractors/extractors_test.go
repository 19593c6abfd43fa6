package extractors

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/bandrnn"
)

func TestNew(t *testing.T) {
	c := anyvec64.DefaultCreator{}

	factory, err := New(c, DenseName, 6, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := factory().(*Dense); !ok {
		t.Errorf("expected *Dense but got %T", factory())
	}

	factory, err = New(c, MLPName, 6, 3, 4)
	if err != nil {
		t.Fatal(err)
	}
	mlp, ok := factory().(*MLP)
	if !ok {
		t.Fatalf("expected *MLP but got %T", factory())
	}
	if len(mlp.Parameters()) != 4 {
		t.Errorf("expected 4 parameters but got %d", len(mlp.Parameters()))
	}

	a, b := factory().(*MLP), factory().(*MLP)
	if a.Parameters()[0] == b.Parameters()[0] {
		t.Error("factory reused parameters")
	}
}

func TestNewErrors(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	cases := map[string]struct {
		Name    string
		In, Out int
		Hidden  int
	}{
		"Unknown":   {"cnn", 6, 3, 0},
		"NoHidden":  {MLPName, 6, 3, 0},
		"NoInputs":  {DenseName, 0, 3, 0},
		"NoOutputs": {DenseName, 6, 0, 0},
	}
	for name, x := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := New(c, x.Name, x.In, x.Out, x.Hidden); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestExtract(t *testing.T) {
	for _, c := range []anyvec.Creator{anyvec32.DefaultCreator{}, anyvec64.DefaultCreator{}} {
		for _, extractor := range []bandrnn.Extractor{
			NewDense(c, 6, 3),
			NewMLP(c, 6, 5, 3),
		} {
			images := c.MakeVector(4 * 6)
			anyvec.Rand(images, anyvec.Normal, nil)
			out, err := extractor.Extract(anydiff.NewConst(images), 4)
			if err != nil {
				t.Fatal(err)
			}
			if out.Output().Len() != 4*3 {
				t.Errorf("%T: expected %d scores but got %d", extractor, 4*3,
					out.Output().Len())
			}

			_, err = extractor.Extract(anydiff.NewConst(images), 3)
			if !errors.Is(err, bandrnn.ErrShapeMismatch) {
				t.Errorf("%T: expected shape mismatch but got %v", extractor, err)
			}
		}
	}
}

func TestDenseInModel(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	d := bandrnn.Dims{Steps: 3, Height: 2, Width: 2, Classes: 4}
	factory, err := New(c, DenseName, d.ImageSize(), d.Classes, 0)
	if err != nil {
		t.Fatal(err)
	}
	model := bandrnn.NewModel(c, d, factory)

	// Every Dense holds a weight matrix and a bias.
	if n := len(model.Parameters()); n != 2*4*4+2 {
		t.Errorf("expected %d parameters but got %d", 2*4*4+2, n)
	}

	data := c.MakeVector(2 * d.Steps * d.ImageSize())
	anyvec.Rand(data, anyvec.Normal, nil)
	out, err := model.Apply(&bandrnn.Images{
		Data: anydiff.NewConst(data),
		N:    2,
		C:    d.Steps,
		H:    d.Height,
		W:    d.Width,
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, batch := range out.Output() {
		if batch.Packed.Len() != 2*d.Classes {
			t.Errorf("expected %d scores but got %d", 2*d.Classes, batch.Packed.Len())
		}
	}
}
