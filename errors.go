package bandrnn

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrShapeMismatch is matched (via errors.Is) by every
// error caused by a tensor whose dimensions disagree with
// a model's configuration.
var ErrShapeMismatch = errors.New("shape mismatch")

// A ShapeError reports an input whose shape does not match
// the shape a component was configured for.
//
// Expected and Actual are listed in the same dimension
// order, which is described by Context.
type ShapeError struct {
	Context  string
	Expected []int
	Actual   []int
}

func (s *ShapeError) Error() string {
	return fmt.Sprintf("%s: expected shape %v but got %v", s.Context, s.Expected,
		s.Actual)
}

// Is returns true for ErrShapeMismatch.
func (s *ShapeError) Is(target error) bool {
	return target == ErrShapeMismatch
}

func shapeError(context string, expected, actual []int) error {
	return errors.WithStack(&ShapeError{
		Context:  context,
		Expected: expected,
		Actual:   actual,
	})
}
