package classify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Any matches every value of a Condition field.
const Any = "none"

// Illumination conditions.
var Illuminations = []string{"normal", "illum1", "illum2"}

// A Condition selects samples by the acquisition settings
// encoded in their file paths.
//
// Each field is either Any (or empty) or one of the valid
// values: an entry of Illuminations, a position from 1 to
// 7, and a glasses setting of 1 or 5.
type Condition struct {
	Illum    string
	Position string
	Glasses  string
}

// Validate checks every field of the condition.
func (c Condition) Validate() error {
	if !isAny(c.Illum) && !contains(Illuminations, c.Illum) {
		return errors.Errorf("unknown illumination: %q", c.Illum)
	}
	if !isAny(c.Position) {
		if p, err := strconv.Atoi(c.Position); err != nil || p < 1 || p > 7 {
			return errors.Errorf("invalid position: %q", c.Position)
		}
	}
	if !isAny(c.Glasses) && c.Glasses != "1" && c.Glasses != "5" {
		return errors.Errorf("invalid glasses setting: %q", c.Glasses)
	}
	return nil
}

// IsAny returns true if the condition matches every
// sample.
func (c Condition) IsAny() bool {
	return isAny(c.Illum) && isAny(c.Position) && isAny(c.Glasses)
}

// Match checks if a sample path satisfies the condition.
//
// Paths name the position and glasses setting around the
// wavelength marker, as in ".../normal/3_W1_5/...".
func (c Condition) Match(path string) bool {
	if !isAny(c.Illum) && !strings.Contains(path, c.Illum) {
		return false
	}
	if !isAny(c.Position) && !strings.Contains(path, c.Position+"_W1") {
		return false
	}
	if !isAny(c.Glasses) && !strings.Contains(path, "W1_"+c.Glasses) {
		return false
	}
	return true
}

// String formats the condition as "illum position glasses".
func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", anyName(c.Illum), anyName(c.Position),
		anyName(c.Glasses))
}

// Filter creates a mask of the paths that match c.
func Filter(paths []string, c Condition) ([]bool, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	res := make([]bool, len(paths))
	for i, p := range paths {
		res[i] = c.Match(p)
	}
	return res, nil
}

// MaskedAccuracy computes the accuracy over the samples
// selected by mask.
//
// It fails if no samples are selected.
func MaskedAccuracy(predictions, labels []int, mask []bool) (float64, error) {
	if len(mask) != len(predictions) {
		return 0, errors.Errorf("have %d predictions but mask of length %d",
			len(predictions), len(mask))
	}
	var preds, targets []int
	for i, m := range mask {
		if m {
			preds = append(preds, predictions[i])
			if i < len(labels) {
				targets = append(targets, labels[i])
			}
		}
	}
	if len(preds) == 0 {
		return 0, errors.New("no samples match the condition")
	}
	return Accuracy(preds, targets)
}

func isAny(s string) bool {
	return s == "" || s == Any
}

func anyName(s string) string {
	if s == "" {
		return Any
	}
	return s
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
