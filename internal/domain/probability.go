package domain

import (
	"fmt"
	"math"
)

// ProbabilityTolerance is the maximum absolute deviation from 1.0 that a
// ProbabilityVector's components may sum to and still be considered valid.
const ProbabilityTolerance = 1e-6

// Label is the binary verdict produced for a piece of media.
type Label string

// Supported labels. The zero value is not a valid label.
const (
	// LabelReal marks media judged to be authentic.
	LabelReal Label = "Real"

	// LabelFake marks media judged to be synthetic or manipulated.
	LabelFake Label = "Fake"
)

// String returns the label text.
func (l Label) String() string { return string(l) }

// ProbabilityVector is a two-element distribution over {Real, Fake}.
// Every modality classifier produces one and the ensemble consumes them.
type ProbabilityVector struct {
	// Real is the probability that the media is authentic.
	Real float64 `json:"real" yaml:"real"`

	// Fake is the probability that the media is synthetic.
	Fake float64 `json:"fake" yaml:"fake"`
}

// NewProbabilityVector builds a vector and validates it.
func NewProbabilityVector(real, fake float64) (ProbabilityVector, error) {
	v := ProbabilityVector{Real: real, Fake: fake}
	if err := v.Validate(); err != nil {
		return ProbabilityVector{}, err
	}
	return v, nil
}

// Validate checks that both components are finite and non-negative and
// that they sum to 1.0 within ProbabilityTolerance.
func (v ProbabilityVector) Validate() error {
	for _, p := range [...]float64{v.Real, v.Fake} {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: non-finite component in %s", ErrInvalidProbability, v)
		}
		if p < 0 {
			return fmt.Errorf("%w: negative component in %s", ErrInvalidProbability, v)
		}
	}
	if math.Abs(v.Sum()-1.0) > ProbabilityTolerance {
		return fmt.Errorf("%w: components of %s sum to %g", ErrInvalidProbability, v, v.Sum())
	}
	return nil
}

// Sum returns Real + Fake.
func (v ProbabilityVector) Sum() float64 { return v.Real + v.Fake }

// Scale multiplies both components by w.
func (v ProbabilityVector) Scale(w float64) ProbabilityVector {
	return ProbabilityVector{Real: v.Real * w, Fake: v.Fake * w}
}

// Add returns the element-wise sum of v and o.
func (v ProbabilityVector) Add(o ProbabilityVector) ProbabilityVector {
	return ProbabilityVector{Real: v.Real + o.Real, Fake: v.Fake + o.Fake}
}

// Label derives the verdict for v. Fake wins only when its probability is
// strictly greater than Real's; exact ties resolve to Real.
func (v ProbabilityVector) Label() Label {
	if v.Fake > v.Real {
		return LabelFake
	}
	return LabelReal
}

// Confidence returns the probability assigned to the winning label.
func (v ProbabilityVector) Confidence() float64 {
	if v.Label() == LabelFake {
		return v.Fake
	}
	return v.Real
}

// String formats the vector as [real, fake].
func (v ProbabilityVector) String() string {
	return fmt.Sprintf("[%.6g, %.6g]", v.Real, v.Fake)
}
