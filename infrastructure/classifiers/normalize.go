package classifiers

import (
	"fmt"
	"math"

	"github.com/ahrav/fakescope/internal/domain"
)

// ScoreKind describes what a model's raw output numbers mean.
type ScoreKind string

// Supported score kinds.
const (
	// ScoreLogits marks unnormalized logits that still need a softmax.
	ScoreLogits ScoreKind = "logits"

	// ScoreProbabilities marks outputs that are already probabilities.
	ScoreProbabilities ScoreKind = "probabilities"
)

// Softmax converts logits into a probability distribution. The maximum is
// subtracted before exponentiation to avoid overflow.
func Softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}

	maxLogit := math.Inf(-1)
	for _, l := range logits {
		if l > maxLogit {
			maxLogit = l
		}
	}

	out := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(l - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// ToVector compresses an aligned [real, fake, ...] probability list into a
// two-class vector.
//
// With two or more classes the first two are kept and renormalized, so a
// model with extra classes still yields a valid distribution. A single
// output p is read as the fake probability: [1-p, p].
func ToVector(probs []float64) (domain.ProbabilityVector, error) {
	for i, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return domain.ProbabilityVector{}, fmt.Errorf("%w: score %d is %v", domain.ErrInvalidProbability, i, p)
		}
	}

	switch len(probs) {
	case 0:
		return domain.ProbabilityVector{}, fmt.Errorf("%w: no scores", domain.ErrInvalidProbability)
	case 1:
		if probs[0] > 1 {
			return domain.ProbabilityVector{}, fmt.Errorf("%w: single score %v exceeds 1", domain.ErrInvalidProbability, probs[0])
		}
		return domain.NewProbabilityVector(1-probs[0], probs[0])
	}

	real, fake := probs[0], probs[1]
	total := real + fake
	if total == 0 {
		return domain.ProbabilityVector{}, fmt.Errorf("%w: real and fake scores are both zero", domain.ErrInvalidProbability)
	}
	return domain.NewProbabilityVector(real/total, fake/total)
}
