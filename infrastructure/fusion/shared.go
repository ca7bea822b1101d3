// Package fusion provides the strategies that combine per-modality
// probability vectors into a single ensemble verdict.
package fusion

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/fakescope/internal/domain"
)

// Common errors returned by fusion strategies.
var (
	// ErrBelowMinConfidence is returned when the winning probability is below
	// the configured minimum confidence.
	ErrBelowMinConfidence = errors.New("verdict confidence below minimum threshold")

	// ErrDuplicateModality is returned when the same modality is scored twice.
	ErrDuplicateModality = errors.New("modality scored more than once")

	// ErrInvalidWeight is returned when a score carries a negative or
	// non-finite weight.
	ErrInvalidWeight = errors.New("invalid modality weight")
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// checkScores validates every score and returns the largest weight.
func checkScores(scores []domain.ModalityScore) (float64, error) {
	var maxWeight float64
	seen := make(map[domain.Modality]struct{}, len(scores))
	for _, s := range scores {
		if _, dup := seen[s.Modality]; dup {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateModality, s.Modality)
		}
		seen[s.Modality] = struct{}{}

		if !validWeight(s.Weight) {
			return 0, fmt.Errorf("%w: %s weight %v", ErrInvalidWeight, s.Modality, s.Weight)
		}
		if err := s.Probabilities.Validate(); err != nil {
			return 0, fmt.Errorf("%s: %w", s.Modality, err)
		}
		maxWeight = math.Max(maxWeight, s.Weight)
	}
	return maxWeight, nil
}

// validWeight reports whether w is finite and non-negative.
func validWeight(w float64) bool {
	return !math.IsNaN(w) && !math.IsInf(w, 0) && w >= 0
}

// saturatingMul returns a*b, clamped to math.MaxFloat64. The reported total
// weight stays finite so results always encode as JSON.
func saturatingMul(a, b float64) float64 {
	if p := a * b; !math.IsInf(p, 1) {
		return p
	}
	return math.MaxFloat64
}
