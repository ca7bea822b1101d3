package fusion

import (
	"errors"
	"fmt"

	"github.com/ahrav/fakescope/internal/domain"
)

var _ domain.Aggregator = (*MaxPool)(nil)

// TieBreaker represents the strategy for handling equal fake probabilities.
type TieBreaker string

// Supported tie-breaking strategies.
const (
	// TieFirst selects the earliest modality in consultation order.
	TieFirst TieBreaker = "first"
	// TieError returns ErrTie when several modalities share the maximum.
	TieError TieBreaker = "error"
)

// ErrTie is returned when several modalities share the highest fake
// probability and TieError is configured.
var ErrTie = errors.New("multiple modalities tied with highest fake probability")

// MaxPool reports the verdict of the most suspicious modality: among the
// modalities with a positive weight, the one whose fake probability is
// highest decides the result unchanged. Weights act only as an on/off
// switch, so a zero-weight modality can never raise an alarm.
//
// Concurrency: Stateless after construction and safe for concurrent use.
type MaxPool struct {
	config MaxPoolConfig
}

// MaxPoolConfig defines the configuration parameters for MaxPool.
type MaxPoolConfig struct {
	// TieBreaker defines how equal maxima are handled.
	TieBreaker TieBreaker `yaml:"tie_breaker" json:"tie_breaker" validate:"required,oneof=first error"`

	// MinConfidence rejects verdicts whose winning probability is below
	// this value (0.0-1.0). Use 0.0 to disable.
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence" validate:"min=0.0,max=1.0"`
}

// DefaultMaxPoolConfig returns a configuration that keeps the first maximum.
func DefaultMaxPoolConfig() MaxPoolConfig {
	return MaxPoolConfig{TieBreaker: TieFirst}
}

// NewMaxPool creates a MaxPool with a validated configuration.
func NewMaxPool(config MaxPoolConfig) (*MaxPool, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &MaxPool{config: config}, nil
}

// Aggregate implements domain.Aggregator. It validates scores exactly like
// WeightedMean and reports ErrDegenerateWeights when no modality carries a
// positive weight.
func (mp *MaxPool) Aggregate(scores []domain.ModalityScore) (domain.EnsembleResult, error) {
	if len(scores) == 0 {
		return domain.EnsembleResult{}, domain.ErrInvalidInput
	}

	maxWeight, err := checkScores(scores)
	if err != nil {
		return domain.EnsembleResult{}, err
	}

	var (
		best = -1
		ties int
		norm float64
	)
	for i, s := range scores {
		if s.Weight == 0 {
			continue
		}
		norm += s.Weight / maxWeight

		switch {
		case best < 0 || s.Probabilities.Fake > scores[best].Probabilities.Fake:
			best, ties = i, 1
		case s.Probabilities.Fake == scores[best].Probabilities.Fake:
			ties++
		}
	}

	if best < 0 {
		return domain.EnsembleResult{}, domain.ErrDegenerateWeights
	}
	if ties > 1 && mp.config.TieBreaker == TieError {
		return domain.EnsembleResult{}, fmt.Errorf("%w: %d modalities at fake=%.3f",
			ErrTie, ties, scores[best].Probabilities.Fake)
	}

	winner := scores[best].Probabilities
	if conf := winner.Confidence(); conf < mp.config.MinConfidence {
		return domain.EnsembleResult{}, fmt.Errorf("%w: confidence=%.3f, minimum=%.3f",
			ErrBelowMinConfidence, conf, mp.config.MinConfidence)
	}

	return domain.EnsembleResult{
		Label:         winner.Label(),
		Probabilities: winner,
		Contributions: append([]domain.ModalityScore(nil), scores...),
		TotalWeight:   saturatingMul(norm, maxWeight),
	}, nil
}
