package fusion

import (
	"fmt"
	"math"

	"github.com/ahrav/fakescope/internal/domain"
)

var _ domain.Aggregator = (*WeightedMean)(nil)

// WeightedMean combines modality vectors by their static weights and
// normalizes by the total weight of the modalities that were present.
//
// Mathematical Algorithm: result = Σ(wᵢ·pᵢ) / Σwᵢ over present modalities
// only. Absent modalities contribute to neither the numerator nor the
// divisor, which re-weights the remaining modalities proportionally.
//
// Labeling: Fake only when the combined fake probability strictly exceeds
// the real probability. Exact ties resolve to Real.
//
// Precision: Scores are accumulated in the order given, which the ensemble
// fixes to image, video, audio, so results are bit-for-bit reproducible.
//
// Concurrency: Stateless after construction and safe for concurrent use.
type WeightedMean struct {
	config Config
}

// Config controls optional quality gates applied after combination.
type Config struct {
	// MinConfidence rejects verdicts whose winning probability is below
	// this value (0.0-1.0). Use 0.0 to disable.
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence" validate:"min=0.0,max=1.0"`
}

// DefaultConfig returns a Config with no quality gates.
func DefaultConfig() Config { return Config{} }

// NewWeightedMean creates a WeightedMean with a validated configuration.
func NewWeightedMean(config Config) (*WeightedMean, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &WeightedMean{config: config}, nil
}

// Aggregate implements domain.Aggregator.
//
// Errors:
//   - domain.ErrInvalidInput when scores is empty
//   - domain.ErrInvalidProbability when a vector is malformed or the
//     combination does not sum to one
//   - ErrInvalidWeight / ErrDuplicateModality for malformed scores
//   - domain.ErrDegenerateWeights when the weights sum to zero
//   - ErrBelowMinConfidence when the configured gate rejects the verdict
func (wm *WeightedMean) Aggregate(scores []domain.ModalityScore) (domain.EnsembleResult, error) {
	if len(scores) == 0 {
		return domain.EnsembleResult{}, domain.ErrInvalidInput
	}

	maxWeight, err := checkScores(scores)
	if err != nil {
		return domain.EnsembleResult{}, err
	}
	items := make([]Weighted, len(scores))
	for i, s := range scores {
		items[i] = Weighted{Probabilities: s.Probabilities, Weight: s.Weight}
	}
	combined, total, err := mean(items, maxWeight)
	if err != nil {
		return domain.EnsembleResult{}, err
	}

	result := domain.EnsembleResult{
		Label:         combined.Label(),
		Probabilities: combined,
		Contributions: append([]domain.ModalityScore(nil), scores...),
		TotalWeight:   total,
	}

	if conf := combined.Confidence(); conf < wm.config.MinConfidence {
		return domain.EnsembleResult{}, fmt.Errorf("%w: confidence=%.3f, minimum=%.3f",
			ErrBelowMinConfidence, conf, wm.config.MinConfidence)
	}

	return result, nil
}

// Weighted pairs a probability vector with its weight.
type Weighted struct {
	Probabilities domain.ProbabilityVector
	Weight        float64
}

// Mean returns the weight-normalized mean of items and the total weight.
// It applies the same arithmetic as WeightedMean.Aggregate to vectors that
// are not keyed by modality, such as the members of a classifier group.
func Mean(items []Weighted) (domain.ProbabilityVector, float64, error) {
	if len(items) == 0 {
		return domain.ProbabilityVector{}, 0, domain.ErrInvalidInput
	}
	var maxWeight float64
	for i, it := range items {
		if !validWeight(it.Weight) {
			return domain.ProbabilityVector{}, 0, fmt.Errorf("%w: item %d weight %v", ErrInvalidWeight, i, it.Weight)
		}
		if err := it.Probabilities.Validate(); err != nil {
			return domain.ProbabilityVector{}, 0, fmt.Errorf("item %d: %w", i, err)
		}
		maxWeight = math.Max(maxWeight, it.Weight)
	}
	return mean(items, maxWeight)
}

// mean combines pre-validated items whose largest weight is maxWeight.
func mean(items []Weighted, maxWeight float64) (domain.ProbabilityVector, float64, error) {
	// Zero weights must surface as an error rather than a NaN vector.
	if maxWeight == 0 {
		return domain.ProbabilityVector{}, 0, domain.ErrDegenerateWeights
	}

	// Weights are rescaled into (0, 1] by the largest one so neither the
	// products nor the divisor can overflow or underflow.
	var (
		sum  domain.ProbabilityVector
		norm float64
	)
	for _, it := range items {
		w := it.Weight / maxWeight
		sum = sum.Add(it.Probabilities.Scale(w))
		norm += w
	}

	combined := domain.ProbabilityVector{
		Real: sum.Real / norm,
		Fake: sum.Fake / norm,
	}
	if err := combined.Validate(); err != nil {
		return domain.ProbabilityVector{}, 0, fmt.Errorf("combining %d vectors: %w", len(items), err)
	}
	return combined, saturatingMul(norm, maxWeight), nil
}
