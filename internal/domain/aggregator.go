package domain

// Aggregator defines the interface for combining per-modality probability
// vectors into a single ensemble verdict.
// Implementations provide the fusion strategy; the ensemble is responsible
// for deciding which modalities are present and invoking their classifiers.
type Aggregator interface {
	// Aggregate combines the scores of the modalities that were present.
	// The slice is ordered by consultation order and never contains
	// absent modalities.
	//
	// The method should handle edge cases such as:
	//   - Empty score lists (return ErrInvalidInput)
	//   - A zero total weight (return ErrDegenerateWeights)
	//   - Malformed vectors (return ErrInvalidProbability)
	//
	// Example:
	//
	//	scores := []ModalityScore{
	//	    {Modality: ModalityImage, Probabilities: ProbabilityVector{Real: 0.9, Fake: 0.1}, Weight: 0.4},
	//	    {Modality: ModalityVideo, Probabilities: ProbabilityVector{Real: 0.2, Fake: 0.8}, Weight: 0.6},
	//	}
	//	result, err := aggregator.Aggregate(scores)
	Aggregate(scores []ModalityScore) (EnsembleResult, error)
}
