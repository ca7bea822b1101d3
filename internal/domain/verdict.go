package domain

// ModalityScore is one classifier's contribution to an ensemble verdict:
// the vector it produced and the static weight of its modality.
type ModalityScore struct {
	// Modality identifies which classifier produced the vector.
	Modality Modality `json:"modality"`

	// Probabilities is the classifier's raw output over {Real, Fake}.
	Probabilities ProbabilityVector `json:"probabilities"`

	// Weight is the ensemble weight configured for Modality.
	Weight float64 `json:"weight"`

	// SubScores lists the member outputs when the modality is served by a
	// weighted group of models. It is omitted from JSON when empty.
	SubScores []MemberScore `json:"sub_scores,omitempty"`
}

// MemberScore is one model's output inside a weighted classifier group.
type MemberScore struct {
	Name          string            `json:"name"`
	Probabilities ProbabilityVector `json:"probabilities"`
	Weight        float64           `json:"weight"`
}

// EnsembleResult is the outcome of a single ensemble prediction.
// It is created fresh per call, never persisted, and owned by the caller.
type EnsembleResult struct {
	// Label is Fake when the combined fake probability strictly exceeds
	// the real probability, otherwise Real.
	Label Label `json:"label"`

	// Probabilities is the weight-normalized combination of every
	// contributing modality.
	Probabilities ProbabilityVector `json:"probabilities"`

	// Contributions lists the per-modality inputs in consultation order.
	// It is omitted from JSON when empty.
	Contributions []ModalityScore `json:"contributions,omitempty"`

	// TotalWeight is the divisor used for normalization: the sum of the
	// weights of the modalities that were present. It saturates at
	// math.MaxFloat64 instead of overflowing.
	TotalWeight float64 `json:"total_weight"`
}
