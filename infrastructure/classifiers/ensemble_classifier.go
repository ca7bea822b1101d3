package classifiers

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ahrav/fakescope/infrastructure/fusion"
	"github.com/ahrav/fakescope/internal/domain"
	"github.com/ahrav/fakescope/internal/ports"
)

var _ ports.Classifier = (*EnsembleClassifier)(nil)

// Member is one weighted model inside an EnsembleClassifier.
type Member struct {
	Classifier ports.Classifier
	Weight     float64
}

// EnsembleClassifier serves one modality with several models and returns
// their weighted mean, the way a single image slot can be backed by
// EfficientViT, CLIP and Xception detectors at 0.3, 0.3 and 0.4.
//
// Members run sequentially in configuration order on the same reference.
// The first member error is returned unchanged. On success the member
// vectors are reported through ports.RecordSubScores.
type EnsembleClassifier struct {
	name    string
	members []Member
}

// NewEnsembleClassifier validates members and returns a classifier.
// At least one member must carry a positive weight.
func NewEnsembleClassifier(name string, members ...Member) (*EnsembleClassifier, error) {
	if len(members) == 0 {
		return nil, errors.New("ensemble classifier requires at least one member")
	}

	var total float64
	for i, m := range members {
		if m.Classifier == nil {
			return nil, fmt.Errorf("ensemble classifier %s: member %d is nil", name, i)
		}
		if math.IsNaN(m.Weight) || math.IsInf(m.Weight, 0) || m.Weight < 0 {
			return nil, fmt.Errorf("ensemble classifier %s: %w: member %s weight %v",
				name, fusion.ErrInvalidWeight, m.Classifier.Name(), m.Weight)
		}
		total += m.Weight
	}
	if total == 0 {
		return nil, fmt.Errorf("ensemble classifier %s: %w", name, domain.ErrDegenerateWeights)
	}

	return &EnsembleClassifier{name: name, members: append([]Member(nil), members...)}, nil
}

// Name returns the configured identifier.
func (e *EnsembleClassifier) Name() string { return e.name }

// Predict runs every member on ref and combines the vectors with
// fusion.Mean.
func (e *EnsembleClassifier) Predict(ctx context.Context, ref string) (domain.ProbabilityVector, error) {
	items := make([]fusion.Weighted, 0, len(e.members))
	subs := make([]domain.MemberScore, 0, len(e.members))

	for _, m := range e.members {
		// A nested group reports into its own recorder.
		mctx, _ := ports.WithSubScoreRecorder(ctx)
		probs, err := m.Classifier.Predict(mctx, ref)
		if err != nil {
			return domain.ProbabilityVector{}, err
		}
		items = append(items, fusion.Weighted{Probabilities: probs, Weight: m.Weight})
		subs = append(subs, domain.MemberScore{Name: m.Classifier.Name(), Probabilities: probs, Weight: m.Weight})
	}

	combined, _, err := fusion.Mean(items)
	if err != nil {
		return domain.ProbabilityVector{}, ports.NewClassifierError(e.name, "combine", ref, err)
	}

	ports.RecordSubScores(ctx, subs...)
	return combined, nil
}
