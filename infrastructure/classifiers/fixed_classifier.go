// Package classifiers provides ports.Classifier implementations: a client
// for remote inference servers and a fixed-output classifier for offline
// demos, plus the normalization and label alignment they share.
package classifiers

import (
	"context"
	"fmt"

	"github.com/ahrav/fakescope/internal/domain"
	"github.com/ahrav/fakescope/internal/ports"
)

var _ ports.Classifier = (*FixedClassifier)(nil)

// FixedClassifier returns the same vector for every reference.
type FixedClassifier struct {
	name   string
	output domain.ProbabilityVector
}

// NewFixedClassifier validates output and returns a classifier.
func NewFixedClassifier(name string, output domain.ProbabilityVector) (*FixedClassifier, error) {
	if err := output.Validate(); err != nil {
		return nil, fmt.Errorf("fixed classifier %s: %w", name, err)
	}
	return &FixedClassifier{name: name, output: output}, nil
}

// Name returns the configured identifier.
func (f *FixedClassifier) Name() string { return f.name }

// Predict returns the configured vector. It still honors cancellation.
func (f *FixedClassifier) Predict(ctx context.Context, _ string) (domain.ProbabilityVector, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProbabilityVector{}, err
	}
	return f.output, nil
}
