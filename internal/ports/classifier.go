// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/ahrav/fakescope/internal/domain"
)

// Classifier is a long-lived handle to one pretrained modality model.
// Handles are constructed once, injected into the ensemble and invoked
// once per prediction request. Implementations are not required to be
// safe for concurrent use; callers sharing a handle must serialize access.
type Classifier interface {
	// Name returns a stable identifier for logging and metrics.
	Name() string

	// Predict runs the model on the media identified by ref and returns a
	// distribution over {Real, Fake} in that order.
	// Preprocessing and label alignment are the implementation's concern;
	// the returned vector must already be in [real, fake] order.
	//
	// Example:
	//
	//	probs, err := classifier.Predict(ctx, "samples/face.jpg")
	//	if err != nil {
	//	    return err
	//	}
	Predict(ctx context.Context, ref string) (domain.ProbabilityVector, error)
}

// ClassifierFunc adapts a plain function to the Classifier interface.
type ClassifierFunc struct {
	ID string
	Fn func(ctx context.Context, ref string) (domain.ProbabilityVector, error)
}

// Name returns the adapter's identifier.
func (f ClassifierFunc) Name() string { return f.ID }

// Predict calls the wrapped function.
func (f ClassifierFunc) Predict(ctx context.Context, ref string) (domain.ProbabilityVector, error) {
	return f.Fn(ctx, ref)
}
