package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur while combining modality predictions.
var (
	// ErrInvalidInput indicates that a prediction was requested without
	// any modality input.
	ErrInvalidInput = errors.New("no inputs provided")

	// ErrDegenerateWeights indicates that every present modality has zero
	// weight, so the normalization divisor is zero.
	ErrDegenerateWeights = errors.New("degenerate weights: total weight of present modalities is zero")

	// ErrInvalidProbability indicates a probability vector that is not a
	// distribution over {Real, Fake}.
	ErrInvalidProbability = errors.New("invalid probability vector")

	// ErrInvalidWeights indicates a negative or non-finite ensemble weight.
	ErrInvalidWeights = errors.New("invalid ensemble weights")

	// ErrMissingClassifier indicates that an input was supplied for a
	// modality that has no classifier attached.
	ErrMissingClassifier = errors.New("no classifier configured for modality")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
