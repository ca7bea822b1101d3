package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors that can occur during external service
// interactions.
var (
	// ErrServiceUnavailable indicates that the inference service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrRateLimited indicates that the service has rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidResponse indicates that the service returned an invalid
	// response.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrUnreadableMedia indicates that the media reference could not be
	// opened or read.
	ErrUnreadableMedia = errors.New("unreadable media")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// ClassifierError represents a failure inside a modality classifier.
// The ensemble returns it to callers unchanged.
type ClassifierError struct {
	// Classifier is the name of the classifier that failed.
	Classifier string

	// Operation is the name of the operation that failed.
	Operation string

	// Ref is the media reference being classified.
	Ref string

	// Err is the underlying error that occurred.
	Err error
}

// Error implements the error interface for ClassifierError.
func (e *ClassifierError) Error() string {
	msg := fmt.Sprintf("classifier error: classifier=%s, operation=%s, err=%v", e.Classifier, e.Operation, e.Err)
	if e.Ref != "" {
		msg += fmt.Sprintf(", ref=%s", e.Ref)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ClassifierError) Unwrap() error { return e.Err }

// IsTransient reports whether the failure came from the transport rather
// than the model or the media. The ensemble never retries; callers may.
func (e *ClassifierError) IsTransient() bool {
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewClassifierError creates a new ClassifierError with the given details.
func NewClassifierError(classifier, operation, ref string, err error) *ClassifierError {
	return &ClassifierError{
		Classifier: classifier,
		Operation:  operation,
		Ref:        ref,
		Err:        err,
	}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
