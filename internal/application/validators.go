package application

import (
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/fakescope/internal/domain"
)

// RegisterConfigValidators registers the modality, labelorder and
// httpurl_or_empty tags used by the configuration structs.
func RegisterConfigValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("modality", validateModality); err != nil {
		return fmt.Errorf("failed to register modality validator: %w", err)
	}

	if err := v.RegisterValidation("labelorder", validateLabelOrder); err != nil {
		return fmt.Errorf("failed to register labelorder validator: %w", err)
	}

	// Registered with callValidationEvenIfNull so an empty endpoint reaches
	// the function instead of being skipped.
	if err := v.RegisterValidation("httpurl_or_empty", validateHTTPURLOrEmpty, true); err != nil {
		return fmt.Errorf("failed to register httpurl_or_empty validator: %w", err)
	}

	return nil
}

// validateModality accepts the names of the supported modalities.
func validateModality(fl validator.FieldLevel) bool {
	return domain.Modality(fl.Field().String()).Valid()
}

// validateLabelOrder accepts the two positional class conventions.
func validateLabelOrder(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "real_fake", "fake_real":
		return true
	}
	return false
}

// validateHTTPURLOrEmpty accepts an empty string or an absolute http(s) URL.
func validateHTTPURLOrEmpty(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if raw == "" {
		return true
	}

	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
