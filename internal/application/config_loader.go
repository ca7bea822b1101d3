package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/fakescope/internal/domain"
	"github.com/ahrav/fakescope/internal/ports"
)

// ConfigLoader parses and validates ensemble configuration files.
// It combines strict YAML decoding, struct tag validation and semantic
// checks that tags cannot express.
type ConfigLoader struct {
	// validator performs struct field validation with the custom
	// validators registered by RegisterConfigValidators.
	validator *validator.Validate
}

// NewConfigLoader creates a loader with custom validators registered.
func NewConfigLoader() (*ConfigLoader, error) {
	v := validator.New()
	if err := RegisterConfigValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	return &ConfigLoader{validator: v}, nil
}

// LoadFromFile reads, parses and validates the configuration at path.
func (cl *ConfigLoader) LoadFromFile(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ports.NewConfigError(cleanPath, ports.ErrConfigNotFound)
		}
		return nil, ports.NewConfigError(cleanPath, fmt.Errorf("failed to read file: %w", err))
	}

	cfg, err := cl.Load(data)
	if err != nil {
		return nil, ports.NewConfigError(cleanPath, err)
	}
	return cfg, nil
}

// LoadFromReader reads all data from r and loads it.
func (cl *ConfigLoader) LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return cl.Load(data)
}

// Load parses data, applies defaults and validates the result.
func (cl *ConfigLoader) Load(data []byte) (*Config, error) {
	cfg, weightsSet, err := cl.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults(weightsSet)

	if err := cl.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseYAML decodes in strict mode so typos in field names fail loudly.
// It also reports whether a weights block was present, which decides
// whether default weights apply.
func (cl *ConfigLoader) parseYAML(data []byte) (*Config, bool, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		return nil, false, fmt.Errorf("YAML decode failed: %w", err)
	}

	var present struct {
		Weights *yaml.Node `yaml:"weights"`
	}
	if err := yaml.Unmarshal(data, &present); err != nil {
		return nil, false, fmt.Errorf("YAML decode failed: %w", err)
	}

	return &cfg, present.Weights != nil, nil
}

// Validate runs struct tag validation followed by semantic validation.
func (cl *ConfigLoader) Validate(cfg *Config) error {
	if err := cl.validator.Struct(cfg); err != nil {
		return fmt.Errorf("%w: struct validation failed: %w", domain.ErrInvalidConfiguration, err)
	}
	if err := validateSemantics(cfg); err != nil {
		return fmt.Errorf("%w: semantic validation failed: %w", domain.ErrInvalidConfiguration, err)
	}
	return nil
}

// validateSemantics checks rules that span fields: weights must be usable,
// every weighted modality needs a classifier, static outputs must be valid
// distributions and ensembles need members with a positive total weight.
func validateSemantics(cfg *Config) error {
	verr := domain.NewValidationError("Config")

	if err := cfg.Weights.Validate(); err != nil {
		verr.AddError(err.Error())
	}

	var total float64
	for _, m := range domain.Modalities {
		w := cfg.Weights.For(m)
		total += w
		if _, ok := cfg.Classifiers[m.String()]; w > 0 && !ok {
			verr.AddError(fmt.Sprintf("modality %s has weight %v but no classifier", m, w))
		}
	}
	if total == 0 {
		verr.AddError("at least one modality weight must be positive")
	}

	for _, m := range domain.Modalities {
		cc, ok := cfg.Classifiers[m.String()]
		if !ok {
			continue
		}
		if cc.Weight != 0 {
			verr.AddError(fmt.Sprintf("classifier %s: weight applies only to ensemble members", m))
		}
		checkClassifier(verr, "classifier "+m.String(), cc, false)
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// checkClassifier validates one classifier and, for ensembles, its members.
// Members may not themselves be ensembles.
func checkClassifier(verr *domain.ValidationError, path string, cc ClassifierConfig, member bool) {
	if cc.Type == "static" && cc.Output != nil {
		if err := cc.Output.Validate(); err != nil {
			verr.AddError(fmt.Sprintf("%s output: %v", path, err))
		}
	}

	if cc.Type != "ensemble" {
		if len(cc.Members) > 0 {
			verr.AddError(fmt.Sprintf("%s: members apply only to ensemble classifiers", path))
		}
		return
	}
	if member {
		verr.AddError(fmt.Sprintf("%s: ensembles cannot be nested", path))
		return
	}
	if len(cc.Members) == 0 {
		verr.AddError(fmt.Sprintf("%s: ensemble requires at least one member", path))
		return
	}

	var total float64
	for i, m := range cc.Members {
		total += m.Weight
		checkClassifier(verr, fmt.Sprintf("%s member %d (%s)", path, i, m.Name), m, true)
	}
	if total == 0 {
		verr.AddError(fmt.Sprintf("%s: member weights sum to zero", path))
	}
}
