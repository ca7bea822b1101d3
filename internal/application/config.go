package application

import (
	"fmt"
	"time"

	"github.com/ahrav/fakescope/internal/domain"
)

// Config is the primary configuration entry point: the ensemble weights,
// one classifier definition per modality and the fusion quality gates.
type Config struct {
	// Version specifies the configuration schema version using semantic
	// versioning to ensure compatibility across system updates.
	Version string `yaml:"version" validate:"required,semver"`
	// Metadata contains descriptive information about this deployment.
	Metadata Metadata `yaml:"metadata"`
	// Weights are the static per-modality ensemble weights.
	Weights domain.Weights `yaml:"weights"`
	// Classifiers maps a modality name to the classifier that serves it.
	// Modalities without an entry cannot receive input.
	Classifiers map[string]ClassifierConfig `yaml:"classifiers" validate:"required,min=1,max=3,dive,keys,modality,endkeys"`
	// Fusion configures quality gates applied after combination.
	Fusion FusionConfig `yaml:"fusion"`
}

// Metadata provides descriptive information about a deployment.
type Metadata struct {
	// Name is the human-readable identifier for this configuration.
	Name string `yaml:"name" validate:"max=255"`
	// Description explains the configuration's purpose.
	Description string `yaml:"description" validate:"max=1000"`
	// Labels are arbitrary key-value pairs for external systems.
	Labels map[string]string `yaml:"labels" validate:"max=50"`
}

// ClassifierConfig defines how a single modality classifier is built.
type ClassifierConfig struct {
	// Type selects the implementation: "http" calls an inference server,
	// "static" returns a fixed vector and "ensemble" averages its members.
	Type string `yaml:"type" validate:"required,oneof=http static ensemble"`
	// Name overrides the identifier used in logs and metrics.
	Name string `yaml:"name" validate:"omitempty,max=100"`
	// Endpoint is the inference URL for http classifiers.
	Endpoint string `yaml:"endpoint" validate:"required_if=Type http,httpurl_or_empty"`
	// Model is forwarded to the inference server as the "model" form field.
	Model string `yaml:"model" validate:"omitempty,max=255"`
	// ScoresPath is a gjson path locating the scores in the response body.
	ScoresPath string `yaml:"scores_path"`
	// ScoreKind declares whether the scores are raw logits or probabilities.
	ScoreKind string `yaml:"score_kind" validate:"omitempty,oneof=logits probabilities"`
	// LabelOrder fixes the class order for positional scores.
	LabelOrder string `yaml:"label_order" validate:"omitempty,labelorder"`
	// MaxLabelDistance bounds the edit distance used to match class names.
	// Nil means DefaultMaxLabelDistance; an explicit 0 demands exact names.
	MaxLabelDistance *int `yaml:"max_label_distance" validate:"omitempty,min=0,max=5"`
	// Timeout bounds a single inference request.
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`
	// RateLimit caps requests per second; zero disables pacing.
	RateLimit float64 `yaml:"rate_limit" validate:"min=0"`
	// Burst is the rate limiter bucket size.
	Burst int `yaml:"burst" validate:"min=0"`
	// Serialize guards the handle with a mutex for concurrent callers.
	Serialize bool `yaml:"serialize"`
	// CircuitBreaker stops calling an unhealthy inference server.
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuit_breaker"`
	// Output is the fixed vector returned by static classifiers.
	Output *domain.ProbabilityVector `yaml:"output" validate:"required_if=Type static"`
	// Members are the weighted sub-classifiers of an ensemble classifier.
	Members []ClassifierConfig `yaml:"members" validate:"omitempty,dive"`
	// Weight is this classifier's share inside its parent ensemble.
	Weight float64 `yaml:"weight" validate:"min=0"`
}

// CircuitBreakerConfig tunes the per-classifier circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive transport failures that
	// opens the circuit.
	MaxFailures int `yaml:"max_failures" validate:"required,min=1,max=100"`
	// Cooldown is how long the circuit stays open before a trial call.
	Cooldown time.Duration `yaml:"cooldown" validate:"required,min=0"`
}

// FusionConfig selects and tunes the fusion strategy.
type FusionConfig struct {
	// Strategy is "weighted_mean" (default) or "max_pool".
	Strategy string `yaml:"strategy" validate:"omitempty,oneof=weighted_mean max_pool"`
	// MinConfidence rejects verdicts below this winning probability.
	MinConfidence float64 `yaml:"min_confidence" validate:"min=0,max=1"`
	// TieBreaker applies to max_pool only.
	TieBreaker string `yaml:"tie_breaker" validate:"omitempty,oneof=first error"`
}

// Config defaults applied before validation.
const (
	DefaultScoresPath       = "scores"
	DefaultScoreKind        = "probabilities"
	DefaultLabelOrder       = "real_fake"
	DefaultMaxLabelDistance = 2
	DefaultTimeout          = 30 * time.Second
	DefaultFusionStrategy   = "weighted_mean"
)

// applyDefaults fills unset fields. Weights are defaulted only when the
// weights block is absent entirely.
func (c *Config) applyDefaults(weightsSet bool) {
	if !weightsSet {
		c.Weights = domain.DefaultWeights()
	}
	if c.Fusion.Strategy == "" {
		c.Fusion.Strategy = DefaultFusionStrategy
	}
	for name, cc := range c.Classifiers {
		c.Classifiers[name] = cc.withDefaults(name)
	}
}

// withDefaults fills unset classifier fields. Ensemble members are named
// after their parent and position unless they set a name.
func (cc ClassifierConfig) withDefaults(name string) ClassifierConfig {
	if cc.Type == "http" {
		if cc.ScoresPath == "" {
			cc.ScoresPath = DefaultScoresPath
		}
		if cc.ScoreKind == "" {
			cc.ScoreKind = DefaultScoreKind
		}
		if cc.Timeout == 0 {
			cc.Timeout = DefaultTimeout
		}
	}
	if cc.LabelOrder == "" {
		cc.LabelOrder = DefaultLabelOrder
	}
	if cc.MaxLabelDistance == nil {
		d := DefaultMaxLabelDistance
		cc.MaxLabelDistance = &d
	}
	if cc.Name == "" {
		cc.Name = name + "-" + cc.Type
	}
	if len(cc.Members) > 0 {
		members := make([]ClassifierConfig, len(cc.Members))
		for i, m := range cc.Members {
			members[i] = m.withDefaults(fmt.Sprintf("%s-%d", cc.Name, i))
		}
		cc.Members = members
	}
	return cc
}

// labelDistance returns the configured edit distance or the default.
func (cc ClassifierConfig) labelDistance() int {
	if cc.MaxLabelDistance == nil {
		return DefaultMaxLabelDistance
	}
	return *cc.MaxLabelDistance
}
