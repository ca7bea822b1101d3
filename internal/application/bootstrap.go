package application

import (
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/ahrav/fakescope/infrastructure/classifiers"
	"github.com/ahrav/fakescope/infrastructure/fusion"
	"github.com/ahrav/fakescope/infrastructure/middleware"
	"github.com/ahrav/fakescope/internal/domain"
	"github.com/ahrav/fakescope/internal/ports"
)

// BuildClassifiers creates one decorated classifier per configured modality.
// Each handle is wrapped, outermost first, with tracing and metrics, then
// the optional circuit breaker, rate limiter and mutex.
func BuildClassifiers(
	cfg *Config,
	reg *classifiers.Registry,
	metrics ports.MetricsCollector,
) (Classifiers, error) {
	if reg == nil {
		reg = classifiers.NewRegistry()
	}

	var out Classifiers
	for name, cc := range cfg.Classifiers {
		m, err := domain.ParseModality(name)
		if err != nil {
			return Classifiers{}, fmt.Errorf("classifier %q: %w", name, err)
		}

		base, err := reg.Build(cc.spec())
		if err != nil {
			return Classifiers{}, fmt.Errorf("classifier %q: %w", name, err)
		}

		mws := []middleware.Middleware{
			middleware.Tracing(nil, m),
			middleware.Metrics(metrics, m),
		}
		if cb := cc.CircuitBreaker; cb != nil {
			breaker := middleware.NewCircuitBreaker(cb.MaxFailures, cb.Cooldown)
			mws = append(mws, middleware.CircuitBreak(breaker, metrics, m))
		}
		if cc.RateLimit > 0 {
			burst := cc.Burst
			if burst <= 0 {
				burst = 1
			}
			mws = append(mws, middleware.RateLimit(rate.Limit(cc.RateLimit), burst))
		}
		if cc.Serialize {
			mws = append(mws, middleware.Serialize())
		}

		c := middleware.Chain(base, mws...)
		switch m {
		case domain.ModalityImage:
			out.Image = c
		case domain.ModalityVideo:
			out.Video = c
		case domain.ModalityAudio:
			out.Audio = c
		}
	}
	return out, nil
}

// spec converts the YAML form into a registry spec.
func (cc ClassifierConfig) spec() classifiers.Spec {
	s := classifiers.Spec{
		Type:             cc.Type,
		Name:             cc.Name,
		Endpoint:         cc.Endpoint,
		Model:            cc.Model,
		ScoresPath:       cc.ScoresPath,
		ScoreKind:        classifiers.ScoreKind(cc.ScoreKind),
		LabelOrder:       classifiers.LabelOrder(cc.LabelOrder),
		MaxLabelDistance: cc.labelDistance(),
		Timeout:          cc.Timeout,
		Output:           cc.Output,
	}
	for _, m := range cc.Members {
		s.Members = append(s.Members, classifiers.MemberSpec{Spec: m.spec(), Weight: m.Weight})
	}
	return s
}

// NewEnsembleFromConfig builds the classifiers and fusion strategy described
// by a validated configuration. Extra options are applied after the ones
// derived from cfg, so callers can still override the aggregator.
func NewEnsembleFromConfig(
	cfg *Config,
	metrics ports.MetricsCollector,
	logger *slog.Logger,
	opts ...Option,
) (*Ensemble, error) {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	cls, err := BuildClassifiers(cfg, nil, metrics)
	if err != nil {
		return nil, err
	}

	agg, err := newAggregator(cfg.Fusion)
	if err != nil {
		return nil, fmt.Errorf("failed to create aggregator: %w", err)
	}

	base := []Option{WithAggregator(agg), WithMetrics(metrics)}
	if logger != nil {
		base = append(base, WithLogger(logger))
	}
	return NewEnsemble(cfg.Weights, cls, append(base, opts...)...)
}

// newAggregator builds the configured fusion strategy.
func newAggregator(fc FusionConfig) (domain.Aggregator, error) {
	switch fc.Strategy {
	case "", DefaultFusionStrategy:
		return fusion.NewWeightedMean(fusion.Config{MinConfidence: fc.MinConfidence})
	case "max_pool":
		cfg := fusion.DefaultMaxPoolConfig()
		cfg.MinConfidence = fc.MinConfidence
		if fc.TieBreaker != "" {
			cfg.TieBreaker = fusion.TieBreaker(fc.TieBreaker)
		}
		return fusion.NewMaxPool(cfg)
	}
	return nil, fmt.Errorf("unknown fusion strategy %q", fc.Strategy)
}
