package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/fakescope/infrastructure/fusion"
	"github.com/ahrav/fakescope/internal/domain"
	"github.com/ahrav/fakescope/internal/ports"
)

// Classifiers holds one long-lived classifier handle per modality.
// A nil handle is allowed for a modality that will never receive input.
type Classifiers struct {
	Image ports.Classifier
	Video ports.Classifier
	Audio ports.Classifier
}

// For returns the handle registered for m.
func (c Classifiers) For(m domain.Modality) ports.Classifier {
	switch m {
	case domain.ModalityImage:
		return c.Image
	case domain.ModalityVideo:
		return c.Video
	case domain.ModalityAudio:
		return c.Audio
	}
	return nil
}

// Ensemble routes each supplied media reference to its modality classifier
// and combines the resulting vectors into one verdict.
//
// Configuration (weights, classifier handles, fusion strategy) is fixed at
// construction. Predict keeps no state between calls and takes no locks;
// the classifiers it calls are not assumed to be safe for concurrent use,
// so callers sharing one Ensemble across goroutines must serialize the
// handles themselves (see middleware.Serialize).
type Ensemble struct {
	weights     domain.Weights
	classifiers Classifiers
	aggregator  domain.Aggregator
	metrics     ports.MetricsCollector
	logger      *slog.Logger
	tracer      trace.Tracer
}

// Option configures optional Ensemble collaborators.
type Option func(*Ensemble)

// WithAggregator replaces the default weighted-mean fusion strategy.
func WithAggregator(a domain.Aggregator) Option {
	return func(e *Ensemble) { e.aggregator = a }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m ports.MetricsCollector) Option {
	return func(e *Ensemble) { e.metrics = m }
}

// WithLogger attaches a structured logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Ensemble) { e.logger = l }
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Ensemble) { e.tracer = t }
}

// NewEnsemble validates weights and builds an Ensemble.
func NewEnsemble(weights domain.Weights, classifiers Classifiers, opts ...Option) (*Ensemble, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	e := &Ensemble{
		weights:     weights,
		classifiers: classifiers,
		metrics:     ports.NopMetrics{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:      otel.Tracer("fakescope/ensemble"),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.aggregator == nil {
		wm, err := fusion.NewWeightedMean(fusion.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create default aggregator: %w", err)
		}
		e.aggregator = wm
	}

	return e, nil
}

// Weights returns the static weights the ensemble was built with.
func (e *Ensemble) Weights() domain.Weights { return e.weights }

// Predict classifies every present input and combines the results.
//
// Classifiers run one after another in image, video, audio order. The first
// classifier error aborts the prediction and is returned exactly as the
// classifier produced it: no wrapping, no retry, and no fallback to the
// remaining modalities.
//
// Errors:
//   - domain.ErrInvalidInput when inputs is empty
//   - domain.ErrMissingClassifier when a present modality has no handle
//   - any classifier error, unchanged
//   - domain.ErrInvalidProbability when a classifier returns a malformed vector
//   - domain.ErrDegenerateWeights when all present modalities weigh zero
func (e *Ensemble) Predict(ctx context.Context, inputs domain.Inputs) (domain.EnsembleResult, error) {
	ctx, span := e.tracer.Start(ctx, "Ensemble.Predict")
	defer span.End()

	start := time.Now()
	result, err := e.predict(ctx, inputs)

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.String("ensemble.label", result.Label.String()),
			attribute.Float64("ensemble.fake_probability", result.Probabilities.Fake),
			attribute.Float64("ensemble.total_weight", result.TotalWeight),
		)
		e.metrics.RecordCounter("ensemble_verdicts_total", 1, map[string]string{"label": result.Label.String()})
		e.metrics.RecordHistogram("ensemble_fake_probability", result.Probabilities.Fake, nil)
	}
	e.metrics.RecordLatency("ensemble_predict", time.Since(start), map[string]string{"status": status})

	return result, err
}

func (e *Ensemble) predict(ctx context.Context, inputs domain.Inputs) (domain.EnsembleResult, error) {
	present := inputs.Present()
	if len(present) == 0 {
		e.metrics.RecordCounter("ensemble_rejected_total", 1, map[string]string{"reason": "invalid_input"})
		return domain.EnsembleResult{}, domain.ErrInvalidInput
	}

	scores := make([]domain.ModalityScore, 0, len(present))
	for _, m := range present {
		classifier := e.classifiers.For(m)
		if classifier == nil {
			return domain.EnsembleResult{}, fmt.Errorf("%w: %s", domain.ErrMissingClassifier, m)
		}

		ref := inputs.For(m)
		mctx, subs := ports.WithSubScoreRecorder(ctx)
		probs, err := classifier.Predict(mctx, ref)
		if err != nil {
			e.logger.WarnContext(ctx, "modality classifier failed",
				slog.String("modality", m.String()),
				slog.String("classifier", classifier.Name()),
				slog.String("ref", ref),
				slog.Any("error", err),
			)
			return domain.EnsembleResult{}, err
		}

		e.logger.DebugContext(ctx, "modality classified",
			slog.String("modality", m.String()),
			slog.String("classifier", classifier.Name()),
			slog.Float64("real", probs.Real),
			slog.Float64("fake", probs.Fake),
		)

		scores = append(scores, domain.ModalityScore{
			Modality:      m,
			Probabilities: probs,
			Weight:        e.weights.For(m),
			SubScores:     subs.Scores(),
		})
	}

	result, err := e.aggregator.Aggregate(scores)
	if err != nil {
		reason := "aggregation"
		if errors.Is(err, domain.ErrDegenerateWeights) {
			reason = "degenerate_weights"
		}
		e.metrics.RecordCounter("ensemble_rejected_total", 1, map[string]string{"reason": reason})
		return domain.EnsembleResult{}, err
	}

	e.logger.InfoContext(ctx, "ensemble prediction",
		slog.String("label", result.Label.String()),
		slog.Float64("real", result.Probabilities.Real),
		slog.Float64("fake", result.Probabilities.Fake),
		slog.Int("modalities", len(scores)),
	)

	return result, nil
}
