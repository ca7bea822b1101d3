package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ahrav/fakescope/internal/domain"
	"github.com/ahrav/fakescope/internal/ports"
)

// Metric names emitted by the classifier decorators.
const (
	MetricClassifierPredict  = "classifier_predict"
	MetricClassifierRequests = "classifier_requests_total"
)

// Middleware wraps a classifier with additional behavior. Decorators return
// the inner classifier's errors unchanged so callers can still match them
// with errors.Is and errors.As.
type Middleware func(ports.Classifier) ports.Classifier

// Chain applies middlewares so the first one listed is the outermost.
func Chain(c ports.Classifier, mws ...Middleware) ports.Classifier {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			c = mws[i](c)
		}
	}
	return c
}

// metricsClassifier records latency and request counts per call.
type metricsClassifier struct {
	next      ports.Classifier
	collector ports.MetricsCollector
	modality  domain.Modality
}

// Metrics records a latency observation and a request counter for every
// prediction, labeled by modality, classifier and outcome.
func Metrics(collector ports.MetricsCollector, modality domain.Modality) Middleware {
	return func(next ports.Classifier) ports.Classifier {
		if collector == nil {
			return next
		}
		return &metricsClassifier{next: next, collector: collector, modality: modality}
	}
}

func (m *metricsClassifier) Name() string { return m.next.Name() }

func (m *metricsClassifier) Predict(ctx context.Context, ref string) (domain.ProbabilityVector, error) {
	start := time.Now()
	probs, err := m.next.Predict(ctx, ref)

	labels := map[string]string{
		"modality":   m.modality.String(),
		"classifier": m.next.Name(),
		"status":     callStatus(err),
	}
	m.collector.RecordLatency(MetricClassifierPredict, time.Since(start), labels)
	m.collector.RecordCounter(MetricClassifierRequests, 1, labels)

	return probs, err
}

// callStatus buckets a classifier error for metric labels.
func callStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ports.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ports.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// tracedClassifier wraps every prediction in a span.
type tracedClassifier struct {
	next     ports.Classifier
	tracer   trace.Tracer
	modality domain.Modality
}

// Tracing starts an OpenTelemetry span around each prediction. A nil tracer
// uses the global provider.
func Tracing(tracer trace.Tracer, modality domain.Modality) Middleware {
	if tracer == nil {
		tracer = otel.Tracer("fakescope/classifier")
	}
	return func(next ports.Classifier) ports.Classifier {
		return &tracedClassifier{next: next, tracer: tracer, modality: modality}
	}
}

func (t *tracedClassifier) Name() string { return t.next.Name() }

func (t *tracedClassifier) Predict(ctx context.Context, ref string) (domain.ProbabilityVector, error) {
	ctx, span := t.tracer.Start(ctx, "Classifier.Predict", trace.WithAttributes(
		attribute.String("classifier.modality", t.modality.String()),
		attribute.String("classifier.name", t.next.Name()),
	))
	defer span.End()

	probs, err := t.next.Predict(ctx, ref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return probs, err
	}

	span.SetAttributes(
		attribute.Float64("classifier.prob_real", probs.Real),
		attribute.Float64("classifier.prob_fake", probs.Fake),
	)
	return probs, nil
}

// serializedClassifier allows one prediction at a time.
type serializedClassifier struct {
	mu   sync.Mutex
	next ports.Classifier
}

// Serialize guards the classifier with a mutex. Use it for model handles
// that are not safe for concurrent use.
func Serialize() Middleware {
	return func(next ports.Classifier) ports.Classifier {
		return &serializedClassifier{next: next}
	}
}

func (s *serializedClassifier) Name() string { return s.next.Name() }

func (s *serializedClassifier) Predict(ctx context.Context, ref string) (domain.ProbabilityVector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Predict(ctx, ref)
}

// rateLimitedClassifier paces calls with a token bucket.
type rateLimitedClassifier struct {
	next    ports.Classifier
	limiter *rate.Limiter
}

// RateLimit paces predictions to limit per second with the given burst.
// It only waits; a canceled context is returned as is and nothing is
// retried.
func RateLimit(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)

	return func(next ports.Classifier) ports.Classifier {
		return &rateLimitedClassifier{next: next, limiter: limiter}
	}
}

func (r *rateLimitedClassifier) Name() string { return r.next.Name() }

func (r *rateLimitedClassifier) Predict(ctx context.Context, ref string) (domain.ProbabilityVector, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return domain.ProbabilityVector{}, err
	}
	return r.next.Predict(ctx, ref)
}
