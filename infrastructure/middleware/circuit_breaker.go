package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ahrav/fakescope/internal/domain"
	"github.com/ahrav/fakescope/internal/ports"
)

// MetricCircuitState is the gauge that tracks a breaker's state per
// modality: 0 closed, 1 open, 2 half-open.
const MetricCircuitState = "classifier_circuit_state"

// ErrCircuitOpen indicates that the circuit breaker rejected a prediction
// without calling the classifier.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState represents the current state of a circuit breaker.
type CircuitState int

// Circuit breaker states.
const (
	// StateClosed lets every prediction through.
	StateClosed CircuitState = iota

	// StateOpen rejects predictions until the cooldown expires.
	StateOpen

	// StateHalfOpen lets a single trial call through to test recovery.
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return fmt.Sprintf("CircuitState(%d)", int(s))
}

// CircuitBreaker stops calling an inference server after consecutive
// transport failures and tries it again once the cooldown has passed.
//
// Only transient failures count: timeouts, rate limiting and an
// unavailable service. A rejected file or an unparseable response proves
// the server is reachable and resets the failure count.
type CircuitBreaker struct {
	mu            sync.Mutex
	state         CircuitState
	failures      int
	trialInFlight bool
	maxFailures   int
	cooldown      time.Duration
	openedAt      time.Time
	now           func() time.Time
}

// NewCircuitBreaker creates a breaker that opens after maxFailures
// consecutive transient failures and stays open for cooldown.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		state:       StateClosed,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// allow reports whether a call may proceed. The lock is not held while the
// classifier runs.
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.trialInFlight = true
		return nil
	case StateHalfOpen:
		if cb.trialInFlight {
			return ErrCircuitOpen
		}
		cb.trialInFlight = true
	}
	return nil
}

// record updates the breaker with the outcome of an allowed call.
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.trialInFlight = false
	if !tripsBreaker(err) {
		// A canceled caller says nothing about the server.
		if !errors.Is(err, context.Canceled) {
			cb.failures = 0
			cb.state = StateClosed
		}
		return
	}

	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = StateOpen
		cb.openedAt = cb.now()
	}
}

// tripsBreaker reports whether err counts as a transport failure.
func tripsBreaker(err error) bool {
	if err == nil {
		return false
	}
	var cerr *ports.ClassifierError
	if errors.As(err, &cerr) {
		return cerr.IsTransient()
	}
	return errors.Is(err, ports.ErrServiceUnavailable) ||
		errors.Is(err, ports.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

// breakerClassifier guards a classifier with a CircuitBreaker.
type breakerClassifier struct {
	next      ports.Classifier
	cb        *CircuitBreaker
	collector ports.MetricsCollector
	modality  domain.Modality
}

// CircuitBreak rejects predictions with ErrCircuitOpen while the breaker is
// open. The breaker state is published as a gauge when collector is set.
// Classifier errors are returned unchanged.
func CircuitBreak(cb *CircuitBreaker, collector ports.MetricsCollector, modality domain.Modality) Middleware {
	return func(next ports.Classifier) ports.Classifier {
		if cb == nil {
			return next
		}
		return &breakerClassifier{next: next, cb: cb, collector: collector, modality: modality}
	}
}

func (b *breakerClassifier) Name() string { return b.next.Name() }

func (b *breakerClassifier) Predict(ctx context.Context, ref string) (domain.ProbabilityVector, error) {
	if err := b.cb.allow(); err != nil {
		b.publish()
		return domain.ProbabilityVector{}, ports.NewClassifierError(b.next.Name(), "predict", ref, err)
	}

	probs, err := b.next.Predict(ctx, ref)
	b.cb.record(err)
	b.publish()
	return probs, err
}

func (b *breakerClassifier) publish() {
	if b.collector == nil {
		return
	}
	b.collector.RecordGauge(MetricCircuitState, float64(b.cb.State()), map[string]string{
		"modality":   b.modality.String(),
		"classifier": b.next.Name(),
	})
}
