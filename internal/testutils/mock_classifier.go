package testutils

import (
	"context"
	"sync"

	"github.com/ahrav/fakescope/internal/domain"
	"github.com/ahrav/fakescope/internal/ports"
)

var _ ports.Classifier = (*MockClassifier)(nil)

// MockClassifier implements ports.Classifier with scripted outputs for
// deterministic tests. It records every reference it is asked to classify.
type MockClassifier struct {
	// name is the identifier returned by Name.
	name string
	// output is returned for references without a specific entry.
	output domain.ProbabilityVector
	// byRef maps individual references to outputs.
	byRef map[string]domain.ProbabilityVector
	// err, when set, is returned for every call.
	err error
	// onPredict runs before the scripted output is returned.
	onPredict func(ctx context.Context, ref string)

	mu    sync.Mutex
	calls []string
}

// NewMockClassifier returns a classifier that always yields output.
func NewMockClassifier(name string, output domain.ProbabilityVector) *MockClassifier {
	return &MockClassifier{
		name:   name,
		output: output,
		byRef:  make(map[string]domain.ProbabilityVector),
	}
}

// NewFailingClassifier returns a classifier that always fails with err.
func NewFailingClassifier(name string, err error) *MockClassifier {
	return &MockClassifier{
		name:  name,
		err:   err,
		byRef: make(map[string]domain.ProbabilityVector),
	}
}

// WithOutput scripts the output for a specific reference.
func (m *MockClassifier) WithOutput(ref string, output domain.ProbabilityVector) *MockClassifier {
	m.byRef[ref] = output
	return m
}

// OnPredict installs a hook invoked on every call before returning.
func (m *MockClassifier) OnPredict(fn func(ctx context.Context, ref string)) *MockClassifier {
	m.onPredict = fn
	return m
}

// Name returns the mock identifier.
func (m *MockClassifier) Name() string { return m.name }

// Predict records ref and returns the scripted output or error.
func (m *MockClassifier) Predict(ctx context.Context, ref string) (domain.ProbabilityVector, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ref)
	m.mu.Unlock()

	if m.onPredict != nil {
		m.onPredict(ctx, ref)
	}
	if m.err != nil {
		return domain.ProbabilityVector{}, m.err
	}
	if out, ok := m.byRef[ref]; ok {
		return out, nil
	}
	return m.output, nil
}

// Calls returns a copy of the references seen so far.
func (m *MockClassifier) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// CallCount returns how many times Predict was invoked.
func (m *MockClassifier) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
