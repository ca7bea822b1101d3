package classifiers

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ahrav/fakescope/internal/domain"
	"github.com/ahrav/fakescope/internal/ports"
)

// Built-in classifier types.
const (
	TypeHTTP     = "http"
	TypeStatic   = "static"
	TypeEnsemble = "ensemble"
)

// Spec describes one classifier independently of how configuration was
// loaded. Fields that do not apply to a type are ignored.
type Spec struct {
	Type             string
	Name             string
	Endpoint         string
	Model            string
	ScoresPath       string
	ScoreKind        ScoreKind
	LabelOrder       LabelOrder
	MaxLabelDistance int
	Timeout          time.Duration
	Output           *domain.ProbabilityVector

	// Members lists the weighted sub-classifiers of an ensemble spec.
	Members []MemberSpec
}

// MemberSpec is one weighted sub-classifier of an ensemble spec.
type MemberSpec struct {
	Spec
	Weight float64
}

// Factory builds a classifier from a Spec.
type Factory func(spec Spec) (ports.Classifier, error)

// Registry maps classifier type names to factories.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with the http, static and ensemble types
// registered. Ensemble members are built through the same registry, so
// custom types can be grouped too.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.factories[TypeHTTP] = newHTTPFromSpec
	r.factories[TypeStatic] = newStaticFromSpec
	r.factories[TypeEnsemble] = r.newEnsembleFromSpec
	return r
}

// Register adds or replaces the factory for typ.
func (r *Registry) Register(typ string, f Factory) error {
	if typ == "" {
		return fmt.Errorf("classifier type cannot be empty")
	}
	if f == nil {
		return fmt.Errorf("factory for classifier type %q cannot be nil", typ)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = f
	return nil
}

// Build creates the classifier described by spec.
func (r *Registry) Build(spec Spec) (ports.Classifier, error) {
	r.mu.RLock()
	f, ok := r.factories[spec.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown classifier type %q (available: %v)", spec.Type, r.Types())
	}
	c, err := f(spec)
	if err != nil {
		return nil, fmt.Errorf("building %s classifier %q: %w", spec.Type, spec.Name, err)
	}
	return c, nil
}

// Types lists the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func newHTTPFromSpec(spec Spec) (ports.Classifier, error) {
	aligner, err := NewLabelAligner(spec.LabelOrder, spec.MaxLabelDistance)
	if err != nil {
		return nil, err
	}
	return NewHTTPClassifier(HTTPConfig{
		Name:       spec.Name,
		Endpoint:   spec.Endpoint,
		Model:      spec.Model,
		ScoresPath: spec.ScoresPath,
		Kind:       spec.ScoreKind,
		Timeout:    spec.Timeout,
		Aligner:    aligner,
	})
}

func newStaticFromSpec(spec Spec) (ports.Classifier, error) {
	if spec.Output == nil {
		return nil, fmt.Errorf("static classifier requires an output vector")
	}
	return NewFixedClassifier(spec.Name, *spec.Output)
}

func (r *Registry) newEnsembleFromSpec(spec Spec) (ports.Classifier, error) {
	if len(spec.Members) == 0 {
		return nil, fmt.Errorf("ensemble classifier requires at least one member")
	}
	members := make([]Member, 0, len(spec.Members))
	for i, ms := range spec.Members {
		c, err := r.Build(ms.Spec)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		members = append(members, Member{Classifier: c, Weight: ms.Weight})
	}
	return NewEnsembleClassifier(spec.Name, members...)
}
