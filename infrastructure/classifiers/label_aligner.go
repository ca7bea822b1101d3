package classifiers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/ahrav/fakescope/internal/domain"
)

// LabelOrder is the positional class convention of a model's output.
type LabelOrder string

// Supported positional conventions.
const (
	// OrderRealFake means index 0 is Real and index 1 is Fake.
	OrderRealFake LabelOrder = "real_fake"

	// OrderFakeReal means index 0 is Fake and index 1 is Real.
	OrderFakeReal LabelOrder = "fake_real"
)

// ErrUnknownLabel is returned when a class name matches neither Real nor
// Fake closely enough.
var ErrUnknownLabel = errors.New("unknown class label")

// Synonyms used by public deepfake checkpoints for their two classes.
var (
	realNames = []string{"real", "realism", "authentic", "genuine", "original", "bonafide", "human"}
	fakeNames = []string{"fake", "deepfake", "synthetic", "manipulated", "generated", "spoof", "artificial"}
)

// NamedScore is one class of a model output that carries a class name.
type NamedScore struct {
	Label string
	Score float64
}

// LabelAligner maps heterogeneous model outputs onto the [real, fake]
// convention the ensemble expects.
type LabelAligner struct {
	order       LabelOrder
	maxDistance int
}

// NewLabelAligner creates an aligner. maxDistance bounds the Levenshtein
// distance accepted between a class name and a known synonym; zero asks for
// exact matches after case folding. The bound shrinks with synonym length
// (see allowedDistance), so short names like "fake" never match fuzzily.
func NewLabelAligner(order LabelOrder, maxDistance int) (*LabelAligner, error) {
	switch order {
	case OrderRealFake, OrderFakeReal:
	case "":
		order = OrderRealFake
	default:
		return nil, fmt.Errorf("unsupported label order %q", order)
	}
	if maxDistance < 0 {
		return nil, fmt.Errorf("max label distance must be non-negative, got %d", maxDistance)
	}
	return &LabelAligner{
		order:       order,
		maxDistance: maxDistance,
	}, nil
}

// AlignPositional reorders a positional output into [real, fake, rest...].
// Single-output models are passed through unchanged; their value is always
// read as the fake probability.
func (a *LabelAligner) AlignPositional(scores []float64) []float64 {
	out := append([]float64(nil), scores...)
	if a.order == OrderFakeReal && len(out) >= 2 {
		out[0], out[1] = out[1], out[0]
	}
	return out
}

// AlignNamed resolves class names to Real and Fake and returns their scores
// as [real, fake]. Other classes are ignored. When several names resolve to
// the same class their scores are summed.
func (a *LabelAligner) AlignNamed(scores []NamedScore) ([]float64, error) {
	var real, fake float64
	var sawReal, sawFake bool

	for _, s := range scores {
		label, err := a.Resolve(s.Label)
		if err != nil {
			if errors.Is(err, ErrUnknownLabel) {
				continue
			}
			return nil, err
		}
		switch label {
		case domain.LabelReal:
			real += s.Score
			sawReal = true
		case domain.LabelFake:
			fake += s.Score
			sawFake = true
		}
	}

	switch {
	case sawReal && sawFake:
		return []float64{real, fake}, nil
	case sawFake:
		return []float64{fake}, nil
	case sawReal:
		return []float64{real, 1 - real}, nil
	}
	return nil, fmt.Errorf("%w: none of %d classes is real or fake", ErrUnknownLabel, len(scores))
}

// Resolve maps one class name to a Label, tolerating case, separators and
// small spelling differences.
func (a *LabelAligner) Resolve(name string) (domain.Label, error) {
	norm := normalize(name)
	if norm == "" {
		return "", fmt.Errorf("%w: empty name", ErrUnknownLabel)
	}

	realDist, realOK := a.closest(norm, realNames)
	fakeDist, fakeOK := a.closest(norm, fakeNames)

	switch {
	case realOK && (!fakeOK || realDist < fakeDist):
		return domain.LabelReal, nil
	case fakeOK && (!realOK || fakeDist < realDist):
		return domain.LabelFake, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLabel, name)
}

// allowedDistance is the edit budget for one synonym, capped by the
// configured maximum. Synonyms of five characters or fewer only match
// exactly: "male" is one edit from "fake".
func (a *LabelAligner) allowedDistance(synonym string) int {
	return min(a.maxDistance, (len(synonym)-1)/5)
}

// normalize case-folds name and strips separators. A Caser is stateful,
// so one is created per call.
func normalize(name string) string {
	folded := cases.Fold().String(strings.TrimSpace(name))
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', ' ', '.':
			return -1
		}
		return r
	}, folded)
}

// closest returns the smallest distance from name to a candidate that is
// within that candidate's budget.
func (a *LabelAligner) closest(name string, candidates []string) (int, bool) {
	best, found := 0, false
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(name, c)
		if d > a.allowedDistance(c) {
			continue
		}
		if !found || d < best {
			best, found = d, true
		}
	}
	return best, found
}
