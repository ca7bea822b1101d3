package application

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/fakescope/internal/domain"
	"github.com/ahrav/fakescope/internal/ports"
)

// Predictor produces a verdict for one set of inputs. *Ensemble satisfies it.
type Predictor interface {
	Predict(ctx context.Context, inputs domain.Inputs) (domain.EnsembleResult, error)
}

var _ Predictor = (*Ensemble)(nil)

// Manifest lists labeled samples for a batch evaluation.
type Manifest struct {
	Samples []Sample `yaml:"samples" validate:"required,min=1,dive"`
}

// Sample is one labeled item. Media paths are resolved relative to the
// manifest file when loaded with LoadManifest.
type Sample struct {
	ID    string `yaml:"id"`
	Image string `yaml:"image"`
	Video string `yaml:"video"`
	Audio string `yaml:"audio"`
	// Label is the ground truth, "Real" or "Fake" in any case.
	Label string `yaml:"label" validate:"required"`
}

// Inputs returns the sample's media as ensemble inputs.
func (s Sample) Inputs() domain.Inputs {
	return domain.Inputs{Image: s.Image, Video: s.Video, Audio: s.Audio}
}

// Truth parses the ground-truth label.
func (s Sample) Truth() (domain.Label, error) {
	switch {
	case strings.EqualFold(s.Label, string(domain.LabelReal)):
		return domain.LabelReal, nil
	case strings.EqualFold(s.Label, string(domain.LabelFake)):
		return domain.LabelFake, nil
	}
	return "", fmt.Errorf("%w: unknown label %q", domain.ErrInvalidInput, s.Label)
}

// LoadManifest reads a manifest file and resolves relative media paths
// against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	m, err := ParseManifest(f)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i := range m.Samples {
		s := &m.Samples[i]
		s.Image = resolvePath(base, s.Image)
		s.Video = resolvePath(base, s.Video)
		s.Audio = resolvePath(base, s.Audio)
	}
	return m, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// ParseManifest decodes and validates a manifest without touching paths.
func ParseManifest(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}

	if err := validator.New().Struct(&m); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}

	verr := domain.NewValidationError("Manifest")
	for i, s := range m.Samples {
		if s.ID == "" {
			m.Samples[i].ID = fmt.Sprintf("sample-%d", i+1)
		}
		if s.Inputs().Empty() {
			verr.AddError(fmt.Sprintf("sample %d has no media", i+1))
		}
		if _, err := s.Truth(); err != nil {
			verr.AddError(fmt.Sprintf("sample %d: %v", i+1, err))
		}
	}
	if verr.HasErrors() {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, verr)
	}
	return &m, nil
}

// EvaluationOptions tunes Evaluate.
type EvaluationOptions struct {
	// Workers bounds concurrent predictions. Values below one mean one.
	// Only raise it when every classifier tolerates concurrent calls.
	Workers int
	// Metrics receives the final scores as gauges. Optional.
	Metrics ports.MetricsCollector
	// Logger receives per-sample progress. Optional.
	Logger *slog.Logger
}

// SamplePrediction pairs a sample with the verdict it received.
type SamplePrediction struct {
	Sample Sample                `json:"sample"`
	Truth  domain.Label          `json:"truth"`
	Result domain.EnsembleResult `json:"result"`
}

// Correct reports whether the verdict matches the ground truth.
func (p SamplePrediction) Correct() bool { return p.Truth == p.Result.Label }

// ConfusionMatrix counts outcomes with Fake as the positive class.
type ConfusionMatrix struct {
	TrueReal  int `json:"true_real"`
	FalseFake int `json:"false_fake"`
	FalseReal int `json:"false_real"`
	TrueFake  int `json:"true_fake"`
}

// Add counts one outcome.
func (c *ConfusionMatrix) Add(truth, predicted domain.Label) {
	switch {
	case truth == domain.LabelReal && predicted == domain.LabelReal:
		c.TrueReal++
	case truth == domain.LabelReal && predicted == domain.LabelFake:
		c.FalseFake++
	case truth == domain.LabelFake && predicted == domain.LabelReal:
		c.FalseReal++
	default:
		c.TrueFake++
	}
}

// Total is the number of counted outcomes.
func (c ConfusionMatrix) Total() int {
	return c.TrueReal + c.FalseFake + c.FalseReal + c.TrueFake
}

// Scores are the classification metrics of a run. Divisions by zero
// yield zero.
type Scores struct {
	Accuracy            float64 `json:"accuracy"`
	Precision           float64 `json:"precision"`
	Recall              float64 `json:"recall"`
	F1                  float64 `json:"f1"`
	MeanFakeProbability float64 `json:"mean_fake_probability"`
}

// EvaluationReport is the outcome of a batch evaluation.
type EvaluationReport struct {
	RunID       string             `json:"run_id"`
	StartedAt   time.Time          `json:"started_at"`
	Duration    time.Duration      `json:"duration"`
	Predictions []SamplePrediction `json:"predictions"`
	Confusion   ConfusionMatrix    `json:"confusion"`
	Scores      Scores             `json:"scores"`
}

// Evaluate predicts every sample and scores the verdicts against the ground
// truth. The first prediction error cancels the remaining work and is
// returned. Predictions keep manifest order regardless of Workers.
func Evaluate(ctx context.Context, p Predictor, samples []Sample, opts EvaluationOptions) (*EvaluationReport, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples to evaluate", domain.ErrInvalidInput)
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	truths := make([]domain.Label, len(samples))
	for i, s := range samples {
		t, err := s.Truth()
		if err != nil {
			return nil, fmt.Errorf("sample %s: %w", s.ID, err)
		}
		truths[i] = t
	}

	report := &EvaluationReport{
		RunID:       uuid.NewString(),
		StartedAt:   time.Now(),
		Predictions: make([]SamplePrediction, len(samples)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range samples {
		g.Go(func() error {
			s := samples[i]
			res, err := p.Predict(gctx, s.Inputs())
			if err != nil {
				return fmt.Errorf("sample %s: %w", s.ID, err)
			}
			report.Predictions[i] = SamplePrediction{Sample: s, Truth: truths[i], Result: res}
			logger.DebugContext(gctx, "sample evaluated",
				slog.String("run_id", report.RunID),
				slog.String("sample", s.ID),
				slog.String("truth", truths[i].String()),
				slog.String("predicted", res.Label.String()),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.Duration = time.Since(report.StartedAt)
	report.Confusion, report.Scores = score(report.Predictions)

	if opts.Metrics != nil {
		opts.Metrics.RecordGauge("evaluation_accuracy", report.Scores.Accuracy, nil)
		opts.Metrics.RecordGauge("evaluation_precision", report.Scores.Precision, nil)
		opts.Metrics.RecordGauge("evaluation_recall", report.Scores.Recall, nil)
		opts.Metrics.RecordGauge("evaluation_f1", report.Scores.F1, nil)
	}
	logger.InfoContext(ctx, "evaluation complete",
		slog.String("run_id", report.RunID),
		slog.Int("samples", len(samples)),
		slog.Float64("accuracy", report.Scores.Accuracy),
		slog.Float64("f1", report.Scores.F1),
		slog.Duration("duration", report.Duration),
	)

	return report, nil
}

// score computes the confusion matrix and metrics for preds.
func score(preds []SamplePrediction) (ConfusionMatrix, Scores) {
	var cm ConfusionMatrix
	var fakeSum float64
	for _, p := range preds {
		cm.Add(p.Truth, p.Result.Label)
		fakeSum += p.Result.Probabilities.Fake
	}

	var s Scores
	if n := cm.Total(); n > 0 {
		s.Accuracy = float64(cm.TrueReal+cm.TrueFake) / float64(n)
		s.MeanFakeProbability = fakeSum / float64(n)
	}
	s.Precision = ratio(cm.TrueFake, cm.TrueFake+cm.FalseFake)
	s.Recall = ratio(cm.TrueFake, cm.TrueFake+cm.FalseReal)
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return cm, s
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
