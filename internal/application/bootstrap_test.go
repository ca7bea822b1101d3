package application

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/fakescope/infrastructure/classifiers"
	"github.com/ahrav/fakescope/infrastructure/fusion"
	"github.com/ahrav/fakescope/infrastructure/middleware"
	"github.com/ahrav/fakescope/internal/domain"
	"github.com/ahrav/fakescope/internal/ports"
)

func TestNewEnsembleFromConfig_Static(t *testing.T) {
	cfg, err := newTestLoader(t).LoadFromFile(filepath.Join("testdata", "ensemble.yaml"))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	pm := middleware.NewPrometheusMetrics(reg)

	e, err := NewEnsembleFromConfig(cfg, pm, nil)
	require.NoError(t, err)

	res, err := e.Predict(context.Background(), domain.Inputs{Image: "face.jpg", Video: "face.mp4"})
	require.NoError(t, err)
	assert.InDelta(t, 0.52, res.Probabilities.Fake, 1e-9)
	assert.Equal(t, domain.LabelFake, res.Label)

	expected := `
# HELP fakescope_classifier_requests_total Classifier predictions by outcome.
# TYPE fakescope_classifier_requests_total counter
fakescope_classifier_requests_total{classifier="image-static",modality="image",status="success"} 1
fakescope_classifier_requests_total{classifier="video-baseline",modality="video",status="success"} 1
# HELP fakescope_verdicts_total Ensemble verdicts by label.
# TYPE fakescope_verdicts_total counter
fakescope_verdicts_total{label="Fake"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"fakescope_classifier_requests_total", "fakescope_verdicts_total"))

	_, err = e.Predict(context.Background(), domain.Inputs{Audio: "voice.wav"})
	assert.ErrorIs(t, err, domain.ErrMissingClassifier)
}

func TestNewEnsembleFromConfig_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"predictions":[{"label":"Realism","score":0.25},{"label":"Deepfake","score":0.75}]}`)
	}))
	defer srv.Close()

	cfg := &Config{
		Version: "1.0.0",
		Weights: domain.Weights{Image: 1},
		Classifiers: map[string]ClassifierConfig{
			"image": {Type: "http", Endpoint: srv.URL, ScoresPath: "predictions", RateLimit: 100, Serialize: true},
		},
	}
	cfg.applyDefaults(true)
	require.NoError(t, newTestLoader(t).Validate(cfg))

	e, err := NewEnsembleFromConfig(cfg, nil, nil)
	require.NoError(t, err)

	media := filepath.Join(t.TempDir(), "face.jpg")
	require.NoError(t, os.WriteFile(media, []byte("jpeg"), 0o600))

	res, err := e.Predict(context.Background(), domain.Inputs{Image: media})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, res.Probabilities.Fake, 1e-9)
}

func TestNewEnsembleFromConfig_CircuitBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":"model loading"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := &Config{
		Version: "1.0.0",
		Weights: domain.Weights{Video: 1},
		Classifiers: map[string]ClassifierConfig{
			"video": {
				Type:           "http",
				Endpoint:       srv.URL,
				CircuitBreaker: &CircuitBreakerConfig{MaxFailures: 2, Cooldown: time.Hour},
			},
		},
	}
	cfg.applyDefaults(true)
	require.NoError(t, newTestLoader(t).Validate(cfg))

	reg := prometheus.NewRegistry()
	e, err := NewEnsembleFromConfig(cfg, middleware.NewPrometheusMetrics(reg), nil)
	require.NoError(t, err)

	media := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(media, []byte("mp4"), 0o600))

	for range 2 {
		_, err = e.Predict(context.Background(), domain.Inputs{Video: media})
		assert.ErrorIs(t, err, ports.ErrServiceUnavailable)
	}
	_, err = e.Predict(context.Background(), domain.Inputs{Video: media})
	assert.ErrorIs(t, err, middleware.ErrCircuitOpen)
	assert.EqualValues(t, 2, hits.Load())

	expected := `
# HELP fakescope_classifier_circuit_state Circuit breaker state per classifier (0 closed, 1 open, 2 half-open).
# TYPE fakescope_classifier_circuit_state gauge
fakescope_classifier_circuit_state{classifier="video-http",modality="video"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"fakescope_classifier_circuit_state"))
}

func TestNewEnsembleFromConfig_MinConfidence(t *testing.T) {
	cfg := &Config{
		Version: "1.0.0",
		Weights: domain.Weights{Image: 1},
		Classifiers: map[string]ClassifierConfig{
			"image": {Type: "static", Output: &domain.ProbabilityVector{Real: 0.45, Fake: 0.55}},
		},
		Fusion: FusionConfig{MinConfidence: 0.9},
	}
	cfg.applyDefaults(true)

	e, err := NewEnsembleFromConfig(cfg, nil, nil)
	require.NoError(t, err)

	_, err = e.Predict(context.Background(), domain.Inputs{Image: "a.jpg"})
	assert.ErrorIs(t, err, fusion.ErrBelowMinConfidence)
}

func TestBuildClassifiers(t *testing.T) {
	t.Run("custom registry type", func(t *testing.T) {
		reg := classifiers.NewRegistry()
		require.NoError(t, reg.Register("coin", func(spec classifiers.Spec) (ports.Classifier, error) {
			return classifiers.NewFixedClassifier(spec.Name, domain.ProbabilityVector{Real: 0.5, Fake: 0.5})
		}))

		cfg := &Config{Classifiers: map[string]ClassifierConfig{"audio": {Type: "coin", Name: "flip"}}}
		cls, err := BuildClassifiers(cfg, reg, nil)
		require.NoError(t, err)
		assert.Nil(t, cls.Image)
		require.NotNil(t, cls.Audio)
		assert.Equal(t, "flip", cls.Audio.Name())
	})

	t.Run("unknown modality", func(t *testing.T) {
		cfg := &Config{Classifiers: map[string]ClassifierConfig{"text": {Type: "static"}}}
		_, err := BuildClassifiers(cfg, nil, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("factory failure", func(t *testing.T) {
		cfg := &Config{Classifiers: map[string]ClassifierConfig{"image": {Type: "http"}}}
		_, err := BuildClassifiers(cfg, nil, nil)
		assert.ErrorContains(t, err, `classifier "image"`)
	})
}

func TestNewEnsembleFromConfig_MaxPool(t *testing.T) {
	cfg, err := newTestLoader(t).Load([]byte(`
version: "1.0.0"
weights: {image: 0.4, video: 0.6}
classifiers:
  image: {type: static, output: {real: 0.1, fake: 0.9}}
  video: {type: static, output: {real: 0.8, fake: 0.2}}
fusion:
  strategy: max_pool
  tie_breaker: error
`))
	require.NoError(t, err)

	e, err := NewEnsembleFromConfig(cfg, nil, nil)
	require.NoError(t, err)

	res, err := e.Predict(context.Background(), domain.Inputs{Image: "a.jpg", Video: "a.mp4"})
	require.NoError(t, err)
	assert.Equal(t, domain.LabelFake, res.Label)
	assert.InDelta(t, 0.9, res.Probabilities.Fake, 1e-12)
}

func TestNewAggregator(t *testing.T) {
	agg, err := newAggregator(FusionConfig{})
	require.NoError(t, err)
	assert.IsType(t, &fusion.WeightedMean{}, agg)

	agg, err = newAggregator(FusionConfig{Strategy: "max_pool"})
	require.NoError(t, err)
	assert.IsType(t, &fusion.MaxPool{}, agg)

	_, err = newAggregator(FusionConfig{Strategy: "vote"})
	assert.Error(t, err)
}

func TestNewEnsembleFromConfig_EnsembleClassifier(t *testing.T) {
	detector := func(body string) string {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, body)
		}))
		t.Cleanup(srv.Close)
		return srv.URL
	}
	effURL := detector(`{"logits":[0,2.1972245773362196]}`)
	clipURL := detector(`{"scores":[{"label":"Real","score":0.3},{"label":"Fake","score":0.7}]}`)

	cfg, err := newTestLoader(t).Load([]byte(`
version: "1.0.0"
weights: {image: 1}
classifiers:
  image:
    type: ensemble
    members:
      - {name: efficientvit, type: http, endpoint: "` + effURL + `", scores_path: logits, score_kind: logits, weight: 0.3}
      - {name: clip, type: http, endpoint: "` + clipURL + `", weight: 0.3}
      - {name: xception, type: static, output: {real: 0.8, fake: 0.2}, weight: 0.4}
`))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	e, err := NewEnsembleFromConfig(cfg, middleware.NewPrometheusMetrics(reg), nil)
	require.NoError(t, err)

	media := filepath.Join(t.TempDir(), "face.jpg")
	require.NoError(t, os.WriteFile(media, []byte("jpeg"), 0o600))

	res, err := e.Predict(context.Background(), domain.Inputs{Image: media})
	require.NoError(t, err)

	// softmax([0, ln 9]) is [0.1, 0.9], so 0.3*0.9 + 0.3*0.7 + 0.4*0.2.
	assert.InDelta(t, 0.56, res.Probabilities.Fake, 1e-9)
	assert.Equal(t, domain.LabelFake, res.Label)

	require.Len(t, res.Contributions, 1)
	subs := res.Contributions[0].SubScores
	require.Len(t, subs, 3)
	assert.Equal(t, "efficientvit", subs[0].Name)
	assert.InDelta(t, 0.9, subs[0].Probabilities.Fake, 1e-9)
	assert.Equal(t, "clip", subs[1].Name)
	assert.InDelta(t, 0.7, subs[1].Probabilities.Fake, 1e-9)
	assert.Equal(t, "xception", subs[2].Name)
	assert.Equal(t, 0.4, subs[2].Weight)

	count, err := testutil.GatherAndCount(reg, "fakescope_classifier_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "the group is measured as one classifier")
}

func TestNewEnsembleFromConfig_ExactLabelMatching(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"scores":[{"label":"Authentik","score":0.25},{"label":"Deepfakes","score":0.75}]}`)
	}))
	defer srv.Close()

	media := filepath.Join(t.TempDir(), "face.jpg")
	require.NoError(t, os.WriteFile(media, []byte("jpeg"), 0o600))

	load := func(distance string) *Ensemble {
		t.Helper()
		yaml := "version: \"1.0.0\"\nweights: {image: 1}\nclassifiers:\n  image:\n    type: http\n    endpoint: " + srv.URL + "\n"
		if distance != "" {
			yaml += "    max_label_distance: " + distance + "\n"
		}
		cfg, err := newTestLoader(t).Load([]byte(yaml))
		require.NoError(t, err)
		e, err := NewEnsembleFromConfig(cfg, nil, nil)
		require.NoError(t, err)
		return e
	}

	res, err := load("").Predict(context.Background(), domain.Inputs{Image: media})
	require.NoError(t, err, "misspellings are tolerated by default")
	assert.InDelta(t, 0.75, res.Probabilities.Fake, 1e-9)

	_, err = load("0").Predict(context.Background(), domain.Inputs{Image: media})
	assert.ErrorIs(t, err, classifiers.ErrUnknownLabel, "an explicit zero demands exact names")
}
