package application

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/fakescope/infrastructure/middleware"
	"github.com/ahrav/fakescope/internal/domain"
)

// fakeInferenceServer answers with scores keyed by the uploaded file name,
// the way a model server would for a fixed test set.
func fakeInferenceServer(t *testing.T, body func(filename string) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, `{"error":"bad upload"}`, http.StatusBadRequest)
			return
		}
		_, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, `{"error":"missing file"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body(header.Filename))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestEndToEndEvaluationPipeline drives configuration loading, classifier
// construction, media routing, prediction and batch scoring against
// in-process inference servers.
func TestEndToEndEvaluationPipeline(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	// Image server: positional probabilities, fake first. It flags every
	// upload as fake, so a real image on its own is misclassified.
	imageSrv := fakeInferenceServer(t, func(name string) string {
		if strings.HasPrefix(name, "fake") {
			return `{"scores":[0.9,0.1]}`
		}
		return `{"scores":[0.8,0.2]}`
	})
	// Video server: named logits nested under a result object.
	videoSrv := fakeInferenceServer(t, func(name string) string {
		if strings.HasPrefix(name, "fake") {
			return `{"result":{"logits":[{"label":"Realism","score":0},{"label":"Deepfake","score":2}]}}`
		}
		return `{"result":{"logits":[{"label":"Realism","score":2},{"label":"Deepfake","score":0}]}}`
	})

	cfgPath := filepath.Join(dir, "fakescope.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
version: "1.0.0"
weights: {image: 0.4, video: 0.6, audio: 0.0}
classifiers:
  image:
    type: http
    endpoint: %s
    label_order: fake_real
  video:
    type: http
    endpoint: %s
    scores_path: result.logits
    score_kind: logits
    serialize: true
`, imageSrv.URL, videoSrv.URL)), 0o600))

	media := map[string][]byte{
		"real.png": pngHeader, "fake.png": pngHeader,
		"real.mp4": mp4Header, "fake.mp4": mp4Header,
	}
	for name, data := range media {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
	}

	manifestPath := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`
samples:
  - {id: real-pair, image: real.png, video: real.mp4, label: Real}
  - {id: fake-pair, image: fake.png, video: fake.mp4, label: Fake}
  - {id: real-image, image: real.png, label: Real}
  - {id: fake-video, video: fake.mp4, label: Fake}
`), 0o600))

	cfg, err := newTestLoader(t).LoadFromFile(cfgPath)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	e, err := NewEnsembleFromConfig(cfg, middleware.NewPrometheusMetrics(reg), nil)
	require.NoError(t, err)

	t.Run("single prediction from routed files", func(t *testing.T) {
		inputs, err := InputsForFiles(filepath.Join(dir, "fake.mp4"), filepath.Join(dir, "fake.png"))
		require.NoError(t, err)

		res, err := e.Predict(ctx, inputs)
		require.NoError(t, err)
		assert.Equal(t, domain.LabelFake, res.Label)
		require.Len(t, res.Contributions, 2)
		assert.Equal(t, domain.ModalityImage, res.Contributions[0].Modality)
		assert.InDelta(t, 0.9, res.Contributions[0].Probabilities.Fake, 1e-9)
		assert.InDelta(t, 1.0, res.Probabilities.Real+res.Probabilities.Fake, 1e-9)
	})

	t.Run("batch evaluation", func(t *testing.T) {
		manifest, err := LoadManifest(manifestPath)
		require.NoError(t, err)

		report, err := Evaluate(ctx, e, manifest.Samples, EvaluationOptions{Workers: 2})
		require.NoError(t, err)

		// Video evidence outweighs the image model for the real pair.
		assert.Equal(t, ConfusionMatrix{TrueReal: 1, FalseFake: 1, TrueFake: 2}, report.Confusion)
		assert.InDelta(t, 0.75, report.Scores.Accuracy, 1e-12)
		assert.InDelta(t, 2.0/3.0, report.Scores.Precision, 1e-12)
		assert.InDelta(t, 1.0, report.Scores.Recall, 1e-12)
	})

	count, err := testutil.GatherAndCount(reg, "fakescope_classifier_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per modality")
}

// TestDeterministicBehavior verifies that repeated predictions over the
// same inputs are bit-for-bit identical.
func TestDeterministicBehavior(t *testing.T) {
	ctx := context.Background()

	cfg, err := newTestLoader(t).LoadFromFile(filepath.Join("testdata", "ensemble.yaml"))
	require.NoError(t, err)

	e1, err := NewEnsembleFromConfig(cfg, nil, nil)
	require.NoError(t, err)
	e2, err := NewEnsembleFromConfig(cfg, nil, nil)
	require.NoError(t, err)

	inputs := domain.Inputs{Image: "a.jpg", Video: "a.mp4"}
	first, err := e1.Predict(ctx, inputs)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		got, err := e1.Predict(ctx, inputs)
		require.NoError(t, err)
		assert.Equal(t, first, got, "the same ensemble should produce the same result")
	}

	other, err := e2.Predict(ctx, inputs)
	require.NoError(t, err)
	assert.Equal(t, first, other, "different ensemble instances should produce the same result")
}
