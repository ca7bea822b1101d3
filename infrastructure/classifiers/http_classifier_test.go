package classifiers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/fakescope/internal/domain"
	"github.com/ahrav/fakescope/internal/ports"
)

// writeMedia creates a small file standing in for an uploaded image.
func writeMedia(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "face.jpg")
	require.NoError(t, os.WriteFile(path, []byte("\xff\xd8\xff\xe0 fake jpeg body"), 0o600))
	return path
}

// inferenceServer returns a server that checks the upload and answers with
// the given status and body.
func inferenceServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "face.jpg", header.Filename)
		assert.NotEmpty(t, data)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClassifier_Predict(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		scoresPath string
		kind       ScoreKind
		order      LabelOrder
		want       domain.ProbabilityVector
	}{
		{
			name: "positional probabilities",
			body: `{"scores":[0.3,0.7]}`,
			want: domain.ProbabilityVector{Real: 0.3, Fake: 0.7},
		},
		{
			name:  "positional probabilities fake first",
			body:  `{"scores":[0.7,0.3]}`,
			order: OrderFakeReal,
			want:  domain.ProbabilityVector{Real: 0.3, Fake: 0.7},
		},
		{
			name: "logits pass through softmax",
			body: `{"scores":[0,0]}`,
			kind: ScoreLogits,
			want: domain.ProbabilityVector{Real: 0.5, Fake: 0.5},
		},
		{
			name: "single logit uses sigmoid",
			body: `{"scores":[0]}`,
			kind: ScoreLogits,
			want: domain.ProbabilityVector{Real: 0.5, Fake: 0.5},
		},
		{
			name: "single probability is fake score",
			body: `{"scores":[0.9]}`,
			want: domain.ProbabilityVector{Real: 0.1, Fake: 0.9},
		},
		{
			name:       "named scores at nested path",
			body:       `{"result":{"predictions":[{"label":"Deepfake","score":0.85},{"label":"Realism","score":0.15}]}}`,
			scoresPath: "result.predictions",
			want:       domain.ProbabilityVector{Real: 0.15, Fake: 0.85},
		},
		{
			name: "extra classes renormalized",
			body: `{"scores":[0.2,0.6,0.2]}`,
			want: domain.ProbabilityVector{Real: 0.25, Fake: 0.75},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := inferenceServer(t, http.StatusOK, tt.body)

			order := tt.order
			if order == "" {
				order = OrderRealFake
			}
			aligner, err := NewLabelAligner(order, 2)
			require.NoError(t, err)

			c, err := NewHTTPClassifier(HTTPConfig{
				Name:       "image-http",
				Endpoint:   srv.URL,
				ScoresPath: tt.scoresPath,
				Kind:       tt.kind,
				Aligner:    aligner,
				Timeout:    5 * time.Second,
			})
			require.NoError(t, err)

			got, err := c.Predict(context.Background(), writeMedia(t))
			require.NoError(t, err)
			assert.InDelta(t, tt.want.Real, got.Real, 1e-9)
			assert.InDelta(t, tt.want.Fake, got.Fake, 1e-9)
			assert.NoError(t, got.Validate())
		})
	}
}

func TestHTTPClassifier_SendsModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "prithivMLmods/deepfake-detector-model-v1", r.FormValue("model"))
		_, _ = io.WriteString(w, `{"scores":[0.5,0.5]}`)
	}))
	defer srv.Close()

	c, err := NewHTTPClassifier(HTTPConfig{Endpoint: srv.URL, Model: "prithivMLmods/deepfake-detector-model-v1"})
	require.NoError(t, err)
	assert.Equal(t, "http", c.Name())

	_, err = c.Predict(context.Background(), writeMedia(t))
	require.NoError(t, err)
}

func TestHTTPClassifier_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"cuda out of memory"}`, wantErr: ports.ErrServiceUnavailable},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, wantErr: ports.ErrRateLimited},
		{name: "unreadable media", status: http.StatusUnprocessableEntity, body: `{"error":"cannot decode image"}`, wantErr: ports.ErrUnreadableMedia},
		{name: "bad request", status: http.StatusBadRequest, body: `{}`, wantErr: ports.ErrInvalidResponse},
		{name: "not json", status: http.StatusOK, body: `<html>`, wantErr: ports.ErrInvalidResponse},
		{name: "missing scores", status: http.StatusOK, body: `{"logits":[1,2]}`, wantErr: ports.ErrInvalidResponse},
		{name: "empty scores", status: http.StatusOK, body: `{"scores":[]}`, wantErr: ports.ErrInvalidResponse},
		{name: "non numeric score", status: http.StatusOK, body: `{"scores":["a","b"]}`, wantErr: ports.ErrInvalidResponse},
		{name: "unknown labels", status: http.StatusOK, body: `{"scores":[{"label":"cat","score":1}]}`, wantErr: ErrUnknownLabel},
		{name: "invalid probabilities", status: http.StatusOK, body: `{"scores":[-1,2]}`, wantErr: domain.ErrInvalidProbability},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := inferenceServer(t, tt.status, tt.body)
			c, err := NewHTTPClassifier(HTTPConfig{Name: "video-http", Endpoint: srv.URL})
			require.NoError(t, err)

			_, err = c.Predict(context.Background(), writeMedia(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var cerr *ports.ClassifierError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, "video-http", cerr.Classifier)
		})
	}
}

func TestHTTPClassifier_MissingFile(t *testing.T) {
	c, err := NewHTTPClassifier(HTTPConfig{Name: "audio-http", Endpoint: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = c.Predict(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	assert.ErrorIs(t, err, ports.ErrUnreadableMedia)

	var cerr *ports.ClassifierError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "open", cerr.Operation)
	assert.False(t, cerr.IsTransient())
}

func TestHTTPClassifier_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewHTTPClassifier(HTTPConfig{Endpoint: srv.URL, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.Predict(context.Background(), writeMedia(t))
	assert.ErrorIs(t, err, ports.ErrTimeout)

	var cerr *ports.ClassifierError
	require.ErrorAs(t, err, &cerr)
	assert.True(t, cerr.IsTransient())
}

func TestNewHTTPClassifier_Validation(t *testing.T) {
	_, err := NewHTTPClassifier(HTTPConfig{})
	assert.Error(t, err)

	_, err = NewHTTPClassifier(HTTPConfig{Endpoint: "http://localhost", Kind: "votes"})
	assert.Error(t, err)
}

func TestFixedClassifier(t *testing.T) {
	c, err := NewFixedClassifier("static", domain.ProbabilityVector{Real: 0.4, Fake: 0.6})
	require.NoError(t, err)
	assert.Equal(t, "static", c.Name())

	got, err := c.Predict(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, domain.ProbabilityVector{Real: 0.4, Fake: 0.6}, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Predict(ctx, "anything")
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewFixedClassifier("bad", domain.ProbabilityVector{Real: 1, Fake: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidProbability)
}
