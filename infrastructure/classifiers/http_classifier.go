package classifiers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ahrav/fakescope/internal/domain"
	"github.com/ahrav/fakescope/internal/ports"
)

var _ ports.Classifier = (*HTTPClassifier)(nil)

// maxResponseBytes caps how much of an inference response is read.
const maxResponseBytes = 1 << 20

// HTTPConfig configures a classifier backed by a remote inference server.
type HTTPConfig struct {
	// Name identifies the classifier in logs and metrics.
	Name string
	// Endpoint is the URL that accepts a multipart "file" upload.
	Endpoint string
	// Model is sent as the "model" form field when set.
	Model string
	// ScoresPath is a gjson path to the scores in the JSON response.
	ScoresPath string
	// Kind says whether scores are logits or probabilities.
	Kind ScoreKind
	// Timeout bounds a single request. Zero leaves the client's own timeout.
	Timeout time.Duration
	// Aligner maps model classes onto [real, fake].
	Aligner *LabelAligner
	// Client overrides the HTTP client.
	Client *http.Client
}

// HTTPClassifier uploads media to an inference server and converts the
// response into a ProbabilityVector. It supports two response shapes at
// ScoresPath: an array of numbers, or an array of {label, score} objects.
type HTTPClassifier struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPClassifier validates cfg and returns a classifier.
func NewHTTPClassifier(cfg HTTPConfig) (*HTTPClassifier, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("http classifier %s: endpoint is required", cfg.Name)
	}
	if cfg.Name == "" {
		cfg.Name = "http"
	}
	if cfg.ScoresPath == "" {
		cfg.ScoresPath = "scores"
	}
	switch cfg.Kind {
	case ScoreLogits, ScoreProbabilities:
	case "":
		cfg.Kind = ScoreProbabilities
	default:
		return nil, fmt.Errorf("http classifier %s: unsupported score kind %q", cfg.Name, cfg.Kind)
	}
	if cfg.Aligner == nil {
		aligner, err := NewLabelAligner(OrderRealFake, 2)
		if err != nil {
			return nil, err
		}
		cfg.Aligner = aligner
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPClassifier{cfg: cfg, client: client}, nil
}

// Name returns the configured identifier.
func (h *HTTPClassifier) Name() string { return h.cfg.Name }

// Predict uploads the file at ref and parses the model's scores.
func (h *HTTPClassifier) Predict(ctx context.Context, ref string) (domain.ProbabilityVector, error) {
	body, contentType, err := h.buildBody(ref)
	if err != nil {
		return domain.ProbabilityVector{}, err
	}

	if h.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.Endpoint, body)
	if err != nil {
		return domain.ProbabilityVector{}, ports.NewClassifierError(h.cfg.Name, "request", ref, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ports.ErrTimeout, err)
		} else {
			err = fmt.Errorf("%w: %w", ports.ErrServiceUnavailable, err)
		}
		return domain.ProbabilityVector{}, ports.NewClassifierError(h.cfg.Name, "request", ref, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.ProbabilityVector{}, ports.NewClassifierError(h.cfg.Name, "read", ref,
			fmt.Errorf("%w: %w", ports.ErrInvalidResponse, err))
	}

	if err := statusError(resp.StatusCode, data); err != nil {
		return domain.ProbabilityVector{}, ports.NewClassifierError(h.cfg.Name, "request", ref, err)
	}

	probs, err := h.parseScores(data)
	if err != nil {
		return domain.ProbabilityVector{}, ports.NewClassifierError(h.cfg.Name, "parse", ref, err)
	}
	return probs, nil
}

// buildBody encodes the media file and optional model name as multipart.
func (h *HTTPClassifier) buildBody(ref string) (io.Reader, string, error) {
	f, err := os.Open(ref)
	if err != nil {
		return nil, "", ports.NewClassifierError(h.cfg.Name, "open", ref,
			fmt.Errorf("%w: %w", ports.ErrUnreadableMedia, err))
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if h.cfg.Model != "" {
		if err := w.WriteField("model", h.cfg.Model); err != nil {
			return nil, "", ports.NewClassifierError(h.cfg.Name, "encode", ref, err)
		}
	}

	part, err := w.CreateFormFile("file", filepath.Base(ref))
	if err != nil {
		return nil, "", ports.NewClassifierError(h.cfg.Name, "encode", ref, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", ports.NewClassifierError(h.cfg.Name, "read", ref,
			fmt.Errorf("%w: %w", ports.ErrUnreadableMedia, err))
	}
	if err := w.Close(); err != nil {
		return nil, "", ports.NewClassifierError(h.cfg.Name, "encode", ref, err)
	}

	return &buf, w.FormDataContentType(), nil
}

// parseScores extracts and normalizes the scores found at ScoresPath.
func (h *HTTPClassifier) parseScores(data []byte) (domain.ProbabilityVector, error) {
	if !gjson.ValidBytes(data) {
		return domain.ProbabilityVector{}, fmt.Errorf("%w: body is not JSON", ports.ErrInvalidResponse)
	}

	scores := gjson.GetBytes(data, h.cfg.ScoresPath)
	if !scores.Exists() || !scores.IsArray() {
		return domain.ProbabilityVector{}, fmt.Errorf("%w: no score array at %q", ports.ErrInvalidResponse, h.cfg.ScoresPath)
	}

	items := scores.Array()
	if len(items) == 0 {
		return domain.ProbabilityVector{}, fmt.Errorf("%w: empty score array at %q", ports.ErrInvalidResponse, h.cfg.ScoresPath)
	}

	var aligned []float64
	if items[0].IsObject() {
		named := make([]NamedScore, 0, len(items))
		raw := make([]float64, 0, len(items))
		for i, item := range items {
			label, score := item.Get("label"), item.Get("score")
			if !label.Exists() || score.Type != gjson.Number {
				return domain.ProbabilityVector{}, fmt.Errorf("%w: score %d lacks label or numeric score", ports.ErrInvalidResponse, i)
			}
			named = append(named, NamedScore{Label: label.String()})
			raw = append(raw, score.Float())
		}
		raw = h.normalizeKind(raw)
		for i := range named {
			named[i].Score = raw[i]
		}

		var err error
		if aligned, err = h.cfg.Aligner.AlignNamed(named); err != nil {
			return domain.ProbabilityVector{}, err
		}
	} else {
		raw := make([]float64, 0, len(items))
		for i, item := range items {
			if item.Type != gjson.Number {
				return domain.ProbabilityVector{}, fmt.Errorf("%w: score %d is not a number", ports.ErrInvalidResponse, i)
			}
			raw = append(raw, item.Float())
		}
		aligned = h.cfg.Aligner.AlignPositional(h.normalizeKind(raw))
	}

	return ToVector(aligned)
}

// normalizeKind applies a softmax to logits. A single logit is a binary
// classifier's fake score and goes through a sigmoid instead.
func (h *HTTPClassifier) normalizeKind(raw []float64) []float64 {
	if h.cfg.Kind != ScoreLogits {
		return raw
	}
	if len(raw) == 1 {
		return []float64{Softmax([]float64{0, raw[0]})[1]}
	}
	return Softmax(raw)
}

// statusError maps non-2xx responses onto port errors.
func statusError(code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}

	msg := gjson.GetBytes(body, "error").String()
	if msg == "" {
		msg = http.StatusText(code)
	}

	switch {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d: %s", ports.ErrRateLimited, code, msg)
	case code == http.StatusGatewayTimeout || code == http.StatusRequestTimeout:
		return fmt.Errorf("%w: status %d: %s", ports.ErrTimeout, code, msg)
	case code == http.StatusUnprocessableEntity || code == http.StatusUnsupportedMediaType:
		return fmt.Errorf("%w: status %d: %s", ports.ErrUnreadableMedia, code, msg)
	case code >= 500:
		return fmt.Errorf("%w: status %d: %s", ports.ErrServiceUnavailable, code, msg)
	}
	return fmt.Errorf("%w: status %d: %s", ports.ErrInvalidResponse, code, msg)
}
