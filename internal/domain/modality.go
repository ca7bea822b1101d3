package domain

import (
	"fmt"
	"math"
)

// Modality identifies the media type handled by one dedicated classifier.
type Modality string

// Supported modalities.
const (
	ModalityImage Modality = "image"
	ModalityVideo Modality = "video"
	ModalityAudio Modality = "audio"
)

// Modalities lists every modality in the fixed order the ensemble consults
// them. Accumulation follows this order so results are reproducible.
var Modalities = [...]Modality{ModalityImage, ModalityVideo, ModalityAudio}

// String returns the modality name.
func (m Modality) String() string { return string(m) }

// Valid reports whether m is a supported modality.
func (m Modality) Valid() bool {
	switch m {
	case ModalityImage, ModalityVideo, ModalityAudio:
		return true
	}
	return false
}

// ParseModality converts a name into a Modality.
func ParseModality(s string) (Modality, error) {
	m := Modality(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown modality %q", ErrInvalidInput, s)
	}
	return m, nil
}

// Weights holds the static per-modality ensemble weights.
// Weights are fixed for an ensemble's lifetime; the only normalization
// applied is the per-call divisor over the modalities actually present.
type Weights struct {
	Image float64 `json:"image" yaml:"image" validate:"min=0"`
	Video float64 `json:"video" yaml:"video" validate:"min=0"`
	Audio float64 `json:"audio" yaml:"audio" validate:"min=0"`
}

// DefaultWeights returns the image/video/audio weighting used by the
// reference deployment: video-heavy, with audio disabled.
func DefaultWeights() Weights {
	return Weights{Image: 0.4, Video: 0.6, Audio: 0.0}
}

// For returns the weight assigned to m, or 0 for an unknown modality.
func (w Weights) For(m Modality) float64 {
	switch m {
	case ModalityImage:
		return w.Image
	case ModalityVideo:
		return w.Video
	case ModalityAudio:
		return w.Audio
	}
	return 0
}

// Validate rejects negative or non-finite weights.
func (w Weights) Validate() error {
	verr := NewValidationError("Weights")
	for _, m := range Modalities {
		v := w.For(m)
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			verr.AddError(fmt.Sprintf("%s weight must be finite, got %v", m, v))
		case v < 0:
			verr.AddError(fmt.Sprintf("%s weight must be non-negative, got %v", m, v))
		}
	}
	if verr.HasErrors() {
		return fmt.Errorf("%w: %w", ErrInvalidWeights, verr)
	}
	return nil
}

// Inputs carries the optional media references for a single prediction.
// An empty field means the modality is absent.
type Inputs struct {
	Image string `json:"image,omitempty" yaml:"image,omitempty"`
	Video string `json:"video,omitempty" yaml:"video,omitempty"`
	Audio string `json:"audio,omitempty" yaml:"audio,omitempty"`
}

// For returns the reference supplied for m.
func (in Inputs) For(m Modality) string {
	switch m {
	case ModalityImage:
		return in.Image
	case ModalityVideo:
		return in.Video
	case ModalityAudio:
		return in.Audio
	}
	return ""
}

// Set returns a copy of in with the reference for m replaced by ref.
func (in Inputs) Set(m Modality, ref string) Inputs {
	switch m {
	case ModalityImage:
		in.Image = ref
	case ModalityVideo:
		in.Video = ref
	case ModalityAudio:
		in.Audio = ref
	}
	return in
}

// Present returns the modalities with a reference, in consultation order.
func (in Inputs) Present() []Modality {
	present := make([]Modality, 0, len(Modalities))
	for _, m := range Modalities {
		if in.For(m) != "" {
			present = append(present, m)
		}
	}
	return present
}

// Empty reports whether no modality has a reference.
func (in Inputs) Empty() bool { return len(in.Present()) == 0 }
