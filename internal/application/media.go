package application

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/ahrav/fakescope/internal/domain"
)

var (
	// ErrUnsupportedMedia is returned for files that are not image, video
	// or audio content.
	ErrUnsupportedMedia = errors.New("unsupported media type")
	// ErrDuplicateModality is returned when two files map to one modality.
	ErrDuplicateModality = errors.New("more than one file for modality")
)

// DetectModality sniffs the file content at path and returns the modality
// that should classify it. File extensions are ignored.
func DetectModality(path string) (domain.Modality, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect media type of %s: %w", path, err)
	}
	return modalityForMIME(mt.String(), path)
}

// modalityForMIME maps a MIME type's top-level type to a modality.
func modalityForMIME(mime, path string) (domain.Modality, error) {
	top, _, _ := strings.Cut(mime, "/")
	switch top {
	case "image":
		return domain.ModalityImage, nil
	case "video":
		return domain.ModalityVideo, nil
	case "audio":
		return domain.ModalityAudio, nil
	}
	return "", fmt.Errorf("%w: %s is %s", ErrUnsupportedMedia, path, mime)
}

// InputsForFiles routes each path to its modality by content.
func InputsForFiles(paths ...string) (domain.Inputs, error) {
	var in domain.Inputs
	for _, p := range paths {
		m, err := DetectModality(p)
		if err != nil {
			return domain.Inputs{}, err
		}
		if prev := in.For(m); prev != "" {
			return domain.Inputs{}, fmt.Errorf("%w %s: %s and %s", ErrDuplicateModality, m, prev, p)
		}
		in = in.Set(m, p)
	}
	return in, nil
}
