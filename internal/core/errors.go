package core

import (
	"errors"

	"github.com/jo-hoe/emotionmirror/internal/backend/gemini"
)

var (
	ErrCameraAccess          = errors.New("camera access failed")
	ErrCanvasContext         = errors.New("Could not get canvas context.")
	ErrUnsupportedImage      = errors.New("The selected file is not a supported image.")
	ErrInvalidState          = errors.New("operation not allowed in the current state")
	ErrNoImage               = errors.New("no captured image")
	ErrEmotionDetection      = gemini.ErrEmotionDetection
	ErrAffirmationGeneration = gemini.ErrAffirmationGeneration
	ErrArtGeneration         = gemini.ErrArtGeneration
)

const unknownErrorMessage = "An unknown error occurred."

// UserMessage maps an error to the text shown in the UI. Causes are never exposed.
func UserMessage(err error) string {
	var stepErr *gemini.StepError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &stepErr):
		return stepErr.Error()
	case errors.Is(err, ErrCanvasContext):
		return ErrCanvasContext.Error()
	case errors.Is(err, ErrUnsupportedImage):
		return ErrUnsupportedImage.Error()
	}
	return unknownErrorMessage
}
