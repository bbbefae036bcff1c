package gemini

import "errors"

// Step identifies one call of the reflection pipeline
type Step string

const (
	StepDetectEmotion       Step = "detect_emotion"
	StepGenerateAffirmation Step = "generate_affirmation"
	StepGenerateArt         Step = "generate_art"
)

var (
	ErrEmotionDetection      = errors.New("Failed to detect emotion from the image.")
	ErrAffirmationGeneration = errors.New("Failed to generate an empowering affirmation.")
	ErrArtGeneration         = errors.New("Failed to generate inspiring art from the image.")
)

// StepError carries the fixed user-facing message of a failed step.
// The underlying cause is kept for logs and errors.Is/As but never shown to the user.
type StepError struct {
	Step  Step
	Kind  error
	Cause error
}

func newStepError(step Step, cause error) *StepError {
	var kind error
	switch step {
	case StepDetectEmotion:
		kind = ErrEmotionDetection
	case StepGenerateAffirmation:
		kind = ErrAffirmationGeneration
	default:
		kind = ErrArtGeneration
	}
	return &StepError{Step: step, Kind: kind, Cause: cause}
}

// Error returns the user-facing message only
func (e *StepError) Error() string {
	return e.Kind.Error()
}

// Unwrap exposes both the step sentinel and the original cause
func (e *StepError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}
