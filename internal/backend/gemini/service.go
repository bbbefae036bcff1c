package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	DefaultEmotionModel     = "gemini-2.5-flash"
	DefaultAffirmationModel = "gemini-2.5-flash"
	DefaultArtModel         = "gemini-2.5-flash-image-preview"
)

var (
	errEmptyEmotion = errors.New("emotion detection failed to return a valid emotion")
	errNoImagePart  = errors.New("image editing model did not return an image")
)

// Image is an encoded image together with its mime type
type Image struct {
	Data     []byte
	MimeType string
}

// contentGenerator is the subset of *genai.Models the service calls
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Models selects the model used for each step
type Models struct {
	Emotion     string
	Affirmation string
	Art         string
}

func (m Models) withDefaults() Models {
	if m.Emotion == "" {
		m.Emotion = DefaultEmotionModel
	}
	if m.Affirmation == "" {
		m.Affirmation = DefaultAffirmationModel
	}
	if m.Art == "" {
		m.Art = DefaultArtModel
	}
	return m
}

// Service performs the three reflection calls against the Gemini API
type Service struct {
	generator      contentGenerator
	models         Models
	requestTimeout time.Duration
}

// NewService creates a Gemini client for the given API key
func NewService(ctx context.Context, apiKey string, models Models, requestTimeout time.Duration) (*Service, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return newServiceWithGenerator(client.Models, models, requestTimeout), nil
}

func newServiceWithGenerator(generator contentGenerator, models Models, requestTimeout time.Duration) *Service {
	return &Service{
		generator:      generator,
		models:         models.withDefaults(),
		requestTimeout: requestTimeout,
	}
}

func (s *Service) generate(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}
	resp, err := s.generator.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("empty response from model %s", model)
	}
	return resp, nil
}

func imageContent(img Image, prompt string) []*genai.Content {
	return []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(img.Data, img.MimeType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}
}

// DetectEmotion classifies the primary emotion of the person in the image as a single word
func (s *Service) DetectEmotion(ctx context.Context, img Image) (string, error) {
	resp, err := s.generate(ctx, s.models.Emotion, imageContent(img, emotionPrompt), &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
	})
	if err == nil {
		emotion := CleanEmotion(resp.Text())
		if emotion != "" {
			return emotion, nil
		}
		err = errEmptyEmotion
	}

	slog.Error("DetectEmotion: emotion detection failed", "model", s.models.Emotion, "error", err)
	return "", newStepError(StepDetectEmotion, err)
}

// GenerateAffirmation writes a short poetic affirmation for the emotion
func (s *Service) GenerateAffirmation(ctx context.Context, emotion string) (string, error) {
	resp, err := s.generate(ctx, s.models.Affirmation, genai.Text(affirmationPrompt(emotion)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(affirmationSystemInstruction, genai.RoleUser),
	})
	if err != nil {
		slog.Error("GenerateAffirmation: affirmation generation failed", "model", s.models.Affirmation, "error", err)
		return "", newStepError(StepGenerateAffirmation, err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// GenerateInspiringArt transforms the photo into an artwork inspired by emotion and affirmation.
// The first inline image part of the first candidate is returned.
func (s *Service) GenerateInspiringArt(ctx context.Context, img Image, emotion, affirmation string) (Image, error) {
	resp, err := s.generate(ctx, s.models.Art, imageContent(img, artPrompt(emotion, affirmation)), &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage), string(genai.ModalityText)},
	})
	if err == nil {
		if art, ok := firstInlineImage(resp); ok {
			return art, nil
		}
		err = errNoImagePart
	}

	slog.Error("GenerateInspiringArt: art generation failed", "model", s.models.Art, "error", err)
	return Image{}, newStepError(StepGenerateArt, err)
}

func firstInlineImage(resp *genai.GenerateContentResponse) (Image, bool) {
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return Image{}, false
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return Image{Data: part.InlineData.Data, MimeType: part.InlineData.MIMEType}, true
		}
	}
	return Image{}, false
}
