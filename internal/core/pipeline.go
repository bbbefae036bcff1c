package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jo-hoe/emotionmirror/internal/backend/commands"
	"github.com/jo-hoe/emotionmirror/internal/backend/database"
	"github.com/jo-hoe/emotionmirror/internal/backend/gemini"
	"github.com/jo-hoe/emotionmirror/internal/metrics"
)

// errStaleRun marks a run that was superseded or cancelled before it could finish
var errStaleRun = errors.New("reflection run is no longer current")

func (s *CoreService) runPipeline(ctx context.Context, session *Session, generation uint64, img CapturedImage) {
	defer s.runs.Done()

	start := time.Now()
	entry, err := s.reflect(ctx, session, generation, img)
	if err == nil {
		err = s.completeRun(ctx, session, generation, entry)
	}

	switch {
	case err == nil:
		metrics.RecordPipelineRun(metrics.ResultSuccess)
		slog.Info("reflection completed", "session", session.id, "emotion", entry.Emotion, "duration_ms", time.Since(start).Milliseconds())
	case errors.Is(err, errStaleRun) || ctx.Err() != nil:
		metrics.RecordPipelineRun(metrics.ResultCancelled)
		slog.Info("reflection cancelled", "session", session.id, "generation", generation)
	case session.failRun(generation, UserMessage(err)):
		metrics.RecordPipelineRun(metrics.ResultFailure)
		slog.Error("reflection failed", "session", session.id, "error", err)
	default:
		metrics.RecordPipelineRun(metrics.ResultCancelled)
		slog.Info("reflection failed after it was superseded", "session", session.id, "error", err)
	}
}

// reflect runs detect, affirm and paint strictly in sequence
func (s *CoreService) reflect(ctx context.Context, session *Session, generation uint64, img CapturedImage) (*database.Entry, error) {
	input := gemini.Image{Data: img.Data, MimeType: img.MimeType}

	if !session.setStep(generation, StepDetecting, s.now()) {
		return nil, errStaleRun
	}
	started := time.Now()
	emotion, err := s.reflector.DetectEmotion(ctx, input)
	metrics.ObserveStep(string(gemini.StepDetectEmotion), started, err != nil)
	if err != nil {
		return nil, err
	}

	if !session.setStep(generation, StepCrafting, s.now()) {
		return nil, errStaleRun
	}
	started = time.Now()
	affirmation, err := s.reflector.GenerateAffirmation(ctx, emotion)
	metrics.ObserveStep(string(gemini.StepGenerateAffirmation), started, err != nil)
	if err != nil {
		return nil, err
	}

	if !session.setStep(generation, StepPainting, s.now()) {
		return nil, errStaleRun
	}
	started = time.Now()
	art, err := s.reflector.GenerateInspiringArt(ctx, input, emotion, affirmation)
	if err == nil {
		art, err = s.normalizeArt(art)
	}
	metrics.ObserveStep(string(gemini.StepGenerateArt), started, err != nil)
	if err != nil {
		return nil, err
	}

	return &database.Entry{
		Emotion:     emotion,
		Affirmation: affirmation,
		Image:       art.Data,
		MimeType:    art.MimeType,
		Timestamp:   s.now().UTC().Truncate(time.Millisecond),
	}, nil
}

// normalizeArt converts generated art to PNG so downloads always carry PNG bytes
func (s *CoreService) normalizeArt(art gemini.Image) (gemini.Image, error) {
	if commands.HasPngSignature(art.Data) {
		return gemini.Image{Data: art.Data, MimeType: mimePNG}, nil
	}
	converted, err := s.pngConverter.Execute(art.Data)
	if err != nil {
		return gemini.Image{}, &gemini.StepError{Step: gemini.StepGenerateArt, Kind: gemini.ErrArtGeneration, Cause: err}
	}
	return gemini.Image{Data: converted, MimeType: mimePNG}, nil
}

// completeRun stores the entry and shows it, unless the run went stale meanwhile.
// The session lock is held across the write so a reset cannot interleave.
func (s *CoreService) completeRun(ctx context.Context, session *Session, generation uint64, entry *database.Entry) error {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.generation != generation || ctx.Err() != nil {
		return errStaleRun
	}

	id, err := s.databaseService.CreateEntry(ctx, session.id, entry)
	if err != nil {
		return err
	}
	entry.ID = id
	entry.SessionID = session.id

	session.endRun()
	session.current = entry
	session.state = StateResult
	return nil
}
