package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jo-hoe/emotionmirror/internal/backend/commands"
	"github.com/jo-hoe/emotionmirror/internal/backend/commandstructure"
	"github.com/jo-hoe/emotionmirror/internal/backend/database"
	"github.com/jo-hoe/emotionmirror/internal/backend/gemini"
	"github.com/jo-hoe/emotionmirror/internal/metrics"
)

// ErrClosed is returned for work submitted after Close
var ErrClosed = errors.New("core service is closed")

const svgFallbackSize = 1024

// Reflector performs the three generative steps of a reflection
type Reflector interface {
	DetectEmotion(ctx context.Context, img gemini.Image) (string, error)
	GenerateAffirmation(ctx context.Context, emotion string) (string, error)
	GenerateInspiringArt(ctx context.Context, img gemini.Image, emotion, affirmation string) (gemini.Image, error)
}

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	reflector       Reflector
	preparer        *commandstructure.CommandInvoker
	pngConverter    *commands.PngConverterCommand
	thumbnailer     *commands.PixelScaleCommand
	sessions        *sessionStore
	now             func() time.Time

	lifecycleMu sync.Mutex
	closed      bool
	runCtx      context.Context
	stopRuns    context.CancelFunc
	runs        sync.WaitGroup
}

// NewCoreService wires the session state machine to the journey store and the reflector
func NewCoreService(config *ServiceConfig, databaseService database.DatabaseService, reflector Reflector) (*CoreService, error) {
	preparer, err := commandstructure.NewCommandInvokerFromConfigs(commandstructure.DefaultRegistry, config.CommandConfigs())
	if err != nil {
		return nil, fmt.Errorf("failed to build image preparation: %w", err)
	}
	thumbnailer, err := commands.NewThumbnailCommand(config.ThumbnailWidth)
	if err != nil {
		return nil, fmt.Errorf("failed to build thumbnail command: %w", err)
	}

	runCtx, stopRuns := context.WithCancel(context.Background())
	slog.Info("core service initialized", "preparation_commands", preparer.Names(), "database", config.Database.Type)
	return &CoreService{
		config:          config,
		databaseService: databaseService,
		reflector:       reflector,
		preparer:        preparer,
		pngConverter:    commands.NewPngConverterCommandDirect(svgFallbackSize, svgFallbackSize),
		thumbnailer:     thumbnailer,
		sessions:        newSessionStore(),
		now:             time.Now,
		runCtx:          runCtx,
		stopRuns:        stopRuns,
	}, nil
}

// OpenDatabase opens the journey store named in the configuration
func OpenDatabase(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString, config.Session.IdleTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}

func (s *CoreService) session(sessionID string) *Session {
	return s.sessions.get(sessionID, s.now())
}

// View returns a snapshot of the session for rendering
func (s *CoreService) View(sessionID string) SessionView {
	return s.session(sessionID).view(s.now())
}

// UseCamera switches the session to the live camera
func (s *CoreService) UseCamera(sessionID string) {
	session := s.session(sessionID)
	session.mu.Lock()
	defer session.mu.Unlock()

	session.abortRun()
	session.state = StateCamera
	session.tab = TabMirror
	session.source = SourceCamera
	session.errMessage = ""
}

// CaptureImage stores a camera frame given as data URL and moves to preview
func (s *CoreService) CaptureImage(sessionID, dataURL string) error {
	session := s.session(sessionID)

	session.mu.Lock()
	state := session.state
	session.mu.Unlock()
	if state != StateCamera {
		return fmt.Errorf("capture in state %s: %w", state, ErrInvalidState)
	}

	img, err := ParseDataURL(dataURL)
	if err == nil {
		img, err = s.prepareImage(img.Data)
	}
	if err != nil {
		slog.Error("CaptureImage: failed to read camera frame", "session", sessionID, "error", err)
		session.mu.Lock()
		defer session.mu.Unlock()
		if session.state != StateCamera {
			return fmt.Errorf("capture in state %s: %w", session.state, ErrInvalidState)
		}
		session.errMessage = ErrCanvasContext.Error()
		return errors.Join(ErrCanvasContext, err)
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.state != StateCamera {
		return fmt.Errorf("capture in state %s: %w", session.state, ErrInvalidState)
	}
	session.abortRun()
	session.setImage(img)
	session.source = SourceCamera
	session.state = StatePreview
	session.errMessage = ""
	return nil
}

// UploadImage stores an uploaded file and moves to preview. Every call is processed,
// also when the same file is uploaded again.
func (s *CoreService) UploadImage(sessionID, filename string, data []byte) error {
	session := s.session(sessionID)

	img, err := s.prepareImage(data)
	if err != nil {
		slog.Error("UploadImage: failed to prepare uploaded file", "session", sessionID, "filename", filename, "error", err)
		return errors.Join(ErrUnsupportedImage, err)
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	session.abortRun()
	session.setImage(img)
	session.source = SourceUpload
	session.state = StatePreview
	session.tab = TabMirror
	session.errMessage = ""
	slog.Debug("UploadImage: image ready", "session", sessionID, "filename", filename, "mime_type", img.MimeType, "size_bytes", len(img.Data))
	return nil
}

// StartTransformation launches the reflection pipeline for the captured image
func (s *CoreService) StartTransformation(sessionID string) error {
	session := s.session(sessionID)

	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.closed {
		return ErrClosed
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.state != StatePreview {
		return fmt.Errorf("transform in state %s: %w", session.state, ErrInvalidState)
	}
	if session.image == nil {
		return ErrNoImage
	}

	ctx, cancel := context.WithCancel(s.runCtx)
	generation := session.beginRun(cancel)
	session.state = StateProcessing
	session.errMessage = ""
	session.current = nil
	session.loadingStep = StepDetecting
	session.stepStarted = s.now()

	s.runs.Add(1)
	go s.runPipeline(ctx, session, generation, *session.image)
	return nil
}

// Reset drops the captured image and returns to the camera or the welcome screen
func (s *CoreService) Reset(sessionID string) {
	session := s.session(sessionID)
	session.mu.Lock()
	defer session.mu.Unlock()

	session.abortRun()
	session.image = nil
	session.errMessage = ""
	if session.source == SourceCamera {
		session.state = StateCamera
	} else {
		session.state = StateWelcome
	}
}

// StartOver clears the current reflection and returns to the welcome screen
func (s *CoreService) StartOver(sessionID string) {
	session := s.session(sessionID)
	session.mu.Lock()
	defer session.mu.Unlock()

	session.abortRun()
	session.current = nil
	session.image = nil
	session.source = SourceNone
	session.errMessage = ""
	session.state = StateWelcome
}

func (s *CoreService) SelectTab(sessionID string, tab Tab) {
	session := s.session(sessionID)
	session.mu.Lock()
	defer session.mu.Unlock()
	session.tab = tab
}

// ReportCameraError records a camera failure reported by the browser. It is logged only.
func (s *CoreService) ReportCameraError(sessionID, message string) error {
	s.session(sessionID)
	err := fmt.Errorf("%w: %s", ErrCameraAccess, message)
	slog.Error("ReportCameraError: error accessing camera", "session", sessionID, "error", err)
	metrics.RecordCameraError()
	return err
}

// CapturedImage returns the session's captured image
func (s *CoreService) CapturedImage(sessionID string) (CapturedImage, error) {
	session := s.session(sessionID)
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.image == nil {
		return CapturedImage{}, ErrNoImage
	}
	return *session.image, nil
}

// Journey returns the session's reflections, newest first
func (s *CoreService) Journey(ctx context.Context, sessionID string) ([]*database.Entry, error) {
	s.session(sessionID)
	return s.databaseService.GetEntries(ctx, sessionID)
}

// JourneyEntry returns one reflection of the session, nil if it does not exist
func (s *CoreService) JourneyEntry(ctx context.Context, sessionID, id string) (*database.Entry, error) {
	s.session(sessionID)
	return s.databaseService.GetEntryByID(ctx, sessionID, id)
}

// Thumbnail scales the art of a journey entry down to the configured thumbnail width
func (s *CoreService) Thumbnail(entry *database.Entry) ([]byte, error) {
	thumbnail, err := s.thumbnailer.Execute(entry.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to generate thumbnail: %w", err)
	}
	return thumbnail, nil
}

// SweepIdleSessions evicts sessions idle for longer than the configured timeout
// and drops their journeys. It returns the number of evicted sessions.
func (s *CoreService) SweepIdleSessions(ctx context.Context) int {
	evicted := s.sessions.evictIdle(s.now(), s.config.Session.IdleTimeout)
	for _, session := range evicted {
		s.discard(ctx, session)
	}
	if len(evicted) > 0 {
		slog.Info("evicted idle sessions", "count", len(evicted), "remaining", s.sessions.len())
	}
	return len(evicted)
}

// RunJanitor sweeps idle sessions until ctx is done
func (s *CoreService) RunJanitor(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Session.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepIdleSessions(ctx)
		}
	}
}

func (s *CoreService) discard(ctx context.Context, session *Session) {
	session.mu.Lock()
	session.abortRun()
	session.mu.Unlock()

	if err := s.databaseService.DeleteSession(ctx, session.id); err != nil {
		slog.Error("failed to delete session journey", "session", session.id, "error", err)
	}
}

// Close cancels all in-flight runs, waits for them and closes the journey store
func (s *CoreService) Close() error {
	s.lifecycleMu.Lock()
	if s.closed {
		s.lifecycleMu.Unlock()
		return nil
	}
	s.closed = true
	s.lifecycleMu.Unlock()

	s.stopRuns()
	for _, session := range s.sessions.drain() {
		session.mu.Lock()
		session.abortRun()
		session.mu.Unlock()
	}
	s.runs.Wait()

	return s.databaseService.Close()
}
