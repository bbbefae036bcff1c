package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jo-hoe/emotionmirror/internal/backend/commands"
	"github.com/jo-hoe/emotionmirror/internal/backend/commandstructure"
	"github.com/jo-hoe/emotionmirror/internal/backend/gemini"
)

func TestNewSessionStartsOnWelcome(t *testing.T) {
	svc := newTestCoreService(t, newFakeReflector(t))

	view := svc.View("s1")
	if view.State != StateWelcome || view.Tab != TabMirror || view.HasImage {
		t.Fatalf("unexpected initial view: %+v", view)
	}
	if view.ShowJourney() {
		t.Error("journey must not show on the welcome screen")
	}
}

func TestUseCameraAndCapture(t *testing.T) {
	svc := newTestCoreService(t, newFakeReflector(t))
	svc.SelectTab("s1", TabJourney)

	svc.UseCamera("s1")
	view := svc.View("s1")
	if view.State != StateCamera || view.Tab != TabMirror || view.Source != SourceCamera {
		t.Fatalf("unexpected view after UseCamera: %+v", view)
	}

	frame := CapturedImage{Data: encodeTestJPEG(t, 8, 8), MimeType: "image/jpeg"}
	if err := svc.CaptureImage("s1", frame.DataURL()); err != nil {
		t.Fatalf("CaptureImage error: %v", err)
	}

	view = svc.View("s1")
	if view.State != StatePreview || !view.HasImage {
		t.Fatalf("expected preview with image, got %+v", view)
	}
	got, err := svc.CapturedImage("s1")
	if err != nil {
		t.Fatalf("CapturedImage error: %v", err)
	}
	if got.MimeType != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", got.MimeType)
	}
}

func TestCaptureImageRejectsBrokenFrame(t *testing.T) {
	svc := newTestCoreService(t, newFakeReflector(t))
	svc.UseCamera("s1")

	for _, frame := range []string{"", "data:image/jpeg;base64,", "data:image/jpeg;base64,***"} {
		err := svc.CaptureImage("s1", frame)
		if !errors.Is(err, ErrCanvasContext) {
			t.Fatalf("CaptureImage(%q): expected ErrCanvasContext, got %v", frame, err)
		}
	}

	view := svc.View("s1")
	if view.State != StateCamera {
		t.Errorf("state must stay camera, got %s", view.State)
	}
	if view.Error != "Could not get canvas context." {
		t.Errorf("unexpected error message %q", view.Error)
	}
}

// funcCommand runs fn as a preparation step
type funcCommand func(data []byte) ([]byte, error)

func (funcCommand) Name() string { return "FuncCommand" }

func (f funcCommand) Execute(data []byte) ([]byte, error) { return f(data) }

func TestCaptureImageFailureAfterResetLeavesNoMessage(t *testing.T) {
	svc := newTestCoreService(t, newFakeReflector(t))
	svc.UseCamera("s1")
	svc.preparer = commandstructure.NewCommandInvoker([]commandstructure.Command{
		funcCommand(func([]byte) ([]byte, error) {
			svc.StartOver("s1")
			return nil, errors.New("frame lost")
		}),
	})
	frame := CapturedImage{Data: encodeTestPNG(t, 2, 2), MimeType: "image/png"}

	if err := svc.CaptureImage("s1", frame.DataURL()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	view := svc.View("s1")
	if view.State != StateWelcome {
		t.Errorf("expected welcome after start over, got %s", view.State)
	}
	if view.Error != "" {
		t.Errorf("expected no error message on the welcome screen, got %q", view.Error)
	}
}

func TestCaptureImageOutsideCameraState(t *testing.T) {
	svc := newTestCoreService(t, newFakeReflector(t))
	frame := CapturedImage{Data: encodeTestPNG(t, 2, 2), MimeType: "image/png"}

	if err := svc.CaptureImage("s1", frame.DataURL()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestUploadImageConvertsToSupportedFormat(t *testing.T) {
	svc := newTestCoreService(t, newFakeReflector(t))

	if err := svc.UploadImage("s1", "cat.gif", encodeTestGIF(t, 6, 6)); err != nil {
		t.Fatalf("UploadImage error: %v", err)
	}
	got, err := svc.CapturedImage("s1")
	if err != nil {
		t.Fatalf("CapturedImage error: %v", err)
	}
	if got.MimeType != "image/png" {
		t.Errorf("expected GIF upload to become image/png, got %s", got.MimeType)
	}

	view := svc.View("s1")
	if view.State != StatePreview || view.Source != SourceUpload {
		t.Errorf("unexpected view after upload: %+v", view)
	}
}

func TestUploadImageRejectsNonImage(t *testing.T) {
	svc := newTestCoreService(t, newFakeReflector(t))

	err := svc.UploadImage("s1", "notes.txt", []byte("hello world"))
	if !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
	if view := svc.View("s1"); view.State != StateWelcome {
		t.Errorf("state must stay welcome, got %s", view.State)
	}
}

func TestUploadImageRejectsOversizedDimensions(t *testing.T) {
	svc := newTestCoreService(t, newFakeReflector(t))

	err := svc.UploadImage("s1", "huge.png", pngHeaderOnly(8000, 8000))
	if !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
	if !errors.Is(err, commands.ErrImageTooLarge) {
		t.Errorf("expected ErrImageTooLarge in chain, got %v", err)
	}
	if view := svc.View("s1"); view.State != StateWelcome || view.HasImage {
		t.Errorf("state must stay welcome without image, got %s (image %v)", view.State, view.HasImage)
	}
}

func TestUploadSameFileTwiceProcessesBothTimes(t *testing.T) {
	svc := newTestCoreService(t, newFakeReflector(t))
	data := encodeTestPNG(t, 4, 4)

	if err := svc.UploadImage("s1", "me.png", data); err != nil {
		t.Fatalf("first UploadImage error: %v", err)
	}
	first := svc.View("s1").ImageVersion
	svc.Reset("s1")

	if err := svc.UploadImage("s1", "me.png", data); err != nil {
		t.Fatalf("second UploadImage error: %v", err)
	}
	view := svc.View("s1")
	if view.State != StatePreview || !view.HasImage {
		t.Fatalf("expected preview after second upload, got %+v", view)
	}
	if view.ImageVersion <= first {
		t.Errorf("expected a new image version, got %d after %d", view.ImageVersion, first)
	}
}

func TestSuccessfulRunPrependsOneEntry(t *testing.T) {
	reflector := newFakeReflector(t)
	svc := newTestCoreService(t, reflector)
	ctx := context.Background()

	view := uploadAndTransform(t, svc, "s1")
	if view.State != StateResult {
		t.Fatalf("expected result state, got %s (error %q)", view.State, view.Error)
	}
	if view.LoadingStep != "" {
		t.Errorf("loading step must be cleared, got %q", view.LoadingStep)
	}
	if view.Current == nil || view.Current.Emotion != "Joy" {
		t.Fatalf("unexpected current entry %+v", view.Current)
	}
	if _, err := time.Parse(time.RFC3339, view.Current.TimestampISO()); err != nil {
		t.Errorf("timestamp does not parse: %v", err)
	}

	svc.StartOver("s1")
	reflector.emotion = "Calm"
	uploadAndTransform(t, svc, "s1")

	journey, err := svc.Journey(ctx, "s1")
	if err != nil {
		t.Fatalf("Journey error: %v", err)
	}
	var emotions []string
	for _, e := range journey {
		emotions = append(emotions, e.Emotion)
	}
	if diff := cmp.Diff([]string{"Calm", "Joy"}, emotions); diff != "" {
		t.Errorf("journey order mismatch (-want +got):\n%s", diff)
	}
	if journey[1].ID != view.Current.ID {
		t.Errorf("prior entry changed identity: %s vs %s", journey[1].ID, view.Current.ID)
	}
}

func TestRunStoresArtAsPNG(t *testing.T) {
	reflector := newFakeReflector(t)
	reflector.art = gemini.Image{Data: encodeTestJPEG(t, 4, 4), MimeType: "image/jpeg"}
	svc := newTestCoreService(t, reflector)

	view := uploadAndTransform(t, svc, "s1")
	if view.Current == nil {
		t.Fatalf("expected a reflection, got %+v", view)
	}
	if view.Current.MimeType != "image/png" {
		t.Errorf("expected art to be stored as png, got %s", view.Current.MimeType)
	}
}

func TestFailedStepReturnsToPreview(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fakeReflector)
		message string
	}{
		{
			name:    "detect",
			setup:   func(f *fakeReflector) { f.detectErr = stepError(gemini.StepDetectEmotion, gemini.ErrEmotionDetection) },
			message: "Failed to detect emotion from the image.",
		},
		{
			name:    "affirmation",
			setup:   func(f *fakeReflector) { f.affirmErr = stepError(gemini.StepGenerateAffirmation, gemini.ErrAffirmationGeneration) },
			message: "Failed to generate an empowering affirmation.",
		},
		{
			name:    "art",
			setup:   func(f *fakeReflector) { f.artErr = stepError(gemini.StepGenerateArt, gemini.ErrArtGeneration) },
			message: "Failed to generate inspiring art from the image.",
		},
		{
			name:    "unknown",
			setup:   func(f *fakeReflector) { f.artErr = errors.New("boom") },
			message: "An unknown error occurred.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reflector := newFakeReflector(t)
			tt.setup(reflector)
			svc := newTestCoreService(t, reflector)

			view := uploadAndTransform(t, svc, "s1")
			if view.State != StatePreview {
				t.Fatalf("expected preview, got %s", view.State)
			}
			if !view.HasImage {
				t.Error("captured image must be kept after a failure")
			}
			if view.Error != tt.message {
				t.Errorf("error = %q, want %q", view.Error, tt.message)
			}

			journey, err := svc.Journey(context.Background(), "s1")
			if err != nil {
				t.Fatalf("Journey error: %v", err)
			}
			if len(journey) != 0 {
				t.Errorf("nothing must be stored on failure, got %d entries", len(journey))
			}
		})
	}
}

func TestStartTransformationGuards(t *testing.T) {
	reflector := newFakeReflector(t)
	svc := newTestCoreService(t, reflector)

	if err := svc.StartTransformation("s1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState from welcome, got %v", err)
	}

	svc.UseCamera("s1")
	if err := svc.StartTransformation("s1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState from camera, got %v", err)
	}

	uploadAndTransform(t, svc, "s1")
	if err := svc.StartTransformation("s1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState from result, got %v", err)
	}
	if got := reflector.calls(); got != 1 {
		t.Errorf("expected exactly one pipeline run, got %d", got)
	}
}

func TestResetReturnsToSource(t *testing.T) {
	svc := newTestCoreService(t, newFakeReflector(t))

	svc.UseCamera("s1")
	frame := CapturedImage{Data: encodeTestPNG(t, 4, 4), MimeType: "image/png"}
	if err := svc.CaptureImage("s1", frame.DataURL()); err != nil {
		t.Fatalf("CaptureImage error: %v", err)
	}
	svc.Reset("s1")
	if view := svc.View("s1"); view.State != StateCamera || view.HasImage {
		t.Errorf("camera reset: unexpected view %+v", view)
	}

	if err := svc.UploadImage("s2", "me.png", encodeTestPNG(t, 4, 4)); err != nil {
		t.Fatalf("UploadImage error: %v", err)
	}
	svc.Reset("s2")
	if view := svc.View("s2"); view.State != StateWelcome || view.HasImage {
		t.Errorf("upload reset: unexpected view %+v", view)
	}
	if _, err := svc.CapturedImage("s2"); !errors.Is(err, ErrNoImage) {
		t.Errorf("expected ErrNoImage after reset, got %v", err)
	}
}

func TestStartOverKeepsJourney(t *testing.T) {
	svc := newTestCoreService(t, newFakeReflector(t))
	uploadAndTransform(t, svc, "s1")

	svc.StartOver("s1")
	view := svc.View("s1")
	if view.State != StateWelcome || view.Current != nil || view.HasImage || view.Source != SourceNone {
		t.Fatalf("unexpected view after StartOver: %+v", view)
	}

	journey, err := svc.Journey(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Journey error: %v", err)
	}
	if len(journey) != 1 {
		t.Errorf("expected journey to survive StartOver, got %d entries", len(journey))
	}
}

func TestSelectTabShowsJourneyOutsideWelcome(t *testing.T) {
	svc := newTestCoreService(t, newFakeReflector(t))

	svc.UseCamera("s1")
	svc.SelectTab("s1", TabJourney)
	if !svc.View("s1").ShowJourney() {
		t.Error("expected journey to show on the journey tab")
	}
	svc.SelectTab("s1", TabMirror)
	if svc.View("s1").ShowJourney() {
		t.Error("expected mirror tab to hide the journey")
	}
}

func TestResetCancelsInFlightRun(t *testing.T) {
	reflector := newFakeReflector(t)
	reflector.gate = make(chan struct{})
	reflector.started = make(chan struct{}, 1)
	svc := newTestCoreService(t, reflector)

	if err := svc.UploadImage("s1", "me.png", encodeTestPNG(t, 4, 4)); err != nil {
		t.Fatalf("UploadImage error: %v", err)
	}
	if err := svc.StartTransformation("s1"); err != nil {
		t.Fatalf("StartTransformation error: %v", err)
	}
	waitForSignal(t, reflector.started)

	view := svc.View("s1")
	if view.State != StateProcessing || view.LoadingStep != StepDetecting {
		t.Fatalf("expected processing on first step, got %+v", view)
	}
	if view.LoaderMessage == "" {
		t.Error("expected a loader message while processing")
	}

	svc.Reset("s1")
	svc.runs.Wait()

	view = svc.View("s1")
	if view.State != StateWelcome || view.Error != "" || view.LoadingStep != "" {
		t.Fatalf("stale run must not touch the session, got %+v", view)
	}
	journey, err := svc.Journey(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Journey error: %v", err)
	}
	if len(journey) != 0 {
		t.Errorf("stale run must not store an entry, got %d", len(journey))
	}
}

func TestNewUploadSupersedesInFlightRun(t *testing.T) {
	reflector := newFakeReflector(t)
	reflector.gate = make(chan struct{})
	reflector.started = make(chan struct{}, 2)
	svc := newTestCoreService(t, reflector)

	if err := svc.UploadImage("s1", "first.png", encodeTestPNG(t, 4, 4)); err != nil {
		t.Fatalf("UploadImage error: %v", err)
	}
	if err := svc.StartTransformation("s1"); err != nil {
		t.Fatalf("StartTransformation error: %v", err)
	}
	waitForSignal(t, reflector.started)

	if err := svc.UploadImage("s1", "second.png", encodeTestPNG(t, 6, 6)); err != nil {
		t.Fatalf("UploadImage error: %v", err)
	}
	svc.runs.Wait()

	view := svc.View("s1")
	if view.State != StatePreview || view.Error != "" {
		t.Fatalf("expected clean preview of the new upload, got %+v", view)
	}
}

func TestCloseCancelsInFlightRun(t *testing.T) {
	reflector := newFakeReflector(t)
	reflector.gate = make(chan struct{})
	reflector.started = make(chan struct{}, 1)
	svc := newTestCoreService(t, reflector)

	if err := svc.UploadImage("s1", "me.png", encodeTestPNG(t, 4, 4)); err != nil {
		t.Fatalf("UploadImage error: %v", err)
	}
	if err := svc.StartTransformation("s1"); err != nil {
		t.Fatalf("StartTransformation error: %v", err)
	}
	waitForSignal(t, reflector.started)

	done := make(chan error, 1)
	go func() { done <- svc.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return while a run was in flight")
	}

	if err := svc.StartTransformation("s1"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

func TestSweepIdleSessionsDropsJourney(t *testing.T) {
	svc := newTestCoreService(t, newFakeReflector(t))
	ctx := context.Background()
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	uploadAndTransform(t, svc, "idle")
	now = now.Add(20 * time.Minute)
	svc.View("active")

	now = now.Add(15 * time.Minute)
	if evicted := svc.SweepIdleSessions(ctx); evicted != 1 {
		t.Fatalf("expected 1 evicted session, got %d", evicted)
	}
	if _, ok := svc.sessions.lookup("idle"); ok {
		t.Error("idle session must be evicted")
	}
	if _, ok := svc.sessions.lookup("active"); !ok {
		t.Error("active session must be kept")
	}

	entries, err := svc.databaseService.GetEntries(ctx, "idle")
	if err != nil {
		t.Fatalf("GetEntries error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("evicted session journey must be dropped, got %d entries", len(entries))
	}
}

func TestRunJanitorStopsWithContext(t *testing.T) {
	config := newTestConfig(t)
	config.Session.SweepInterval = time.Millisecond
	svc := newTestCoreServiceWithConfig(t, config, newFakeReflector(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunJanitor(ctx) }()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunJanitor error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunJanitor did not stop")
	}
}

func TestJourneyEntryAndThumbnail(t *testing.T) {
	reflector := newFakeReflector(t)
	reflector.art = gemini.Image{Data: encodeTestPNG(t, 720, 720), MimeType: "image/png"}
	svc := newTestCoreService(t, reflector)
	ctx := context.Background()

	view := uploadAndTransform(t, svc, "s1")
	entry, err := svc.JourneyEntry(ctx, "s1", view.Current.ID)
	if err != nil || entry == nil {
		t.Fatalf("JourneyEntry error: %v (entry %v)", err, entry)
	}

	thumb, err := svc.Thumbnail(entry)
	if err != nil {
		t.Fatalf("Thumbnail error: %v", err)
	}
	if len(thumb) == 0 || len(thumb) >= len(entry.Image) {
		t.Errorf("expected a smaller thumbnail, got %d bytes from %d", len(thumb), len(entry.Image))
	}

	other, err := svc.JourneyEntry(ctx, "s2", view.Current.ID)
	if err != nil {
		t.Fatalf("JourneyEntry error: %v", err)
	}
	if other != nil {
		t.Error("entries must not leak across sessions")
	}
}

func TestReportCameraError(t *testing.T) {
	svc := newTestCoreService(t, newFakeReflector(t))
	svc.UseCamera("s1")

	err := svc.ReportCameraError("s1", "NotAllowedError: Permission denied")
	if !errors.Is(err, ErrCameraAccess) {
		t.Fatalf("expected ErrCameraAccess, got %v", err)
	}
	if view := svc.View("s1"); view.State != StateCamera || view.Error != "" {
		t.Errorf("camera errors are logged only, got %+v", view)
	}
}
