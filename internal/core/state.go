package core

import "fmt"

// AppState is the screen a session is on
type AppState string

const (
	StateWelcome    AppState = "welcome"
	StateCamera     AppState = "camera"
	StatePreview    AppState = "preview"
	StateProcessing AppState = "processing"
	StateResult     AppState = "result"
)

// CaptureSource records where the captured image came from
type CaptureSource string

const (
	SourceNone   CaptureSource = ""
	SourceCamera CaptureSource = "camera"
	SourceUpload CaptureSource = "upload"
)

type Tab string

const (
	TabMirror  Tab = "mirror"
	TabJourney Tab = "journey"
)

// ParseTab accepts the tab names used in routes
func ParseTab(s string) (Tab, error) {
	switch Tab(s) {
	case TabMirror, TabJourney:
		return Tab(s), nil
	}
	return "", fmt.Errorf("unknown tab: %q", s)
}
