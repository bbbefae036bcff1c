package core

import (
	"context"
	"sync"
	"time"

	"github.com/jo-hoe/emotionmirror/internal/backend/database"
	"github.com/jo-hoe/emotionmirror/internal/metrics"
)

// Session is the UI state of one browser. All fields are guarded by mu.
type Session struct {
	mu sync.Mutex

	id           string
	state        AppState
	source       CaptureSource
	tab          Tab
	image        *CapturedImage
	imageVersion uint64
	loadingStep  string
	stepStarted  time.Time
	errMessage   string
	current      *database.Entry

	generation uint64
	cancelRun  context.CancelFunc
}

// SessionView is a consistent snapshot of a session used for rendering
type SessionView struct {
	ID            string
	State         AppState
	Source        CaptureSource
	Tab           Tab
	HasImage      bool
	ImageVersion  uint64
	LoadingStep   string
	LoaderMessage string
	Error         string
	Current       *database.Entry
}

// ShowJourney reports whether the journey replaces the state view
func (v SessionView) ShowJourney() bool {
	return v.Tab == TabJourney && v.State != StateWelcome
}

func newSession(id string) *Session {
	return &Session{
		id:    id,
		state: StateWelcome,
		tab:   TabMirror,
	}
}

func (s *Session) view(now time.Time) SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := SessionView{
		ID:           s.id,
		State:        s.state,
		Source:       s.source,
		Tab:          s.tab,
		HasImage:     s.image != nil,
		ImageVersion: s.imageVersion,
		LoadingStep:  s.loadingStep,
		Error:        s.errMessage,
		Current:      s.current,
	}
	if s.loadingStep != "" {
		v.LoaderMessage = LoaderMessage(s.loadingStep, now.Sub(s.stepStarted))
	}
	return v
}

// beginRun starts a new run generation. Caller holds mu.
func (s *Session) beginRun(cancel context.CancelFunc) uint64 {
	s.abortRun()
	s.cancelRun = cancel
	return s.generation
}

// abortRun invalidates the in-flight run, if any. Caller holds mu.
func (s *Session) abortRun() {
	s.generation++
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	s.loadingStep = ""
}

// endRun releases the run context. Caller holds mu and has checked the generation.
func (s *Session) endRun() {
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	s.loadingStep = ""
}

func (s *Session) setImage(img CapturedImage) {
	s.image = &img
	s.imageVersion++
}

// setStep records the running step unless the run is stale
func (s *Session) setStep(generation uint64, step string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return false
	}
	s.loadingStep = step
	s.stepStarted = now
	return true
}

// failRun sends a current run back to preview with the user-facing message
func (s *Session) failRun(generation uint64, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return false
	}
	s.endRun()
	s.state = StatePreview
	s.errMessage = message
	return true
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	lastSeen map[string]time.Time
}

func newSessionStore() *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*Session),
		lastSeen: make(map[string]time.Time),
	}
}

// get returns the session for id, creating it on first use, and marks it as seen
func (st *sessionStore) get(id string, now time.Time) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	session, ok := st.sessions[id]
	if !ok {
		session = newSession(id)
		st.sessions[id] = session
		metrics.SessionOpened()
	}
	st.lastSeen[id] = now
	return session
}

// lookup returns an existing session without creating or touching it
func (st *sessionStore) lookup(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	session, ok := st.sessions[id]
	return session, ok
}

// evictIdle removes every session not seen since now-idle
func (st *sessionStore) evictIdle(now time.Time, idle time.Duration) []*Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	var evicted []*Session
	for id, seen := range st.lastSeen {
		if now.Sub(seen) <= idle {
			continue
		}
		evicted = append(evicted, st.sessions[id])
		delete(st.sessions, id)
		delete(st.lastSeen, id)
		metrics.SessionClosed()
	}
	return evicted
}

// drain removes and returns all sessions
func (st *sessionStore) drain() []*Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	all := make([]*Session, 0, len(st.sessions))
	for id, session := range st.sessions {
		all = append(all, session)
		delete(st.sessions, id)
		delete(st.lastSeen, id)
		metrics.SessionClosed()
	}
	return all
}

func (st *sessionStore) len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
