package database

import (
	"context"
	"errors"
)

// ErrInvalidEntry is returned when an entry misses fields required for storage
var ErrInvalidEntry = errors.New("invalid journey entry")

// DatabaseService stores the journey of every live session
type DatabaseService interface {
	CreateDatabase() error
	DoesDatabaseExist() bool
	Close() error

	// CreateEntry stores a copy of entry at the head of the session's journey and returns its ID.
	CreateEntry(ctx context.Context, sessionID string, entry *Entry) (string, error)
	// GetEntries returns the session's journey, newest first.
	GetEntries(ctx context.Context, sessionID string) ([]*Entry, error)
	// GetEntryByID returns nil and no error when the entry does not exist.
	GetEntryByID(ctx context.Context, sessionID string, id string) (*Entry, error)
	// DeleteSession drops the whole journey of a session.
	DeleteSession(ctx context.Context, sessionID string) error
}

func validateEntry(sessionID string, entry *Entry) error {
	switch {
	case sessionID == "":
		return errors.Join(ErrInvalidEntry, errors.New("session id is empty"))
	case entry == nil:
		return errors.Join(ErrInvalidEntry, errors.New("entry is nil"))
	case entry.Emotion == "":
		return errors.Join(ErrInvalidEntry, errors.New("emotion is empty"))
	case len(entry.Image) == 0:
		return errors.Join(ErrInvalidEntry, errors.New("image is empty"))
	case entry.Timestamp.IsZero():
		return errors.Join(ErrInvalidEntry, errors.New("timestamp is zero"))
	}
	return nil
}
