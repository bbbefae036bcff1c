package database

import (
	"encoding/base64"
	"time"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Entry is one stored reflection of a session's journey. Entries are never updated.
type Entry struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	Emotion     string    `json:"emotion"`
	Affirmation string    `json:"affirmation"`
	Image       []byte    `json:"image"`
	MimeType    string    `json:"mimeType"`
	Timestamp   time.Time `json:"timestamp"`
	Rank        string    `json:"rank,omitempty"` // LexoRank; ascending rank is newest first
}

// DataURL returns the art as a base64 data URL
func (e *Entry) DataURL() string {
	return "data:" + e.MimeType + ";base64," + base64.StdEncoding.EncodeToString(e.Image)
}

// TimestampISO formats the creation time as UTC ISO-8601 with millisecond precision
func (e *Entry) TimestampISO() string {
	return e.Timestamp.UTC().Format(isoMillis)
}
