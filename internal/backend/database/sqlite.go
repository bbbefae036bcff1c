package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	if connectionString == "" {
		connectionString = ":memory:"
	}
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// every connection to ":memory:" opens its own empty database
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS journey_entries (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		emotion TEXT NOT NULL,
		affirmation TEXT NOT NULL,
		image BLOB NOT NULL,
		mime_type TEXT NOT NULL,
		created_at TEXT NOT NULL,
		rank TEXT NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_journey_entries_session_rank
		ON journey_entries (session_id, rank)`)
	return err
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// SQLite creates the database on connect, so a successful ping is enough
	return s.db.Ping() == nil
}

func (s *SQLiteDatabase) CreateEntry(ctx context.Context, sessionID string, entry *Entry) (string, error) {
	if err := validateEntry(sessionID, entry); err != nil {
		return "", err
	}
	id, err := generateID()
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = tx.Rollback() // no-op after a successful commit
	}()

	var head sql.NullString
	if err := tx.QueryRowContext(ctx,
		"SELECT MIN(rank) FROM journey_entries WHERE session_id = ?", sessionID).Scan(&head); err != nil {
		return "", fmt.Errorf("failed to read journey head: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO journey_entries (id, session_id, emotion, affirmation, image, mime_type, created_at, rank)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, sessionID, entry.Emotion, entry.Affirmation, entry.Image, entry.MimeType,
		entry.Timestamp.UTC().Format(time.RFC3339Nano), Before(head.String))
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var entry Entry
	var createdAt string
	if err := row.Scan(&entry.ID, &entry.SessionID, &entry.Emotion, &entry.Affirmation,
		&entry.Image, &entry.MimeType, &createdAt, &entry.Rank); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q for entry %s: %w", createdAt, entry.ID, err)
	}
	entry.Timestamp = ts
	return &entry, nil
}

const selectEntryColumns = "SELECT id, session_id, emotion, affirmation, image, mime_type, created_at, rank FROM journey_entries"

func (s *SQLiteDatabase) GetEntries(ctx context.Context, sessionID string) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectEntryColumns+" WHERE session_id = ? ORDER BY rank ASC", sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *SQLiteDatabase) GetEntryByID(ctx context.Context, sessionID string, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, selectEntryColumns+" WHERE session_id = ? AND id = ?", sessionID, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

func (s *SQLiteDatabase) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM journey_entries WHERE session_id = ?", sessionID)
	return err
}
