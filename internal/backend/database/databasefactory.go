package database

import (
	"fmt"
	"log/slog"
	"time"
)

const (
	TypeSQLite = "sqlite"
	TypeRedis  = "redis"
)

// NewDatabase opens the journey store of the given type. ttl bounds how long
// redis keeps a journey after its last write; sqlite ignores it.
func NewDatabase(databaseType, connectionString string, ttl time.Duration) (database DatabaseService, err error) {
	switch databaseType {
	case TypeSQLite:
		database, err = NewSQLiteDatabase(connectionString)
	case TypeRedis:
		database, err = NewRedisDatabase(connectionString, ttl)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", databaseType)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("initializing database schema", "type", databaseType)
	if err = database.CreateDatabase(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return database, nil
}
