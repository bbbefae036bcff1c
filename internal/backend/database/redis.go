package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "emotionmirror"

type RedisDatabase struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDatabase connects to the redis server at addr. A session's journey
// is a list of ids plus a hash of encoded entries. Both keys expire together
// ttl after the session's last read or write.
func NewRedisDatabase(addr string, ttl time.Duration) (DatabaseService, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return newRedisDatabaseWithClient(client, ttl), nil
}

func newRedisDatabaseWithClient(client *redis.Client, ttl time.Duration) *RedisDatabase {
	return &RedisDatabase{client: client, ttl: ttl}
}

func journeyKey(sessionID string) string {
	return fmt.Sprintf("%s:journey:%s", redisKeyPrefix, sessionID)
}

func entriesKey(sessionID string) string {
	return fmt.Sprintf("%s:entries:%s", redisKeyPrefix, sessionID)
}

// touch queues an expiry refresh of both session keys
func (r *RedisDatabase) touch(ctx context.Context, pipe redis.Pipeliner, sessionID string) {
	if r.ttl <= 0 {
		return
	}
	pipe.Expire(ctx, journeyKey(sessionID), r.ttl)
	pipe.Expire(ctx, entriesKey(sessionID), r.ttl)
}

func (r *RedisDatabase) CreateDatabase() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

func (r *RedisDatabase) DoesDatabaseExist() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return r.client.Ping(ctx).Err() == nil
}

func (r *RedisDatabase) Close() error {
	return r.client.Close()
}

func (r *RedisDatabase) CreateEntry(ctx context.Context, sessionID string, entry *Entry) (string, error) {
	if err := validateEntry(sessionID, entry); err != nil {
		return "", err
	}
	id, err := generateID()
	if err != nil {
		return "", err
	}

	stored := *entry
	stored.ID = id
	stored.SessionID = sessionID
	stored.Rank = ""
	data, err := json.Marshal(&stored)
	if err != nil {
		return "", fmt.Errorf("failed to encode entry: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, entriesKey(sessionID), id, data)
		pipe.LPush(ctx, journeyKey(sessionID), id)
		r.touch(ctx, pipe, sessionID)
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *RedisDatabase) GetEntries(ctx context.Context, sessionID string) ([]*Entry, error) {
	var ids *redis.StringSliceCmd
	var values *redis.MapStringStringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		ids = pipe.LRange(ctx, journeyKey(sessionID), 0, -1)
		values = pipe.HGetAll(ctx, entriesKey(sessionID))
		r.touch(ctx, pipe, sessionID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(ids.Val()) == 0 {
		return nil, nil
	}

	raw := values.Val()
	entries := make([]*Entry, 0, len(ids.Val()))
	for _, id := range ids.Val() {
		data, ok := raw[id]
		if !ok {
			continue
		}
		entry, err := decodeEntry([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode entry %s: %w", id, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *RedisDatabase) GetEntryByID(ctx context.Context, sessionID string, id string) (*Entry, error) {
	var value *redis.StringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		value = pipe.HGet(ctx, entriesKey(sessionID), id)
		r.touch(ctx, pipe, sessionID)
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	raw, err := value.Bytes()
	if err != nil {
		return nil, err
	}
	return decodeEntry(raw)
}

func (r *RedisDatabase) DeleteSession(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, journeyKey(sessionID), entriesKey(sessionID)).Err()
}

func decodeEntry(raw []byte) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
