package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStateNotFound is returned when no viewport state is stored under a key
var ErrStateNotFound = errors.New("viewport state not found")

// ViewportStore persists the serialized map viewport. Values are opaque
// JSON documents; validation happens when they are decoded.
type ViewportStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}

// SQLiteViewportStore keeps viewport state in the map_state table
type SQLiteViewportStore struct {
	db *sql.DB
}

// NewSQLiteViewportStore creates a store backed by SQLite
func NewSQLiteViewportStore(db *sql.DB) *SQLiteViewportStore {
	return &SQLiteViewportStore{db: db}
}

// Load returns the stored value or ErrStateNotFound
func (s *SQLiteViewportStore) Load(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM map_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load map state: %w", err)
	}
	return []byte(value), nil
}

// Save upserts the value
func (s *SQLiteViewportStore) Save(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO map_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save map state: %w", err)
	}
	return nil
}

// RedisViewportStore keeps viewport state in Redis under a key prefix
type RedisViewportStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisViewportStore creates a store backed by Redis. A zero ttl keeps
// values forever.
func NewRedisViewportStore(client *redis.Client, prefix string, ttl time.Duration) *RedisViewportStore {
	if prefix == "" {
		prefix = "whisker-watch:map-state:"
	}
	return &RedisViewportStore{client: client, prefix: prefix, ttl: ttl}
}

// Key returns the Redis key for a state key
func (s *RedisViewportStore) Key(key string) string {
	return s.prefix + key
}

// Load returns the stored value or ErrStateNotFound
func (s *RedisViewportStore) Load(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load map state from redis: %w", err)
	}
	return value, nil
}

// Save writes the value
func (s *RedisViewportStore) Save(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.Key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save map state to redis: %w", err)
	}
	return nil
}

// OpenRedis opens a Redis client; an empty address disables Redis
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}
