package favorites

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"seasonstay/internal/db"
)

// SQLiteStorage keeps favorites in the database kv table
type SQLiteStorage struct {
	db *db.DB
}

// NewSQLiteStorage wraps an open database
func NewSQLiteStorage(database *db.DB) *SQLiteStorage {
	return &SQLiteStorage{db: database}
}

func (s *SQLiteStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.db.GetValue(ctx, key)
}

func (s *SQLiteStorage) Put(ctx context.Context, key string, value []byte) error {
	return s.db.PutValue(ctx, key, value)
}

// RedisStorage keeps favorites in Redis, one string key per client
type RedisStorage struct {
	client *redis.Client
}

// NewRedisStorage connects to addr. The connection is lazy; Ping checks it.
func NewRedisStorage(addr, password string, database int) *RedisStorage {
	return &RedisStorage{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       database,
	})}
}

// Ping verifies the server is reachable
func (s *RedisStorage) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *RedisStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return data, true, nil
}

// Put writes without expiry
func (s *RedisStorage) Put(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Close releases the connection pool
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

// MemoryStorage is a process-local Storage
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (s *MemoryStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *MemoryStorage) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}
