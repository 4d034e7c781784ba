package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Backend identifiers
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Store is a byte-oriented key/value store with expiry
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// Persist writes value without expiry
	Persist(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config selects and tunes a Store
type Config struct {
	Backend string
	TTL     time.Duration
	Redis   RedisConfig
}

// RedisConfig captures connection options
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// New creates a store based on the provided configuration
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(cfg.TTL), nil
	case BackendRedis:
		r, err := NewRedis(cfg)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

// Key returns the hex SHA-256 of the JSON serialization of v
func Key(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Entry is a cached model response
type Entry struct {
	Content       string `json:"content"`
	ProviderLabel string `json:"provider_label"`
}

// GetEntry loads a cached response
func GetEntry(ctx context.Context, s Store, key string) (Entry, bool, error) {
	raw, ok, err := s.Get(ctx, "ai:"+key)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return e, true, nil
}

// SetEntry stores a response
func SetEntry(ctx context.Context, s Store, key string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return s.Set(ctx, "ai:"+key, data)
}
