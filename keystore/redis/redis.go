// Package redis provides a Redis-backed key set for the keystore
// interface, using set membership against a configured Redis set key.
package redis

import (
	"context"
	"fmt"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/northlabs/north-mcp-go/keystore"
)

// Config for the Redis-backed key store. Defaults can be loaded via
// envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// SetKey is the Redis set holding valid API keys. ENV: NORTH_APIKEY_SET
	SetKey string `env:"NORTH_APIKEY_SET,default=north:apikeys"`
}

// Store implements keystore.KeyStore over a Redis set.
type Store struct {
	client *redis.Client
	setKey string
}

// New creates a store from an existing client and set key.
func New(client *redis.Client, setKey string) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if setKey == "" {
		setKey = "north:apikeys"
	}
	return &Store{client: client, setKey: setKey}, nil
}

// NewFromConfig dials Redis from Config and verifies connectivity.
func NewFromConfig(cfg Config) (*Store, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(cl, cfg.SetKey)
}

// NewFromEnv builds a Store using envdecode to populate Config.
func NewFromEnv() (*Store, error) {
	var cfg Config
	// Defaults are provided via struct tags.
	_ = envdecode.Decode(&cfg)
	return NewFromConfig(cfg)
}

// Contains implements keystore.KeyStore.
func (s *Store) Contains(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.setKey, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember: %w", err)
	}
	return ok, nil
}

// Close closes the Redis client.
func (s *Store) Close() error { return s.client.Close() }

var _ keystore.KeyStore = (*Store)(nil)
