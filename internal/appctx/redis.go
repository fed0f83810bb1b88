package appctx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arbiq/scanner/internal/store"
)

// RedisManager owns the KV connection and the store.Store built over it.
type RedisManager struct {
	client *redis.Client
	store  *store.Store
}

// NewRedisManager dials addr and wraps the client in a store.Store. Ping
// is attempted eagerly so a misconfigured process fails at startup rather
// than on the first scan tick.
func NewRedisManager(cfg RedisConfig) (*RedisManager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	s := store.New(client)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Ping(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("appctx: ping redis: %w", err)
	}

	return &RedisManager{client: client, store: s}, nil
}

// Store returns the wired KV store.
func (m *RedisManager) Store() *store.Store { return m.store }

// Close releases the underlying connection.
func (m *RedisManager) Close() error { return m.client.Close() }

// Health reports KV-store reachability for the `health` CLI subcommand.
func (m *RedisManager) Health(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.store.Ping(pingCtx)
}
