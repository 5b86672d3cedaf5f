// Package redis is the networked store driver, letting several service
// instances share one authoritative token store. Mutations that must be
// atomic per key (bounded insert, single-use consume) run as Lua scripts.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/medisched/tokend/internal/token/store"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr   string
	Prefix string // key namespace, default "tokend"

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	PingTimeout  time.Duration

	MaxPerSubject int
}

func (c Config) withDefaults() Config {
	out := c
	if out.Prefix == "" {
		out.Prefix = "tokend"
	}
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 20
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

type Store struct {
	client    redis.UniversalClient
	sessions  *refreshSessions
	blacklist *blacklist
}

// NewStore connects to redis and validates connectivity via PING.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis: addr is required")
	}
	if cfg.MaxPerSubject <= 0 {
		return nil, fmt.Errorf("redis: MaxPerSubject must be > 0")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}

	return newStoreWithClient(client, cfg.Prefix, cfg.MaxPerSubject), nil
}

// newStoreWithClient wires a store over an existing client (tests).
func newStoreWithClient(client redis.UniversalClient, prefix string, maxPerSubject int) *Store {
	return &Store{
		client:    client,
		sessions:  &refreshSessions{client: client, prefix: prefix, max: maxPerSubject},
		blacklist: &blacklist{client: client, prefix: prefix},
	}
}

func (s *Store) RefreshSessions() store.RefreshSessions { return s.sessions }
func (s *Store) Blacklist() store.Blacklist             { return s.blacklist }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
