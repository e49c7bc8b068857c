// Package notify provides the delivery plumbing behind the notification
// dispatcher: an emit-once guard keyed on logical event IDs, and an optional
// push stream for subscribers that do not want to poll.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard admits each logical event exactly once. The dispatcher asks the
// guard before persisting notifications for an event, so a retried or
// replayed write never produces a second alert for the same thing.
type Guard interface {
	Once(ctx context.Context, eventKey string) (bool, error)
	Close() error
}

// RedisGuard implements Guard with SETNX marker keys so the exactly-once
// property holds across engine restarts and replicas.
type RedisGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisGuard(redisURL string) (*RedisGuard, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisGuard{
		client: client,
		prefix: "emit:",
		ttl:    30 * 24 * time.Hour,
	}, nil
}

// NewRedisGuardWithClient creates a guard from an existing Redis client.
func NewRedisGuardWithClient(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client, prefix: "emit:", ttl: 30 * 24 * time.Hour}
}

func (g *RedisGuard) Once(ctx context.Context, eventKey string) (bool, error) {
	first, err := g.client.SetNX(ctx, g.prefix+eventKey, time.Now().Unix(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark event emitted: %w", err)
	}
	return first, nil
}

func (g *RedisGuard) Close() error {
	return g.client.Close()
}

func (g *RedisGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

// MemoryGuard is the in-process fallback used when Redis is not configured.
// It gives the same contract within a single engine instance.
type MemoryGuard struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{seen: make(map[string]struct{})}
}

func (g *MemoryGuard) Once(_ context.Context, eventKey string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen[eventKey]; ok {
		return false, nil
	}
	g.seen[eventKey] = struct{}{}
	return true, nil
}

func (g *MemoryGuard) Close() error { return nil }
