package cache

import (
	"context"
	"errors"
	"time"
)

// StrategyPrefix namespaces retention-strategy entries in a shared keyspace.
const StrategyPrefix = "strategy:"

// Provider stores generated retention strategies, keyed by customer, risk
// group, model and constraints text. Entries expire after the configured
// strategy TTL; a miss or an undecodable entry sends the request back to the
// generator.
type Provider interface {
	// Get returns ErrCacheMiss when key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Del evicts an entry that failed to decode.
	Del(ctx context.Context, key string) error
	Close() error
}

// ErrCacheMiss reports that no strategy is cached under the key.
var ErrCacheMiss = errors.New("cache miss")

// NoopProvider is used when strategy caching is disabled: every request
// reaches the generator.
type NoopProvider struct{}

func (NoopProvider) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (NoopProvider) Del(context.Context, string) error { return nil }

func (NoopProvider) Close() error { return nil }
