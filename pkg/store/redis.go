package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/formsync-dev/formsync/pkg/formdata"
)

// RedisClient defines the interface for Redis operations.
// This interface is compatible with github.com/redis/go-redis/v9.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) RedisStatusCmd
	Get(ctx context.Context, key string) RedisStringCmd
	Del(ctx context.Context, keys ...string) RedisIntCmd
	Keys(ctx context.Context, pattern string) RedisStringSliceCmd
	Close() error
}

// RedisStatusCmd represents a Redis status command result.
type RedisStatusCmd interface {
	Err() error
}

// RedisStringCmd represents a Redis string command result.
type RedisStringCmd interface {
	Bytes() ([]byte, error)
	Err() error
}

// RedisIntCmd represents a Redis int command result.
type RedisIntCmd interface {
	Err() error
}

// RedisStringSliceCmd represents a Redis string slice command result.
type RedisStringSliceCmd interface {
	Result() ([]string, error)
}

// ErrRedisNil is returned when a key doesn't exist in Redis.
// This should match redis.Nil from go-redis.
var ErrRedisNil = errors.New("redis: nil")

// RedisStore is a Redis-backed snapshot store.
// It's suitable for multi-server deployments with shared form state.
type RedisStore struct {
	client RedisClient
	prefix string
	closed bool
}

// RedisStoreOption configures RedisStore behavior.
type RedisStoreOption func(*redisStoreConfig)

type redisStoreConfig struct {
	prefix string
}

// WithRedisPrefix sets the key prefix for snapshot keys.
// Default: "formsync:form:".
func WithRedisPrefix(prefix string) RedisStoreOption {
	return func(c *redisStoreConfig) {
		c.prefix = prefix
	}
}

// NewRedisStore creates a new Redis-backed snapshot store.
func NewRedisStore(client RedisClient, opts ...RedisStoreOption) *RedisStore {
	cfg := &redisStoreConfig{
		prefix: "formsync:form:",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &RedisStore{
		client: client,
		prefix: cfg.prefix,
	}
}

// key returns the Redis key for a form ID.
func (r *RedisStore) key(formID string) string {
	return r.prefix + formID
}

// Save stores a form's snapshot. Snapshots do not expire; they live until
// deleted.
func (r *RedisStore) Save(ctx context.Context, formID string, snap formdata.FormData) error {
	if r.closed {
		return ErrStoreClosed{}
	}

	data, err := Serialize(formID, snap)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(formID), data, 0).Err()
}

// Load retrieves a form's snapshot if it exists.
func (r *RedisStore) Load(ctx context.Context, formID string) (formdata.FormData, error) {
	if r.closed {
		return nil, ErrStoreClosed{}
	}

	data, err := r.client.Get(ctx, r.key(formID)).Bytes()
	if err != nil {
		// go-redis reports a missing key as redis.Nil, which this seam can
		// only see by message.
		if errors.Is(err, ErrRedisNil) || err.Error() == ErrRedisNil.Error() {
			return nil, &SnapshotNotFoundError{FormID: formID}
		}
		return nil, err
	}

	return Deserialize(data)
}

// Delete removes a form's snapshot from Redis.
func (r *RedisStore) Delete(ctx context.Context, formID string) error {
	if r.closed {
		return ErrStoreClosed{}
	}

	return r.client.Del(ctx, r.key(formID)).Err()
}

// List returns the stored form IDs in sorted order.
func (r *RedisStore) List(ctx context.Context) ([]string, error) {
	if r.closed {
		return nil, ErrStoreClosed{}
	}

	keys, err := r.client.Keys(ctx, r.prefix+"*").Result()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, r.prefix))
	}
	sort.Strings(ids)
	return ids, nil
}

// Close marks the store as closed.
// Note: This does not close the underlying Redis client,
// as it may be shared with other components.
func (r *RedisStore) Close() error {
	r.closed = true
	return nil
}

// Prefix returns the current key prefix.
// This is for testing/debugging purposes.
func (r *RedisStore) Prefix() string {
	return r.prefix
}
