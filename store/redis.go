package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/planweave/planweave/workflow"
)

// defaultRedisTTL is applied to snapshots unless overridden with WithTTL.
const defaultRedisTTL = 0 // no expiration; workflows are retained until external cleanup

// RedisStore provides a Redis-backed implementation of the Store interface.
// Compare-and-swap is enforced with a WATCH transaction on the snapshot key,
// so two invocations racing on the same workflow id cannot silently
// overwrite each other.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the time-to-live for workflow snapshots.
// Set to 0 (the default) for no expiration.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for Redis keys. Default is "planweave".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a new Redis-backed workflow store.
//
// Example:
//
//	store := NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithPrefix("planner"),
//	)
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		ttl:    defaultRedisTTL,
		prefix: "planweave",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// key returns the Redis key for a workflow id.
func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("%s:workflow:%s", s.prefix, id)
}

// Load retrieves a workflow snapshot by id.
func (s *RedisStore) Load(ctx context.Context, id string) (*workflow.Workflow, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	w, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", id, err)
	}
	return w, nil
}

// Save persists a workflow snapshot inside a WATCH transaction. The write
// aborts with ErrConflict if the key changes between the revision check and
// the commit, or if the snapshot's loaded revision is stale.
func (s *RedisStore) Save(ctx context.Context, w *workflow.Workflow) error {
	if w == nil || w.ID == "" {
		return ErrInvalidID
	}

	key := s.key(w.ID)
	txn := func(tx *redis.Tx) error {
		var stored int64
		current, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			existing, derr := decode(current)
			if derr != nil {
				return fmt.Errorf("parse stored snapshot %s: %w", w.ID, derr)
			}
			stored = existing.StoreRevision
			if sameContent(current, w, stored) {
				w.StoreRevision = stored
				return nil
			}
		case errors.Is(err, redis.Nil):
			stored = 0
		default:
			return fmt.Errorf("redis get failed: %w", err)
		}

		if w.StoreRevision != stored {
			return fmt.Errorf("%w: %s (loaded revision %d, stored %d)",
				ErrConflict, w.ID, w.StoreRevision, stored)
		}

		next := stored + 1
		data, err := encode(w, next)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		w.StoreRevision = next
		return nil
	}

	err := s.client.Watch(ctx, txn, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: %s", ErrConflict, w.ID)
	}
	return err
}

// List returns all workflow ids under the configured prefix, sorted.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	pattern := s.key("*")
	cut := strings.TrimSuffix(pattern, "*")

	var ids []string
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), cut))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Ensure RedisStore implements Store.
var _ Store = (*RedisStore)(nil)
