package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avvvet/hrbuddy-intent/internal/logger"
	"github.com/avvvet/hrbuddy-intent/internal/metrics"
	"github.com/avvvet/hrbuddy-intent/internal/models"
)

// RedisStore implements Store on Redis, using WATCH/MULTI for Update
type RedisStore struct {
	client     *redis.Client
	ttl        time.Duration // idle TTL for state keys
	maxRetries int
	now        func() time.Time
	logger     logger.Logger
}

// StoreOptions tunes a RedisStore
type StoreOptions struct {
	TTL        time.Duration
	MaxRetries int
	Now        func() time.Time
	Logger     logger.Logger
}

// Connect parses redisURL and pings the server
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewRedisStore(client *redis.Client, opts StoreOptions) *RedisStore {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	return &RedisStore{
		client:     client,
		ttl:        opts.TTL,
		maxRetries: opts.MaxRetries,
		now:        opts.Now,
		logger:     opts.Logger,
	}
}

func (r *RedisStore) Load(ctx context.Context, key Key) (*models.ConversationState, error) {
	return r.read(ctx, r.client, key)
}

func (r *RedisStore) read(ctx context.Context, c redis.Cmdable, key Key) (*models.ConversationState, error) {
	data, err := c.Get(ctx, key.StateKey()).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state from Redis: %w", err)
	}

	var state models.ConversationState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		// an unreadable state is treated as absent; the next write replaces it
		r.logger.Warn("discarding unreadable state", map[string]interface{}{
			"key":   key.StateKey(),
			"error": err.Error(),
		})
		return nil, ErrNotFound
	}
	if state.Slots == nil {
		state.Slots = models.Slots{}
	}
	if expired(&state, r.ttl, r.now()) {
		return nil, ErrNotFound
	}
	return &state, nil
}

func (r *RedisStore) Save(ctx context.Context, key Key, state *models.ConversationState, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := r.client.Set(ctx, key.StateKey(), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save state to Redis: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, key Key) error {
	if err := r.client.Del(ctx, key.StateKey()).Err(); err != nil {
		return fmt.Errorf("failed to clear state: %w", err)
	}
	return nil
}

func (r *RedisStore) Update(ctx context.Context, key Key, fn UpdateFunc) (*models.ConversationState, error) {
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		var updated *models.ConversationState

		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			state, err := r.read(ctx, tx, key)
			if errors.Is(err, ErrNotFound) {
				state = newState()
			} else if err != nil {
				return err
			}

			if err := fn(state); err != nil {
				return err
			}

			data, err := json.Marshal(state)
			if err != nil {
				return fmt.Errorf("failed to marshal state: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key.StateKey(), data, r.ttl)
				return nil
			})
			if err == nil {
				updated = state
			}
			return err
		}, key.StateKey())

		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}

		metrics.StateConflicts.Inc()
		r.logger.Debug("state write conflict, retrying", map[string]interface{}{
			"key":     key.StateKey(),
			"attempt": attempt,
		})
	}
	return nil, ErrStateConflict
}

// Ping checks the Redis connection
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
