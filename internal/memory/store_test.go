package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/hrbuddy-intent/internal/logger"
	"github.com/avvvet/hrbuddy-intent/internal/models"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// storeFactory builds a Store plus a way to overwrite the key behind its back
type storeFactory func(t *testing.T, opts StoreOptions) (Store, func(key Key))

func redisFactory(t *testing.T, opts StoreOptions) (Store, func(key Key)) {
	_, client := setupRedis(t)
	opts.Logger = logger.NewTestLogger(t)
	store := NewRedisStore(client, opts)
	return store, func(key Key) {
		require.NoError(t, client.Set(context.Background(), key.StateKey(), `{"turn_count":99}`, 0).Err())
	}
}

func inMemoryFactory(t *testing.T, opts StoreOptions) (Store, func(key Key)) {
	store := NewInMemoryStore(opts)
	return store, func(key Key) {
		require.NoError(t, store.Save(context.Background(), key, &models.ConversationState{TurnCount: 99}, 0))
	}
}

var factories = map[string]storeFactory{
	"redis":     redisFactory,
	"in-memory": inMemoryFactory,
}

func lockedState(intent models.Intent, slots models.Slots, at time.Time) *models.ConversationState {
	s := &models.ConversationState{Slots: models.Slots{}, LastUpdated: at}
	s.Lock(intent)
	s.Slots = slots
	return s
}

func TestStore_SaveLoadClear(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			clk := &clock{now: time.Date(2025, time.November, 3, 10, 0, 0, 0, time.UTC)}
			store, _ := factory(t, StoreOptions{TTL: 30 * time.Minute, Now: clk.Now})
			ctx := context.Background()
			key := Key{UserID: "u1", SessionID: "s1"}

			_, err := store.Load(ctx, key)
			assert.ErrorIs(t, err, ErrNotFound)

			want := lockedState(models.IntentApplyOnDuty, models.Slots{"date": "2025-11-03"}, clk.Now())
			want.TurnCount = 1
			require.NoError(t, store.Save(ctx, key, want, 0))

			got, err := store.Load(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, models.IntentApplyOnDuty, got.Locked())
			assert.Equal(t, models.Slots{"date": "2025-11-03"}, got.Slots)
			assert.Equal(t, 1, got.TurnCount)

			_, err = store.Load(ctx, Key{UserID: "u1", SessionID: "other"})
			assert.ErrorIs(t, err, ErrNotFound, "sessions are isolated")

			require.NoError(t, store.Clear(ctx, key))
			_, err = store.Load(ctx, key)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.NoError(t, store.Clear(ctx, key), "clearing twice is fine")
		})
	}
}

func TestStore_IdleExpiry(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			clk := &clock{now: time.Date(2025, time.November, 3, 10, 0, 0, 0, time.UTC)}
			store, _ := factory(t, StoreOptions{TTL: 30 * time.Minute, Now: clk.Now})
			ctx := context.Background()
			key := Key{UserID: "u1", SessionID: "s1"}

			require.NoError(t, store.Save(ctx, key, lockedState(models.IntentApplyLeave, models.Slots{"reason": "fever"}, clk.Now()), 0))

			clk.Advance(29 * time.Minute)
			_, err := store.Load(ctx, key)
			require.NoError(t, err)

			clk.Advance(2 * time.Minute)
			_, err = store.Load(ctx, key)
			assert.ErrorIs(t, err, ErrNotFound)

			state, err := store.Update(ctx, key, func(s *models.ConversationState) error {
				assert.Empty(t, s.Locked(), "an expired conversation starts fresh")
				assert.Empty(t, s.Slots)
				return nil
			})
			require.NoError(t, err)
			assert.Zero(t, state.TurnCount)
		})
	}
}

func TestStore_UpdateAbortsWithoutWriting(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store, _ := factory(t, StoreOptions{})
			ctx := context.Background()
			key := Key{UserID: "u1", SessionID: "s1"}
			boom := errors.New("boom")

			_, err := store.Update(ctx, key, func(s *models.ConversationState) error {
				s.TurnCount = 5
				return boom
			})
			assert.ErrorIs(t, err, boom)

			_, err = store.Load(ctx, key)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_UpdateRetriesOnConflict(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store, overwrite := factory(t, StoreOptions{MaxRetries: 3})
			ctx := context.Background()
			key := Key{UserID: "u1", SessionID: "s1"}

			attempts := 0
			state, err := store.Update(ctx, key, func(s *models.ConversationState) error {
				attempts++
				if attempts == 1 {
					overwrite(key)
				}
				s.TurnCount++
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, 2, attempts)
			assert.Equal(t, 100, state.TurnCount, "the retry sees the concurrent write")

			loaded, err := store.Load(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, 100, loaded.TurnCount)
		})
	}
}

func TestStore_UpdateGivesUp(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store, overwrite := factory(t, StoreOptions{MaxRetries: 2})
			ctx := context.Background()
			key := Key{UserID: "u1", SessionID: "s1"}

			attempts := 0
			_, err := store.Update(ctx, key, func(s *models.ConversationState) error {
				attempts++
				overwrite(key)
				return nil
			})
			assert.ErrorIs(t, err, ErrStateConflict)
			assert.Equal(t, 2, attempts)
		})
	}
}

func TestStore_ConcurrentUpdatesLoseNothing(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store, _ := factory(t, StoreOptions{MaxRetries: 50})
			ctx := context.Background()
			key := Key{UserID: "u1", SessionID: "s1"}

			const writers = 10
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				succeeded int
			)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := store.Update(ctx, key, func(s *models.ConversationState) error {
						s.TurnCount++
						return nil
					})
					if err == nil {
						mu.Lock()
						succeeded++
						mu.Unlock()
						return
					}
					assert.ErrorIs(t, err, ErrStateConflict)
				}()
			}
			wg.Wait()

			state, err := store.Load(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, succeeded, state.TurnCount)
			assert.Positive(t, succeeded)
		})
	}
}

func TestRedisStore_UnreadableStateIsAbsent(t *testing.T) {
	mr, client := setupRedis(t)
	store := NewRedisStore(client, StoreOptions{Logger: logger.NewTestLogger(t)})
	ctx := context.Background()
	key := Key{UserID: "u1", SessionID: "s1"}

	require.NoError(t, mr.Set(key.StateKey(), "{not json"))

	_, err := store.Load(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	state, err := store.Update(ctx, key, func(s *models.ConversationState) error {
		s.Lock(models.IntentMarkAttendance)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.IntentMarkAttendance, state.Locked())
}

func TestRedisStore_KeyTTL(t *testing.T) {
	mr, client := setupRedis(t)
	store := NewRedisStore(client, StoreOptions{TTL: 30 * time.Minute})
	ctx := context.Background()
	key := Key{UserID: "u1", SessionID: "s1"}

	_, err := store.Update(ctx, key, func(s *models.ConversationState) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, mr.TTL(key.StateKey()))

	mr.FastForward(31 * time.Minute)
	_, err = store.Load(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Ping(ctx))
}
