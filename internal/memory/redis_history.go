package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxTranscript caps the stored transcript per conversation
const maxTranscript = 50

// RedisHistory implements History with a Redis list per conversation and a sorted set per user
type RedisHistory struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisHistory(client *redis.Client, ttl time.Duration) *RedisHistory {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisHistory{client: client, ttl: ttl}
}

func (r *RedisHistory) Append(ctx context.Context, key Key, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key.HistoryKey(), data)
		pipe.LTrim(ctx, key.HistoryKey(), -maxTranscript, -1)
		pipe.Expire(ctx, key.HistoryKey(), r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save message to Redis: %w", err)
	}
	return nil
}

func (r *RedisHistory) Messages(ctx context.Context, key Key) ([]Message, error) {
	raw, err := r.client.LRange(ctx, key.HistoryKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}

	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (r *RedisHistory) Clear(ctx context.Context, key Key) error {
	if err := r.client.Del(ctx, key.HistoryKey()).Err(); err != nil {
		return fmt.Errorf("failed to clear transcript: %w", err)
	}
	return nil
}

func (r *RedisHistory) Touch(ctx context.Context, userID, sessionID string, at time.Time) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, sessionsKey(userID), redis.Z{Score: float64(at.Unix()), Member: sessionID})
		pipe.ZRemRangeByScore(ctx, sessionsKey(userID), "-inf", fmt.Sprintf("(%d", at.Add(-r.ttl).Unix()))
		pipe.Expire(ctx, sessionsKey(userID), r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update session index: %w", err)
	}
	return nil
}

func (r *RedisHistory) Sessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	entries, err := r.client.ZRevRangeWithScores(ctx, sessionsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(entries))
	for _, e := range entries {
		id, ok := e.Member.(string)
		if !ok {
			continue
		}
		sessions = append(sessions, SessionInfo{
			SessionID:    id,
			LastActivity: time.Unix(int64(e.Score), 0).UTC(),
		})
	}
	return sessions, nil
}
