// ABOUTME: Redis-backed session store using list operations per session key
// ABOUTME: Suited for multi-process deployments sharing conversation state

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "chatbot:session:"

// RedisStore keeps each session's transcript in a Redis list. Messages
// are JSON-encoded and appended with RPUSH, so ordering follows append
// order without extra bookkeeping.
type RedisStore struct {
	client *redis.Client
	limit  int
	logger *slog.Logger
}

// NewRedisStore connects to Redis at addr and verifies the connection.
// A non-positive limit disables history trimming.
func NewRedisStore(ctx context.Context, addr string, limit int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	logger := slog.Default().With("component", "session")
	logger.Info("Redis session store initialized", "addr", addr)
	return &RedisStore{client: client, limit: limit, logger: logger}, nil
}

func sessionKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}

func (s *RedisStore) History(ctx context.Context, sessionID string) ([]Message, error) {
	entries, err := s.client.LRange(ctx, sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading session list: %w", err)
	}

	msgs := make([]Message, 0, len(entries))
	for _, entry := range entries {
		var msg Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, fmt.Errorf("decoding message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encoding message: %w", err)
		}
		values = append(values, data)
	}

	key := sessionKey(sessionID)
	if err := s.client.RPush(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("appending to session list: %w", err)
	}
	if s.limit > 0 {
		if err := s.client.LTrim(ctx, key, int64(-s.limit), -1).Err(); err != nil {
			return fmt.Errorf("trimming session list: %w", err)
		}
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("deleting session list: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
