package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "modbot:"

// RedisStore keeps prompts in Redis so any bot replica can answer them.
type RedisStore struct {
	client *redis.Client
}

func Connect(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, p Prompt, ttl time.Duration) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	id := newID()
	if err := s.client.Set(ctx, redisKeyPrefix+id, raw, ttl).Err(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisStore) Take(ctx context.Context, id string) (Prompt, error) {
	raw, err := s.client.GetDel(ctx, redisKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Prompt{}, ErrExpired
		}
		return Prompt{}, err
	}
	var p Prompt
	if err := json.Unmarshal(raw, &p); err != nil {
		return Prompt{}, err
	}
	return p, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
