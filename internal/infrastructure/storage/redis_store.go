package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BulshitMan-BM/ntr-sub000/domain"
)

// RedisStore keeps the session entries in Redis, for kiosk deployments
// where several panel instances share one login. Keys hold plain strings,
// no TTL: expiry policy stays with the state machine and the backend.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "ntr:"}
}

func (s *RedisStore) SaveToken(token string, establishedAt time.Time) error {
	ctx := context.Background()
	if err := s.client.Set(ctx, s.prefix+"session_token", token, 0).Err(); err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+"session_established", establishedAt.UTC().Format(time.RFC3339), 0).Err()
}

func (s *RedisStore) LoadToken() (string, time.Time, bool) {
	ctx := context.Background()
	token, err := s.client.Get(ctx, s.prefix+"session_token").Result()
	if err == redis.Nil || token == "" {
		return "", time.Time{}, false
	}
	if err != nil {
		return "", time.Time{}, false
	}

	var establishedAt time.Time
	if raw, err := s.client.Get(ctx, s.prefix+"session_established").Result(); err == nil {
		if ts, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
			establishedAt = ts
		}
	}
	return token, establishedAt, true
}

func (s *RedisStore) ClearToken() error {
	return s.client.Del(context.Background(),
		s.prefix+"session_token", s.prefix+"session_established").Err()
}

func (s *RedisStore) SavePendingNIK(nik string) error {
	return s.client.Set(context.Background(), s.prefix+"pending_nik", nik, 0).Err()
}

func (s *RedisStore) LoadPendingNIK() (string, bool) {
	nik, err := s.client.Get(context.Background(), s.prefix+"pending_nik").Result()
	if err != nil || nik == "" {
		return "", false
	}
	return nik, true
}

func (s *RedisStore) ClearPendingNIK() error {
	return s.client.Del(context.Background(), s.prefix+"pending_nik").Err()
}

var _ domain.SessionStore = (*RedisStore)(nil)
