package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashureev/orderdesk/internal/domain"
)

// RedisStore implements Repository on Redis, for deployments that share
// sessions across instances. Each session is one JSON value under
// session:<id>; expiry is delegated to Redis TTLs, refreshed on every read
// and write.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func sessionKey(id string) string { return "session:" + id }

func (r *RedisStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	if sess.Orders == nil {
		sess.Orders = make(map[string]*domain.OrderState)
	}
	if sess.PersistentEntities == nil {
		sess.PersistentEntities = make(map[string]string)
	}

	// Sliding expiry: reading a session keeps it alive.
	r.client.Expire(ctx, sessionKey(sessionID), r.ttl)
	return &sess, nil
}

func (r *RedisStore) Put(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	if err := r.client.Set(ctx, sessionKey(sess.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set session %s: %w", sess.ID, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// CleanupExpired is a no-op for Redis; key TTLs handle expiry.
func (r *RedisStore) CleanupExpired(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
