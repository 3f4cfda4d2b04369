package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ledgermail:session:"

// redisClient is the subset of the redis API the store uses
type redisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps sessions in redis as JSON values expiring with the session
type RedisStore struct {
	client redisClient
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a new RedisStore instance
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return newRedisStore(client, ttl)
}

func newRedisStore(client redisClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

// ConnectRedis opens a redis client and verifies it with a ping
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func sessionKey(id string) string {
	return keyPrefix + id
}

// Create stores a new session for the user
func (r *RedisStore) Create(ctx context.Context, userID, username, email string) (*Session, error) {
	sess := newSession(userID, username, email, r.now(), r.ttl)

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}
	if err := r.client.Set(ctx, sessionKey(sess.ID), data, r.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return sess, nil
}

// Get returns the session with the given id
func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if sess.Expired(r.now()) {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

// Delete removes the session with the given id
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
