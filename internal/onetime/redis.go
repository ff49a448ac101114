package onetime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "grantdesk:onetime:"

// RedisStore はRedisに保持するStore。
// 有効期限はキーのTTLで管理し、消費はGETDELで行う。
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore はRedisStoreを生成する。
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: redisKeyPrefix,
	}
}

// NewRedisClient はREDIS_URL形式のURLからクライアントを生成する。
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (r *RedisStore) key(token string) string {
	return r.prefix + token
}

// Issue はpayloadに紐づくトークンを発行する。
func (r *RedisStore) Issue(ctx context.Context, payload string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}
	token, err := newToken()
	if err != nil {
		return "", err
	}
	if err := r.client.Set(ctx, r.key(token), payload, ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store one-time token: %w", err)
	}
	return token, nil
}

// Consume はトークンを消費してpayloadを返す。
func (r *RedisStore) Consume(ctx context.Context, token string) (string, error) {
	val, err := r.client.GetDel(ctx, r.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume one-time token: %w", err)
	}
	return val, nil
}
