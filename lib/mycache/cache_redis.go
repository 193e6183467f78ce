package mycache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisCache struct {
	client *redis.Client
}

func newRedisCache(c context.Context) (*redisCache, func(), error) {
	client := redis.NewClient(&redis.Options{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	err := client.Ping(c).Err()
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to redis: %s", err)
	}

	return &redisCache{
			client: client,
		}, func() {
			client.Close()
		}, nil
}

func (r *redisCache) Get(c context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(c, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	return data, nil
}

func (r *redisCache) Set(c context.Context, key string, value []byte, ttl time.Duration) error {
	err := r.client.Set(c, key, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (r *redisCache) Delete(c context.Context, key string) error {
	err := r.client.Del(c, key).Err()
	if err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}

	return nil
}
