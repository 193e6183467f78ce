package mycache

import (
	"context"
	"errors"
	"os"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	Get(c context.Context, key string) ([]byte, error)
	Set(c context.Context, key string, value []byte, ttl time.Duration) error
	Delete(c context.Context, key string) error
}

func New(c context.Context) (Cache, func(), error) {
	if os.Getenv("REDIS_ADDR") != "" {
		return newRedisCache(c)
	}

	return NewInMemoryCache(c)
}
