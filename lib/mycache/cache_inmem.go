package mycache

import (
	"context"
	"sync"
	"time"
)

type inMemoryCache struct {
	sync.Mutex
	items map[string]inMemoryItem
	nower func() time.Time
}

type inMemoryItem struct {
	value     []byte
	expiresAt time.Time
}

func NewInMemoryCache(c context.Context) (*inMemoryCache, func(), error) {
	return &inMemoryCache{
		items: map[string]inMemoryItem{},
		nower: time.Now,
	}, func() {}, nil
}

func (m *inMemoryCache) Get(c context.Context, key string) ([]byte, error) {
	m.Lock()
	defer m.Unlock()

	item, found := m.items[key]
	if !found {
		return nil, ErrCacheMiss
	}
	if !item.expiresAt.IsZero() && m.nower().After(item.expiresAt) {
		delete(m.items, key)
		return nil, ErrCacheMiss
	}

	return item.value, nil
}

func (m *inMemoryCache) Set(c context.Context, key string, value []byte, ttl time.Duration) error {
	m.Lock()
	defer m.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.nower().Add(ttl)
	}
	m.items[key] = inMemoryItem{value: value, expiresAt: expiresAt}

	return nil
}

func (m *inMemoryCache) Delete(c context.Context, key string) error {
	m.Lock()
	defer m.Unlock()

	delete(m.items, key)

	return nil
}
