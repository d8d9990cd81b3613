package mocks

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrCacheDown is returned by every FailingCache call.
var ErrCacheDown = errors.New("cache unavailable")

// FailingCache is a cache whose every operation fails.
type FailingCache struct {
	calls atomic.Int64
}

func (c *FailingCache) Get(context.Context, string) ([]byte, bool, error) {
	c.calls.Add(1)
	return nil, false, ErrCacheDown
}

func (c *FailingCache) Set(context.Context, string, []byte, time.Duration) error {
	c.calls.Add(1)
	return ErrCacheDown
}

func (c *FailingCache) Delete(context.Context, ...string) error {
	c.calls.Add(1)
	return ErrCacheDown
}

func (c *FailingCache) Ping(context.Context) error {
	return ErrCacheDown
}

func (c *FailingCache) Close() error {
	return nil
}

// Calls returns how many get/set/delete calls were made.
func (c *FailingCache) Calls() int64 {
	return c.calls.Load()
}
