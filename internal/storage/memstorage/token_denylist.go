package memstorage

import (
	"context"
	"sync"
	"time"
)

type TokenDenylist struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

func NewTokenDenylist() *TokenDenylist {
	return &TokenDenylist{
		entries: make(map[string]time.Time),
	}
}

func (d *TokenDenylist) Add(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[jti] = time.Now().Add(ttl)
	return nil
}

func (d *TokenDenylist) Contains(ctx context.Context, jti string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	deadline, ok := d.entries[jti]
	return ok && time.Now().Before(deadline), nil
}
