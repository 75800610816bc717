package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/joacominatel/connections/internal/domain"
)

// AccountExistsCache is a TTL cache in front of account existence checks.
// keeps the async ingestion path off the database.
type AccountExistsCache struct {
	entries map[string]existsEntry
	mu      sync.RWMutex
	ttl     time.Duration
	repo    domain.AccountRepository
	now     func() time.Time
}

type existsEntry struct {
	exists    bool
	expiresAt time.Time
}

// NewAccountExistsCache creates a new account existence cache.
func NewAccountExistsCache(repo domain.AccountRepository, ttl time.Duration) *AccountExistsCache {
	return &AccountExistsCache{
		entries: make(map[string]existsEntry),
		ttl:     ttl,
		repo:    repo,
		now:     time.Now,
	}
}

// Exists reports whether the account is known and active.
// implements application.AccountExistsChecker.
func (c *AccountExistsCache) Exists(ctx context.Context, id domain.AccountID) (bool, error) {
	key := id.String()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expiresAt) {
		return entry.exists, nil
	}

	account, err := c.repo.FindByID(ctx, id)
	exists := err == nil && account.IsActive()
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}

	c.mu.Lock()
	c.entries[key] = existsEntry{exists: exists, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()

	return exists, nil
}

// Invalidate removes an account from the cache.
// call this when an account is created or its status changes.
func (c *AccountExistsCache) Invalidate(id domain.AccountID) {
	c.mu.Lock()
	delete(c.entries, id.String())
	c.mu.Unlock()
}

// Size returns the current number of cached entries.
func (c *AccountExistsCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Cleanup removes expired entries.
func (c *AccountExistsCache) Cleanup() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// RunCleanup evicts expired entries every interval until ctx is done.
func (c *AccountExistsCache) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Cleanup()
		}
	}
}
