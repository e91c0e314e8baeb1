package cache

import (
	"bizlink/contract"
	"bizlink/domain"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

var _ contract.IUserDirectory = (*CachedDirectory)(nil)

// CachedDirectory serves directory reads from the cache and falls back to
// the wrapped directory on a miss. Cache failures never fail a read.
type CachedDirectory struct {
	next  contract.IUserDirectory
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

func NewCachedDirectory(next contract.IUserDirectory, cache Cache, ttl time.Duration, log *slog.Logger) *CachedDirectory {
	return &CachedDirectory{next: next, cache: cache, ttl: ttl, log: log}
}

func (d *CachedDirectory) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return readThrough(ctx, d, "directory:user:"+userID, func() (domain.User, error) {
		return d.next.GetUser(ctx, userID)
	})
}

func (d *CachedDirectory) GetBusiness(ctx context.Context, businessID string) (domain.Business, error) {
	return readThrough(ctx, d, "directory:business:"+businessID, func() (domain.Business, error) {
		return d.next.GetBusiness(ctx, businessID)
	})
}

// Invalidate drops cached entries after the directory changed.
func (d *CachedDirectory) Invalidate(ctx context.Context, userIDs, businessIDs []string) error {
	keys := make([]string, 0, len(userIDs)+len(businessIDs))
	for _, id := range userIDs {
		keys = append(keys, "directory:user:"+id)
	}
	for _, id := range businessIDs {
		keys = append(keys, "directory:business:"+id)
	}
	if len(keys) == 0 {
		return nil
	}
	_, err := d.cache.Del(ctx, keys...)
	return err
}

// readThrough only caches successful lookups, so a user created after a miss
// is visible right away.
func readThrough[T any](ctx context.Context, d *CachedDirectory, key string, load func() (T, error)) (T, error) {
	var value T
	raw, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		if err = json.Unmarshal([]byte(raw), &value); err == nil {
			return value, nil
		}
		d.log.Warn("Dropping undecodable cache entry", "key", key, "error", err)
	case !errors.Is(err, ErrMiss):
		d.log.Warn("Directory cache unavailable", "key", key, "error", err)
	}

	value, err = load()
	if err != nil {
		return value, err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return value, nil
	}
	if err = d.cache.Set(ctx, key, string(data), d.ttl); err != nil {
		d.log.Warn("Directory cache write failed", "key", key, "error", err)
	}
	return value, nil
}
