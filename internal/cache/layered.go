package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/safelens/safelens/internal/model"
)

// Layered fronts a persistent store with an in-process read cache, so hot
// fingerprints skip disk or redis round trips. Inserts write through and
// refresh the front; the front never expires entries on its own because the
// backing store has no expiry either.
type Layered struct {
	back  Store
	front *gocache.Cache
}

// NewLayered wraps a backing store with a memory front.
func NewLayered(back Store) *Layered {
	return &Layered{
		back:  back,
		front: gocache.New(gocache.NoExpiration, 10*time.Minute),
	}
}

// Insert writes through to the backing store, then refreshes the front.
func (l *Layered) Insert(ctx context.Context, entry model.CacheEntry) error {
	if err := l.back.Insert(ctx, entry); err != nil {
		return err
	}
	l.front.Set(entry.Fingerprint, entry, gocache.NoExpiration)
	return nil
}

// FindLatest checks the front first and promotes backing-store hits.
func (l *Layered) FindLatest(ctx context.Context, fingerprint string) (*model.CacheEntry, bool, error) {
	if val, ok := l.front.Get(fingerprint); ok {
		entry := val.(model.CacheEntry)
		return &entry, true, nil
	}

	entry, ok, err := l.back.FindLatest(ctx, fingerprint)
	if err != nil || !ok {
		return nil, false, err
	}
	l.front.Set(fingerprint, *entry, gocache.NoExpiration)
	return entry, true, nil
}

// NewStore builds the configured backend wrapped in the memory front.
func NewStore(cfg model.CacheConfig) Store {
	switch cfg.Backend {
	case "redis":
		return NewLayered(NewRedisStore(cfg))
	case "memory":
		return NewMemoryStore()
	default:
		return NewLayered(NewDiskStore(cfg.Dir))
	}
}
