package velograph

import (
	"context"
	"time"
)

// Cache is the interface for caching fetched node documents.
// Users should implement this interface with their preferred caching solution
// (e.g., Redis, Memcached, in-memory).
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error
}

// CacheKey identifies a cached node document.
type CacheKey struct {
	// Namespace separates clients sharing one cache. Defaults to
	// "velograph".
	Namespace string
	// UID is the node identifier.
	UID string
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	ns := k.Namespace
	if ns == "" {
		ns = "velograph"
	}
	return ns + ":node:" + k.UID
}
