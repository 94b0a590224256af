// Package cache defines a keyed cache of pointers.
// Implementations must be safe for concurrent use.
package cache

import (
	"context"
	"errors"
)

// ErrCacheMiss is returned by Get if the key is unknown and the cache has
// no way to load it.
var ErrCacheMiss = errors.New("cache miss")

type Cache[K comparable, V any] interface {
	Get(ctx context.Context, key K) (*V, error)
	Set(ctx context.Context, key K, value *V)
	Invalidate(ctx context.Context, key K)
	InvalidateAll(ctx context.Context)
	// Len returns the number of entries, expired ones included
	Len() int
}
