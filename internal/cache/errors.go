package cache

import "errors"

var (
	// ErrCacheMiss means the key is absent (or lazily expired).
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheUnavailable means the cache backend cannot be reached.
	// Callers treat it like a miss and read through to the store.
	ErrCacheUnavailable = errors.New("cache: backend unavailable")

	// ErrInvalidValue means a cached entry failed to decode.
	ErrInvalidValue = errors.New("cache: invalid value")
)
