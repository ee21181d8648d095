package cache

import "time"

// BytesCache stores opaque byte payloads with a TTL. Used for caching
// rendered API responses.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
