// Package cache stores raw API response bodies so a re-run over the same
// routes (after a crash, or while iterating on extraction) does not hammer
// the upstream service.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is the storage interface shared by the memory and disk layers.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a cache key from a request URL.
func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "taxopull:v1:" + hex.EncodeToString(sum[:])
}
