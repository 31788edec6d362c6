// Package cache stores recent connector responses so repeated runs of
// the same query do not re-spend budget on identical calls.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is the storage interface shared by the memory, disk and layered
// implementations.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives the cache key for one (connector, query) pair.
func Key(connectorID, query string) string {
	hash := sha256.Sum256([]byte(connectorID + "\x00" + query))
	return "lenscan:v1:" + hex.EncodeToString(hash[:])
}
