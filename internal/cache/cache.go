package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores opaque byte values by key
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a cache key from its parts. Parts are separated so that
// ("ab", "c") and ("a", "bc") do not collide.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return "sito:v1:" + hex.EncodeToString(h.Sum(nil))
}
