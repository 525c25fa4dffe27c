package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores successful anonymization results keyed by a digest of the
// original text.
type Cache interface {
	// GetAnonymized returns the cached rewrite, if any.
	GetAnonymized(ctx context.Context, key string) (string, bool, error)

	// SetAnonymized stores a rewrite with TTL
	SetAnonymized(ctx context.Context, key, text string, ttl time.Duration) error

	// Close closes the cache connection
	Close() error
}

// Key derives the cache key for an original text and the prompt version
// that produced its rewrite.
func Key(promptVersion, text string) string {
	sum := sha256.Sum256([]byte(promptVersion + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
