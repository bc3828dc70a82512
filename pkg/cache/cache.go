package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Service is the TTL cache the pipeline stages share. Values are stored as
// JSON, so dest in Get must be a pointer.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

// TTLReporter is implemented by caches that can report how long a key has
// left to live. TTL returns 0 when the key is absent or has no expiry.
type TTLReporter interface {
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Key joins a namespace and its parts with ':'.
func Key(namespace string, parts ...string) string {
	return strings.Join(append([]string{namespace}, parts...), ":")
}

// Digest shortens arbitrary input, such as an encoded request, to a stable
// key part.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:12])
}
