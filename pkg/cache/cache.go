// Package cache provides render-result caching for diagramport.
//
// Rendering is expensive: the primary backend spawns an external process
// per invocation and the fallback instantiates an embedded engine. The
// cache short-circuits repeat renders of identical content with identical
// options. Three backends are provided:
//
//   - FileCache: file-based, for CLI usage (XDG cache directory)
//   - RedisCache: Redis-backed, for the serve deployment
//   - NullCache: no-op, for tests or when caching is disabled
//
// The cache is a performance layer only. It never lives in the export
// output directory and carries no naming state: content identity for
// output naming is recovered purely from output filenames, never from
// this cache.
package cache

import (
	"context"
	"time"
)

// TTLRender is how long cached render artifacts stay valid. Renders are
// deterministic for fixed content and options, so the TTL mostly bounds
// disk usage rather than staleness.
const TTLRender = 7 * 24 * time.Hour

// Cache is the interface for cache backends.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key
	// was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a TTL. A zero TTL means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the backend.
	Close() error
}

// RenderKeyOpts are the render parameters that shape a cached artifact.
// Two renders with the same content hash but different options must cache
// separately.
type RenderKeyOpts struct {
	Format     string `json:"format"`
	Theme      string `json:"theme"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Background string `json:"background"`
	Backend    string `json:"backend"`
}

// Keyer generates cache keys.
type Keyer interface {
	// RenderKey generates a key for a rendered artifact from the content
	// hash and the render options.
	RenderKey(contentHash string, opts RenderKeyOpts) string
}

// DefaultKeyer is the standard key generator.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard key generator.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// RenderKey generates a render artifact key: render:hash(content, opts).
func (*DefaultKeyer) RenderKey(contentHash string, opts RenderKeyOpts) string {
	return hashKey("render", contentHash, opts)
}
