package sessioncache

import (
	"context"
	"strings"
)

// New connects to the configured cache, or falls back to process
// memory when no URL is set.
func New(ctx context.Context, cacheURL string) (Cache, error) {
	if strings.TrimSpace(cacheURL) == "" {
		return NewMemoryCache(), nil
	}
	return NewRedisCache(ctx, cacheURL)
}
