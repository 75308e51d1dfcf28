package booking

import (
	"context"
	"strings"
)

// NewStore picks the backend: a shared postgres database when
// databaseURL is set, otherwise the local sqlite file, otherwise
// process memory.
func NewStore(ctx context.Context, databaseURL, databasePath string) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	if strings.TrimSpace(databasePath) != "" {
		return NewSQLiteStore(ctx, databasePath)
	}
	return NewMemoryStore(), nil
}
