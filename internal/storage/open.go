package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Open picks a Backend from the scheme of databaseURL:
// postgres:// and postgresql:// use PostgreSQL, redis:// and rediss:// use
// Redis, file:// (or a bare path) uses a local JSON file.
func Open(ctx context.Context, databaseURL string) (Backend, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is empty")
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		return NewPostgresStore(ctx, databaseURL)
	case "redis", "rediss":
		return NewRedisStore(ctx, databaseURL)
	case "file":
		return NewFileStore(filePath(u))
	case "":
		return NewFileStore(databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}
}

// file:///var/lib/x.json and file://./x.json both resolve to a path.
func filePath(u *url.URL) string {
	if u.Host != "" {
		return u.Host + u.Path
	}
	return u.Path
}
