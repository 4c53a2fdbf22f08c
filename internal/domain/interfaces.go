package domain

import (
	"context"
	"net/url"
)

// Resolver turns a source URL into a Snapshot
type Resolver interface {
	// Name returns the resolver name
	Name() string
	// Priority orders resolvers in a chain; lower values are tried first
	Priority() int
	// CanHandle returns true if this resolver applies to the given URL
	CanHandle(u *url.URL) bool
	// Resolve produces the snapshot the URL refers to
	Resolve(ctx context.Context, u *url.URL) (*Snapshot, error)
}

// Extractor unpacks a downloaded archive and returns its canonical root directory
type Extractor interface {
	Extract(ctx context.Context, archivePath string) (string, error)
}

// Configuration is a read-only keyed configuration store
type Configuration interface {
	// String returns the value stored under key and whether it is set
	String(key string) (string, bool)
}
