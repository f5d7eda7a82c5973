package store

import (
	"context"
	"fmt"
)

// New dispatches to the configured backend driver ("mongo" in production,
// "buntdb" for local/dev and tests), per SPEC_FULL.md §3.
func New(ctx context.Context, cfg Config) (DAO, error) {
	switch cfg.Driver {
	case "", "mongo":
		return NewMongo(ctx, cfg)
	case "buntdb":
		path := cfg.URI
		if path == "" {
			path = ":memory:"
		}
		return NewBunt(path)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
