package room

import (
	"context"
	"fmt"
)

// OpenStore builds the project store selected by cfg.Store.Driver.
// The returned close function is never nil.
func OpenStore(ctx context.Context, cfg *Config) (ProjectStore, func() error, error) {
	switch cfg.Store.Driver {
	case "http":
		client, err := NewProjectClient(cfg.Store.URL,
			WithToken(cfg.Store.Token),
			WithTimeout(cfg.StoreTimeout()),
			WithMaxRetries(cfg.Store.MaxRetries),
		)
		if err != nil {
			return nil, nil, err
		}
		return client, func() error { return nil }, nil
	case "sqlite":
		store, err := OpenSQLiteStore(ctx, cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
