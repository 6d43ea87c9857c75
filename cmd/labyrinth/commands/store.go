package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/labyrinth/internal/config"
	"github.com/dyluth/labyrinth/pkg/discovery"
)

// openStore creates the discovered-map backend selected by cfg. The returned
// close function is always non-nil.
func openStore(ctx context.Context, cfg *config.StoreConfig) (discovery.Store, string, func(), error) {
	if cfg.Backend != "redis" {
		return discovery.NewMap(), "", func() {}, nil
	}

	opts, err := cfg.RedisOptions()
	if err != nil {
		return nil, "", func() {}, err
	}

	session := cfg.Session
	if session == "" {
		session = discovery.NewSessionName()
	}

	store, err := discovery.NewRedisMap(opts, session)
	if err != nil {
		return nil, "", func() {}, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		store.Close()
		return nil, "", func() {}, fmt.Errorf("redis at %s is not reachable: %w", opts.Addr, err)
	}

	return store, session, func() { store.Close() }, nil
}
