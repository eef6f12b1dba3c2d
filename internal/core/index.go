package core

import (
	"context"
	"fmt"

	"elncore/internal/config"
	"elncore/internal/infra/index/memory"
	"elncore/internal/infra/index/postgres"
	"elncore/internal/infra/index/sqlite"
	"elncore/internal/search"
)

// OpenIndex constructs the search index selected by cfg.
func OpenIndex(ctx context.Context, cfg config.IndexConfig) (search.Index, error) {
	switch cfg.Driver {
	case "", "memory":
		return memory.New(), nil
	case "sqlite":
		idx, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("core.OpenIndex: %w", err)
		}
		return idx, nil
	case "postgres":
		idx, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("core.OpenIndex: %w", err)
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("core.OpenIndex: unknown index driver %q", cfg.Driver)
	}
}
