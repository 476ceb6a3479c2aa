package factory

import (
	"context"
	"fmt"

	"github.com/ProDevCodePoland/ringrtc/internal/storage"
	"github.com/ProDevCodePoland/ringrtc/internal/storage/es"
	"github.com/ProDevCodePoland/ringrtc/internal/storage/in_mem"
	"github.com/ProDevCodePoland/ringrtc/internal/storage/pg"
	"github.com/ProDevCodePoland/ringrtc/pkg/server"
)

// Store is an opened result store. Close releases its connections.
type Store struct {
	storage.Store
	Health server.HealthChecker
	Close  func()
}

// NewStore opens the store selected by cfg.Type.
func NewStore(ctx context.Context, cfg *StorageConfig) (*Store, error) {
	switch cfg.Type {
	case storage.PG:
		if cfg.Pg == nil {
			return nil, fmt.Errorf("missing PostgreSQL configuration")
		}
		pool, err := pg.NewConnectionPool(ctx, *cfg.Pg)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL connection pool: %w", err)
		}
		return &Store{Store: pg.NewStorer(pool), Health: pg.NewHealthChecker(pool), Close: pool.Close}, nil

	case storage.ES:
		if cfg.Es == nil {
			return nil, fmt.Errorf("missing Elasticsearch configuration")
		}
		s, err := es.NewStorer(ctx, *cfg.Es)
		if err != nil {
			return nil, err
		}
		return &Store{Store: s, Health: server.NewOkHealthChecker(), Close: func() {}}, nil

	case storage.InMem:
		return &Store{Store: in_mem.NewInMemStorer(), Health: server.NewOkHealthChecker(), Close: func() {}}, nil

	default:
		return nil, fmt.Errorf(string(storage.ErrUnsupportedStorer), cfg.Type)
	}
}
