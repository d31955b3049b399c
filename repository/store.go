package repository

import (
	"fmt"

	"github.com/ammiranda/category_service/config"

	"github.com/rs/zerolog"
)

// NewStore builds the store selected by cfg.Driver. The store still has to
// be initialized by the caller.
func NewStore(cfg *config.DatabaseConfig, log zerolog.Logger) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return NewPostgresRepository(cfg, log), nil
	case config.DriverSQLite:
		return NewSQLiteRepository(cfg.SQLitePath, log), nil
	case config.DriverMemory:
		return NewMockRepository(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
