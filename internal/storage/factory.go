package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bher20/wattscope/internal/logging"
)

// Config controls how the storage backend is opened.
type Config struct {
	Driver string
	DSN    string
}

// DefaultSQLiteDSN is used when the sqlite driver is chosen without a DSN.
const DefaultSQLiteDSN = "wattscope.db"

// Open constructs a Storage based on the given configuration.
func Open(ctx context.Context, cfg Config) (Storage, error) {
	drv := cfg.Driver
	if drv == "" {
		drv = "memory"
	}
	switch drv {
	case "memory":
		logging.Info("storage: using in-memory backend")
		return NewMemory(), nil

	case "sqlite", "postgres":
		dsn := cfg.DSN
		if dsn == "" {
			if drv == "postgres" {
				return nil, fmt.Errorf("storage: postgres driver requires a DSN")
			}
			dsn = DefaultSQLiteDSN
		}
		logging.Info("storage: using gorm backend", zap.String("driver", drv))
		st, err := NewGormStorage(drv, dsn)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("storage migrate: %w", err)
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", drv)
	}
}
