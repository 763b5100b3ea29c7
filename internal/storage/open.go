package storage

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/dwnode/dwnd/internal/config"
)

// Open opens the gorm backend named by cfg.Driver ("sqlite" or
// "postgres"), the single construction point RecordStore/DataStore are
// built against, so swapping the backend touches no other package.
func Open(cfg config.StorageConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case "", "sqlite":
		db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("storage: failed to open sqlite database %q: %w", cfg.SQLitePath, err)
		}

		return db, nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
			cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Database, cfg.Postgres.Username, cfg.Postgres.Password, cfg.Postgres.SSLMode)

		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("storage: failed to open postgres database: %w", err)
		}

		return db, nil
	default:
		return nil, fmt.Errorf("storage: unrecognized storage driver %q", cfg.Driver)
	}
}
