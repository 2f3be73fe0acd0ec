package migrate

import (
	"context"
	"fmt"

	"github.com/igolaizola/sonicarch/pkg/logger"
	"github.com/igolaizola/sonicarch/pkg/storage"
)

type Config struct {
	DBType string
	DBConn string
	Log    logger.Config
}

// Run launches the migration process.
func Run(ctx context.Context, cfg *Config) error {
	log, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("migrate: couldn't create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	store, err := storage.New(cfg.DBType, cfg.DBConn, true, log)
	if err != nil {
		return fmt.Errorf("migrate: couldn't create: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("migrate: couldn't start: %w", err)
	}
	defer func() { _ = store.Stop() }()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: couldn't migrate: %w", err)
	}
	log.Info("migrate: done")
	return nil
}
