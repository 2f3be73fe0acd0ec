package setting

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/igolaizola/sonicarch/pkg/credential"
	"github.com/igolaizola/sonicarch/pkg/logger"
	"github.com/igolaizola/sonicarch/pkg/storage"
)

type Config struct {
	Debug  bool
	DBType string
	DBConn string
	Log    logger.Config

	Service string
	Account string
	Type    string
	Value   string
	Clear   bool
	List    bool
}

// Run stores, clears or lists settings. The api key slot is the one read by the
// generation commands.
func Run(ctx context.Context, cfg *Config) error {
	if cfg.Debug {
		cfg.Log.Level = "debug"
	}
	log, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("setting: couldn't create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Service == "" {
		cfg.Service = credential.Provider
	}
	if cfg.Account == "" {
		cfg.Account = credential.Account
	}
	switch cfg.Type {
	case "apikey":
	default:
		return fmt.Errorf("setting: unknown type: %s", cfg.Type)
	}
	switch cfg.Service {
	case credential.Provider:
	default:
		return fmt.Errorf("setting: unknown service: %s", cfg.Service)
	}
	if cfg.Value == "" && !cfg.Clear && !cfg.List {
		return fmt.Errorf("setting: value is empty")
	}

	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug, log)
	if err != nil {
		return fmt.Errorf("setting: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("setting: couldn't start orm store: %w", err)
	}
	defer func() { _ = store.Stop() }()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("setting: couldn't migrate orm store: %w", err)
	}

	if cfg.List {
		return list(ctx, os.Stdout, store, cfg.Service)
	}

	resolver := credential.NewResolver(store.NewKeyStore(cfg.Service, cfg.Account), nil)
	if cfg.Clear {
		if err := resolver.Clear(ctx); err != nil {
			return fmt.Errorf("setting: couldn't clear %s: %w", cfg.Type, err)
		}
		log.Info("setting: cleared")
		return nil
	}
	if err := resolver.Save(ctx, cfg.Value); err != nil {
		return fmt.Errorf("setting: couldn't save %s: %w", cfg.Type, err)
	}
	log.Info("setting: saved")
	return nil
}

const pageSize = 100

// list prints the stored settings of a service with their values masked.
func list(ctx context.Context, w io.Writer, store *storage.Store, service string) error {
	for page := 1; ; page++ {
		settings, err := store.ListSettings(ctx, page, pageSize, storage.Where("id LIKE ?", service+"/%"))
		if err != nil {
			return fmt.Errorf("setting: couldn't list settings: %w", err)
		}
		for _, s := range settings {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, mask(s.Value), s.UpdatedAt.Format("2006-01-02 15:04:05")); err != nil {
				return err
			}
		}
		if len(settings) < pageSize {
			return nil
		}
	}
}

// mask hides all but the first and last four characters of long values.
func mask(v string) string {
	if len(v) <= 8 {
		return strings.Repeat("*", len(v))
	}
	return v[:4] + strings.Repeat("*", len(v)-8) + v[len(v)-4:]
}
