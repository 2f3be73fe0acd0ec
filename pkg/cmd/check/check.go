package check

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/igolaizola/sonicarch/pkg/credential"
	"github.com/igolaizola/sonicarch/pkg/logger"
	"github.com/igolaizola/sonicarch/pkg/openai"
	"github.com/igolaizola/sonicarch/pkg/storage"
	"go.uber.org/zap"
)

type Config struct {
	Debug  bool
	DBType string
	DBConn string
	Log    logger.Config

	BaseURL string
	Model   string
	Timeout time.Duration
	Key     string
}

// Run checks that the api key is accepted by the model provider. The key
// flag takes precedence over the configured one.
func Run(ctx context.Context, cfg *Config) error {
	if cfg.Debug {
		cfg.Log.Level = "debug"
	}
	log, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("check: couldn't create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	key := cfg.Key
	source := credential.Source("flag")
	if key == "" {
		store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug, log)
		if err != nil {
			return fmt.Errorf("check: couldn't create orm store: %w", err)
		}
		if err := store.Start(ctx); err != nil {
			return fmt.Errorf("check: couldn't start orm store: %w", err)
		}
		defer func() { _ = store.Stop() }()
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("check: couldn't migrate orm store: %w", err)
		}
		resolver := credential.NewResolver(store.NewKeyStore(credential.Provider, credential.Account), os.Getenv)
		creds, err := resolver.Resolve(ctx)
		if err != nil {
			return fmt.Errorf("check: %w", err)
		}
		if creds.APIKey == "" {
			return fmt.Errorf("check: api key not configured")
		}
		key, source = creds.APIKey, creds.Source
	}

	client := openai.New(&openai.Config{
		Debug:   cfg.Debug,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Client:  &http.Client{Timeout: cfg.Timeout},
		Logger:  log,
	})
	if err := client.Ping(ctx, key); err != nil {
		return fmt.Errorf("check: key from %s rejected: %w", source, err)
	}
	log.Info("check: api key is valid", zap.String("source", string(source)), zap.String("model", client.Model()))
	return nil
}
