package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/igolaizola/sonicarch/pkg/credential"
	"github.com/igolaizola/sonicarch/pkg/logger"
	"github.com/igolaizola/sonicarch/pkg/metrics"
	"github.com/igolaizola/sonicarch/pkg/openai"
	"github.com/igolaizola/sonicarch/pkg/prompt"
	"github.com/igolaizola/sonicarch/pkg/session"
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

	Addr        string
	Credentials map[string]string
	SessionTTL  time.Duration
}

// Serve starts the songwriting api server.
func Serve(ctx context.Context, cfg *Config) error {
	if cfg.Debug {
		cfg.Log.Level = "debug"
	}
	log, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("web: couldn't create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("web: server started")
	defer log.Info("web: server ended")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug, log)
	if err != nil {
		return fmt.Errorf("web: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("web: couldn't start orm store: %w", err)
	}
	defer func() { _ = store.Stop() }()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("web: couldn't migrate orm store: %w", err)
	}

	resolver := credential.NewResolver(store.NewKeyStore(credential.Provider, credential.Account), os.Getenv)
	client := openai.New(&openai.Config{
		Debug:   cfg.Debug,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Client:  &http.Client{Timeout: cfg.Timeout},
		Logger:  log,
	})
	compiler := prompt.New(client, log)
	sessions := session.NewManager(compiler, resolver, log)

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	go sessions.Expire(ctx, time.Minute, ttl)

	handler := NewHandler(&Options{
		Sessions:    sessions,
		Keys:        resolver,
		Pinger:      client,
		Metrics:     metrics.New(),
		Logger:      log,
		Debug:       cfg.Debug,
		Credentials: cfg.Credentials,
		Timeout:     cfg.Timeout + time.Minute,
	})

	// Create server
	split := strings.Split(cfg.Addr, ":")
	if len(split) != 2 {
		return fmt.Errorf("web: invalid address: %s", cfg.Addr)
	}
	host := split[0]
	port, err := strconv.Atoi(split[1])
	if err != nil {
		return fmt.Errorf("web: invalid port: %s", split[1])
	}
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		note := fmt.Sprintf("http://%s:%d", host, port)
		if host == "" {
			note = fmt.Sprintf("all interfaces http://localhost:%d", port)
		}
		log.Info("web: listening", zap.String("addr", note))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("web: couldn't start server", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web: couldn't shutdown server: %w", err)
	}
	return nil
}
