package compose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/igolaizola/sonicarch/pkg/arrangement"
	"github.com/igolaizola/sonicarch/pkg/credential"
	"github.com/igolaizola/sonicarch/pkg/logger"
	"github.com/igolaizola/sonicarch/pkg/openai"
	"github.com/igolaizola/sonicarch/pkg/prompt"
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

	Input        string
	Output       string
	Format       string
	DryRun       bool
	ModelVersion string

	Topic              string
	Mood               string
	Genre              string
	Instrumental       bool
	CustomInstructions string
}

// Run compiles a prompt from an arrangement file, or from the inspiration
// flags when no input is given, and prints the result.
func Run(ctx context.Context, cfg *Config) error {
	if cfg.Debug {
		cfg.Log.Level = "debug"
	}
	log, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("compose: couldn't create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	req, err := request(cfg)
	if err != nil {
		return err
	}

	if cfg.DryRun {
		system, user, err := prompt.Render(req)
		if err != nil {
			return fmt.Errorf("compose: couldn't render prompt: %w", err)
		}
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "=== SYSTEM ===\n%s\n=== USER ===\n%s", system, user)
		return write(cfg.Output, buf.Bytes())
	}

	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug, log)
	if err != nil {
		return fmt.Errorf("compose: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("compose: couldn't start orm store: %w", err)
	}
	defer func() { _ = store.Stop() }()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("compose: couldn't migrate orm store: %w", err)
	}
	resolver := credential.NewResolver(store.NewKeyStore(credential.Provider, credential.Account), os.Getenv)
	creds, err := resolver.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("compose: %w", err)
	}

	client := openai.New(&openai.Config{
		Debug:   cfg.Debug,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Client:  &http.Client{Timeout: cfg.Timeout},
		Logger:  log,
	})
	compiler := prompt.New(client, log)

	log.Info("compose: generation started", zap.String("mode", string(req.Mode)), zap.String("model", client.Model()))
	res, err := compiler.Compile(ctx, creds, req)
	if err != nil {
		return fmt.Errorf("compose: couldn't compile prompt: %w", err)
	}
	log.Info("compose: generation ended", zap.String("title", res.Title))
	var buf bytes.Buffer
	if err := Print(&buf, cfg.Format, res); err != nil {
		return err
	}
	return write(cfg.Output, buf.Bytes())
}

// write sends the output to the given file, or to stdout when empty. The file
// is only created once there is something to write.
func write(output string, b []byte) error {
	if output == "" {
		_, err := os.Stdout.Write(b)
		return err
	}
	if err := os.WriteFile(output, b, 0644); err != nil {
		return fmt.Errorf("compose: couldn't write output file: %w", err)
	}
	return nil
}

func request(cfg *Config) (*prompt.Request, error) {
	switch cfg.Format {
	case "", "text", "json":
	default:
		return nil, fmt.Errorf("compose: unsupported format: %s", cfg.Format)
	}
	var req *prompt.Request
	if cfg.Input != "" {
		r, err := arrangement.Load(cfg.Input)
		if err != nil {
			return nil, fmt.Errorf("compose: %w", err)
		}
		req = r
		if cfg.CustomInstructions != "" {
			req.CustomInstructions = cfg.CustomInstructions
		}
	} else {
		if cfg.Topic == "" {
			return nil, fmt.Errorf("compose: input file or topic required")
		}
		req = prompt.NewInspiration(cfg.Topic, cfg.Mood, cfg.Genre, cfg.Instrumental, cfg.CustomInstructions)
	}
	if cfg.ModelVersion != "" {
		v, err := prompt.ParseModelVersion(cfg.ModelVersion)
		if err != nil {
			return nil, fmt.Errorf("compose: %w", err)
		}
		req.ModelVersion = v
	}
	return req, nil
}

// Print writes the result as plain text or json.
func Print(w io.Writer, format string, res *prompt.Result) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("compose: couldn't encode result: %w", err)
		}
		return nil
	case "", "text":
	default:
		return fmt.Errorf("compose: unsupported format: %s", format)
	}
	_, err := fmt.Fprintf(w, "Title:\n%s\n\nStyle:\n%s\n\nLyrics:\n%s\n\nNotes:\n%s\n",
		res.Title, res.StylePrompt, res.Lyrics, res.Explanation)
	if err != nil {
		return err
	}
	if res.StyleDescription != "" {
		_, err = fmt.Fprintf(w, "\nDescription:\n%s\n", res.StyleDescription)
	}
	return err
}
