package credential

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Source tells where a key was found.
type Source string

const (
	Stored      Source = "stored"
	Environment Source = "env"
)

// Provider and Account name the stored key slot.
const (
	Provider = "gemini"
	Account  = "default"
)

// EnvKeys are the environment variables checked for a deployment key, in
// order.
var EnvKeys = []string{"SONICARCH_API_KEY", "API_KEY"}

// Credentials are resolved once per call and passed to the compiler.
type Credentials struct {
	APIKey string
	Source Source
}

// KeyStore persists the user configured key.
type KeyStore interface {
	GetKey(ctx context.Context) (string, error)
	SetKey(ctx context.Context, key string) error
	DeleteKey(ctx context.Context) error
}

// Resolver looks up the key in the key store first and then in the
// environment.
type Resolver struct {
	store  KeyStore
	getenv func(string) string
}

func NewResolver(store KeyStore, getenv func(string) string) *Resolver {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Resolver{
		store:  store,
		getenv: getenv,
	}
}

// Resolve returns the current credentials. A missing key is not an error, the
// returned credentials are just empty.
func (r *Resolver) Resolve(ctx context.Context) (Credentials, error) {
	if r.store != nil {
		key, err := r.store.GetKey(ctx)
		if err != nil {
			return Credentials{}, fmt.Errorf("credential: couldn't get stored key: %w", err)
		}
		if key = strings.TrimSpace(key); key != "" {
			return Credentials{APIKey: key, Source: Stored}, nil
		}
	}
	for _, k := range EnvKeys {
		if v := strings.TrimSpace(r.getenv(k)); v != "" {
			return Credentials{APIKey: v, Source: Environment}, nil
		}
	}
	return Credentials{}, nil
}

// Save stores the trimmed key. An empty key clears the stored one.
func (r *Resolver) Save(ctx context.Context, key string) error {
	if r.store == nil {
		return fmt.Errorf("credential: no key store configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return r.Clear(ctx)
	}
	if err := r.store.SetKey(ctx, key); err != nil {
		return fmt.Errorf("credential: couldn't save key: %w", err)
	}
	return nil
}

// Clear removes the stored key.
func (r *Resolver) Clear(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.DeleteKey(ctx); err != nil {
		return fmt.Errorf("credential: couldn't clear key: %w", err)
	}
	return nil
}

// LoadEnv loads deployment variables from the given dotenv files. Missing files
// are ignored; with no paths ".env" is tried.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("credential: couldn't load %s: %w", p, err)
		}
	}
	return nil
}
