package storage

import (
	"context"
	"errors"
	"fmt"
)

// NewKeyStore returns a store for the api key of a provider account.
func (s *Store) NewKeyStore(provider, account string) *KeyStore {
	return &KeyStore{
		store:    s,
		provider: provider,
		account:  account,
	}
}

type KeyStore struct {
	store    *Store
	provider string
	account  string
}

func (k *KeyStore) id() string {
	return fmt.Sprintf("%s/%s/apikey", k.provider, k.account)
}

// GetKey returns the saved key or an empty string if there is none.
func (k *KeyStore) GetKey(ctx context.Context) (string, error) {
	setting, err := k.store.GetSetting(ctx, k.id())
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (k *KeyStore) SetKey(ctx context.Context, key string) error {
	return k.store.SetSetting(ctx, &Setting{
		ID:    k.id(),
		Value: key,
	})
}

func (k *KeyStore) DeleteKey(ctx context.Context) error {
	return k.store.DeleteSetting(ctx, k.id())
}
