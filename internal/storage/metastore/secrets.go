package metastore

import (
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/latticeforge/veridian/internal/storage"
)

// SecretBox is a bbolt-backed storage.SecretStore, scoped to the secrets
// bucket of a Store's database. Obtain one via Store.Secrets rather than
// constructing directly, so it shares the owning Store's open handle.
type SecretBox struct {
	db *bolt.DB
}

var _ storage.SecretStore = (*SecretBox)(nil)

// Get returns the value stored under key, along with whether it was found.
func (b *SecretBox) Get(_ context.Context, key string) ([]byte, bool, error) {
	var (
		value []byte
		found bool
	)

	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(secretsBucket))
		if bucket == nil {
			return fmt.Errorf("secrets bucket not initialized")
		}

		if v := bucket.Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
			found = true
		}

		return nil
	})

	return value, found, err
}

// Set writes value under key.
func (b *SecretBox) Set(_ context.Context, key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(secretsBucket))
		if bucket == nil {
			return fmt.Errorf("secrets bucket not initialized")
		}

		return bucket.Put([]byte(key), value)
	})
}

// Delete removes key, if present.
func (b *SecretBox) Delete(_ context.Context, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(secretsBucket))
		if bucket == nil {
			return fmt.Errorf("secrets bucket not initialized")
		}

		return bucket.Delete([]byte(key))
	})
}

// GetRianAPIKey returns the configured Rian API key, if one has been set.
func (b *SecretBox) GetRianAPIKey(ctx context.Context) (string, bool, error) {
	v, found, err := b.Get(ctx, rianAPIKeySecretKey)
	if err != nil || !found {
		return "", found, err
	}

	return string(v), true, nil
}

// SetRianAPIKey stores the Rian API key.
func (b *SecretBox) SetRianAPIKey(ctx context.Context, key string) error {
	return b.Set(ctx, rianAPIKeySecretKey, []byte(key))
}
