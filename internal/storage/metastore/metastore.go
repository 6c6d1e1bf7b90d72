// Package metastore implements storage.MetaStore and storage.SecretStore
// over a local go.etcd.io/bbolt embedded database. Each table named by the
// interfaces (pipelines, discovery_sessions, insight_sessions, secrets) maps
// to one bucket; values are opaque byte slices, marshaled by the caller.
package metastore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/latticeforge/veridian/internal/storage"
)

// Config holds the arguments needed to open the embedded metadata store.
type Config struct {
	// DataDir is the directory the database file lives in. It is created
	// if it doesn't already exist.
	DataDir string

	// FileName is the name of the database file within DataDir. Defaults
	// to "veridian-meta.db".
	FileName string
}

func (c Config) path() string {
	name := c.FileName
	if name == "" {
		name = "veridian-meta.db"
	}
	return filepath.Join(c.DataDir, name)
}

var knownTables = []string{
	"pipelines", "discovery_sessions", "insight_sessions", "node",
}

// NodeIDKey is the "node" table key the daemon persists its generated
// NodeID under, so a restart with an empty configured NodeID reuses the
// same identity instead of rejoining the cluster as a stranger.
const NodeIDKey = "node_id"

const secretsBucket = "secrets"

// rianAPIKeySecretKey is the one secret the original system names
// explicitly.
const rianAPIKeySecretKey = "rian_api_key"

// Store is a bbolt-backed storage.MetaStore.
type Store struct {
	cfg Config
	db  *bolt.DB
	log *slog.Logger

	// secrets is the companion storage.SecretStore sharing this Store's
	// bbolt handle; only one file descriptor is held per opened
	// database.
	secrets *SecretBox
}

var _ storage.MetaStore = (*Store)(nil)

// Open creates the containing directory if needed and opens (or creates)
// the bbolt database, ensuring every known table and the secrets bucket
// exist.
func Open(cfg Config, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating metastore dir: %w", err)
	}

	db, err := bolt.Open(cfg.path(), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening metastore db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, table := range knownTables {
			if _, err := tx.CreateBucketIfNotExists(
				[]byte(table),
			); err != nil {
				return fmt.Errorf(
					"creating bucket %s: %w", table, err,
				)
			}
		}

		_, err := tx.CreateBucketIfNotExists([]byte(secretsBucket))
		if err != nil {
			return fmt.Errorf("creating secrets bucket: %w", err)
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Info("metastore opened", "path", cfg.path())

	return &Store{
		cfg:     cfg,
		db:      db,
		log:     log,
		secrets: &SecretBox{db: db},
	}, nil
}

// Secrets returns the storage.SecretStore sharing this Store's underlying
// database handle.
func (s *Store) Secrets() *SecretBox {
	return s.secrets
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	s.log.Info("metastore closing", "path", s.cfg.path())
	return s.db.Close()
}

// Get returns the value stored under key in table, along with whether it
// was found.
func (s *Store) Get(
	_ context.Context, table, key string,
) ([]byte, bool, error) {

	var (
		value []byte
		found bool
	)

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return fmt.Errorf("unknown table %q", table)
		}

		if v := b.Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
			found = true
		}

		return nil
	})

	return value, found, err
}

// Set writes value under key in table.
func (s *Store) Set(_ context.Context, table, key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return fmt.Errorf("unknown table %q", table)
		}

		return b.Put([]byte(key), value)
	})
}

// Delete removes key from table, if present.
func (s *Store) Delete(_ context.Context, table, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return fmt.Errorf("unknown table %q", table)
		}

		return b.Delete([]byte(key))
	})
}

// List returns every key/value pair in table.
func (s *Store) List(
	_ context.Context, table string,
) (map[string][]byte, error) {

	out := make(map[string][]byte)

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return fmt.Errorf("unknown table %q", table)
		}

		return b.ForEach(func(k, v []byte) error {
			out[string(k)] = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
