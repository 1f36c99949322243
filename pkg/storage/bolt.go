package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DefaultBoltBucket is the bucket that holds all slots.
const DefaultBoltBucket = "memval"

// BoltStoreConfig configures a BoltStore.
type BoltStoreConfig struct {
	// Path is the database file. Required.
	Path string

	// Bucket holds the slots. Default: DefaultBoltBucket.
	Bucket string

	// OpenTimeout bounds waiting for the file lock held by another process.
	// Default: 1 second.
	OpenTimeout time.Duration
}

var _ Store = (*BoltStore)(nil)

// BoltStore is a Store backed by a single bbolt database file.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
}

// NewBoltStore opens (or creates) the database at config.Path.
func NewBoltStore(config BoltStoreConfig) (*BoltStore, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("bolt store: path is required")
	}
	if config.Bucket == "" {
		config.Bucket = DefaultBoltBucket
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = time.Second
	}

	db, err := bolt.Open(config.Path, 0o600, &bolt.Options{Timeout: config.OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("bolt store: could not open %s: %w", config.Path, err)
	}

	bucket := []byte(config.Bucket)
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt store: could not ensure bucket %q exists: %w", config.Bucket, err)
	}

	return &BoltStore{db: db, bucket: bucket}, nil
}

// Get returns the value stored at key.
func (b *BoltStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(b.bucket).Get([]byte(key))
		// Values are only valid for the life of the transaction.
		out = cloneBytes(v)
		return nil
	})
	if err != nil {
		return nil, b.wrap(err)
	}
	return out, nil
}

// Set stores value at key.
func (b *BoltStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}

	return b.wrap(b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(key), value)
	}))
}

// Delete removes key.
func (b *BoltStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.wrap(b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Delete([]byte(key))
	}))
}

// Close closes the database file.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

// Path returns the database file path.
func (b *BoltStore) Path() string {
	return b.db.Path()
}

// Destroy closes the store and removes its file.
func (b *BoltStore) Destroy() error {
	path := b.db.Path()

	if err := b.Close(); err != nil {
		return fmt.Errorf("bolt store: could not close store: %w", err)
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("bolt store: could not remove %s: %w", path, err)
	}
	return nil
}

func (b *BoltStore) wrap(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	return err
}
