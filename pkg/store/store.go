// Package store persists exploration history across sessions. It is a
// thin layer over a bbolt database: visits live in a bucket keyed by
// big-endian sequence numbers, bookmarks in a bucket keyed by name.
package store

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	bucketVisit    = "visit"
	bucketBookmark = "bookmark"
)

var initDB = map[string]func(tx *bolt.Tx) error{
	"initialize visit history bucket": func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketVisit))
		return err
	},
	"initialize bookmark bucket": func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketBookmark))
		return err
	},
}

// Store is the persistent exploration history.
type Store struct {
	db *bolt.DB
}

// Open opens the store at path, creating the database if necessary. The
// open fails after one second if another process holds the file lock.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	return NewStore(db)
}

// NewStore wraps an already open bbolt database, initializing buckets.
func NewStore(db *bolt.DB) (*Store, error) {
	st := &Store{db}
	err := db.Update(func(tx *bolt.Tx) error {
		for name, fn := range initDB {
			if err := fn(tx); err != nil {
				return fmt.Errorf("failed to %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Close releases the database file.
func (s *Store) Close() error { return s.db.Close() }
