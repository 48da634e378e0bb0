package store

import (
	"errors"

	bolt "go.etcd.io/bbolt"
)

// ErrNoBookmark is returned when the named bookmark does not exist.
var ErrNoBookmark = errors.New("no such bookmark")

// Bookmark returns the expression saved under name.
func (s *Store) Bookmark(name string) (string, error) {
	var expr string
	err := s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket([]byte(bucketBookmark)).Get([]byte(name))
		if value == nil {
			return ErrNoBookmark
		}
		expr = string(value)
		return nil
	})
	return expr, err
}

// SetBookmark saves expr under name, replacing any previous value.
func (s *Store) SetBookmark(name, expr string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketBookmark)).Put([]byte(name), []byte(expr))
	})
}

// DelBookmark removes the named bookmark. Removing an absent bookmark
// is not an error.
func (s *Store) DelBookmark(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketBookmark)).Delete([]byte(name))
	})
}

// Bookmarks returns all bookmarks as a name to expression map.
func (s *Store) Bookmarks() (map[string]string, error) {
	bookmarks := make(map[string]string)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketBookmark)).ForEach(func(k, v []byte) error {
			bookmarks[string(k)] = string(v)
			return nil
		})
	})
	return bookmarks, err
}
