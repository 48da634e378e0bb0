package store

import (
	"encoding/binary"
	"errors"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"
)

// ErrNoSuchVisit is returned when the requested sequence number has no
// visit, either because it was never issued or because it was deleted.
var ErrNoSuchVisit = errors.New("no such visit")

// ErrNoMatchingVisit is returned by NextVisit and PrevVisit when no
// visit in the walk direction matches the label prefix.
var ErrNoMatchingVisit = errors.New("no matching visit")

// Visit records one inspected object: the label shown in the explorer
// and the expression that reproduces it.
type Visit struct {
	Label string    `json:"label"`
	Expr  string    `json:"expr,omitempty"`
	At    time.Time `json:"at"`

	Seq int `json:"-"`
}

func marshalSeq(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func unmarshalSeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}

func unmarshalVisit(key, value []byte) (Visit, error) {
	var v Visit
	if err := json.Unmarshal(value, &v); err != nil {
		return Visit{}, err
	}
	v.Seq = int(unmarshalSeq(key))
	return v, nil
}

// NextVisitSeq returns the sequence number the next AddVisit will use.
func (s *Store) NextVisitSeq() (int, error) {
	var seq uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketVisit))
		// Sequence numbers are only ever observed, never reserved, so
		// peeking still needs a write transaction to stay monotonic.
		seq = b.Sequence() + 1
		return nil
	})
	return int(seq), err
}

// AddVisit appends a visit and returns its sequence number. A zero At
// is stamped with the current time.
func (s *Store) AddVisit(v Visit) (int, error) {
	if v.At.IsZero() {
		v.At = time.Now()
	}
	var seq uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketVisit))
		var err error
		seq, err = b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return b.Put(marshalSeq(seq), data)
	})
	return int(seq), err
}

// DelVisit removes the visit with the given sequence number. Deleting
// an absent visit is not an error.
func (s *Store) DelVisit(seq int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketVisit)).Delete(marshalSeq(uint64(seq)))
	})
}

// Visit returns the visit with the given sequence number.
func (s *Store) Visit(seq int) (Visit, error) {
	var v Visit
	err := s.db.View(func(tx *bolt.Tx) error {
		key := marshalSeq(uint64(seq))
		value := tx.Bucket([]byte(bucketVisit)).Get(key)
		if value == nil {
			return ErrNoSuchVisit
		}
		var err error
		v, err = unmarshalVisit(key, value)
		return err
	})
	return v, err
}

// IterateVisits calls f for each visit with from <= seq < upto, in
// ascending order. A negative upto means no upper bound.
func (s *Store) IterateVisits(from, upto int, f func(Visit)) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketVisit)).Cursor()
		for k, v := c.Seek(marshalSeq(uint64(from))); k != nil; k, v = c.Next() {
			if upto >= 0 && int(unmarshalSeq(k)) >= upto {
				break
			}
			visit, err := unmarshalVisit(k, v)
			if err != nil {
				return err
			}
			f(visit)
		}
		return nil
	})
}

// VisitsWithSeq returns visits with from <= seq < upto, in ascending
// order. A negative upto means no upper bound.
func (s *Store) VisitsWithSeq(from, upto int) ([]Visit, error) {
	var visits []Visit
	err := s.IterateVisits(from, upto, func(v Visit) {
		visits = append(visits, v)
	})
	return visits, err
}

// NextVisit returns the first visit with seq >= from whose label starts
// with prefix.
func (s *Store) NextVisit(from int, prefix string) (Visit, error) {
	var v Visit
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketVisit)).Cursor()
		for k, value := c.Seek(marshalSeq(uint64(from))); k != nil; k, value = c.Next() {
			visit, err := unmarshalVisit(k, value)
			if err != nil {
				return err
			}
			if strings.HasPrefix(visit.Label, prefix) {
				v = visit
				return nil
			}
		}
		return ErrNoMatchingVisit
	})
	return v, err
}

// PrevVisit returns the last visit with seq < upto whose label starts
// with prefix. A negative upto searches from the newest visit.
func (s *Store) PrevVisit(upto int, prefix string) (Visit, error) {
	var v Visit
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketVisit)).Cursor()
		var k, value []byte
		if upto < 0 {
			k, value = c.Last()
		} else {
			k, value = c.Seek(marshalSeq(uint64(upto)))
			if k == nil {
				k, value = c.Last()
			} else {
				k, value = c.Prev()
			}
		}
		for ; k != nil; k, value = c.Prev() {
			visit, err := unmarshalVisit(k, value)
			if err != nil {
				return err
			}
			if strings.HasPrefix(visit.Label, prefix) {
				v = visit
				return nil
			}
		}
		return ErrNoMatchingVisit
	})
	return v, err
}
