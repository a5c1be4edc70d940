package snapshot

import (
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var snapshotBucket = []byte("snapshots")

// BoltStore persists one compressed snapshot blob per pair in its own
// bbolt bucket, separate from the journal's per-pair event buckets.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore uses the already-open db, creating the snapshots bucket in
// it if absent; it does not open a database of its own.
func NewBoltStore(db *bolt.DB) (*BoltStore, error) {
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotBucket)
		return err
	}); err != nil {
		return nil, fmt.Errorf("snapshot: init bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Save(_ context.Context, pair string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotBucket).Put([]byte(pair), data)
	})
}

func (s *BoltStore) Load(_ context.Context, pair string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(snapshotBucket).Get([]byte(pair))
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}
