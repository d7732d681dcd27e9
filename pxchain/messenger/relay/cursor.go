/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package relay

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var cursorBucket = []byte("cursors")

// CursorStore persists the last delivered sequence number of each route, so a restarted
// relay resumes where it stopped. A cursor only moves after the message at that
// sequence number was delivered or reported as failed.
type CursorStore struct {
	db *bolt.DB
}

// OpenCursorStore opens or creates the cursor database at path.
func OpenCursorStore(path string) (*CursorStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open cursor db %v", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cursorBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create cursor bucket")
	}
	return &CursorStore{db: db}, nil
}

// Get returns the cursor of route, 0 if none was stored.
func (s *CursorStore) Get(route string) (uint64, error) {
	var seq uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(cursorBucket).Get([]byte(route))
		if v == nil {
			return nil
		}
		if len(v) != 8 {
			return errors.Errorf("corrupt cursor for %v", route)
		}
		seq = binary.BigEndian.Uint64(v)
		return nil
	})
	return seq, err
}

// Put stores the cursor of route.
func (s *CursorStore) Put(route string, seq uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		v := make([]byte, 8)
		binary.BigEndian.PutUint64(v, seq)
		return tx.Bucket(cursorBucket).Put([]byte(route), v)
	})
}

// All returns every stored cursor.
func (s *CursorStore) All() (map[string]uint64, error) {
	cursors := map[string]uint64{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(cursorBucket).ForEach(func(k, v []byte) error {
			if len(v) == 8 {
				cursors[string(k)] = binary.BigEndian.Uint64(v)
			}
			return nil
		})
	})
	return cursors, err
}

// Close closes the database.
func (s *CursorStore) Close() error {
	return s.db.Close()
}
