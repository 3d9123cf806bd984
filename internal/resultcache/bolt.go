package resultcache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var bucketResults = []byte("results")

// Bolt is a durable single-file backend on bbolt.
type Bolt struct {
	db *bbolt.DB
}

// OpenBolt opens or creates a bolt result cache at path.
func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketResults)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

// Acquire returns a connection sharing the underlying database handle.
func (b *Bolt) Acquire() (Conn, error) {
	return boltConn{db: b.db}, nil
}

// Close closes the database file.
func (b *Bolt) Close() error {
	return b.db.Close()
}

type boltConn struct {
	db *bbolt.DB
}

func (c boltConn) Get(key string) ([]byte, bool, error) {
	var value []byte
	found := false
	err := c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketResults).Get([]byte(key))
		if v != nil {
			// v is only valid inside the transaction.
			value = append([]byte{}, v...)
			found = true
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("bolt get: %w", err)
	}
	return value, found, nil
}

func (c boltConn) Set(key string, value []byte) error {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketResults)
		if b.Get([]byte(key)) != nil {
			return nil
		}
		return b.Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("bolt set: %w", err)
	}
	return nil
}

func (c boltConn) Close() error { return nil }
