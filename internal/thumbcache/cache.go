package thumbcache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var bucketDocuments = []byte("documents")

// ErrNotFound is returned by Get for keys without a thumbnail.
var ErrNotFound = errors.New("thumbnail not found")

// Cache is a persistent thumbnail store.
type Cache struct {
	db *bbolt.DB
}

// Open opens or creates the cache file at path.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure thumbnail directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open thumbnail cache: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDocuments)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init thumbnail cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the database file.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Put stores a thumbnail for the document.
func (c *Cache) Put(doc uuid.UUID, key string, data []byte) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket(bucketDocuments).CreateBucketIfNotExists(docKey(doc))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// Get returns a copy of the stored thumbnail.
func (c *Cache) Get(doc uuid.UUID, key string) ([]byte, error) {
	var out []byte
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments).Bucket(docKey(doc))
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

// Keys lists the stored thumbnail keys of a document in byte order.
func (c *Cache) Keys(doc uuid.UUID) ([]string, error) {
	var keys []string
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments).Bucket(docKey(doc))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Clear drops every thumbnail of the document.
func (c *Cache) Clear(doc uuid.UUID) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket(bucketDocuments).DeleteBucket(docKey(doc))
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

// Retain deletes the document's thumbnails whose key is not in keep and
// returns how many were removed.
func (c *Cache) Retain(doc uuid.UUID, keep []string) (int, error) {
	wanted := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		wanted[k] = struct{}{}
	}
	removed := 0
	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments).Bucket(docKey(doc))
		if b == nil {
			return nil
		}
		var drop [][]byte
		if err := b.ForEach(func(k, _ []byte) error {
			if _, ok := wanted[string(k)]; !ok {
				drop = append(drop, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range drop {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(drop)
		return nil
	})
	return removed, err
}

func docKey(doc uuid.UUID) []byte {
	return []byte(doc.String())
}
