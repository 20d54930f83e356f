// Package cache stores parsed per-gene results in a bolt database so
// that reruns over large batches skip parsing.
package cache

import (
	"encoding/json"

	"github.com/op/go-logging"

	bolt "go.etcd.io/bbolt"
)

// log is the global logging variable.
var log = logging.MustGetLogger("cache")

// MAIN is the bucket name for all cached genes.
var MAIN = []byte("genes")

// Cache is a bolt-backed cache of parsed gene results. A nil database
// disables caching: Get misses and Put is a no-op.
type Cache struct {
	db *bolt.DB
}

// New creates a Cache on top of db; db may be nil.
func New(db *bolt.DB) *Cache {
	return &Cache{db: db}
}

// Get loads the cached value for a gene into v. It returns false on a
// cache miss.
func (c *Cache) Get(gene string, v interface{}) (bool, error) {
	b, err := LoadData(c.db, []byte(gene))
	if err != nil || b == nil {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		// a stale or truncated entry is a miss, not a failure
		log.Warningf("Discarding unreadable cache entry for %s: %v", gene, err)
		return false, nil
	}
	log.Debugf("Cache hit for %s", gene)
	return true, nil
}

// Put stores the value for a gene.
func (c *Cache) Put(gene string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("Error serializing cache entry", err)
		return err
	}
	err = SaveData(c.db, []byte(gene), data)
	if err != nil {
		log.Error("Error saving cache entry", err)
	}
	return err
}

// SaveData saves values in bolt database.
func SaveData(db *bolt.DB, key []byte, data []byte) error {
	if db == nil {
		return nil
	}
	err := db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(MAIN)
		if err != nil {
			return err
		}

		err = b.Put(key, data)
		return err
	})
	return err
}

// LoadData loads data from bolt database.
func LoadData(db *bolt.DB, key []byte) ([]byte, error) {
	var data []byte
	if db == nil {
		return nil, nil
	}
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(MAIN)
		if b == nil {
			return nil
		}

		v := b.Get(key)
		if v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
