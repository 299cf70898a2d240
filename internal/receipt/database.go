package receipt

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	bucketName    = "receipts"
	collectionKey = "collection"
)

// CollectionStore defines durable storage for the whole receipt collection
type CollectionStore interface {
	// Load reads the full collection. A store that was never written returns an empty collection.
	Load() ([]Receipt, error)

	// Persist atomically replaces the stored collection
	Persist(receipts []Receipt) error

	// Close closes the underlying database
	Close() error
}

// encodeCollection serializes the collection as a single JSON array
func encodeCollection(receipts []Receipt) ([]byte, error) {
	if receipts == nil {
		receipts = []Receipt{}
	}
	data, err := json.Marshal(receipts)
	if err != nil {
		return nil, fmt.Errorf("marshaling receipts: %w", err)
	}
	return data, nil
}

// decodeCollection parses a stored JSON array, reporting ErrStorageCorrupt on failure
func decodeCollection(data []byte) ([]Receipt, error) {
	receipts := make([]Receipt, 0)
	if err := json.Unmarshal(data, &receipts); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling receipts: %v", ErrStorageCorrupt, err)
	}
	return receipts, nil
}

// BoltDB implements CollectionStore using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// Load reads the stored collection
func (b *BoltDB) Load() ([]Receipt, error) {
	var receipts []Receipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			receipts = []Receipt{}
			return nil
		}
		data := bucket.Get([]byte(collectionKey))
		if data == nil {
			receipts = []Receipt{}
			return nil
		}
		var err error
		receipts, err = decodeCollection(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// Persist rewrites the stored collection in a single transaction
func (b *BoltDB) Persist(receipts []Receipt) error {
	data, err := encodeCollection(receipts)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return fmt.Errorf("opening bucket: %w", err)
		}
		return bucket.Put([]byte(collectionKey), data)
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
