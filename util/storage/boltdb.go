package storage

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"github.com/boltdb/bolt"
	"time"
)

// Buckets in the deposit database.
const (
	ServicesBucket       = "services"
	DepositRecordsBucket = "deposit_records"
)

var allBuckets = []string{ServicesBucket, DepositRecordsBucket}

// BoltDB represents a bolt database, which is a single-file key-value
// store. swordv3_service owns the only open handle to the file: bolt
// holds an exclusive lock on it, so the worker processes reach the
// data through the service's HTTP API instead of opening it
// themselves. Values are gob-encoded.
type BoltDB struct {
	db       *bolt.DB
	filePath string
}

// NewBoltDB opens a bolt database, creating the DB file if it doesn't
// already exist. Open gives up after one second if another process
// holds the lock.
func NewBoltDB(filePath string) (boltDB *BoltDB, err error) {
	db, err := bolt.Open(filePath, 0644, &bolt.Options{Timeout: 1 * time.Second})
	if err == nil {
		boltDB = &BoltDB{
			db:       db,
			filePath: filePath,
		}
		err = boltDB.initBuckets()
	}
	return boltDB, err
}

func (boltDB *BoltDB) initBuckets() error {
	return boltDB.db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			_, err := tx.CreateBucketIfNotExists([]byte(name))
			if err != nil {
				return fmt.Errorf("Error creating %s bucket: %s", name, err)
			}
		}
		return nil
	})
}

// FilePath returns the path to the bolt DB file.
func (boltDB *BoltDB) FilePath() string {
	return boltDB.filePath
}

// Close closes the bolt database.
func (boltDB *BoltDB) Close() {
	boltDB.db.Close()
}

// Save saves a value to the named bucket.
func (boltDB *BoltDB) Save(bucketName, key string, value interface{}) error {
	data, err := Encode(value)
	if err != nil {
		return err
	}
	return boltDB.db.Update(func(tx *bolt.Tx) error {
		bucket, err := getBucket(tx, bucketName)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), data)
	})
}

// Get decodes the value stored under key into value, which must be
// a pointer. It returns false and no error if key is not found.
func (boltDB *BoltDB) Get(bucketName, key string, value interface{}) (found bool, err error) {
	err = boltDB.db.View(func(tx *bolt.Tx) error {
		bucket, err := getBucket(tx, bucketName)
		if err != nil {
			return err
		}
		data := bucket.Get([]byte(key))
		if len(data) == 0 {
			return nil
		}
		found = true
		return Decode(data, value)
	})
	return found, err
}

// Update performs an atomic read-modify-write of one key. The
// stored value, if any, is decoded into value, then fn is called
// with found set accordingly. If fn returns true, value is written
// back in the same transaction. Bolt allows one writer at a time,
// so concurrent updates to any keys are serialized and none is lost.
func (boltDB *BoltDB) Update(bucketName, key string, value interface{}, fn func(found bool) (bool, error)) error {
	return boltDB.db.Update(func(tx *bolt.Tx) error {
		bucket, err := getBucket(tx, bucketName)
		if err != nil {
			return err
		}
		found := false
		if data := bucket.Get([]byte(key)); len(data) > 0 {
			if err := Decode(data, value); err != nil {
				return err
			}
			found = true
		}
		write, err := fn(found)
		if err != nil || !write {
			return err
		}
		data, err := Encode(value)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), data)
	})
}

// Delete removes key from the named bucket. Deleting a missing key
// is not an error.
func (boltDB *BoltDB) Delete(bucketName, key string) error {
	return boltDB.db.Update(func(tx *bolt.Tx) error {
		bucket, err := getBucket(tx, bucketName)
		if err != nil {
			return err
		}
		return bucket.Delete([]byte(key))
	})
}

// ForEach calls the specified function for each key in the named
// bucket, in key order. Use Decode to unpack v.
func (boltDB *BoltDB) ForEach(bucketName string, fn func(k, v []byte) error) error {
	return boltDB.db.View(func(tx *bolt.Tx) error {
		bucket, err := getBucket(tx, bucketName)
		if err != nil {
			return err
		}
		return bucket.ForEach(fn)
	})
}

// ForEachWithPrefix is ForEach limited to keys that start with prefix.
func (boltDB *BoltDB) ForEachWithPrefix(bucketName, prefix string, fn func(k, v []byte) error) error {
	return boltDB.db.View(func(tx *bolt.Tx) error {
		bucket, err := getBucket(tx, bucketName)
		if err != nil {
			return err
		}
		c := bucket.Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			if err := fn(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Encode gob-encodes value.
func Encode(value interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := gob.NewEncoder(buf).Encode(value)
	return buf.Bytes(), err
}

// Decode gob-decodes data into value, which must be a pointer.
func Decode(data []byte, value interface{}) error {
	return gob.NewDecoder(bytes.NewBuffer(data)).Decode(value)
}

func getBucket(tx *bolt.Tx, name string) (*bolt.Bucket, error) {
	bucket := tx.Bucket([]byte(name))
	if bucket == nil {
		return nil, fmt.Errorf("Bucket %s does not exist", name)
	}
	return bucket, nil
}
