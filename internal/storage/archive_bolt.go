package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/maxbolgarin/errm"
	bolt "go.etcd.io/bbolt"
)

const boltDumpBucket = "dumps"

// BoltArchive stores graph dumps inside a BoltDB file, one bucket per
// repository.
type BoltArchive struct {
	db   *bolt.DB
	once sync.Once
}

// NewBoltArchive opens (or creates) a BoltDB archive at the provided path.
func NewBoltArchive(path string) (*BoltArchive, error) {
	db, err := openBolt(path)
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltDumpBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errm.Wrap(err, "create archive bucket")
	}

	return &BoltArchive{db: db}, nil
}

// openBolt creates the parent directory and opens the file.
func openBolt(path string) (*bolt.DB, error) {
	if path == "" {
		return nil, errm.New("bolt path is required")
	}

	cleaned := filepath.Clean(path)
	if dir := filepath.Dir(cleaned); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errm.Wrap(err, "create bolt directory")
		}
	}

	db, err := bolt.Open(cleaned, 0o600, nil)
	if err != nil {
		return nil, errm.Wrap(err, "open bolt "+cleaned)
	}
	return db, nil
}

// Store writes a dump under repo/key.
func (a *BoltArchive) Store(ctx context.Context, repo, key string, data []byte) error {
	if repo == "" || key == "" {
		return &ValidationError{Message: "repo and key are required"}
	}
	return a.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		repoBucket, err := tx.Bucket([]byte(boltDumpBucket)).CreateBucketIfNotExists([]byte(repo))
		if err != nil {
			return err
		}
		return repoBucket.Put([]byte(key), data)
	})
}

// Fetch retrieves the dump stored under repo/key.
func (a *BoltArchive) Fetch(ctx context.Context, repo, key string) ([]byte, error) {
	var result []byte
	err := a.db.View(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		repoBucket := tx.Bucket([]byte(boltDumpBucket)).Bucket([]byte(repo))
		if repoBucket == nil {
			return &NotFoundError{Resource: "dump", Key: repo + "/" + key}
		}
		data := repoBucket.Get([]byte(key))
		if data == nil {
			return &NotFoundError{Resource: "dump", Key: repo + "/" + key}
		}
		result = append([]byte{}, data...)
		return nil
	})
	return result, err
}

// Remove deletes a dump (best-effort).
func (a *BoltArchive) Remove(ctx context.Context, repo, key string) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		repoBucket := tx.Bucket([]byte(boltDumpBucket)).Bucket([]byte(repo))
		if repoBucket == nil {
			return nil
		}
		return repoBucket.Delete([]byte(key))
	})
}

// List returns the keys stored for repo. Bolt keeps keys sorted.
func (a *BoltArchive) List(ctx context.Context, repo string) ([]string, error) {
	keys := []string{}
	err := a.db.View(func(tx *bolt.Tx) error {
		repoBucket := tx.Bucket([]byte(boltDumpBucket)).Bucket([]byte(repo))
		if repoBucket == nil {
			return nil
		}
		return repoBucket.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Close shuts down the Bolt DB.
func (a *BoltArchive) Close() error {
	a.once.Do(func() {
		_ = a.db.Close()
	})
	return nil
}
