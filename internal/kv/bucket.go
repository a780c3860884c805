// Package kv stores small JSON records in named buckets, persisted in SQLite or
// kept in memory.
package kv

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned by Load when the key does not exist.
var ErrNotFound = errors.New("key not found")

// Bucket is the interface for record storage.
type Bucket interface {
	// Name returns the bucket name.
	Name() string

	// Save stores v as JSON under key, replacing any previous record.
	Save(key string, v any) error

	// Load decodes the record under key into out.
	// Returns ErrNotFound if the key doesn't exist.
	Load(key string, out any) error

	// Delete removes a key. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Keys returns every key in the bucket.
	Keys() ([]string, error)
}

// Open returns a SQLite bucket when db is non-nil and a memory bucket otherwise.
func Open(db *sql.DB, name string) Bucket {
	if db == nil {
		return NewMemoryBucket(name)
	}
	return NewSQLiteBucket(db, name)
}
