package kv

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryBucket is an in-memory bucket (not persisted). Records are kept as JSON so
// Load behaves exactly like the SQLite bucket.
type MemoryBucket struct {
	name    string
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryBucket creates a new in-memory bucket.
func NewMemoryBucket(name string) *MemoryBucket {
	return &MemoryBucket{
		name:    name,
		records: make(map[string][]byte),
	}
}

// Name returns the bucket name.
func (b *MemoryBucket) Name() string {
	return b.name
}

// Save stores v as JSON under key.
func (b *MemoryBucket) Save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", b.name, key, err)
	}

	b.mu.Lock()
	b.records[key] = data
	b.mu.Unlock()
	return nil
}

// Load decodes the record under key into out.
func (b *MemoryBucket) Load(key string, out any) error {
	b.mu.RLock()
	data, ok := b.records[key]
	b.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s/%s: %w", b.name, key, err)
	}
	return nil
}

// Delete removes a key from the bucket.
func (b *MemoryBucket) Delete(key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.records[key]
	delete(b.records, key)
	return ok, nil
}

// Keys returns all keys in the bucket.
func (b *MemoryBucket) Keys() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.records))
	for k := range b.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
