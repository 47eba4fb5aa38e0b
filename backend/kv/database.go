package kv

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNoSuchKey is returned when Get() was passed a non-existent key
	ErrNoSuchKey = errors.New("this key does not exist")
)

// keySep separates the parts of a key. Paths may contain anything but NUL.
const keySep = "\x00"

func joinKey(key ...string) string {
	return strings.Join(key, keySep)
}

// Batch is an API object used to model a transaction.
type Batch interface {
	// Put sets `val` at `key`.
	Put(val []byte, key ...string)

	// Erase a key from the database.
	Erase(key ...string)

	// Flush the batch to the database.
	// Only now, all changes will be written to disk.
	Flush() error

	// Rollback will forget all changes without executing them.
	Rollback()
}

// Database is a key/value store. Keys are lists of strings,
// values are arbitrary untyped data.
type Database interface {
	// Get retrieves the value at `key`.
	// If no such key exists, it will return (nil, ErrNoSuchKey)
	Get(key ...string) ([]byte, error)

	// Keys returns all keys that start with `prefix` in lexical order.
	// The prefix is matched on the joined key, so the last element of
	// `prefix` may be a partial key element.
	Keys(prefix ...string) ([][]string, error)

	// Batch returns a new Batch object, that will allow modifications
	// of the state. Nothing is visible to Get() before Flush().
	Batch() Batch

	// Close closes the database. Since I/O may happen, an error is returned.
	Close() error
}

// MemoryDatabase is a purely in memory database.
type MemoryDatabase struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryDatabase allocates a new empty MemoryDatabase
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		data: make(map[string][]byte),
	}
}

// Get returns the value at `key`.
func (mdb *MemoryDatabase) Get(key ...string) ([]byte, error) {
	mdb.mu.RLock()
	defer mdb.mu.RUnlock()

	data, ok := mdb.data[joinKey(key...)]
	if !ok {
		return nil, ErrNoSuchKey
	}

	return data, nil
}

// Keys returns all keys starting with `prefix`.
func (mdb *MemoryDatabase) Keys(prefix ...string) ([][]string, error) {
	mdb.mu.RLock()
	defer mdb.mu.RUnlock()

	fullPrefix := joinKey(prefix...)
	matches := []string{}
	for key := range mdb.data {
		if strings.HasPrefix(key, fullPrefix) {
			matches = append(matches, key)
		}
	}

	sort.Strings(matches)

	keys := make([][]string, 0, len(matches))
	for _, key := range matches {
		keys = append(keys, strings.Split(key, keySep))
	}

	return keys, nil
}

type memoryOp struct {
	key   string
	val   []byte
	erase bool
}

type memoryBatch struct {
	mdb *MemoryDatabase
	ops []memoryOp
}

// Batch returns a batch that is applied to the map on Flush.
func (mdb *MemoryDatabase) Batch() Batch {
	return &memoryBatch{mdb: mdb}
}

func (mb *memoryBatch) Put(val []byte, key ...string) {
	mb.ops = append(mb.ops, memoryOp{key: joinKey(key...), val: val})
}

func (mb *memoryBatch) Erase(key ...string) {
	mb.ops = append(mb.ops, memoryOp{key: joinKey(key...), erase: true})
}

func (mb *memoryBatch) Flush() error {
	mb.mdb.mu.Lock()
	defer mb.mdb.mu.Unlock()

	for _, op := range mb.ops {
		if op.erase {
			delete(mb.mdb.data, op.key)
		} else {
			mb.mdb.data[op.key] = op.val
		}
	}

	mb.ops = nil
	return nil
}

func (mb *memoryBatch) Rollback() {
	mb.ops = nil
}

// Close the memory - a no op.
func (mdb *MemoryDatabase) Close() error {
	return nil
}
