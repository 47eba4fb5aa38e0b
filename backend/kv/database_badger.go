package kv

import (
	"strings"

	"github.com/dgraph-io/badger"
	log "github.com/sirupsen/logrus"
)

// BadgerDatabase is a Database that persists everything in a badger store.
type BadgerDatabase struct {
	db *badger.DB
}

// NewBadgerDatabase opens (or creates) a badger store in `path`.
func NewBadgerDatabase(path string) (*BadgerDatabase, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = log.StandardLogger()

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerDatabase{db: db}, nil
}

// Get implements Database.Get
func (db *BadgerDatabase) Get(key ...string) ([]byte, error) {
	var data []byte
	err := db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(joinKey(key...)))
		if err == badger.ErrKeyNotFound {
			return ErrNoSuchKey
		}

		if err != nil {
			return err
		}

		data, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, err
	}

	return data, nil
}

// Keys implements Database.Keys
func (db *BadgerDatabase) Keys(prefix ...string) ([][]string, error) {
	fullPrefix := []byte(joinKey(prefix...))

	results := [][]string{}
	err := db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(fullPrefix); iter.ValidForPrefix(fullPrefix); iter.Next() {
			key := string(iter.Item().KeyCopy(nil))
			results = append(results, strings.Split(key, keySep))
		}

		return nil
	})

	return results, err
}

type badgerBatch struct {
	db  *badger.DB
	txn *badger.Txn
	err error
}

// Batch implements Database.Batch
func (db *BadgerDatabase) Batch() Batch {
	return &badgerBatch{
		db:  db.db,
		txn: db.db.NewTransaction(true),
	}
}

// apply runs `fn` and starts a new transaction if the current one is full.
func (bb *badgerBatch) apply(fn func(txn *badger.Txn) error) {
	if bb.err != nil {
		return
	}

	err := fn(bb.txn)
	if err == badger.ErrTxnTooBig {
		if bb.err = bb.txn.Commit(); bb.err != nil {
			return
		}

		bb.txn = bb.db.NewTransaction(true)
		err = fn(bb.txn)
	}

	bb.err = err
}

func (bb *badgerBatch) Put(val []byte, key ...string) {
	fullKey := []byte(joinKey(key...))
	bb.apply(func(txn *badger.Txn) error {
		return txn.Set(fullKey, val)
	})
}

func (bb *badgerBatch) Erase(key ...string) {
	fullKey := []byte(joinKey(key...))
	bb.apply(func(txn *badger.Txn) error {
		return txn.Delete(fullKey)
	})
}

func (bb *badgerBatch) Flush() error {
	defer bb.txn.Discard()
	if bb.err != nil {
		return bb.err
	}

	return bb.txn.Commit()
}

func (bb *badgerBatch) Rollback() {
	bb.txn.Discard()
}

// Close implements Database.Close
func (db *BadgerDatabase) Close() error {
	return db.db.Close()
}
