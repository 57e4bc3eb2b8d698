// Package badger implements the kv.Store contract on BadgerDB.
//
// BadgerDB is an embedded LSM key-value store with serializable snapshot
// isolation: transactions read from a consistent snapshot and writes are
// validated at commit time, returning a conflict error when a concurrently
// committed transaction touched an overlapping key range. That commit-time
// validation is exactly the optimistic concurrency model the filesystem's
// transaction coordinator is built around, so the mapping here is thin:
// open, translate errors, and expose ordered prefix iteration.
//
// Two modes are supported:
//   - Directory-backed: persistent, crash-recoverable (WAL based). This is
//     the production mode.
//   - In-memory: no files on disk, state lost on close. Used by the test
//     suites and for throwaway mounts.
package badger

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/grainfs/grainfs/pkg/kv"
)

// Config holds the BadgerDB-specific store configuration.
//
// It is decoded from the backend's type-specific configuration subtree with
// mapstructure (see pkg/config).
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string `mapstructure:"path"`

	// InMemory keeps all data in memory. Path must be empty.
	InMemory bool `mapstructure:"in_memory"`

	// SyncWrites forces an fsync on every commit. Slower but guarantees
	// committed transactions survive a power failure.
	SyncWrites bool `mapstructure:"sync_writes"`
}

// Store adapts a badger.DB to the kv.Store interface.
type Store struct {
	db *badger.DB
}

var _ kv.Store = (*Store)(nil)

// Open opens (creating if necessary) a Badger-backed store.
func Open(cfg Config) (*Store, error) {
	if cfg.InMemory && cfg.Path != "" {
		return nil, fmt.Errorf("badger: in_memory and path are mutually exclusive")
	}
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("badger: path is required for a disk-backed store")
	}

	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: failed to open database: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a throwaway in-memory store.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

// Begin opens a new transaction at the current snapshot.
func (s *Store) Begin(update bool) (kv.Txn, error) {
	if s.db.IsClosed() {
		return nil, kv.ErrStoreClosed
	}
	return &txn{inner: s.db.NewTransaction(update), update: update}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// txn wraps a badger.Txn, translating Badger's sentinel errors into the
// backend-agnostic kv sentinels.
type txn struct {
	inner  *badger.Txn
	update bool
}

func (t *txn) Get(key []byte) ([]byte, error) {
	item, err := t.inner.Get(key)
	if err != nil {
		return nil, translate(err)
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, translate(err)
	}
	return value, nil
}

func (t *txn) Put(key, value []byte) error {
	if !t.update {
		return kv.ErrTxnReadOnly
	}
	return translate(t.inner.Set(key, value))
}

func (t *txn) Delete(key []byte) error {
	if !t.update {
		return kv.ErrTxnReadOnly
	}
	err := t.inner.Delete(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return translate(err)
}

func (t *txn) Scan(prefix []byte) (kv.Iterator, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.inner.NewIterator(opts)
	it.Rewind()
	return &iterator{inner: it, prefix: prefix, first: true}, nil
}

func (t *txn) Commit() error {
	return translate(t.inner.Commit())
}

func (t *txn) Rollback() {
	t.inner.Discard()
}

// iterator adapts Badger's seek-style iterator to the Next/Key/Value shape.
type iterator struct {
	inner  *badger.Iterator
	prefix []byte
	first  bool
}

func (it *iterator) Next() bool {
	if it.first {
		it.first = false
	} else {
		it.inner.Next()
	}
	return it.inner.ValidForPrefix(it.prefix)
}

func (it *iterator) Key() []byte {
	return it.inner.Item().KeyCopy(nil)
}

func (it *iterator) Value() ([]byte, error) {
	value, err := it.inner.Item().ValueCopy(nil)
	if err != nil {
		return nil, translate(err)
	}
	return value, nil
}

func (it *iterator) Close() {
	it.inner.Close()
}

// translate maps Badger sentinel errors to kv sentinels. Unknown errors pass
// through unchanged so infrastructure failures keep their original context.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return kv.ErrKeyNotFound
	case errors.Is(err, badger.ErrConflict):
		return kv.ErrConflict
	case errors.Is(err, badger.ErrTxnTooBig):
		return kv.ErrTxnTooLarge
	case errors.Is(err, badger.ErrDBClosed):
		return kv.ErrStoreClosed
	default:
		return err
	}
}
