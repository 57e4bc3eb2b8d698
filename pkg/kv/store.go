// Package kv defines the transactional key-value backend contract that the
// filesystem core is written against.
//
// The filesystem persists every piece of state (inode records, directory
// entries, data blocks, allocation counters) through this interface; no other
// persisted format exists. The contract is deliberately small:
//
//	Begin → Get / Put / Delete / Scan → Commit | Rollback
//
// with optimistic concurrency control: conflicting transactions are detected
// at commit time, and exactly one of a conflicting pair succeeds. Callers are
// expected to retry the whole unit of work when Commit returns ErrConflict
// (see the transaction coordinator in pkg/fs).
//
// Implementations must guarantee:
//   - Snapshot reads: a transaction observes a consistent point-in-time view.
//   - Atomic commits: either every write in a transaction becomes visible, or
//     none does.
//   - Ordered scans: Scan enumerates keys in ascending byte order, which the
//     filesystem relies on for name-ordered directory listings and
//     index-ordered block ranges.
package kv

import "errors"

var (
	// ErrKeyNotFound is returned by Txn.Get when the key does not exist.
	ErrKeyNotFound = errors.New("kv: key not found")

	// ErrConflict is returned by Txn.Commit when the transaction's reads or
	// writes conflict with a concurrently committed transaction. The caller
	// should discard any state derived from the transaction and retry the
	// entire unit of work.
	ErrConflict = errors.New("kv: transaction conflict")

	// ErrStoreClosed is returned when an operation is attempted against a
	// store that has been closed.
	ErrStoreClosed = errors.New("kv: store closed")

	// ErrTxnTooLarge is returned when a transaction exceeds the backend's
	// size limits. The filesystem maps this to its out-of-space error.
	ErrTxnTooLarge = errors.New("kv: transaction too large")

	// ErrTxnReadOnly is returned by Put and Delete on a read-only transaction.
	ErrTxnReadOnly = errors.New("kv: read-only transaction")
)

// Store is a transactional key-value store.
//
// Implementations must be safe for concurrent use: many transactions may be
// open at once, each running on its own goroutine.
type Store interface {
	// Begin opens a new transaction. Pass update=true for transactions that
	// will write; read-only transactions may be cheaper and never conflict.
	Begin(update bool) (Txn, error)

	// Close releases the store. In-flight transactions fail afterwards.
	Close() error
}

// Txn is a single open transaction against the store.
//
// A Txn is not safe for concurrent use; it belongs to the one unit of work
// that opened it. Every Txn must be finished with exactly one of Commit or
// Rollback. Rollback after a failed Commit is harmless.
type Txn interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	// The returned slice is owned by the caller.
	Get(key []byte) ([]byte, error)

	// Put stages a write of value under key.
	Put(key, value []byte) error

	// Delete stages removal of key. Deleting an absent key is not an error.
	Delete(key []byte) error

	// Scan returns an iterator over all keys beginning with prefix, in
	// ascending byte order. The iterator observes the transaction's own
	// staged writes. Each call returns a fresh iterator positioned before
	// the first matching key.
	Scan(prefix []byte) (Iterator, error)

	// Commit atomically applies the staged writes. Returns ErrConflict when
	// optimistic validation fails; the transaction is discarded either way.
	Commit() error

	// Rollback discards the transaction without applying any writes.
	Rollback()
}

// Iterator walks the results of a Scan.
//
//	it, _ := txn.Scan(prefix)
//	defer it.Close()
//	for it.Next() {
//	    key := it.Key()
//	    value, err := it.Value()
//	    ...
//	}
type Iterator interface {
	// Next advances to the next key and reports whether one exists.
	Next() bool

	// Key returns the current key. Valid only after a true Next; the slice
	// is owned by the caller.
	Key() []byte

	// Value returns the current value. Valid only after a true Next.
	Value() ([]byte, error)

	// Close releases iterator resources. Must be called before the owning
	// transaction finishes.
	Close()
}
