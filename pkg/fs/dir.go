package fs

import (
	"errors"

	"github.com/grainfs/grainfs/pkg/kv"
)

// Directory Entry Index
// =====================
//
// Name → inode bindings within a parent directory, stored one backend key
// per entry so that a directory listing is a single ordered prefix scan.
// All functions operate inside an open transaction; compound operations
// (rename, overwrite) compose them in one Run so observers never see a
// half-applied namespace change.

// lookupEntry resolves (parent, name) to the child binding.
func (tx *Txn) lookupEntry(parent Ino, name string) (Ino, Kind, error) {
	value, err := tx.kv.Get(direntKey(parent, name))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return 0, 0, errNotFound("entry", name)
		}
		return 0, 0, err
	}
	return decodeDirentValue(value)
}

// insertEntry creates a (parent, name) binding, failing with AlreadyExists
// when the name is taken. The existence check reads through the transaction,
// so two racing inserts of the same name conflict at commit and the retried
// loser observes the winner's entry.
func (tx *Txn) insertEntry(parent Ino, name string, child Ino, kind Kind) error {
	_, err := tx.kv.Get(direntKey(parent, name))
	if err == nil {
		return errAlreadyExists(name)
	}
	if !errors.Is(err, kv.ErrKeyNotFound) {
		return err
	}
	return tx.kv.Put(direntKey(parent, name), encodeDirentValue(child, kind))
}

// removeEntry deletes a (parent, name) binding, returning the child it
// referenced. Fails with NotFound when absent. Emptiness checks for
// directory children are the caller's job (see dirEmpty).
func (tx *Txn) removeEntry(parent Ino, name string) (Ino, Kind, error) {
	child, kind, err := tx.lookupEntry(parent, name)
	if err != nil {
		return 0, 0, err
	}
	if err := tx.kv.Delete(direntKey(parent, name)); err != nil {
		return 0, 0, err
	}
	return child, kind, nil
}

// errStopScan aborts a scanDir early without reporting an error.
var errStopScan = errors.New("stop directory scan")

// scanDir enumerates the entries of parent in name order, invoking fn for
// each. fn may return errStopScan to stop early. Each call opens a fresh
// scan, so the enumeration is restartable.
func (tx *Txn) scanDir(parent Ino, fn func(entry DirEntry) error) error {
	it, err := tx.kv.Scan(direntPrefix(parent))
	if err != nil {
		return err
	}
	defer it.Close()

	for it.Next() {
		name, err := direntName(it.Key())
		if err != nil {
			return err
		}
		value, err := it.Value()
		if err != nil {
			return err
		}
		child, kind, err := decodeDirentValue(value)
		if err != nil {
			return err
		}
		if err := fn(DirEntry{Name: name, Ino: child, Kind: kind}); err != nil {
			if errors.Is(err, errStopScan) {
				return nil
			}
			return err
		}
	}
	return nil
}

// listDir collects all entries of parent, name ordered.
func (tx *Txn) listDir(parent Ino) ([]DirEntry, error) {
	var entries []DirEntry
	err := tx.scanDir(parent, func(entry DirEntry) error {
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// dirEmpty reports whether the directory has no entries.
func (tx *Txn) dirEmpty(dir Ino) (bool, error) {
	empty := true
	err := tx.scanDir(dir, func(DirEntry) error {
		empty = false
		return errStopScan
	})
	if err != nil {
		return false, err
	}
	return empty, nil
}
