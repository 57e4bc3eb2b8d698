package fs

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/grainfs/grainfs/pkg/kv"
)

// Inode Metadata Store
// ====================
//
// Allocate, load, store, and delete inode records on top of the transaction
// coordinator and the key encoding. All functions here operate inside an
// open transaction and follow the staging rule: mutations go to the backend
// transaction plus the stage, never directly to the shared cache.
//
// Loaded records are treated as immutable. An operation that wants to change
// attributes works on a clone and stores that, so a record published to the
// cache is never mutated behind a concurrent reader's back.

// clone returns a deep copy of the record.
func (in *Inode) clone() *Inode {
	copied := *in
	if in.Inline != nil {
		copied.Inline = append([]byte(nil), in.Inline...)
	}
	return &copied
}

// blockCount returns how many blocks a content of the given size occupies.
func blockCount(size uint64, blockSize uint32) uint64 {
	return (size + uint64(blockSize) - 1) / uint64(blockSize)
}

// allocateIno reserves a fresh inode number by read-modify-writing the
// allocation counter inside the transaction. Concurrent allocations conflict
// at commit and the loser retries against the advanced counter, so numbers
// are unique and monotonic.
func (tx *Txn) allocateIno() (Ino, error) {
	value, err := tx.kv.Get([]byte(keyNextInode))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return 0, fmt.Errorf("allocation counter missing; backend not formatted")
		}
		return 0, err
	}
	next, err := decodeCounter(value)
	if err != nil {
		return 0, err
	}
	if err := tx.kv.Put([]byte(keyNextInode), encodeCounter(next+1)); err != nil {
		return 0, err
	}
	return Ino(next), nil
}

// loadInode fetches and decodes one inode record, failing with NotFound when
// absent.
//
// Read path: stage first (the transaction sees its own writes), then the
// shared cache for read-only transactions, then the backend. Update
// transactions always read through the backend so the key lands in the
// transaction's read set and commit-time conflict detection covers it.
func (tx *Txn) loadInode(ino Ino) (*Inode, error) {
	if staged, ok := tx.stage.stagedInode(ino); ok {
		if staged == nil {
			return nil, errNotFound("inode", inoPath(ino))
		}
		return staged, nil
	}

	if !tx.update() {
		if cached, ok := tx.fs.caches.inodes.get(ino); ok {
			return cached, nil
		}
	}

	value, err := tx.kv.Get(inodeKey(ino))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return nil, errNotFound("inode", inoPath(ino))
		}
		return nil, err
	}
	inode, err := decodeInode(value)
	if err != nil {
		return nil, err
	}

	if !tx.update() {
		// Conditional on the sequence sampled at Begin: a commit may have
		// published a newer record since this snapshot was taken, and the
		// published entry may itself already be evicted.
		tx.fs.caches.inodes.putIfAbsent(ino, inode, tx.inodeVersion)
	}
	return inode, nil
}

// storeInode encodes and writes a record, staging the cache update.
func (tx *Txn) storeInode(inode *Inode) error {
	value, err := encodeInode(inode)
	if err != nil {
		return err
	}
	if err := tx.kv.Put(inodeKey(inode.Ino), value); err != nil {
		return err
	}
	tx.stage.stageInode(inode.Ino, inode)
	return nil
}

// deleteInode removes the inode record and every block key belonging to it
// in the same transaction. Callers are responsible for the deferral policy
// (link count zero and no open handles); this function just deletes.
func (tx *Txn) deleteInode(ino Ino) error {
	if err := tx.kv.Delete(inodeKey(ino)); err != nil {
		return err
	}
	tx.stage.stageInode(ino, nil)

	it, err := tx.kv.Scan(blockPrefix(ino))
	if err != nil {
		return err
	}
	defer it.Close()
	for it.Next() {
		key := it.Key()
		index, err := blockIndex(key)
		if err != nil {
			return err
		}
		if err := tx.kv.Delete(key); err != nil {
			return err
		}
		tx.stage.stageBlock(ino, index, nil)
	}
	return nil
}

// update reports whether this transaction may write.
func (tx *Txn) update() bool {
	return tx.writable
}

// newInode builds a fresh record with current timestamps.
func newInode(ino Ino, kind Kind, mode uint32, creds Credentials) *Inode {
	now := time.Now()
	nlink := uint32(1)
	size := uint64(0)
	if kind == KindDirectory {
		size = directoryNominalSize
	}
	return &Inode{
		Ino:   ino,
		Kind:  kind,
		Size:  size,
		UID:   creds.UID,
		GID:   creds.GID,
		Mode:  mode & 0o7777,
		Nlink: nlink,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}
}

// directoryNominalSize is the size reported for directories; their real
// content is the dirent key family.
const directoryNominalSize = 4096

// inoPath renders an inode number for error paths.
func inoPath(ino Ino) string {
	return "#" + strconv.FormatUint(uint64(ino), 10)
}
