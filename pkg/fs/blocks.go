package fs

import (
	"errors"

	"github.com/grainfs/grainfs/pkg/kv"
)

// Block Store
// ===========
//
// File content is split across fixed-size blocks, one backend key per
// materialized block. Files at or below the inline threshold embed their
// whole content in the inode record instead; a write that pushes a file past
// the threshold migrates the inline payload into blocks within the same
// transaction, and shrinking back below the threshold does not migrate back.
//
// Representation invariant: an inode with Blocks == 0 is inline (Inline may
// be nil for an empty file); an inode with Blocks > 0 owns block keys and
// has Inline == nil. The two never coexist at a commit point.
//
// Blocks may be shorter than the block size: the tail block usually is, and
// a sparse write can create a short interior block. Readers zero-fill past a
// block's stored length, so a short block and an absent block both read as
// zeros beyond their data. Holes are never materialized by reads or by
// growing truncates; only an overlapping write creates a block key.

// loadBlock fetches one block's bytes. Absent blocks (holes, or indices past
// the materialized range) return ok=false rather than an error. Same read
// path as loadInode: stage, then shared cache for read-only transactions,
// then backend.
func (tx *Txn) loadBlock(ino Ino, index uint64) ([]byte, bool, error) {
	if staged, ok := tx.stage.stagedBlock(ino, index); ok {
		if staged == nil {
			return nil, false, nil
		}
		return staged, true, nil
	}

	id := blockID{ino: ino, index: index}
	if !tx.update() {
		if cached, ok := tx.fs.caches.blocks.get(id); ok {
			return cached, true, nil
		}
	}

	value, err := tx.kv.Get(blockKey(ino, index))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !tx.update() {
		tx.fs.caches.blocks.putIfAbsent(id, value, tx.blockVersion)
	}
	return value, true, nil
}

// putBlock writes one block to the backend and the stage. The block store
// owns data after the call.
func (tx *Txn) putBlock(ino Ino, index uint64, data []byte) error {
	if err := tx.kv.Put(blockKey(ino, index), data); err != nil {
		return err
	}
	tx.stage.stageBlock(ino, index, data)
	return nil
}

// readRange assembles the byte range [offset, offset+length) of the file,
// clamped to its size. Gaps past sparse holes and beyond stored block
// lengths read as zeros.
func (tx *Txn) readRange(inode *Inode, offset uint64, length uint32) ([]byte, error) {
	if offset >= inode.Size || length == 0 {
		return nil, nil
	}
	end := offset + uint64(length)
	if end > inode.Size {
		end = inode.Size
	}
	buf := make([]byte, end-offset)

	if inode.Blocks == 0 {
		if offset < uint64(len(inode.Inline)) {
			copy(buf, inode.Inline[offset:])
		}
		return buf, nil
	}

	bs := uint64(tx.fs.blockSize)
	for index := offset / bs; index*bs < end; index++ {
		blockStart := index * bs
		lo := max(offset, blockStart)
		hi := min(end, blockStart+bs)

		data, ok, err := tx.loadBlock(inode.Ino, index)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue // hole, stays zero
		}
		srcLo := lo - blockStart
		srcHi := hi - blockStart
		if srcHi > uint64(len(data)) {
			srcHi = uint64(len(data))
		}
		if srcHi > srcLo {
			copy(buf[lo-offset:], data[srcLo:srcHi])
		}
	}
	return buf, nil
}

// writeRange applies data at offset, mutating the passed record (size,
// block count, inline payload) but leaving its storage to the caller so an
// operation can fold in timestamp updates and store once.
func (tx *Txn) writeRange(inode *Inode, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	end := offset + uint64(len(data))

	// Inline fast path: the write keeps the file at or below the threshold.
	if inode.Blocks == 0 && end <= uint64(tx.fs.inlineThreshold) {
		if uint64(len(inode.Inline)) < end {
			grown := make([]byte, end)
			copy(grown, inode.Inline)
			inode.Inline = grown
		}
		copy(inode.Inline[offset:], data)
		if end > inode.Size {
			inode.Size = end
		}
		return nil
	}

	// Crossing the threshold: migrate the inline payload into blocks inside
	// this same transaction, then fall through to the block path.
	if inode.Blocks == 0 {
		inline := inode.Inline
		inode.Inline = nil
		if len(inline) > 0 {
			if err := tx.writeBlocks(inode.Ino, 0, inline); err != nil {
				return err
			}
		}
	}

	if err := tx.writeBlocks(inode.Ino, offset, data); err != nil {
		return err
	}
	if end > inode.Size {
		inode.Size = end
	}
	inode.Blocks = blockCount(inode.Size, tx.fs.blockSize)
	return nil
}

// writeBlocks scatters data across the covering blocks: fully-covered
// blocks are overwritten outright, partially-covered edge blocks are
// read-modified-written.
func (tx *Txn) writeBlocks(ino Ino, offset uint64, data []byte) error {
	bs := uint64(tx.fs.blockSize)
	end := offset + uint64(len(data))

	for index := offset / bs; index*bs < end; index++ {
		blockStart := index * bs
		lo := max(offset, blockStart)
		hi := min(end, blockStart+bs)

		var block []byte
		if lo == blockStart && hi == blockStart+bs {
			block = append([]byte(nil), data[lo-offset:hi-offset]...)
		} else {
			existing, ok, err := tx.loadBlock(ino, index)
			if err != nil {
				return err
			}
			length := hi - blockStart
			if ok && uint64(len(existing)) > length {
				length = uint64(len(existing))
			}
			block = make([]byte, length)
			if ok {
				copy(block, existing)
			}
			copy(block[lo-blockStart:], data[lo-offset:hi-offset])
		}
		if err := tx.putBlock(ino, index, block); err != nil {
			return err
		}
	}
	return nil
}

// truncate changes the file's size, deleting or trimming blocks on shrink
// and leaving holes unmaterialized on growth. Mutates the record like
// writeRange; the caller stores it.
func (tx *Txn) truncate(inode *Inode, newSize uint64) error {
	if newSize == inode.Size {
		return nil
	}
	bs := uint64(tx.fs.blockSize)

	if inode.Blocks == 0 {
		if newSize <= uint64(tx.fs.inlineThreshold) {
			// Pure inline resize; pad with zeros on growth.
			resized := make([]byte, newSize)
			copy(resized, inode.Inline)
			inode.Inline = resized
			inode.Size = newSize
			return nil
		}
		// Growing past the threshold: migrate what exists, leave the rest
		// as a hole.
		inline := inode.Inline
		inode.Inline = nil
		if len(inline) > 0 {
			if err := tx.writeBlocks(inode.Ino, 0, inline); err != nil {
				return err
			}
		}
		inode.Size = newSize
		inode.Blocks = blockCount(newSize, tx.fs.blockSize)
		return nil
	}

	if newSize < inode.Size {
		keepBlocks := blockCount(newSize, tx.fs.blockSize)
		if err := tx.dropBlocksFrom(inode.Ino, keepBlocks); err != nil {
			return err
		}
		// Trim the new last block so stale bytes cannot resurface when the
		// file grows again.
		if newSize > 0 {
			lastIndex := keepBlocks - 1
			keep := newSize - lastIndex*bs
			existing, ok, err := tx.loadBlock(inode.Ino, lastIndex)
			if err != nil {
				return err
			}
			if ok && uint64(len(existing)) > keep {
				if err := tx.putBlock(inode.Ino, lastIndex, append([]byte(nil), existing[:keep]...)); err != nil {
					return err
				}
			}
		}
	}
	inode.Size = newSize
	inode.Blocks = blockCount(newSize, tx.fs.blockSize)
	return nil
}

// dropBlocksFrom deletes every block key of ino with index >= from, using
// the index-ordered block scan.
func (tx *Txn) dropBlocksFrom(ino Ino, from uint64) error {
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
		if index < from {
			continue
		}
		if err := tx.kv.Delete(key); err != nil {
			return err
		}
		tx.stage.stageBlock(ino, index, nil)
	}
	return nil
}
