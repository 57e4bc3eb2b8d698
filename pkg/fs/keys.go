package fs

import (
	"fmt"
	"strconv"
)

// Key Namespace Design
// ====================
//
// The backend is a flat key-value store, so all filesystem state is organized
// into prefixed key families. The layout below is the persisted schema: any
// implementation that preserves these three families and their sort orders can
// read data written by another.
//
// Key Family        Format                             Value
// ============================================================================
// Metadata          meta:next_inode                    8-byte BE next inode number
//                   meta:fsid                          16-byte filesystem UUID
// Inode Records     inode:<ino>                        Inode record (JSON)
// Directory Entries dirent:<parent>:<name>             8-byte BE child ino + kind byte
// Data Blocks       block:<ino>:<index>                raw block bytes
//
// <ino>, <parent>, and <index> are fixed-width 16-digit lowercase hexadecimal.
// Fixed-width hex keeps keys printable and debuggable (badger CLI, log lines)
// while making byte order equal numeric order, which the two range-scanned
// families depend on:
//
//  1. Directory Entries (dirent:)
//     - One entry per (parent, name) binding, denormalized: scanning the
//       prefix "dirent:<parent>:" enumerates a directory's children in name
//       order, because the prefix is fixed-length and the remainder of the
//       key is the raw name. This is what makes readdir a single range scan.
//     - Names may contain any byte except '/' and NUL; since the prefix
//       length is constant, the encoding stays injective regardless of the
//       bytes in the name.
//
//  2. Data Blocks (block:)
//     - One entry per materialized block. Scanning "block:<ino>:" yields the
//       file's blocks in index order, which truncate and whole-file deletion
//       rely on. Sparse files simply lack keys for unmaterialized indices.
//
//  3. Inode Records (inode:)
//     - Point lookups only; the fixed-width ino keeps the family uniform.
//
// The allocation counter meta:next_inode is read-modified-written inside the
// allocating transaction, so two concurrent allocations conflict at commit
// and one retries with a fresh read. Inode numbers are therefore unique and
// monotonic without any coordination outside the backend.

const (
	// keyNextInode is the allocation counter for inode numbers.
	keyNextInode = "meta:next_inode"

	// keyFSID holds the filesystem instance UUID, written at format time.
	keyFSID = "meta:fsid"

	prefixInode  = "inode:"
	prefixDirent = "dirent:"
	prefixBlock  = "block:"
)

// hexWidth is the fixed width of an encoded ino or block index.
const hexWidth = 16

// appendHex appends n as 16 lowercase hex digits.
func appendHex(dst []byte, n uint64) []byte {
	var buf [hexWidth]byte
	for i := hexWidth - 1; i >= 0; i-- {
		buf[i] = "0123456789abcdef"[n&0xf]
		n >>= 4
	}
	return append(dst, buf[:]...)
}

// inodeKey returns the key of an inode record: "inode:<ino>".
func inodeKey(ino Ino) []byte {
	return appendHex([]byte(prefixInode), uint64(ino))
}

// direntKey returns the key of one directory entry:
// "dirent:<parent>:<name>".
func direntKey(parent Ino, name string) []byte {
	key := appendHex([]byte(prefixDirent), uint64(parent))
	key = append(key, ':')
	return append(key, name...)
}

// direntPrefix returns the scan prefix covering every entry of parent:
// "dirent:<parent>:".
func direntPrefix(parent Ino) []byte {
	key := appendHex([]byte(prefixDirent), uint64(parent))
	return append(key, ':')
}

// blockKey returns the key of one content block: "block:<ino>:<index>".
func blockKey(ino Ino, index uint64) []byte {
	key := appendHex([]byte(prefixBlock), uint64(ino))
	key = append(key, ':')
	return appendHex(key, index)
}

// blockPrefix returns the scan prefix covering every block of ino:
// "block:<ino>:".
func blockPrefix(ino Ino) []byte {
	key := appendHex([]byte(prefixBlock), uint64(ino))
	return append(key, ':')
}

// direntName extracts the entry name from a dirent key produced by
// direntKey. Used when range-scanning a directory.
func direntName(key []byte) (string, error) {
	skip := len(prefixDirent) + hexWidth + 1
	if len(key) < skip {
		return "", fmt.Errorf("malformed dirent key %q", key)
	}
	return string(key[skip:]), nil
}

// blockIndex extracts the block index from a block key produced by blockKey.
// Used when range-scanning a file's blocks during truncate and deletion.
func blockIndex(key []byte) (uint64, error) {
	skip := len(prefixBlock) + hexWidth + 1
	if len(key) != skip+hexWidth {
		return 0, fmt.Errorf("malformed block key %q", key)
	}
	index, err := strconv.ParseUint(string(key[skip:]), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed block key %q: %w", key, err)
	}
	return index, nil
}
