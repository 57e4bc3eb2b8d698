package fs

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Serialization Strategy
// ======================
//
// The backend stores raw bytes, so every record type needs an explicit
// encoding. Two strategies are used, chosen per type:
//
//  1. JSON for inode records. Records are small, read far less often than
//     blocks (the cache absorbs most loads), and the flexibility and
//     debuggability of a self-describing encoding outweigh the size cost.
//     Schema evolution is additive: new optional fields decode as zero
//     values from old records.
//
//  2. Fixed binary for the hot, trivially-structured values: directory
//     entry values (8-byte big-endian child ino + 1 kind byte) and the
//     inode allocation counter (8-byte big-endian). These are touched on
//     every namespace operation and have no evolution pressure.
//
// Block values are raw content bytes and need no codec.

// encodeInode serializes an inode record for storage.
func encodeInode(inode *Inode) ([]byte, error) {
	data, err := json.Marshal(inode)
	if err != nil {
		return nil, fmt.Errorf("failed to encode inode %d: %w", inode.Ino, err)
	}
	return data, nil
}

// decodeInode is the inverse of encodeInode.
func decodeInode(data []byte) (*Inode, error) {
	var inode Inode
	if err := json.Unmarshal(data, &inode); err != nil {
		return nil, fmt.Errorf("failed to decode inode record: %w", err)
	}
	if !inode.Kind.Valid() {
		return nil, fmt.Errorf("inode record %d has invalid kind %d", inode.Ino, inode.Kind)
	}
	return &inode, nil
}

// direntValueLen is the wire size of a directory entry value.
const direntValueLen = 9

// encodeDirentValue packs a child binding into its fixed binary form.
func encodeDirentValue(child Ino, kind Kind) []byte {
	value := make([]byte, direntValueLen)
	binary.BigEndian.PutUint64(value, uint64(child))
	value[8] = byte(kind)
	return value
}

// decodeDirentValue is the inverse of encodeDirentValue.
func decodeDirentValue(value []byte) (Ino, Kind, error) {
	if len(value) != direntValueLen {
		return 0, 0, fmt.Errorf("malformed dirent value of %d bytes", len(value))
	}
	kind := Kind(value[8])
	if !kind.Valid() {
		return 0, 0, fmt.Errorf("dirent value has invalid kind %d", value[8])
	}
	return Ino(binary.BigEndian.Uint64(value)), kind, nil
}

// encodeCounter packs the inode allocation counter.
func encodeCounter(n uint64) []byte {
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, n)
	return value
}

// decodeCounter is the inverse of encodeCounter.
func decodeCounter(value []byte) (uint64, error) {
	if len(value) != 8 {
		return 0, fmt.Errorf("malformed counter value of %d bytes", len(value))
	}
	return binary.BigEndian.Uint64(value), nil
}
