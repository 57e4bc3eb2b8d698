package fs

import (
	"time"
)

// Ino is an inode number: unique, monotonically allocated, never reused
// while referenced by a live directory entry or open handle.
type Ino uint64

// RootIno is the reserved inode number of the filesystem root directory,
// matching the kernel FUSE convention (FUSE_ROOT_ID).
const RootIno Ino = 1

// Kind is the closed set of inode kinds. Operations pattern-match on Kind
// and reject invalid combinations (write on a directory, readdir on a file)
// explicitly rather than through an interface hierarchy.
type Kind uint8

const (
	// KindRegular is an ordinary file with block or inline content.
	KindRegular Kind = iota + 1

	// KindDirectory is a directory; its content is the dirent key family.
	KindDirectory

	// KindSymlink is a symbolic link; the target lives in Inline.
	KindSymlink
)

// String returns the symbolic name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Valid reports whether k is a member of the closed kind set.
func (k Kind) Valid() bool {
	return k >= KindRegular && k <= KindSymlink
}

// Inode is the metadata record for one filesystem object.
//
// Records are persisted as JSON under the inode key family (see keys.go for
// the encoding rationale). Inline and the block key family are mutually
// exclusive at any commit point: a record either embeds its whole content in
// Inline (small files, symlink targets) or stores it across block keys, never
// both.
type Inode struct {
	// Ino is the inode number, duplicated in the record so a decoded record
	// is self-describing.
	Ino Ino `json:"ino"`

	// Kind discriminates regular file / directory / symlink.
	Kind Kind `json:"kind"`

	// Size is the content size in bytes. Directories report a fixed nominal
	// size.
	Size uint64 `json:"size"`

	// Blocks is the number of block keys the content occupies. Zero for
	// inline content and directories.
	Blocks uint64 `json:"blocks"`

	// UID and GID identify the owner.
	UID uint32 `json:"uid"`
	GID uint32 `json:"gid"`

	// Mode holds the permission bits (low 12 bits; kind is carried in Kind,
	// not here).
	Mode uint32 `json:"mode"`

	// Nlink is the number of directory entries referencing this inode.
	// Directories count their self entry; "." and ".." are synthesized at
	// readdir time rather than stored.
	Nlink uint32 `json:"nlink"`

	// Atime, Mtime, Ctime are the access / content-modification /
	// attribute-change timestamps.
	Atime time.Time `json:"atime"`
	Mtime time.Time `json:"mtime"`
	Ctime time.Time `json:"ctime"`

	// Inline holds the entire content when Size is at or below the mount's
	// inline threshold, and always holds the target for symlinks. Nil when
	// content lives in blocks.
	Inline []byte `json:"inline,omitempty"`

	// Rdev is the device number for nodes created by mknod with a device
	// type. Zero otherwise.
	Rdev uint32 `json:"rdev,omitempty"`
}

// DirEntry is one (parent, name) → (child, kind) binding.
type DirEntry struct {
	// Name is the entry name within its parent, unique per parent.
	Name string

	// Ino is the child inode number.
	Ino Ino

	// Kind is the child's kind, duplicated from the child inode so readdir
	// does not need to load every child record.
	Kind Kind
}

// Credentials identify the caller of an operation, as delivered by the OS
// bridge. UID 0 bypasses permission checks.
type Credentials struct {
	UID uint32
	GID uint32
}

// SetAttr describes an attribute update. Nil fields are left unchanged.
// Size changes are truncations and go through the block store.
type SetAttr struct {
	Mode  *uint32
	UID   *uint32
	GID   *uint32
	Size  *uint64
	Atime *time.Time
	Mtime *time.Time
}

// StatFS is the aggregate filesystem usage report. Counts are best-effort
// (see the stats cache in filesystem.go), not a precise walk.
type StatFS struct {
	BlockSize   uint32
	TotalBlocks uint64
	FreeBlocks  uint64
	UsedBlocks  uint64
	TotalInodes uint64
	FreeInodes  uint64
	UsedInodes  uint64
	MaxNameLen  uint32
}

// MaxNameLen is the longest accepted entry name in bytes.
const MaxNameLen = 255

// checkName validates an entry name: non-empty, no separator or NUL, not a
// dot entry, within length limits.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." {
		return errInvalidName(name)
	}
	if len(name) > MaxNameLen {
		return &Error{Code: ErrInvalidName, Message: "name too long", Path: name}
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' || name[i] == 0 {
			return errInvalidName(name)
		}
	}
	return nil
}
