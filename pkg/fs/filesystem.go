package fs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/grainfs/grainfs/internal/logger"
	"github.com/grainfs/grainfs/pkg/kv"
)

// FileSystem is the filesystem operation dispatcher: the single entry point
// the OS bridge calls. It orchestrates the transaction coordinator, the
// inode/directory/block stores, the cache layer, and the open-handle table.
//
// A FileSystem is safe for concurrent use. Every operation runs as an
// independent unit; the only shared in-process state is the cache set and
// the handle table, each synchronized internally. No lock is ever held
// across backend I/O.
type FileSystem struct {
	store kv.Store

	blockSize       uint32
	inlineThreshold uint32
	maxRetries      int

	caches  *cacheSet
	handles *handleTable

	// fsid is the persistent filesystem instance id, read (or written) from
	// meta:fsid when the filesystem is opened.
	fsid uuid.UUID

	// stats caches the best-effort statfs aggregate; recomputing it means
	// scanning key families, which tools like file managers would otherwise
	// trigger on every poll.
	stats struct {
		mu        sync.Mutex
		value     *StatFS
		fetchedAt time.Time
	}
}

// Options configures a FileSystem. Zero fields take defaults.
type Options struct {
	// BlockSize is the content block size in bytes. Default 4096.
	BlockSize uint32

	// InlineThreshold is the largest content size stored inline in the
	// inode record. Must be smaller than BlockSize. Default 256.
	InlineThreshold uint32

	// MaxRetries bounds transaction attempts under conflict. Default
	// DefaultMaxRetries.
	MaxRetries int

	// InodeCacheEntries and BlockCacheEntries bound the two LRU caches.
	// Defaults 8192 and 2048.
	InodeCacheEntries int
	BlockCacheEntries int
}

// Defaults for Options zero fields.
const (
	DefaultBlockSize         = 4096
	DefaultInlineThreshold   = 256
	DefaultInodeCacheEntries = 8192
	DefaultBlockCacheEntries = 2048
)

// statsTTL bounds how stale the cached statfs aggregate may get.
const statsTTL = 30 * time.Second

// New opens a filesystem over the given backend store, formatting the key
// space on first use (root directory, allocation counter, instance id).
func New(ctx context.Context, store kv.Store, opts Options) (*FileSystem, error) {
	if opts.BlockSize == 0 {
		opts.BlockSize = DefaultBlockSize
	}
	if opts.InlineThreshold == 0 {
		opts.InlineThreshold = DefaultInlineThreshold
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.InodeCacheEntries <= 0 {
		opts.InodeCacheEntries = DefaultInodeCacheEntries
	}
	if opts.BlockCacheEntries <= 0 {
		opts.BlockCacheEntries = DefaultBlockCacheEntries
	}
	if opts.InlineThreshold >= opts.BlockSize {
		return nil, fmt.Errorf("inline threshold %d must be smaller than block size %d",
			opts.InlineThreshold, opts.BlockSize)
	}

	fsys := &FileSystem{
		store:           store,
		blockSize:       opts.BlockSize,
		inlineThreshold: opts.InlineThreshold,
		maxRetries:      opts.MaxRetries,
		caches:          newCacheSet(opts.InodeCacheEntries, opts.BlockCacheEntries),
		handles:         newHandleTable(),
	}

	if err := fsys.ensureFormatted(ctx); err != nil {
		return nil, err
	}
	logger.Info("filesystem ready (fsid %s, block size %d, inline threshold %d)",
		fsys.fsid, fsys.blockSize, fsys.inlineThreshold)
	return fsys, nil
}

// ensureFormatted initializes the key space on first mount: the root
// directory inode, the allocation counter, and the instance id. Re-opening
// an already formatted store only reads them back. Racing first mounts are
// serialized by the backend: one formats, the other conflicts, retries, and
// finds the formatted state.
func (fsys *FileSystem) ensureFormatted(ctx context.Context) error {
	return fsys.Run(ctx, true, func(ctx context.Context, tx *Txn) error {
		value, err := tx.kv.Get([]byte(keyFSID))
		if err == nil {
			id, err := uuid.FromBytes(value)
			if err != nil {
				return fmt.Errorf("corrupt fsid record: %w", err)
			}
			fsys.fsid = id
			return nil
		}
		if !errors.Is(err, kv.ErrKeyNotFound) {
			return err
		}

		fsys.fsid = uuid.New()
		if err := tx.kv.Put([]byte(keyFSID), fsys.fsid[:]); err != nil {
			return err
		}
		if err := tx.kv.Put([]byte(keyNextInode), encodeCounter(uint64(RootIno)+1)); err != nil {
			return err
		}

		root := newInode(RootIno, KindDirectory, 0o755, Credentials{})
		if err := tx.storeInode(root); err != nil {
			return err
		}
		logger.Info("formatted new filesystem (fsid %s)", fsys.fsid)
		return nil
	})
}

// FSID returns the persistent filesystem instance id.
func (fsys *FileSystem) FSID() uuid.UUID {
	return fsys.fsid
}

// BlockSize returns the configured content block size.
func (fsys *FileSystem) BlockSize() uint32 {
	return fsys.blockSize
}

// Close releases the filesystem. Open handles become stale; the backend
// store itself belongs to the caller and is not closed here.
func (fsys *FileSystem) Close() error {
	hits, misses := fsys.caches.inodes.stats()
	bHits, bMisses := fsys.caches.blocks.stats()
	logger.Debug("cache totals at close: inodes %d/%d hit/miss, blocks %d/%d hit/miss",
		hits, misses, bHits, bMisses)
	return nil
}

// loadDir loads an inode and verifies it is a directory.
func (tx *Txn) loadDir(ino Ino) (*Inode, error) {
	inode, err := tx.loadInode(ino)
	if err != nil {
		return nil, err
	}
	if inode.Kind != KindDirectory {
		return nil, &Error{Code: ErrNotDirectory, Message: "not a directory", Path: inoPath(ino)}
	}
	return inode, nil
}
