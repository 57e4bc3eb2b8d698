package fs

import (
	"context"
	"errors"
	"time"

	"github.com/grainfs/grainfs/pkg/kv"
)

// Nominal capacity reported when the backend imposes no limit of its own.
// Tools expect finite totals; these give a 4 TiB / 1M-inode envelope at the
// default block size.
const (
	statfsNominalBlocks = 1 << 30
	statfsNominalInodes = 1 << 20
)

// StatFS reports best-effort usage aggregates. Counting used inodes and
// blocks means scanning two key families, so the result is cached with a
// TTL (file managers poll statfs aggressively) instead of walking the
// backend on every call.
func (fsys *FileSystem) StatFS(ctx context.Context) (*StatFS, error) {
	fsys.stats.mu.Lock()
	if fsys.stats.value != nil && time.Since(fsys.stats.fetchedAt) < statsTTL {
		cached := *fsys.stats.value
		fsys.stats.mu.Unlock()
		return &cached, nil
	}
	fsys.stats.mu.Unlock()

	usedInodes, err := fsys.countKeys(ctx, []byte(prefixInode))
	if err != nil {
		return nil, err
	}
	usedBlocks, err := fsys.countKeys(ctx, []byte(prefixBlock))
	if err != nil {
		return nil, err
	}

	stats := &StatFS{
		BlockSize:   fsys.blockSize,
		TotalBlocks: statfsNominalBlocks,
		UsedBlocks:  usedBlocks,
		FreeBlocks:  statfsNominalBlocks - min(usedBlocks, statfsNominalBlocks),
		TotalInodes: statfsNominalInodes,
		UsedInodes:  usedInodes,
		FreeInodes:  statfsNominalInodes - min(usedInodes, statfsNominalInodes),
		MaxNameLen:  MaxNameLen,
	}

	fsys.stats.mu.Lock()
	fsys.stats.value = stats
	fsys.stats.fetchedAt = time.Now()
	fsys.stats.mu.Unlock()

	copied := *stats
	return &copied, nil
}

// countKeys counts the keys under a prefix in one read-only transaction,
// without fetching values.
func (fsys *FileSystem) countKeys(ctx context.Context, prefix []byte) (uint64, error) {
	inner, err := fsys.store.Begin(false)
	if err != nil {
		if errors.Is(err, kv.ErrStoreClosed) {
			return 0, &Error{Code: ErrBackendUnavailable, Message: "backend store is closed"}
		}
		return 0, err
	}
	defer inner.Rollback()

	it, err := inner.Scan(prefix)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	var count uint64
	for it.Next() {
		count++
		if count%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
	}
	return count, nil
}
