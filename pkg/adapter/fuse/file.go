package fuse

import (
	"context"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/grainfs/grainfs/pkg/fs"
)

// fileHandle carries one dispatcher handle id across the read/write/release
// lifecycle of a kernel file descriptor. All content state lives in the
// dispatcher; the handle itself is just the ticket.
type fileHandle struct {
	fsys *fs.FileSystem
	id   fs.HandleID
}

var _ gofuse.FileReader = (*fileHandle)(nil)
var _ gofuse.FileWriter = (*fileHandle)(nil)
var _ gofuse.FileFlusher = (*fileHandle)(nil)
var _ gofuse.FileReleaser = (*fileHandle)(nil)
var _ gofuse.FileFsyncer = (*fileHandle)(nil)

func (f *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if off < 0 {
		return nil, syscall.EINVAL
	}
	data, err := f.fsys.Read(ctx, callerCreds(ctx), f.id, uint64(off), uint32(len(dest)))
	if err != nil {
		return nil, errnoOf(err)
	}
	return fuse.ReadResultData(data), 0
}

func (f *fileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	if off < 0 {
		return 0, syscall.EINVAL
	}
	written, err := f.fsys.Write(ctx, callerCreds(ctx), f.id, uint64(off), data)
	if err != nil {
		return 0, errnoOf(err)
	}
	return written, 0
}

func (f *fileHandle) Flush(ctx context.Context) syscall.Errno {
	return errnoOf(f.fsys.Flush(ctx, f.id))
}

func (f *fileHandle) Release(ctx context.Context) syscall.Errno {
	return errnoOf(f.fsys.Release(ctx, f.id))
}

func (f *fileHandle) Fsync(ctx context.Context, _ uint32) syscall.Errno {
	return errnoOf(f.fsys.Fsync(ctx, f.id))
}
