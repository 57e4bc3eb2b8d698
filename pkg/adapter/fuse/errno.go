package fuse

import (
	"context"
	"errors"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/grainfs/grainfs/pkg/fs"
)

// errnoOf translates a core filesystem error into the errno the kernel
// expects. Context cancellation surfaces as EINTR so interrupted syscalls
// behave like local filesystem interrupts.
func errnoOf(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return syscall.EINTR
	}

	switch fs.CodeOf(err) {
	case fs.ErrNotFound:
		return syscall.ENOENT
	case fs.ErrAlreadyExists:
		return syscall.EEXIST
	case fs.ErrNotEmpty:
		return syscall.ENOTEMPTY
	case fs.ErrPermissionDenied:
		return syscall.EACCES
	case fs.ErrInvalidArgument, fs.ErrInvalidName:
		return syscall.EINVAL
	case fs.ErrIsDirectory:
		return syscall.EISDIR
	case fs.ErrNotDirectory:
		return syscall.ENOTDIR
	case fs.ErrStaleHandle:
		return syscall.EBADF
	case fs.ErrOutOfSpace:
		return syscall.ENOSPC
	case fs.ErrConflictExhausted:
		return syscall.EAGAIN
	default:
		return syscall.EIO
	}
}

// callerCreds extracts the requesting process identity from the FUSE
// request context. Requests without caller information (kernel-internal
// operations) fall back to root, which the permission layer treats as
// bypass.
func callerCreds(ctx context.Context) fs.Credentials {
	caller, ok := fuse.FromContext(ctx)
	if !ok {
		return fs.Credentials{}
	}
	return fs.Credentials{UID: caller.Uid, GID: caller.Gid}
}

// openFlagsOf translates the platform open(2) flag word into the
// dispatcher's access view.
func openFlagsOf(flags uint32) fs.OpenFlags {
	accMode := flags & syscall.O_ACCMODE
	return fs.OpenFlags{
		Read:     accMode == syscall.O_RDONLY || accMode == syscall.O_RDWR,
		Write:    accMode == syscall.O_WRONLY || accMode == syscall.O_RDWR,
		Truncate: flags&syscall.O_TRUNC != 0,
	}
}

// kindMode returns the stat file-type bits for an inode kind.
func kindMode(kind fs.Kind) uint32 {
	switch kind {
	case fs.KindDirectory:
		return syscall.S_IFDIR
	case fs.KindSymlink:
		return syscall.S_IFLNK
	default:
		return syscall.S_IFREG
	}
}
