package fs

import (
	"context"
	"time"

	"github.com/grainfs/grainfs/internal/logger"
)

// requireRegular rejects content I/O on anything but a regular file:
// IsDirectory for directories, InvalidArgument for symbolic links.
func requireRegular(inode *Inode, verb string) error {
	switch inode.Kind {
	case KindRegular:
		return nil
	case KindDirectory:
		return &Error{Code: ErrIsDirectory, Message: "cannot " + verb + " a directory", Path: inoPath(inode.Ino)}
	default:
		return &Error{Code: ErrInvalidArgument, Message: "cannot " + verb + " a symbolic link", Path: inoPath(inode.Ino)}
	}
}

// Open checks access against the stored mode and allocates a handle. The
// handle is registered before the transaction begins, so a concurrent
// unlink that drops the last link sees the open count and defers deletion
// instead of racing the allocation; when the checks then fail, the handle
// is released with the error.
func (fsys *FileSystem) Open(ctx context.Context, creds Credentials, ino Ino, flags OpenFlags) (HandleID, error) {
	var want uint32
	if flags.Read {
		want |= permRead
	}
	if flags.Write {
		want |= permWrite
	}

	handle, err := fsys.handles.open(ino, flags)
	if err != nil {
		return 0, err
	}

	err = fsys.Run(ctx, flags.Truncate && flags.Write, func(ctx context.Context, tx *Txn) error {
		inode, err := tx.loadInode(ino)
		if err != nil {
			return err
		}
		if inode.Kind == KindDirectory {
			return &Error{Code: ErrIsDirectory, Message: "cannot open a directory for I/O", Path: inoPath(ino)}
		}
		if err := checkAccess(inode, creds, want); err != nil {
			return err
		}
		if flags.Truncate && flags.Write && inode.Size > 0 {
			updated := inode.clone()
			if err := tx.truncate(updated, 0); err != nil {
				return err
			}
			now := time.Now()
			updated.Mtime = now
			updated.Ctime = now
			return tx.storeInode(updated)
		}
		return nil
	})
	if err != nil {
		if relErr := fsys.Release(ctx, handle); relErr != nil {
			logger.Warn("releasing handle after failed open of inode %d: %v", ino, relErr)
		}
		return 0, err
	}
	return handle, nil
}

// Read returns up to length bytes at offset through an open handle. Reads
// past end of file return a short (possibly empty) result; holes read as
// zeros.
func (fsys *FileSystem) Read(ctx context.Context, creds Credentials, handle HandleID, offset uint64, length uint32) ([]byte, error) {
	ino, flags, err := fsys.handles.resolve(handle)
	if err != nil {
		return nil, err
	}
	if !flags.Read {
		return nil, &Error{Code: ErrInvalidArgument, Message: "handle not open for reading"}
	}

	var data []byte
	err = fsys.Run(ctx, false, func(ctx context.Context, tx *Txn) error {
		inode, err := tx.loadInode(ino)
		if err != nil {
			return err
		}
		if err := requireRegular(inode, "read"); err != nil {
			return err
		}
		data, err = tx.readRange(inode, offset, length)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write applies data at offset through an open handle and returns the byte
// count written (always all of data on success; the transaction either
// commits the whole write or nothing).
func (fsys *FileSystem) Write(ctx context.Context, creds Credentials, handle HandleID, offset uint64, data []byte) (uint32, error) {
	ino, flags, err := fsys.handles.resolve(handle)
	if err != nil {
		return 0, err
	}
	if !flags.Write {
		return 0, &Error{Code: ErrInvalidArgument, Message: "handle not open for writing"}
	}
	if len(data) == 0 {
		return 0, nil
	}

	err = fsys.Run(ctx, true, func(ctx context.Context, tx *Txn) error {
		inode, err := tx.loadInode(ino)
		if err != nil {
			return err
		}
		if err := requireRegular(inode, "write"); err != nil {
			return err
		}
		updated := inode.clone()
		if err := tx.writeRange(updated, offset, data); err != nil {
			return err
		}
		now := time.Now()
		updated.Mtime = now
		updated.Ctime = now
		return tx.storeInode(updated)
	})
	if err != nil {
		return 0, err
	}
	return uint32(len(data)), nil
}

// Release closes a handle. If it was the last handle on an orphaned inode
// (unlinked while open), the inode and its blocks are purged now.
func (fsys *FileSystem) Release(ctx context.Context, handle HandleID) error {
	ino, purge, err := fsys.handles.release(handle)
	if err != nil {
		return err
	}
	if purge {
		return fsys.purgeInode(ctx, ino)
	}
	return nil
}

// Fsync is a commit barrier only: every write already committed its own
// transaction, so there is nothing buffered to push. The handle check still
// applies.
func (fsys *FileSystem) Fsync(ctx context.Context, handle HandleID) error {
	_, _, err := fsys.handles.resolve(handle)
	return err
}

// Flush is called on every close of a file descriptor and, like Fsync, has
// no buffered state to write back.
func (fsys *FileSystem) Flush(ctx context.Context, handle HandleID) error {
	_, _, err := fsys.handles.resolve(handle)
	return err
}
