package fs

import (
	"context"
	"time"

	"github.com/grainfs/grainfs/internal/logger"
)

// Unlink removes the (parent, name) entry and drops the target's link
// count. When the count reaches zero the inode and its blocks are purged in
// a follow-up transaction, unless open handles still reference it, in which
// case deletion defers to the last release ("delete on last close"): the
// directory entry disappears immediately, the content lives on until the
// final handle goes away. The purge-or-defer decision happens in the handle
// table after the commit, under the same lock that allocates handles, so an
// open cannot slip in between the open-count check and the deletion.
func (fsys *FileSystem) Unlink(ctx context.Context, creds Credentials, parent Ino, name string) error {
	if err := checkName(name); err != nil {
		return err
	}

	var orphan Ino
	err := fsys.Run(ctx, true, func(ctx context.Context, tx *Txn) error {
		orphan = 0
		dir, err := tx.loadDir(parent)
		if err != nil {
			return err
		}
		if err := checkDirWritable(dir, creds); err != nil {
			return err
		}

		child, kind, err := tx.removeEntry(parent, name)
		if err != nil {
			return err
		}
		if kind == KindDirectory {
			return &Error{Code: ErrIsDirectory, Message: "cannot unlink a directory", Path: name}
		}

		inode, err := tx.loadInode(child)
		if err != nil {
			return err
		}
		updated := inode.clone()
		updated.Nlink--
		updated.Ctime = time.Now()

		// At link count zero the record still survives this commit. Whether
		// it dies now or at the last release is decided against the handle
		// table only after the commit, where the decision and the bar on
		// new opens are one atomic step.
		if err := tx.storeInode(updated); err != nil {
			return err
		}
		if updated.Nlink == 0 {
			orphan = child
		}
		return tx.touchDir(dir)
	})
	if err != nil {
		return err
	}

	if orphan != 0 && fsys.handles.beginPurge(orphan) {
		err = fsys.purgeInode(ctx, orphan)
		fsys.handles.endPurge(orphan)
		return err
	}
	return nil
}

// Rmdir removes an empty directory. NotEmpty when any entry remains.
func (fsys *FileSystem) Rmdir(ctx context.Context, creds Credentials, parent Ino, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	return fsys.Run(ctx, true, func(ctx context.Context, tx *Txn) error {
		dir, err := tx.loadDir(parent)
		if err != nil {
			return err
		}
		if err := checkDirWritable(dir, creds); err != nil {
			return err
		}

		child, kind, err := tx.lookupEntry(parent, name)
		if err != nil {
			return err
		}
		if kind != KindDirectory {
			return &Error{Code: ErrNotDirectory, Message: "not a directory", Path: name}
		}
		empty, err := tx.dirEmpty(child)
		if err != nil {
			return err
		}
		if !empty {
			return &Error{Code: ErrNotEmpty, Message: "directory not empty", Path: name}
		}

		if _, _, err := tx.removeEntry(parent, name); err != nil {
			return err
		}
		if err := tx.deleteInode(child); err != nil {
			return err
		}
		return tx.touchDir(dir)
	})
}

// purgeInode deletes a deferred inode and its blocks in its own
// transaction. Called from release (last handle on an orphan) and from the
// unlink race fallback.
func (fsys *FileSystem) purgeInode(ctx context.Context, ino Ino) error {
	logger.Debug("purging orphaned inode %d", ino)
	return fsys.Run(ctx, true, func(ctx context.Context, tx *Txn) error {
		return tx.deleteInode(ino)
	})
}
