package fs

import (
	"context"
	"time"
)

// Rename moves (oldParent, oldName) to (newParent, newName) as one
// transaction: source removal, destination insertion, and any displaced
// target's link-count adjustment commit together, so a concurrent observer
// sees either the old binding or the new one, never neither.
//
// Overwrite policy (documented choice): when the destination name exists,
// it is replaced atomically. A replaced directory must be empty. A replaced
// file loses one link; at zero links it is deleted synchronously in the
// same commit unless open handles reference it, in which case it follows
// the same deferred-deletion path as unlink.
//
// Ancestry-cycle prevention for directory renames is delegated to the
// kernel's VFS rename locking, as with the other bridges to this dispatcher.
func (fsys *FileSystem) Rename(ctx context.Context, creds Credentials, oldParent Ino, oldName string, newParent Ino, newName string) error {
	if err := checkName(oldName); err != nil {
		return err
	}
	if err := checkName(newName); err != nil {
		return err
	}

	var orphan Ino
	err := fsys.Run(ctx, true, func(ctx context.Context, tx *Txn) error {
		orphan = 0
		srcDir, err := tx.loadDir(oldParent)
		if err != nil {
			return err
		}
		if err := checkDirWritable(srcDir, creds); err != nil {
			return err
		}
		dstDir := srcDir
		if newParent != oldParent {
			dstDir, err = tx.loadDir(newParent)
			if err != nil {
				return err
			}
			if err := checkDirWritable(dstDir, creds); err != nil {
				return err
			}
		}

		child, childKind, err := tx.lookupEntry(oldParent, oldName)
		if err != nil {
			return err
		}
		if oldParent == newParent && oldName == newName {
			return nil
		}

		existing, existingKind, lookupErr := tx.lookupEntry(newParent, newName)
		if lookupErr == nil {
			if existing == child {
				// Both names are links to the same inode; rename is a no-op.
				return nil
			}
			if err := tx.displaceTarget(existing, existingKind, childKind, newName, &orphan); err != nil {
				return err
			}
		} else if !IsCode(lookupErr, ErrNotFound) {
			return lookupErr
		}

		if _, _, err := tx.removeEntry(oldParent, oldName); err != nil {
			return err
		}
		if err := tx.kv.Put(direntKey(newParent, newName), encodeDirentValue(child, childKind)); err != nil {
			return err
		}

		if err := tx.touchDir(srcDir); err != nil {
			return err
		}
		if newParent != oldParent {
			if err := tx.touchDir(dstDir); err != nil {
				return err
			}
		}
		return nil
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

// displaceTarget applies the overwrite rules to an existing destination
// entry: kind compatibility, emptiness for directories, and link-count
// accounting. Sets *orphan when the displaced inode dropped its last link
// and must go through the post-commit purge-or-defer decision.
func (tx *Txn) displaceTarget(existing Ino, existingKind, sourceKind Kind, name string, orphan *Ino) error {
	if existingKind == KindDirectory && sourceKind != KindDirectory {
		return &Error{Code: ErrIsDirectory, Message: "cannot replace a directory with a file", Path: name}
	}
	if existingKind != KindDirectory && sourceKind == KindDirectory {
		return &Error{Code: ErrNotDirectory, Message: "cannot replace a file with a directory", Path: name}
	}

	if existingKind == KindDirectory {
		empty, err := tx.dirEmpty(existing)
		if err != nil {
			return err
		}
		if !empty {
			return &Error{Code: ErrNotEmpty, Message: "destination directory not empty", Path: name}
		}
		return tx.deleteInode(existing)
	}

	inode, err := tx.loadInode(existing)
	if err != nil {
		return err
	}
	updated := inode.clone()
	updated.Nlink--
	updated.Ctime = time.Now()
	if updated.Nlink == 0 {
		// The record outlives the commit; the purge-or-defer decision is
		// made in the handle table afterwards, as in Unlink.
		*orphan = existing
	}
	return tx.storeInode(updated)
}
