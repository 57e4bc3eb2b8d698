package fs

import (
	"context"
	"time"
)

// Lookup resolves name under parent and returns the child's record.
func (fsys *FileSystem) Lookup(ctx context.Context, creds Credentials, parent Ino, name string) (*Inode, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	var child *Inode
	err := fsys.Run(ctx, false, func(ctx context.Context, tx *Txn) error {
		dir, err := tx.loadDir(parent)
		if err != nil {
			return err
		}
		if err := checkDirSearchable(dir, creds); err != nil {
			return err
		}
		childIno, _, err := tx.lookupEntry(parent, name)
		if err != nil {
			return err
		}
		child, err = tx.loadInode(childIno)
		return err
	})
	if err != nil {
		return nil, err
	}
	return child, nil
}

// GetAttr returns the inode's current record.
func (fsys *FileSystem) GetAttr(ctx context.Context, creds Credentials, ino Ino) (*Inode, error) {
	var inode *Inode
	err := fsys.Run(ctx, false, func(ctx context.Context, tx *Txn) error {
		var err error
		inode, err = tx.loadInode(ino)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inode, nil
}

// SetAttr updates attributes; nil fields of set are left unchanged. A size
// change is a truncation and goes through the block store in the same
// transaction as the metadata update.
func (fsys *FileSystem) SetAttr(ctx context.Context, creds Credentials, ino Ino, set SetAttr) (*Inode, error) {
	var updated *Inode
	err := fsys.Run(ctx, true, func(ctx context.Context, tx *Txn) error {
		current, err := tx.loadInode(ino)
		if err != nil {
			return err
		}
		inode := current.clone()
		now := time.Now()
		owner := creds.UID == 0 || creds.UID == inode.UID

		if set.Mode != nil {
			if !owner {
				return &Error{Code: ErrPermissionDenied, Message: "only the owner may change mode", Path: inoPath(ino)}
			}
			inode.Mode = *set.Mode & 0o7777
		}
		if set.UID != nil && *set.UID != inode.UID {
			if creds.UID != 0 {
				return &Error{Code: ErrPermissionDenied, Message: "only root may change ownership", Path: inoPath(ino)}
			}
			inode.UID = *set.UID
		}
		if set.GID != nil && *set.GID != inode.GID {
			if creds.UID != 0 && !(owner && *set.GID == creds.GID) {
				return &Error{Code: ErrPermissionDenied, Message: "not permitted to change group", Path: inoPath(ino)}
			}
			inode.GID = *set.GID
		}
		if set.Size != nil {
			if err := requireRegular(inode, "truncate"); err != nil {
				return err
			}
			if err := checkAccess(current, creds, permWrite); err != nil {
				return err
			}
			if err := tx.truncate(inode, *set.Size); err != nil {
				return err
			}
			inode.Mtime = now
		}
		if set.Atime != nil {
			if !owner {
				if err := checkAccess(current, creds, permWrite); err != nil {
					return err
				}
			}
			inode.Atime = *set.Atime
		}
		if set.Mtime != nil {
			if !owner {
				if err := checkAccess(current, creds, permWrite); err != nil {
					return err
				}
			}
			inode.Mtime = *set.Mtime
		}

		inode.Ctime = now
		if err := tx.storeInode(inode); err != nil {
			return err
		}
		updated = inode
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Readlink returns a symlink's target bytes.
func (fsys *FileSystem) Readlink(ctx context.Context, creds Credentials, ino Ino) ([]byte, error) {
	var target []byte
	err := fsys.Run(ctx, false, func(ctx context.Context, tx *Txn) error {
		inode, err := tx.loadInode(ino)
		if err != nil {
			return err
		}
		if inode.Kind != KindSymlink {
			return &Error{Code: ErrInvalidArgument, Message: "not a symlink", Path: inoPath(ino)}
		}
		target = append([]byte(nil), inode.Inline...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return target, nil
}
