package fs

import (
	"context"
	"time"
)

// createNode allocates an inode, binds it under parent, and touches the
// parent's timestamps, all inside the caller's transaction.
func (tx *Txn) createNode(creds Credentials, parent Ino, name string, kind Kind, mode uint32) (*Inode, error) {
	dir, err := tx.loadDir(parent)
	if err != nil {
		return nil, err
	}
	if err := checkDirWritable(dir, creds); err != nil {
		return nil, err
	}

	ino, err := tx.allocateIno()
	if err != nil {
		return nil, err
	}
	if err := tx.insertEntry(parent, name, ino, kind); err != nil {
		return nil, err
	}

	inode := newInode(ino, kind, mode, creds)
	if err := tx.storeInode(inode); err != nil {
		return nil, err
	}
	if err := tx.touchDir(dir); err != nil {
		return nil, err
	}
	return inode, nil
}

// touchDir updates a directory's modification timestamps after a namespace
// change beneath it.
func (tx *Txn) touchDir(dir *Inode) error {
	updated := dir.clone()
	now := time.Now()
	updated.Mtime = now
	updated.Ctime = now
	return tx.storeInode(updated)
}

// Mkdir creates a directory under parent.
func (fsys *FileSystem) Mkdir(ctx context.Context, creds Credentials, parent Ino, name string, mode uint32) (*Inode, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	var inode *Inode
	err := fsys.Run(ctx, true, func(ctx context.Context, tx *Txn) error {
		var err error
		inode, err = tx.createNode(creds, parent, name, KindDirectory, mode)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inode, nil
}

// Mknod creates a regular file node without opening it. A non-zero rdev is
// recorded for device nodes created through the bridge.
func (fsys *FileSystem) Mknod(ctx context.Context, creds Credentials, parent Ino, name string, mode uint32, rdev uint32) (*Inode, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	var inode *Inode
	err := fsys.Run(ctx, true, func(ctx context.Context, tx *Txn) error {
		dir, err := tx.loadDir(parent)
		if err != nil {
			return err
		}
		if err := checkDirWritable(dir, creds); err != nil {
			return err
		}
		ino, err := tx.allocateIno()
		if err != nil {
			return err
		}
		if err := tx.insertEntry(parent, name, ino, KindRegular); err != nil {
			return err
		}
		inode = newInode(ino, KindRegular, mode, creds)
		inode.Rdev = rdev
		if err := tx.storeInode(inode); err != nil {
			return err
		}
		return tx.touchDir(dir)
	})
	if err != nil {
		return nil, err
	}
	return inode, nil
}

// Create makes a regular file and opens it in one operation. The handle is
// allocated only after the transaction commits, so a retried or failed
// create leaves no handle behind.
func (fsys *FileSystem) Create(ctx context.Context, creds Credentials, parent Ino, name string, mode uint32, flags OpenFlags) (*Inode, HandleID, error) {
	if err := checkName(name); err != nil {
		return nil, 0, err
	}
	var inode *Inode
	err := fsys.Run(ctx, true, func(ctx context.Context, tx *Txn) error {
		var err error
		inode, err = tx.createNode(creds, parent, name, KindRegular, mode)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	// A freshly allocated inode number cannot be condemned, so this never
	// fails in practice.
	handle, err := fsys.handles.open(inode.Ino, flags)
	if err != nil {
		return nil, 0, err
	}
	return inode, handle, nil
}

// Symlink creates a symbolic link to target under parent. The target always
// lives inline in the inode record, whatever its length.
func (fsys *FileSystem) Symlink(ctx context.Context, creds Credentials, parent Ino, name, target string) (*Inode, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if target == "" {
		return nil, &Error{Code: ErrInvalidArgument, Message: "empty symlink target"}
	}
	var inode *Inode
	err := fsys.Run(ctx, true, func(ctx context.Context, tx *Txn) error {
		dir, err := tx.loadDir(parent)
		if err != nil {
			return err
		}
		if err := checkDirWritable(dir, creds); err != nil {
			return err
		}
		ino, err := tx.allocateIno()
		if err != nil {
			return err
		}
		if err := tx.insertEntry(parent, name, ino, KindSymlink); err != nil {
			return err
		}
		inode = newInode(ino, KindSymlink, 0o777, creds)
		inode.Inline = []byte(target)
		inode.Size = uint64(len(target))
		if err := tx.storeInode(inode); err != nil {
			return err
		}
		return tx.touchDir(dir)
	})
	if err != nil {
		return nil, err
	}
	return inode, nil
}

// Link creates a hard link to an existing non-directory inode: a new
// directory entry plus a link-count bump, one transaction.
func (fsys *FileSystem) Link(ctx context.Context, creds Credentials, ino Ino, newParent Ino, newName string) (*Inode, error) {
	if err := checkName(newName); err != nil {
		return nil, err
	}
	var linked *Inode
	err := fsys.Run(ctx, true, func(ctx context.Context, tx *Txn) error {
		target, err := tx.loadInode(ino)
		if err != nil {
			return err
		}
		if target.Kind == KindDirectory {
			return &Error{Code: ErrPermissionDenied, Message: "hard links to directories are not allowed", Path: inoPath(ino)}
		}
		dir, err := tx.loadDir(newParent)
		if err != nil {
			return err
		}
		if err := checkDirWritable(dir, creds); err != nil {
			return err
		}
		if err := tx.insertEntry(newParent, newName, ino, target.Kind); err != nil {
			return err
		}

		updated := target.clone()
		updated.Nlink++
		updated.Ctime = time.Now()
		if err := tx.storeInode(updated); err != nil {
			return err
		}
		if err := tx.touchDir(dir); err != nil {
			return err
		}
		linked = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return linked, nil
}
