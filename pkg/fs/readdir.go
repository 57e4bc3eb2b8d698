package fs

import (
	"context"
)

// ReadDir returns every entry of the directory in name order. The listing
// is one ordered prefix scan inside a read-only transaction, so it reflects
// a single consistent snapshot of the directory. Self and parent entries
// are synthesized by the OS bridge, not stored.
func (fsys *FileSystem) ReadDir(ctx context.Context, creds Credentials, ino Ino) ([]DirEntry, error) {
	var entries []DirEntry
	err := fsys.Run(ctx, false, func(ctx context.Context, tx *Txn) error {
		dir, err := tx.loadDir(ino)
		if err != nil {
			return err
		}
		if err := checkAccess(dir, creds, permRead); err != nil {
			return err
		}
		entries, err = tx.listDir(ino)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
