package fs

// Permission bits for checkAccess, matching the Unix r/w/x triplet.
const (
	permRead  uint32 = 4
	permWrite uint32 = 2
	permExec  uint32 = 1
)

// checkAccess evaluates the caller's credentials against the inode's stored
// mode and owner: owner class if the UID matches, group class if the GID
// matches, otherwise the other class. UID 0 bypasses the check.
func checkAccess(inode *Inode, creds Credentials, want uint32) error {
	if creds.UID == 0 {
		return nil
	}

	var granted uint32
	switch {
	case creds.UID == inode.UID:
		granted = (inode.Mode >> 6) & 7
	case creds.GID == inode.GID:
		granted = (inode.Mode >> 3) & 7
	default:
		granted = inode.Mode & 7
	}

	if granted&want != want {
		return &Error{
			Code:    ErrPermissionDenied,
			Message: "permission denied",
			Path:    inoPath(inode.Ino),
		}
	}
	return nil
}

// checkDirWritable verifies the caller may mutate the namespace under dir:
// write to create or remove entries, traverse to reach them.
func checkDirWritable(dir *Inode, creds Credentials) error {
	return checkAccess(dir, creds, permWrite|permExec)
}

// checkDirSearchable verifies the caller may resolve names under dir.
func checkDirSearchable(dir *Inode, creds Credentials) error {
	return checkAccess(dir, creds, permExec)
}
