package fuse

import (
	"context"
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grainfs/grainfs/pkg/fs"
)

func TestErrnoOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want syscall.Errno
	}{
		{"Nil", nil, 0},
		{"NotFound", &fs.Error{Code: fs.ErrNotFound}, syscall.ENOENT},
		{"AlreadyExists", &fs.Error{Code: fs.ErrAlreadyExists}, syscall.EEXIST},
		{"NotEmpty", &fs.Error{Code: fs.ErrNotEmpty}, syscall.ENOTEMPTY},
		{"PermissionDenied", &fs.Error{Code: fs.ErrPermissionDenied}, syscall.EACCES},
		{"InvalidArgument", &fs.Error{Code: fs.ErrInvalidArgument}, syscall.EINVAL},
		{"InvalidName", &fs.Error{Code: fs.ErrInvalidName}, syscall.EINVAL},
		{"IsDirectory", &fs.Error{Code: fs.ErrIsDirectory}, syscall.EISDIR},
		{"NotDirectory", &fs.Error{Code: fs.ErrNotDirectory}, syscall.ENOTDIR},
		{"StaleHandle", &fs.Error{Code: fs.ErrStaleHandle}, syscall.EBADF},
		{"OutOfSpace", &fs.Error{Code: fs.ErrOutOfSpace}, syscall.ENOSPC},
		{"ConflictExhausted", &fs.Error{Code: fs.ErrConflictExhausted}, syscall.EAGAIN},
		{"BackendUnavailable", &fs.Error{Code: fs.ErrBackendUnavailable}, syscall.EIO},
		{"PlainError", errors.New("infrastructure"), syscall.EIO},
		{"ContextCanceled", context.Canceled, syscall.EINTR},
		{"DeadlineExceeded", context.DeadlineExceeded, syscall.EINTR},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, errnoOf(tt.err))
		})
	}
}

func TestOpenFlagsOf(t *testing.T) {
	tests := []struct {
		name  string
		flags uint32
		want  fs.OpenFlags
	}{
		{"ReadOnly", syscall.O_RDONLY, fs.OpenFlags{Read: true}},
		{"WriteOnly", syscall.O_WRONLY, fs.OpenFlags{Write: true}},
		{"ReadWrite", syscall.O_RDWR, fs.OpenFlags{Read: true, Write: true}},
		{"WriteTrunc", syscall.O_WRONLY | syscall.O_TRUNC, fs.OpenFlags{Write: true, Truncate: true}},
		{"AppendIgnoredForAccess", syscall.O_RDWR | syscall.O_APPEND, fs.OpenFlags{Read: true, Write: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, openFlagsOf(tt.flags))
		})
	}
}

func TestKindMode(t *testing.T) {
	require.Equal(t, uint32(syscall.S_IFREG), kindMode(fs.KindRegular))
	require.Equal(t, uint32(syscall.S_IFDIR), kindMode(fs.KindDirectory))
	require.Equal(t, uint32(syscall.S_IFLNK), kindMode(fs.KindSymlink))
}

func TestCallerCredsWithoutContext(t *testing.T) {
	// A bare context has no FUSE caller attached; the bridge falls back to
	// root, which the core treats as a permission bypass.
	creds := callerCreds(context.Background())
	require.Equal(t, fs.Credentials{}, creds)
}
