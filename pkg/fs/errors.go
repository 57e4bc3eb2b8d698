package fs

// Error represents a domain error from filesystem operations.
//
// These are filesystem-semantics errors (entry not found, name taken,
// directory not empty) as opposed to infrastructure errors (backend
// unavailable, corrupt record), which are wrapped with fmt.Errorf and
// surfaced as ErrIO at the boundary.
//
// The OS bridge translates Code to the nearest POSIX errno; the mapping
// lives with the bridge adapter, not here, so the core stays protocol
// agnostic.
type Error struct {
	// Code is the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the name or path involved, when known. Purely diagnostic.
	Path string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode is the category of a filesystem domain error.
type ErrorCode int

const (
	// ErrNotFound indicates the inode, directory entry, or block does not exist.
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates a name collision on create/mkdir/link/mknod.
	ErrAlreadyExists

	// ErrNotEmpty indicates rmdir (or rename onto a directory) found entries
	// remaining in the target directory.
	ErrNotEmpty

	// ErrPermissionDenied indicates the caller's credentials fail the
	// permission-bit check against the stored mode and owner.
	ErrPermissionDenied

	// ErrInvalidArgument indicates a malformed offset, length, or flag set.
	ErrInvalidArgument

	// ErrInvalidName indicates an empty name or one containing a path
	// separator or NUL byte.
	ErrInvalidName

	// ErrIsDirectory indicates a file operation (read/write/readlink) was
	// attempted on a directory.
	ErrIsDirectory

	// ErrNotDirectory indicates a directory operation was attempted on a
	// non-directory inode.
	ErrNotDirectory

	// ErrStaleHandle indicates an operation referenced a released or
	// recycled file handle.
	ErrStaleHandle

	// ErrOutOfSpace indicates the backend reported capacity exhaustion.
	ErrOutOfSpace

	// ErrConflictExhausted indicates a transaction kept conflicting past the
	// configured retry limit. Transient conflicts below the limit are
	// retried internally and never surface.
	ErrConflictExhausted

	// ErrBackendUnavailable indicates the backend store is closed or
	// unreachable.
	ErrBackendUnavailable

	// ErrIO indicates an unclassified infrastructure failure (corrupt
	// record, unexpected backend error).
	ErrIO
)

// String returns the symbolic name of the code, for logs and test failures.
func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "NotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrNotEmpty:
		return "NotEmpty"
	case ErrPermissionDenied:
		return "PermissionDenied"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrInvalidName:
		return "InvalidName"
	case ErrIsDirectory:
		return "IsDirectory"
	case ErrNotDirectory:
		return "NotDirectory"
	case ErrStaleHandle:
		return "StaleHandle"
	case ErrOutOfSpace:
		return "OutOfSpace"
	case ErrConflictExhausted:
		return "ConflictExhausted"
	case ErrBackendUnavailable:
		return "BackendUnavailable"
	case ErrIO:
		return "IO"
	default:
		return "Unknown"
	}
}

// CodeOf extracts the ErrorCode from err, or ErrIO when err is not a domain
// error. Nil input is a programming error; callers check err != nil first.
func CodeOf(err error) ErrorCode {
	if fsErr, ok := err.(*Error); ok {
		return fsErr.Code
	}
	return ErrIO
}

// IsCode reports whether err is a domain error with the given code.
func IsCode(err error, code ErrorCode) bool {
	fsErr, ok := err.(*Error)
	return ok && fsErr.Code == code
}

func errNotFound(what, path string) *Error {
	return &Error{Code: ErrNotFound, Message: what + " not found", Path: path}
}

func errAlreadyExists(path string) *Error {
	return &Error{Code: ErrAlreadyExists, Message: "name already exists", Path: path}
}

func errInvalidName(name string) *Error {
	return &Error{Code: ErrInvalidName, Message: "invalid name", Path: name}
}
