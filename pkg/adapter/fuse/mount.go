// Package fuse bridges the transactional filesystem core into the kernel
// through go-fuse. The bridge is a thin translation layer: it converts
// kernel requests into dispatcher calls and dispatcher errors into errnos,
// and keeps no filesystem state of its own.
package fuse

import (
	"fmt"
	"os"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/grainfs/grainfs/internal/logger"
	"github.com/grainfs/grainfs/pkg/fs"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	// It is created if it does not exist.
	Mountpoint string

	// FileSystem is the dispatcher serving all operations.
	FileSystem *fs.FileSystem

	// AllowOther permits other users (including root) to access the
	// mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Debug enables go-fuse request tracing on stderr.
	Debug bool
}

// Mount mounts the filesystem at the configured mountpoint. The caller
// serves requests with Wait on the returned server and tears down with
// Unmount.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.FileSystem == nil {
		return nil, fmt.Errorf("filesystem is required")
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &node{fsys: options.FileSystem, ino: fs.RootIno}

	// Attribute replies are authoritative only until the next commit from
	// another client of the same store, so keep kernel caching short.
	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second
	negativeTimeout := 100 * time.Millisecond

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "grainfs",
			Name:       "grainfs",
			AllowOther: options.AllowOther,
			Debug:      options.Debug,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	logger.Info("filesystem mounted at %s (fsid %s)", options.Mountpoint, options.FileSystem.FSID())
	return server, nil
}
