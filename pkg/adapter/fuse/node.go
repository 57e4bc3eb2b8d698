package fuse

import (
	"context"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/grainfs/grainfs/pkg/fs"
)

// node bridges one backend inode into the kernel's dentry tree. Nodes are
// stateless beyond the inode number: every operation re-reads metadata
// through the dispatcher so that the kernel view tracks committed state.
type node struct {
	gofuse.Inode
	fsys *fs.FileSystem
	ino  fs.Ino
}

var _ gofuse.InodeEmbedder = (*node)(nil)
var _ gofuse.NodeLookuper = (*node)(nil)
var _ gofuse.NodeGetattrer = (*node)(nil)
var _ gofuse.NodeSetattrer = (*node)(nil)
var _ gofuse.NodeMkdirer = (*node)(nil)
var _ gofuse.NodeMknoder = (*node)(nil)
var _ gofuse.NodeCreater = (*node)(nil)
var _ gofuse.NodeUnlinker = (*node)(nil)
var _ gofuse.NodeRmdirer = (*node)(nil)
var _ gofuse.NodeRenamer = (*node)(nil)
var _ gofuse.NodeLinker = (*node)(nil)
var _ gofuse.NodeSymlinker = (*node)(nil)
var _ gofuse.NodeReadlinker = (*node)(nil)
var _ gofuse.NodeOpener = (*node)(nil)
var _ gofuse.NodeReaddirer = (*node)(nil)
var _ gofuse.NodeStatfser = (*node)(nil)
var _ gofuse.NodeFsyncer = (*node)(nil)

// fillAttr copies an inode record into a kernel attr structure. Blocks is
// reported in 512-byte units per stat(2) convention regardless of the
// mount's logical block size.
func (n *node) fillAttr(record *fs.Inode, out *fuse.Attr) {
	out.Ino = uint64(record.Ino)
	out.Size = record.Size
	out.Blocks = (record.Size + 511) / 512
	out.Blksize = n.fsys.BlockSize()
	out.Mode = kindMode(record.Kind) | (record.Mode & 0o7777)
	out.Nlink = record.Nlink
	out.Owner = fuse.Owner{Uid: record.UID, Gid: record.GID}
	out.Rdev = record.Rdev
	atime, mtime, ctime := record.Atime, record.Mtime, record.Ctime
	out.SetTimes(&atime, &mtime, &ctime)
}

// newChild wraps a looked-up or freshly created record in a kernel inode.
// StableAttr.Ino carries the backend inode number so the kernel dedups
// hard links to the same node.
func (n *node) newChild(ctx context.Context, record *fs.Inode, out *fuse.EntryOut) *gofuse.Inode {
	n.fillAttr(record, &out.Attr)
	child := &node{fsys: n.fsys, ino: record.Ino}
	return n.NewInode(ctx, child, gofuse.StableAttr{
		Mode: kindMode(record.Kind),
		Ino:  uint64(record.Ino),
	})
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	record, err := n.fsys.Lookup(ctx, callerCreds(ctx), n.ino, name)
	if err != nil {
		return nil, errnoOf(err)
	}
	return n.newChild(ctx, record, out), 0
}

func (n *node) Getattr(ctx context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	record, err := n.fsys.GetAttr(ctx, callerCreds(ctx), n.ino)
	if err != nil {
		return errnoOf(err)
	}
	n.fillAttr(record, &out.Attr)
	return 0
}

func (n *node) Setattr(ctx context.Context, _ gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	var set fs.SetAttr
	if mode, ok := in.GetMode(); ok {
		mode &= 0o7777
		set.Mode = &mode
	}
	if uid, ok := in.GetUID(); ok {
		set.UID = &uid
	}
	if gid, ok := in.GetGID(); ok {
		set.GID = &gid
	}
	if size, ok := in.GetSize(); ok {
		set.Size = &size
	}
	if atime, ok := in.GetATime(); ok {
		t := atime
		set.Atime = &t
	}
	if mtime, ok := in.GetMTime(); ok {
		t := mtime
		set.Mtime = &t
	}

	record, err := n.fsys.SetAttr(ctx, callerCreds(ctx), n.ino, set)
	if err != nil {
		return errnoOf(err)
	}
	n.fillAttr(record, &out.Attr)
	return 0
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	record, err := n.fsys.Mkdir(ctx, callerCreds(ctx), n.ino, name, mode&0o7777)
	if err != nil {
		return nil, errnoOf(err)
	}
	return n.newChild(ctx, record, out), 0
}

func (n *node) Mknod(ctx context.Context, name string, mode uint32, dev uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	record, err := n.fsys.Mknod(ctx, callerCreds(ctx), n.ino, name, mode, dev)
	if err != nil {
		return nil, errnoOf(err)
	}
	return n.newChild(ctx, record, out), 0
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	record, handle, err := n.fsys.Create(ctx, callerCreds(ctx), n.ino, name, mode&0o7777, openFlagsOf(flags))
	if err != nil {
		return nil, nil, 0, errnoOf(err)
	}
	child := n.newChild(ctx, record, out)
	return child, &fileHandle{fsys: n.fsys, id: handle}, 0, 0
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	return errnoOf(n.fsys.Unlink(ctx, callerCreds(ctx), n.ino, name))
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return errnoOf(n.fsys.Rmdir(ctx, callerCreds(ctx), n.ino, name))
}

func (n *node) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	// RENAME_NOREPLACE and RENAME_EXCHANGE are not supported; the
	// default overwrite semantics cover the portable rename(2) contract.
	if flags != 0 {
		return syscall.EINVAL
	}
	target, ok := newParent.(*node)
	if !ok {
		return syscall.EXDEV
	}
	return errnoOf(n.fsys.Rename(ctx, callerCreds(ctx), n.ino, name, target.ino, newName))
}

func (n *node) Link(ctx context.Context, target gofuse.InodeEmbedder, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	source, ok := target.(*node)
	if !ok {
		return nil, syscall.EXDEV
	}
	record, err := n.fsys.Link(ctx, callerCreds(ctx), source.ino, n.ino, name)
	if err != nil {
		return nil, errnoOf(err)
	}
	return n.newChild(ctx, record, out), 0
}

func (n *node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	record, err := n.fsys.Symlink(ctx, callerCreds(ctx), n.ino, name, target)
	if err != nil {
		return nil, errnoOf(err)
	}
	return n.newChild(ctx, record, out), 0
}

func (n *node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	target, err := n.fsys.Readlink(ctx, callerCreds(ctx), n.ino)
	if err != nil {
		return nil, errnoOf(err)
	}
	return target, 0
}

func (n *node) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	handle, err := n.fsys.Open(ctx, callerCreds(ctx), n.ino, openFlagsOf(flags))
	if err != nil {
		return nil, 0, errnoOf(err)
	}
	return &fileHandle{fsys: n.fsys, id: handle}, 0, 0
}

func (n *node) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	entries, err := n.fsys.ReadDir(ctx, callerCreds(ctx), n.ino)
	if err != nil {
		return nil, errnoOf(err)
	}
	list := make([]fuse.DirEntry, 0, len(entries))
	for _, entry := range entries {
		list = append(list, fuse.DirEntry{
			Name: entry.Name,
			Ino:  uint64(entry.Ino),
			Mode: kindMode(entry.Kind),
		})
	}
	return gofuse.NewListDirStream(list), 0
}

func (n *node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	stats, err := n.fsys.StatFS(ctx)
	if err != nil {
		return errnoOf(err)
	}
	out.Bsize = stats.BlockSize
	out.Frsize = stats.BlockSize
	out.Blocks = stats.TotalBlocks
	out.Bfree = stats.FreeBlocks
	out.Bavail = stats.FreeBlocks
	out.Files = stats.TotalInodes
	out.Ffree = stats.FreeInodes
	out.NameLen = fs.MaxNameLen
	return 0
}

func (n *node) Fsync(ctx context.Context, f gofuse.FileHandle, _ uint32) syscall.Errno {
	handle, ok := f.(*fileHandle)
	if !ok {
		return syscall.EBADF
	}
	return errnoOf(n.fsys.Fsync(ctx, handle.id))
}
