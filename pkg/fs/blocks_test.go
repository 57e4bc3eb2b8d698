package fs

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// pattern fills a deterministic byte sequence so copies can be verified
// positionally.
func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func TestInlineContent(t *testing.T) {
	ctx := context.Background()

	t.Run("SmallWriteStaysInline", func(t *testing.T) {
		fsys := newTestFS(t, Options{BlockSize: 4096, InlineThreshold: 256})
		file := createFile(t, fsys, RootIno, "small")
		writeFile(t, fsys, file.Ino, []byte("tiny"))

		attr, err := fsys.GetAttr(ctx, rootCreds, file.Ino)
		require.NoError(t, err)
		require.Equal(t, uint64(4), attr.Size)
		require.Equal(t, uint64(0), attr.Blocks, "content at the threshold stays inline")
		require.Equal(t, []byte("tiny"), readFile(t, fsys, file.Ino, 0, 64))
	})

	t.Run("WriteAtThresholdBoundary", func(t *testing.T) {
		fsys := newTestFS(t, Options{BlockSize: 4096, InlineThreshold: 256})
		file := createFile(t, fsys, RootIno, "exact")
		writeFile(t, fsys, file.Ino, pattern(256))

		attr, err := fsys.GetAttr(ctx, rootCreds, file.Ino)
		require.NoError(t, err)
		require.Equal(t, uint64(0), attr.Blocks)
		require.Equal(t, pattern(256), readFile(t, fsys, file.Ino, 0, 512))
	})

	t.Run("CrossingThresholdMigratesToBlocks", func(t *testing.T) {
		fsys := newTestFS(t, Options{BlockSize: 4096, InlineThreshold: 256})
		file := createFile(t, fsys, RootIno, "growing")

		// Start inline, then extend past the threshold: the original
		// prefix must survive the migration.
		writeFile(t, fsys, file.Ino, pattern(200))
		handle, err := fsys.Open(ctx, rootCreds, file.Ino, OpenFlags{Write: true})
		require.NoError(t, err)
		_, err = fsys.Write(ctx, rootCreds, handle, 200, pattern(100))
		require.NoError(t, err)
		require.NoError(t, fsys.Release(ctx, handle))

		attr, err := fsys.GetAttr(ctx, rootCreds, file.Ino)
		require.NoError(t, err)
		require.Equal(t, uint64(300), attr.Size)
		require.Equal(t, uint64(1), attr.Blocks)
		require.Nil(t, attr.Inline)

		got := readFile(t, fsys, file.Ino, 0, 1024)
		require.Equal(t, pattern(200), got[:200])
		require.Equal(t, pattern(100), got[200:])
	})

	t.Run("ShrinkBelowThresholdStaysBlockBacked", func(t *testing.T) {
		fsys := newTestFS(t, Options{BlockSize: 4096, InlineThreshold: 256})
		file := createFile(t, fsys, RootIno, "shrunk")
		writeFile(t, fsys, file.Ino, pattern(300))

		size := uint64(100)
		attr, err := fsys.SetAttr(ctx, rootCreds, file.Ino, SetAttr{Size: &size})
		require.NoError(t, err)
		require.Equal(t, uint64(100), attr.Size)
		require.Equal(t, uint64(1), attr.Blocks, "shrinking does not migrate back inline")
		require.Equal(t, pattern(300)[:100], readFile(t, fsys, file.Ino, 0, 512))
	})
}

func TestBlockIO(t *testing.T) {
	ctx := context.Background()

	t.Run("MultiBlockRoundTrip", func(t *testing.T) {
		fsys := newTestFS(t, Options{BlockSize: 512, InlineThreshold: 64})
		file := createFile(t, fsys, RootIno, "big")
		data := pattern(512*3 + 100)
		writeFile(t, fsys, file.Ino, data)

		attr, err := fsys.GetAttr(ctx, rootCreds, file.Ino)
		require.NoError(t, err)
		require.Equal(t, uint64(len(data)), attr.Size)
		require.Equal(t, uint64(4), attr.Blocks)
		require.Equal(t, data, readFile(t, fsys, file.Ino, 0, 4096))
	})

	t.Run("UnalignedOverwrite", func(t *testing.T) {
		fsys := newTestFS(t, Options{BlockSize: 512, InlineThreshold: 64})
		file := createFile(t, fsys, RootIno, "patched")
		data := pattern(1500)
		writeFile(t, fsys, file.Ino, data)

		// Overwrite a range straddling the block 0/1 boundary.
		patch := bytes.Repeat([]byte{0xAB}, 200)
		handle, err := fsys.Open(ctx, rootCreds, file.Ino, OpenFlags{Write: true})
		require.NoError(t, err)
		_, err = fsys.Write(ctx, rootCreds, handle, 400, patch)
		require.NoError(t, err)
		require.NoError(t, fsys.Release(ctx, handle))

		got := readFile(t, fsys, file.Ino, 0, 2048)
		require.Equal(t, data[:400], got[:400])
		require.Equal(t, patch, got[400:600])
		require.Equal(t, data[600:], got[600:])
	})

	t.Run("SparseHoleReadsAsZeros", func(t *testing.T) {
		fsys := newTestFS(t, Options{BlockSize: 512, InlineThreshold: 64})
		file := createFile(t, fsys, RootIno, "sparse")

		handle, err := fsys.Open(ctx, rootCreds, file.Ino, OpenFlags{Write: true})
		require.NoError(t, err)
		_, err = fsys.Write(ctx, rootCreds, handle, 2000, []byte("tail"))
		require.NoError(t, err)
		require.NoError(t, fsys.Release(ctx, handle))

		attr, err := fsys.GetAttr(ctx, rootCreds, file.Ino)
		require.NoError(t, err)
		require.Equal(t, uint64(2004), attr.Size)

		got := readFile(t, fsys, file.Ino, 0, 4096)
		require.Len(t, got, 2004)
		require.Equal(t, make([]byte, 2000), got[:2000], "hole must read as zeros")
		require.Equal(t, []byte("tail"), got[2000:])
	})

	t.Run("ReadPastEOF", func(t *testing.T) {
		fsys := newTestFS(t, Options{BlockSize: 512, InlineThreshold: 64})
		file := createFile(t, fsys, RootIno, "short")
		writeFile(t, fsys, file.Ino, []byte("0123456789"))

		require.Equal(t, []byte("56789"), readFile(t, fsys, file.Ino, 5, 100), "read is clamped to size")
		require.Empty(t, readFile(t, fsys, file.Ino, 10, 100))
		require.Empty(t, readFile(t, fsys, file.Ino, 500, 100))
	})

	t.Run("ReadRequiresReadableHandle", func(t *testing.T) {
		fsys := newTestFS(t, Options{})
		file := createFile(t, fsys, RootIno, "wo")
		handle, err := fsys.Open(ctx, rootCreds, file.Ino, OpenFlags{Write: true})
		require.NoError(t, err)
		defer fsys.Release(ctx, handle)

		_, err = fsys.Read(ctx, rootCreds, handle, 0, 10)
		require.True(t, IsCode(err, ErrInvalidArgument))
		_, err = fsys.Write(ctx, rootCreds, handle, 0, []byte("x"))
		require.NoError(t, err)
	})

	t.Run("WriteRequiresWritableHandle", func(t *testing.T) {
		fsys := newTestFS(t, Options{})
		file := createFile(t, fsys, RootIno, "ro")
		handle, err := fsys.Open(ctx, rootCreds, file.Ino, OpenFlags{Read: true})
		require.NoError(t, err)
		defer fsys.Release(ctx, handle)

		_, err = fsys.Write(ctx, rootCreds, handle, 0, []byte("x"))
		require.True(t, IsCode(err, ErrInvalidArgument))
	})

	t.Run("StaleHandleAfterRelease", func(t *testing.T) {
		fsys := newTestFS(t, Options{})
		file := createFile(t, fsys, RootIno, "f")
		handle, err := fsys.Open(ctx, rootCreds, file.Ino, OpenFlags{Read: true})
		require.NoError(t, err)
		require.NoError(t, fsys.Release(ctx, handle))

		_, err = fsys.Read(ctx, rootCreds, handle, 0, 10)
		require.True(t, IsCode(err, ErrStaleHandle))
	})
}

func TestTruncate(t *testing.T) {
	ctx := context.Background()

	setSize := func(t *testing.T, fsys *FileSystem, ino Ino, size uint64) *Inode {
		t.Helper()
		attr, err := fsys.SetAttr(ctx, rootCreds, ino, SetAttr{Size: &size})
		require.NoError(t, err)
		return attr
	}

	t.Run("ShrinkDropsTailBlocks", func(t *testing.T) {
		fsys := newTestFS(t, Options{BlockSize: 512, InlineThreshold: 64})
		file := createFile(t, fsys, RootIno, "f")
		writeFile(t, fsys, file.Ino, pattern(2000))

		attr := setSize(t, fsys, file.Ino, 700)
		require.Equal(t, uint64(700), attr.Size)
		require.Equal(t, uint64(2), attr.Blocks)
		require.Equal(t, pattern(2000)[:700], readFile(t, fsys, file.Ino, 0, 4096))
	})

	t.Run("ShrinkThenGrowReadsZerosNotStaleBytes", func(t *testing.T) {
		fsys := newTestFS(t, Options{BlockSize: 512, InlineThreshold: 64})
		file := createFile(t, fsys, RootIno, "f")
		writeFile(t, fsys, file.Ino, bytes.Repeat([]byte{0xFF}, 1024))

		setSize(t, fsys, file.Ino, 300)
		attr := setSize(t, fsys, file.Ino, 1024)
		require.Equal(t, uint64(1024), attr.Size)

		got := readFile(t, fsys, file.Ino, 0, 2048)
		require.Equal(t, bytes.Repeat([]byte{0xFF}, 300), got[:300])
		require.Equal(t, make([]byte, 724), got[300:], "bytes past the old cut must be zeros")
	})

	t.Run("TruncateToZero", func(t *testing.T) {
		fsys := newTestFS(t, Options{BlockSize: 512, InlineThreshold: 64})
		file := createFile(t, fsys, RootIno, "f")
		writeFile(t, fsys, file.Ino, pattern(1000))

		attr := setSize(t, fsys, file.Ino, 0)
		require.Equal(t, uint64(0), attr.Size)
		require.Equal(t, uint64(0), attr.Blocks)
		require.Empty(t, readFile(t, fsys, file.Ino, 0, 100))
	})

	t.Run("GrowInlinePastThreshold", func(t *testing.T) {
		fsys := newTestFS(t, Options{BlockSize: 512, InlineThreshold: 64})
		file := createFile(t, fsys, RootIno, "f")
		writeFile(t, fsys, file.Ino, []byte("seed"))

		attr := setSize(t, fsys, file.Ino, 1000)
		require.Equal(t, uint64(1000), attr.Size)
		require.Equal(t, uint64(2), attr.Blocks)
		require.Nil(t, attr.Inline)

		got := readFile(t, fsys, file.Ino, 0, 2048)
		require.Equal(t, []byte("seed"), got[:4])
		require.Equal(t, make([]byte, 996), got[4:])
	})

	t.Run("OpenWithTruncateFlag", func(t *testing.T) {
		fsys := newTestFS(t, Options{BlockSize: 512, InlineThreshold: 64})
		file := createFile(t, fsys, RootIno, "f")
		writeFile(t, fsys, file.Ino, pattern(1000))

		handle, err := fsys.Open(ctx, rootCreds, file.Ino, OpenFlags{Write: true, Truncate: true})
		require.NoError(t, err)
		defer fsys.Release(ctx, handle)

		attr, err := fsys.GetAttr(ctx, rootCreds, file.Ino)
		require.NoError(t, err)
		require.Equal(t, uint64(0), attr.Size)
	})

	t.Run("TruncateDirectoryRejected", func(t *testing.T) {
		fsys := newTestFS(t, Options{})
		dir, err := fsys.Mkdir(ctx, rootCreds, RootIno, "d", 0o755)
		require.NoError(t, err)
		size := uint64(0)
		_, err = fsys.SetAttr(ctx, rootCreds, dir.Ino, SetAttr{Size: &size})
		require.True(t, IsCode(err, ErrIsDirectory))
	})
}
