package fs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInodeRecordRoundTrip(t *testing.T) {
	now := time.Now().Round(time.Microsecond)

	t.Run("RegularFileWithInlineContent", func(t *testing.T) {
		original := &Inode{
			Ino:    7,
			Kind:   KindRegular,
			Size:   11,
			UID:    501,
			GID:    20,
			Mode:   0o644,
			Nlink:  1,
			Atime:  now,
			Mtime:  now,
			Ctime:  now,
			Inline: []byte("hello world"),
		}

		data, err := encodeInode(original)
		require.NoError(t, err)
		decoded, err := decodeInode(data)
		require.NoError(t, err)

		require.Equal(t, original.Ino, decoded.Ino)
		require.Equal(t, original.Kind, decoded.Kind)
		require.Equal(t, original.Size, decoded.Size)
		require.Equal(t, original.Mode, decoded.Mode)
		require.Equal(t, original.Inline, decoded.Inline)
		require.True(t, original.Mtime.Equal(decoded.Mtime))
	})

	t.Run("BlockBackedFileHasNoInline", func(t *testing.T) {
		original := &Inode{Ino: 8, Kind: KindRegular, Size: 10000, Blocks: 3, Nlink: 2}
		data, err := encodeInode(original)
		require.NoError(t, err)
		decoded, err := decodeInode(data)
		require.NoError(t, err)
		require.Equal(t, uint64(3), decoded.Blocks)
		require.Nil(t, decoded.Inline)
	})

	t.Run("InvalidKindRejected", func(t *testing.T) {
		_, err := decodeInode([]byte(`{"ino":1,"kind":99}`))
		require.Error(t, err)
	})

	t.Run("GarbageRejected", func(t *testing.T) {
		_, err := decodeInode([]byte("not json"))
		require.Error(t, err)
	})
}

func TestDirentValue(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		value := encodeDirentValue(1234, KindSymlink)
		require.Len(t, value, direntValueLen)

		ino, kind, err := decodeDirentValue(value)
		require.NoError(t, err)
		require.Equal(t, Ino(1234), ino)
		require.Equal(t, KindSymlink, kind)
	})

	t.Run("WrongLength", func(t *testing.T) {
		_, _, err := decodeDirentValue([]byte{1, 2, 3})
		require.Error(t, err)
	})

	t.Run("InvalidKind", func(t *testing.T) {
		value := encodeDirentValue(1, KindRegular)
		value[8] = 0
		_, _, err := decodeDirentValue(value)
		require.Error(t, err)
	})
}

func TestCounterValue(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		for _, n := range []uint64{0, 2, 1 << 40} {
			got, err := decodeCounter(encodeCounter(n))
			require.NoError(t, err)
			require.Equal(t, n, got)
		}
	})

	t.Run("WrongLength", func(t *testing.T) {
		_, err := decodeCounter([]byte{0, 0, 0, 1})
		require.Error(t, err)
	})
}
