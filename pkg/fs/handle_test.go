package fs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleTable(t *testing.T) {
	t.Run("OpenResolveRelease", func(t *testing.T) {
		table := newHandleTable()
		id, err := table.open(42, OpenFlags{Read: true, Write: true})
		require.NoError(t, err)
		require.NotZero(t, id)

		ino, flags, err := table.resolve(id)
		require.NoError(t, err)
		require.Equal(t, Ino(42), ino)
		require.True(t, flags.Read)
		require.True(t, flags.Write)

		ino, purge, err := table.release(id)
		require.NoError(t, err)
		require.Equal(t, Ino(42), ino)
		require.False(t, purge)
	})

	t.Run("ReleasedHandleIsStale", func(t *testing.T) {
		table := newHandleTable()
		id, err := table.open(1, OpenFlags{Read: true})
		require.NoError(t, err)
		_, _, err = table.release(id)
		require.NoError(t, err)

		_, _, err = table.resolve(id)
		require.True(t, IsCode(err, ErrStaleHandle))
		_, _, err = table.release(id)
		require.True(t, IsCode(err, ErrStaleHandle))
	})

	t.Run("UnknownHandleIsStale", func(t *testing.T) {
		table := newHandleTable()
		_, _, err := table.resolve(HandleID(1<<32 | 7))
		require.True(t, IsCode(err, ErrStaleHandle))
	})

	t.Run("RecycledSlotGetsFreshGeneration", func(t *testing.T) {
		table := newHandleTable()
		first, err := table.open(1, OpenFlags{Read: true})
		require.NoError(t, err)
		_, _, err = table.release(first)
		require.NoError(t, err)

		// The slot is recycled for the next open; the stamped generation
		// keeps the old id from resolving to the new occupant.
		second, err := table.open(2, OpenFlags{Read: true})
		require.NoError(t, err)
		require.NotEqual(t, first, second)
		require.Equal(t, uint32(first), uint32(second), "slot index should be recycled")

		_, _, err = table.resolve(first)
		require.True(t, IsCode(err, ErrStaleHandle))

		ino, _, err := table.resolve(second)
		require.NoError(t, err)
		require.Equal(t, Ino(2), ino)
	})

	t.Run("OpenCountTracksHandlesPerInode", func(t *testing.T) {
		table := newHandleTable()
		a, err := table.open(5, OpenFlags{Read: true})
		require.NoError(t, err)
		b, err := table.open(5, OpenFlags{Write: true})
		require.NoError(t, err)
		require.Equal(t, uint32(2), table.openCount(5))

		_, _, err = table.release(a)
		require.NoError(t, err)
		require.Equal(t, uint32(1), table.openCount(5))

		_, _, err = table.release(b)
		require.NoError(t, err)
		require.Equal(t, uint32(0), table.openCount(5))
	})
}

func TestOrphanTracking(t *testing.T) {
	t.Run("LastReleasePurgesOrphan", func(t *testing.T) {
		table := newHandleTable()
		a, err := table.open(9, OpenFlags{Read: true})
		require.NoError(t, err)
		b, err := table.open(9, OpenFlags{Read: true})
		require.NoError(t, err)

		require.False(t, table.beginPurge(9), "open handles defer the purge")

		_, purge, err := table.release(a)
		require.NoError(t, err)
		require.False(t, purge, "not the last handle yet")

		_, purge, err = table.release(b)
		require.NoError(t, err)
		require.True(t, purge, "last release of an orphan must purge")
	})

	t.Run("BeginPurgeWithoutHandlesCondemns", func(t *testing.T) {
		table := newHandleTable()
		require.True(t, table.beginPurge(9), "no handles, caller deletes now")

		// Condemned inodes cannot be opened until the purge finishes.
		_, err := table.open(9, OpenFlags{Read: true})
		require.True(t, IsCode(err, ErrNotFound))

		table.endPurge(9)
		id, err := table.open(9, OpenFlags{Read: true})
		require.NoError(t, err)
		_, _, err = table.release(id)
		require.NoError(t, err)
	})

	t.Run("OpenBeforeBeginPurgeWins", func(t *testing.T) {
		// The interleaving unlink races against: the handle lands first,
		// so the purge decision must defer to the last release.
		table := newHandleTable()
		id, err := table.open(3, OpenFlags{Read: true})
		require.NoError(t, err)

		require.False(t, table.beginPurge(3))

		_, _, err = table.resolve(id)
		require.NoError(t, err, "existing handle stays live")

		_, purge, err := table.release(id)
		require.NoError(t, err)
		require.True(t, purge)
	})

	t.Run("NonOrphanReleaseNeverPurges", func(t *testing.T) {
		table := newHandleTable()
		id, err := table.open(9, OpenFlags{Read: true})
		require.NoError(t, err)
		_, purge, err := table.release(id)
		require.NoError(t, err)
		require.False(t, purge)
	})
}
