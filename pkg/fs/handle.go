package fs

import (
	"sync"
)

// HandleID is an opaque identifier for one open instance of an inode.
// Zero is never a valid handle.
type HandleID uint64

// OpenFlags is the dispatcher-level view of open(2) access flags. The OS
// bridge translates the platform flag word; the core only cares about the
// access mode and truncation.
type OpenFlags struct {
	Read     bool
	Write    bool
	Truncate bool
}

// handleTable tracks open file handles in an arena of slots with a free
// list, so slot storage is recycled after release. A released slot bumps its
// generation, and the generation is folded into the HandleID
// (generation<<32 | slot), so an id that survived its release resolves to a
// StaleHandle error instead of a recycled stranger.
//
// The table also owns the open-file bookkeeping that the deferred-deletion
// policy needs: per-inode open counts, the orphan set (inodes whose last
// link is gone but which stay alive until their last handle closes), and
// the condemned set (inodes between the decision to delete and the commit
// of the purge, during which new opens are refused). All three live behind
// the one mutex, so "is anyone holding this open" and "may this still be
// opened" are answered atomically with handle allocation.
type handleTable struct {
	mu        sync.Mutex
	slots     []handleSlot
	free      []uint32
	opens     map[Ino]uint32
	orphans   map[Ino]struct{}
	condemned map[Ino]struct{}
}

type handleSlot struct {
	inUse bool
	gen   uint32
	ino   Ino
	flags OpenFlags
}

func newHandleTable() *handleTable {
	return &handleTable{
		opens:     make(map[Ino]uint32),
		orphans:   make(map[Ino]struct{}),
		condemned: make(map[Ino]struct{}),
	}
}

// open allocates a handle for ino, reusing a free slot when one exists.
// An inode condemned to deletion cannot be opened.
func (t *handleTable) open(ino Ino, flags OpenFlags) (HandleID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, gone := t.condemned[ino]; gone {
		return 0, errNotFound("inode", inoPath(ino))
	}

	var slot uint32
	if n := len(t.free); n > 0 {
		slot = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.slots = append(t.slots, handleSlot{})
		slot = uint32(len(t.slots) - 1)
	}

	s := &t.slots[slot]
	s.inUse = true
	s.gen++
	s.ino = ino
	s.flags = flags

	t.opens[ino]++
	return HandleID(uint64(s.gen)<<32 | uint64(slot)), nil
}

// resolve returns the inode and flags for a live handle, or StaleHandle.
func (t *handleTable) resolve(id HandleID) (Ino, OpenFlags, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot := uint32(id)
	gen := uint32(id >> 32)
	if int(slot) >= len(t.slots) {
		return 0, OpenFlags{}, &Error{Code: ErrStaleHandle, Message: "unknown file handle"}
	}
	s := &t.slots[slot]
	if !s.inUse || s.gen != gen {
		return 0, OpenFlags{}, &Error{Code: ErrStaleHandle, Message: "file handle was released"}
	}
	return s.ino, s.flags, nil
}

// release frees a handle. Released is terminal: the slot returns to the free
// list and any later use of the id fails StaleHandle. Returns the inode and
// whether this was the inode's last open handle on an orphaned inode, in
// which case the caller must purge it from the backend.
func (t *handleTable) release(id HandleID) (ino Ino, purge bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot := uint32(id)
	gen := uint32(id >> 32)
	if int(slot) >= len(t.slots) {
		return 0, false, &Error{Code: ErrStaleHandle, Message: "unknown file handle"}
	}
	s := &t.slots[slot]
	if !s.inUse || s.gen != gen {
		return 0, false, &Error{Code: ErrStaleHandle, Message: "file handle already released"}
	}

	ino = s.ino
	s.inUse = false
	s.ino = 0
	t.free = append(t.free, slot)

	if t.opens[ino] <= 1 {
		delete(t.opens, ino)
		if _, orphaned := t.orphans[ino]; orphaned {
			delete(t.orphans, ino)
			purge = true
		}
	} else {
		t.opens[ino]--
	}
	return ino, purge, nil
}

// openCount returns how many live handles reference ino.
func (t *handleTable) openCount(ino Ino) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opens[ino]
}

// beginPurge decides, atomically against handle allocation, how an inode
// whose last link is gone dies. With open handles it joins the orphan set
// and deletion waits for the last release; beginPurge returns false. With
// none it is condemned, barring new opens until endPurge, and the caller
// deletes it now; beginPurge returns true.
func (t *handleTable) beginPurge(ino Ino) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.opens[ino] > 0 {
		t.orphans[ino] = struct{}{}
		return false
	}
	t.condemned[ino] = struct{}{}
	return true
}

// endPurge lifts the open bar once the purge transaction has finished.
func (t *handleTable) endPurge(ino Ino) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.condemned, ino)
}
