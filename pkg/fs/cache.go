package fs

import (
	"container/list"
	"sync"
)

// Cache Layer
// ===========
//
// Two bounded LRU caches sit in front of the backend: decoded inode records
// keyed by inode number, and raw block bytes keyed by (inode, block index).
// The backend copy is always authoritative once committed, so eviction just
// drops entries and never performs I/O.
//
// Consistency rule: a transaction's writes must not be visible in the cache
// until the transaction commits, and a failed or retried transaction must
// leave no trace. Mutating operations therefore write into a per-transaction
// stage (txnStage); the coordinator publishes the stage into the shared
// caches in one locked step after a successful commit and simply discards it
// otherwise. Reads inside a transaction consult the stage first so a unit of
// work observes its own pending writes.
//
// Read-miss population has a second hazard: a read-only transaction holds an
// old snapshot, and an entry published after that snapshot can be evicted
// again before the reader populates, so "insert if absent" alone would
// reinsert the stale record. Each cache therefore carries a publish sequence
// number; population is conditional on the sequence observed when the
// reader's snapshot was taken, and any intervening publish voids it.

// blockID identifies one cached block.
type blockID struct {
	ino   Ino
	index uint64
}

// lruCache is a strict least-recently-used cache: a map for lookup and an
// intrusive list for recency, both guarded by one mutex. Capacity is an
// entry count; inserting into a full cache drops the coldest entry.
type lruCache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	entries  map[K]*list.Element
	recency  *list.List

	// seq counts publishes into this cache. Conditional population compares
	// against it so a reader cannot resurrect an entry that a later commit
	// already superseded.
	seq uint64

	hits   uint64
	misses uint64
}

type lruEntry[K comparable, V any] struct {
	key   K
	value V
}

func newLRUCache[K comparable, V any](capacity int) *lruCache[K, V] {
	return &lruCache[K, V]{
		capacity: capacity,
		entries:  make(map[K]*list.Element),
		recency:  list.New(),
	}
}

// get returns the cached value and marks it most recently used.
func (c *lruCache[K, V]) get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.recency.MoveToFront(element)
	return element.Value.(*lruEntry[K, V]).value, true
}

// put inserts or replaces a value, evicting the least recently used entry
// when the cache is full. The cache takes ownership of value.
func (c *lruCache[K, V]) put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, value)
}

func (c *lruCache[K, V]) putLocked(key K, value V) {
	if c.capacity <= 0 {
		return
	}
	if element, ok := c.entries[key]; ok {
		element.Value.(*lruEntry[K, V]).value = value
		c.recency.MoveToFront(element)
		return
	}
	for len(c.entries) >= c.capacity {
		oldest := c.recency.Back()
		if oldest == nil {
			break
		}
		c.recency.Remove(oldest)
		delete(c.entries, oldest.Value.(*lruEntry[K, V]).key)
	}
	c.entries[key] = c.recency.PushFront(&lruEntry[K, V]{key: key, value: value})
}

// version returns the current publish sequence. Read-only transactions
// sample it before their snapshot is taken and pass it to putIfAbsent.
func (c *lruCache[K, V]) version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// putIfAbsent inserts a value only when the key is not cached and no
// publish has landed since version was sampled. Used by read-miss
// population: an existing entry may be newer than the reader's snapshot,
// and a publish after version means the reader's copy may be stale even
// when the key is absent now.
func (c *lruCache[K, V]) putIfAbsent(key K, value V, version uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq != version {
		return
	}
	if _, ok := c.entries[key]; ok {
		return
	}
	c.putLocked(key, value)
}

// drop removes a key if present.
func (c *lruCache[K, V]) drop(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked(key)
}

func (c *lruCache[K, V]) dropLocked(key K) {
	if element, ok := c.entries[key]; ok {
		c.recency.Remove(element)
		delete(c.entries, key)
	}
}

// len returns the current entry count.
func (c *lruCache[K, V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// stats returns cumulative hit and miss counts.
func (c *lruCache[K, V]) stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// cacheSet bundles the two shared caches.
type cacheSet struct {
	inodes *lruCache[Ino, *Inode]
	blocks *lruCache[blockID, []byte]
}

func newCacheSet(inodeEntries, blockEntries int) *cacheSet {
	return &cacheSet{
		inodes: newLRUCache[Ino, *Inode](inodeEntries),
		blocks: newLRUCache[blockID, []byte](blockEntries),
	}
}

// publish applies a committed transaction's staged updates. Each cache is
// updated under its own lock in one step, so a concurrent reader sees either
// none or all of the stage's effect on that cache, never a torn entry. The
// sequence bump happens under the same lock, which voids every conditional
// population that sampled an earlier version.
func (s *cacheSet) publish(stage *txnStage) {
	if len(stage.inodes) > 0 {
		s.inodes.mu.Lock()
		s.inodes.seq++
		for ino, inode := range stage.inodes {
			if inode == nil {
				s.inodes.dropLocked(ino)
			} else {
				s.inodes.putLocked(ino, inode)
			}
		}
		s.inodes.mu.Unlock()
	}
	if len(stage.blocks) > 0 {
		s.blocks.mu.Lock()
		s.blocks.seq++
		for id, data := range stage.blocks {
			if data == nil {
				s.blocks.dropLocked(id)
			} else {
				s.blocks.putLocked(id, data)
			}
		}
		s.blocks.mu.Unlock()
	}
}

// txnStage accumulates one transaction's pending cache updates. A nil value
// marks a deletion. The stage is confined to the owning transaction's
// goroutine, so it needs no locking.
type txnStage struct {
	inodes map[Ino]*Inode
	blocks map[blockID][]byte
}

func newTxnStage() *txnStage {
	return &txnStage{
		inodes: make(map[Ino]*Inode),
		blocks: make(map[blockID][]byte),
	}
}

// stageInode records a pending inode write (or deletion when inode is nil).
func (st *txnStage) stageInode(ino Ino, inode *Inode) {
	st.inodes[ino] = inode
}

// stagedInode returns the pending record for ino, distinguishing "staged as
// deleted" (nil, true) from "not staged" (nil, false).
func (st *txnStage) stagedInode(ino Ino) (*Inode, bool) {
	inode, ok := st.inodes[ino]
	return inode, ok
}

// stageBlock records a pending block write (or deletion when data is nil).
// The stage takes ownership of data.
func (st *txnStage) stageBlock(ino Ino, index uint64, data []byte) {
	st.blocks[blockID{ino: ino, index: index}] = data
}

// stagedBlock returns the pending bytes for a block, with the same
// tri-state semantics as stagedInode.
func (st *txnStage) stagedBlock(ino Ino, index uint64) ([]byte, bool) {
	data, ok := st.blocks[blockID{ino: ino, index: index}]
	return data, ok
}
