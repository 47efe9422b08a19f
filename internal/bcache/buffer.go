// Package bcache implements the block buffer cache: a sharded hash table of
// fixed-size buffers guarded by per-bucket locks, a single eviction-arbiter
// lock, and per-buffer sleep locks held across disk I/O.
//
// # Lock hierarchy
//
// Every path acquires locks in descending order and may release in any
// order:
//
//  1. eviction lock
//  2. bucket lock (at most one retained outside the eviction lock; at most
//     one retained across a victim scan while the eviction lock is held)
//  3. a buffer's sleep lock
//
// No path ever acquires two bucket locks simultaneously without also
// holding the eviction lock, so no cycle can form.
//
// # Go realization of spec locks
//
// Both the "spinlock" (bucket lock, eviction lock) and the "sleep lock"
// (per-buffer) are realized as sync.Mutex. Go has no user-space busy-wait
// primitive worth emulating here: goroutines contending for a sync.Mutex
// park instead of spinning, which is strictly better for the short bucket
// and eviction critical sections, and is exactly what a blocking sleep lock
// needs for the buffer lock.
package bcache

import (
	"sync"
	"sync/atomic"
)

// Buffer is one cached block slot. Buffers are never created or destroyed
// after pool initialization; "eviction" rewrites dev/blockno/valid in place.
type Buffer struct {
	// lock is the sleep lock: held by whichever caller currently has
	// exclusive use of data. Acquired in get, released in Release.
	lock sync.Mutex

	// holder records the goroutine id that currently owns lock, stamped by
	// markHolder immediately after every successful lock.Lock(). sync.Mutex
	// itself tracks no owner, so Write/Release consult this to distinguish
	// "the caller holds the sleep lock" from "some goroutine holds it" —
	// the latter alone is not sufficient per the sleep-lock protocol.
	holder atomic.Uint64

	// dev and blockno are rewritten only during rebinding, with the
	// eviction lock and a bucket lock held; rebinding also clears valid.
	// data is filled, and valid then set, by the sleep-lock holder in Read.
	// All four are read freely by the sleep-lock holder.
	dev     uint32
	blockno uint32
	data    []byte
	valid   bool

	// disk is owned by the disk driver collaborator, not by the cache
	// core; the core never reads or writes it. It exists on the struct
	// only because the spec's data model names it, tracking whether the
	// driver currently has the block's bytes in flight.
	disk bool

	// refcnt counts active holders (users + pins). Guarded by the owning
	// bucket's lock.
	refcnt int

	// lastUsed is a monotonic tick stamped when refcnt drops to zero.
	// Guarded by the owning bucket's lock.
	lastUsed uint64

	// next chains this buffer within its owning bucket. Mutated under the
	// owning bucket lock, and additionally under the eviction lock when
	// a buffer moves between buckets.
	next *Buffer
}

// Dev returns the device identifier this buffer is currently bound to.
// Valid to call only while the caller holds the buffer's sleep lock (i.e.
// between a successful get/Read and the matching Release).
func (b *Buffer) Dev() uint32 { return b.dev }

// Blockno returns the block number this buffer is currently bound to.
func (b *Buffer) Blockno() uint32 { return b.blockno }

// Data returns the buffer's backing byte slice. The caller must hold the
// buffer's sleep lock to read or write it.
func (b *Buffer) Data() []byte { return b.data }

// Valid reports whether data mirrors the on-disk block.
func (b *Buffer) Valid() bool { return b.valid }

// bucket is one hash chain: a singly linked list of buffers headed by
// head, guarded by its own short-term lock.
type bucket struct {
	mu   sync.Mutex
	head *Buffer
}
