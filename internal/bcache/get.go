package bcache

import "time"

// get returns a buffer bound to (dev, blockno) with its sleep lock held by
// the caller. It never fails except by panic when the pool is exhausted.
func (c *Cache) get(dev, blockno uint32) *Buffer {
	key := c.hash(dev, blockno)
	b := &c.buckets[key]

	if buf := c.tryFast(b, dev, blockno); buf != nil {
		return buf
	}

	c.evictMu.Lock()
	if buf := c.rescanUnderEviction(b, dev, blockno); buf != nil {
		c.evictMu.Unlock()
		return buf
	}

	start := time.Now()
	victim, victimIdx, victimPred, heldBucket := c.scanVictim()
	if victim == nil {
		c.evictMu.Unlock()
		c.m.PoolExhausted.Add(1)
		panicPoolExhausted(c.log, len(c.buckets))
	}

	c.rebind(victim, victimIdx, victimPred, heldBucket, b, key, dev, blockno)
	c.evictMu.Unlock()
	c.m.RecordEviction(time.Since(start))

	victim.lock.Lock() // free since refcnt was 0, unless a concurrent get of the same key took it first
	c.markHolder(victim)
	return victim
}

// tryFast is Phase A: one short-term bucket lock covers the common case
// where (dev, blockno) is already resident. Returns nil on a miss, having
// released the bucket lock.
func (c *Cache) tryFast(b *bucket, dev, blockno uint32) *Buffer {
	b.mu.Lock()
	buf := findInChain(b.head, dev, blockno)
	if buf == nil {
		b.mu.Unlock()
		return nil
	}
	buf.refcnt++
	b.mu.Unlock()
	buf.lock.Lock() // may block
	c.markHolder(buf)
	return buf
}

// rescanUnderEviction is Phase B: called with c.evictMu held. Another
// goroutine may have inserted (dev, blockno) in the window between
// tryFast's bucket-lock release and this call; skipping this re-walk would
// let two resident copies of the same key exist. Returns nil on a genuine
// miss; the caller still holds c.evictMu in that case.
func (c *Cache) rescanUnderEviction(b *bucket, dev, blockno uint32) *Buffer {
	buf := findInChain(b.head, dev, blockno)
	if buf == nil {
		return nil
	}
	b.mu.Lock()
	buf.refcnt++
	b.mu.Unlock()
	buf.lock.Lock()
	c.markHolder(buf)
	return buf
}

// scanVictim is Phase C: called with c.evictMu held. It visits every
// bucket in ascending index order, retaining at most one bucket lock at a
// time in addition to the eviction lock, and returns the refcnt==0 buffer
// with the smallest lastUsed along with its bucket index, its predecessor
// in that bucket's chain (nil if it is the head), and the still-locked
// bucket. The caller must unlock the returned bucket once rebinding is
// complete. Returns a nil victim (and no held lock) if no candidate
// exists anywhere.
func (c *Cache) scanVictim() (victim *Buffer, victimIdx int, victimPred *Buffer, heldBucket *bucket) {
	victimIdx = -1
	for i := range c.buckets {
		cur := &c.buckets[i]
		cur.mu.Lock()

		var pred *Buffer
		for buf := cur.head; buf != nil; buf = buf.next {
			if buf.refcnt == 0 && (victim == nil || buf.lastUsed < victim.lastUsed) {
				victim = buf
				victimPred = pred
				victimIdx = i
				if heldBucket != nil && heldBucket != cur {
					heldBucket.mu.Unlock()
				}
				heldBucket = cur
			}
			pred = buf
		}

		if heldBucket != cur {
			cur.mu.Unlock()
		}
	}
	return victim, victimIdx, victimPred, heldBucket
}

// rebind is Phase D: called with c.evictMu held and heldBucket (the bucket
// that produced victim in scanVictim) still locked. It rewrites victim's
// key, relinking it into target (the bucket for the new key) if that
// differs from heldBucket, and releases whichever bucket locks it touches.
func (c *Cache) rebind(victim *Buffer, victimIdx int, victimPred *Buffer, heldBucket *bucket, target *bucket, targetIdx int, dev, blockno uint32) {
	if victimIdx == targetIdx {
		victim.dev = dev
		victim.blockno = blockno
		victim.valid = false
		victim.refcnt = 1
		heldBucket.mu.Unlock()
		return
	}

	unlink(heldBucket, victim, victimPred)
	heldBucket.mu.Unlock()

	target.mu.Lock()
	victim.next = target.head
	target.head = victim
	victim.dev = dev
	victim.blockno = blockno
	victim.valid = false
	victim.refcnt = 1
	target.mu.Unlock()
}

// findInChain returns the buffer bound to (dev, blockno) in the chain
// headed by head, or nil. The caller must hold whatever lock makes this
// walk safe (the owning bucket lock, or the eviction lock when the bucket
// lock itself was released but rebinding is excluded).
func findInChain(head *Buffer, dev, blockno uint32) *Buffer {
	for buf := head; buf != nil; buf = buf.next {
		if buf.dev == dev && buf.blockno == blockno {
			return buf
		}
	}
	return nil
}

// unlink removes victim from b's chain given its predecessor (nil if
// victim is the head). Must be called with b's lock held.
func unlink(b *bucket, victim, pred *Buffer) {
	if pred == nil {
		b.head = victim.next
	} else {
		pred.next = victim.next
	}
	victim.next = nil
}

// Read returns a locked buffer bound to (dev, blockno) whose data mirrors
// the on-disk block. If the buffer was not already valid, it issues a
// synchronous read through the disk driver.
func (c *Cache) Read(dev, blockno uint32) (*Buffer, error) {
	buf := c.get(dev, blockno)
	c.m.RecordGet(buf.valid)
	if buf.valid {
		return buf, nil
	}

	start := time.Now()
	err := c.drv.ReadBlock(dev, blockno, buf.data)
	c.m.RecordDiskRead(time.Since(start))
	if err != nil {
		c.log.Errorf("disk_read_error", "dev=%d blockno=%d: %v", dev, blockno, err)
		return buf, err
	}
	buf.valid = true
	return buf, nil
}

// Write flushes buf.data to disk. The caller must hold buf's sleep lock
// (i.e. buf must have come from Read/get and not yet been Released).
func (c *Cache) Write(buf *Buffer) error {
	if !c.holdsSleepLock(buf) {
		panicSleepLockViolation(c.log, "write", buf.dev, buf.blockno)
	}

	start := time.Now()
	err := c.drv.WriteBlock(buf.dev, buf.blockno, buf.data)
	c.m.RecordDiskWrite(time.Since(start))
	if err != nil {
		c.log.Errorf("disk_write_error", "dev=%d blockno=%d: %v", buf.dev, buf.blockno, err)
	}
	return err
}

// Release releases buf's sleep lock and drops one reference. If refcnt
// drops to zero, lastUsed is stamped so the buffer becomes eligible for
// eviction in future victim scans. The caller must hold buf's sleep lock.
func (c *Cache) Release(buf *Buffer) {
	if !c.holdsSleepLock(buf) {
		panicSleepLockViolation(c.log, "release", buf.dev, buf.blockno)
	}
	buf.lock.Unlock()

	b := &c.buckets[c.hash(buf.dev, buf.blockno)]
	b.mu.Lock()
	buf.refcnt--
	if buf.refcnt == 0 {
		buf.lastUsed = c.clock.now()
	}
	b.mu.Unlock()
}

// Pin adds one non-exclusive reference to buf, keeping it resident without
// taking its sleep lock.
func (c *Cache) Pin(buf *Buffer) {
	b := &c.buckets[c.hash(buf.dev, buf.blockno)]
	b.mu.Lock()
	buf.refcnt++
	b.mu.Unlock()
}

// Unpin removes one non-exclusive reference added by Pin.
func (c *Cache) Unpin(buf *Buffer) {
	b := &c.buckets[c.hash(buf.dev, buf.blockno)]
	b.mu.Lock()
	buf.refcnt--
	if buf.refcnt == 0 {
		buf.lastUsed = c.clock.now()
	}
	b.mu.Unlock()
}

// markHolder records the calling goroutine as buf's sleep-lock holder. Must
// be called immediately after a successful buf.lock.Lock().
func (c *Cache) markHolder(buf *Buffer) {
	buf.holder.Store(goroutineID())
}

// holdsSleepLock reports whether the calling goroutine is buf's current
// sleep-lock holder. sync.Mutex has no owner tracking of its own, so a bare
// TryLock only tells us whether *someone* holds the lock, not whether it is
// the caller — a goroutine that never acquired it could otherwise call
// Release and unlock a different goroutine's buffer out from under it. We
// therefore also compare against the goroutine id stamped by markHolder.
func (c *Cache) holdsSleepLock(buf *Buffer) bool {
	if buf.lock.TryLock() {
		buf.lock.Unlock()
		return false // nobody held it: definitely a violation
	}
	return buf.holder.Load() == goroutineID()
}
