package bcache

import "blockcache/internal/logger"

// Two fatal conditions exist; both are configuration/programmer errors with
// no recovery path at this layer.

// panicPoolExhausted is raised by the victim scan when every buffer in the
// pool has refcnt > 0: the workload's simultaneously pinned set exceeds
// NBuf. There is no retry; callers must bound outstanding pins.
func panicPoolExhausted(log *logger.Logger, nbucket int) {
	log.Errorf("pool_exhausted", "no buffer with refcnt==0 found across %d buckets", nbucket)
	panic("bcache: no buffers")
}

// panicSleepLockViolation is raised when Write or Release is called on a
// buffer the caller does not hold the sleep lock for. The spec treats this
// as a hard protocol violation, never a soft error.
func panicSleepLockViolation(log *logger.Logger, op string, dev, blockno uint32) {
	log.Errorf("sleep_lock_violation", "%s called without sleep lock on dev=%d blockno=%d", op, dev, blockno)
	panic("bcache: sleep lock not held")
}
