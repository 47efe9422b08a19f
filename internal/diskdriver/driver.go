// Package diskdriver provides the disk collaborator consumed by the block
// buffer cache. The cache treats the driver as an opaque, synchronous,
// infallible-to-the-cache-layer external dependency: it blocks the calling
// goroutine until the block has been read or written, and any error it
// returns is propagated to the caller unchanged, never interpreted or
// retried by the cache itself.
//
// Two implementations are provided:
//   - MemDriver   — in-memory only, used in tests and as the zero-config default.
//   - BboltDriver — backed by an embedded bbolt database, used when a real
//     on-disk image is wanted.
package diskdriver

// Driver is the disk collaborator interface. All implementations must be
// safe for concurrent use, since the cache may have many goroutines blocked
// on disk I/O for different blocks at once.
type Driver interface {
	// ReadBlock reads the stored bytes for (dev, blockno) into buf; the
	// cache passes a BSIZE-long buf. A never-written block reads as zeros.
	ReadBlock(dev, blockno uint32, buf []byte) error

	// WriteBlock writes buf to (dev, blockno).
	WriteBlock(dev, blockno uint32, buf []byte) error

	// Close releases any resources held by the driver (e.g. file handles).
	Close() error
}
