package diskdriver

import (
	"sync"
	"time"
)

// key identifies a block across the whole simulated disk.
type key struct {
	dev     uint32
	blockno uint32
}

// MemDriver is a thread-safe in-memory Driver. Used in tests and as the
// default disk when no on-disk path is configured.
type MemDriver struct {
	mu      sync.RWMutex
	blocks  map[key][]byte
	latency time.Duration // artificial delay applied before every op, simulating a real disk
}

// NewMemDriver returns an empty in-memory disk. latency, if non-zero, is
// slept before every ReadBlock/WriteBlock to simulate a disk round-trip —
// this is what the cache's sleep lock actually protects callers from.
func NewMemDriver(latency time.Duration) *MemDriver {
	return &MemDriver{
		blocks:  make(map[key][]byte),
		latency: latency,
	}
}

func (d *MemDriver) ReadBlock(dev, blockno uint32, buf []byte) error {
	if d.latency > 0 {
		time.Sleep(d.latency)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if stored, ok := d.blocks[key{dev, blockno}]; ok {
		copy(buf, stored)
	} else {
		for i := range buf {
			buf[i] = 0
		}
	}
	return nil
}

func (d *MemDriver) WriteBlock(dev, blockno uint32, buf []byte) error {
	if d.latency > 0 {
		time.Sleep(d.latency)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	stored := make([]byte, len(buf))
	copy(stored, buf)
	d.blocks[key{dev, blockno}] = stored
	return nil
}

func (d *MemDriver) Close() error { return nil }
