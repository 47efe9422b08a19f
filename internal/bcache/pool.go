package bcache

import (
	"sync"
	"time"

	"blockcache/internal/config"
	"blockcache/internal/diskdriver"
	"blockcache/internal/logger"
	"blockcache/internal/metrics"
)

// Cache is the block buffer cache: NBuf preallocated buffers indexed by
// NBucket hash chains, plus a single eviction arbiter lock.
type Cache struct {
	buckets []bucket
	evictMu sync.Mutex

	bsize int

	drv diskdriver.Driver
	log *logger.Logger
	m   *metrics.Metrics

	clock *tickSource
}

// New builds a Cache from cfg: NBucket bucket heads, one eviction lock, and
// NBuf buffer slots, all prepended to bucket 0 with refcnt=0, lastUsed=0.
// No disk access occurs during initialization. drv is the disk driver
// collaborator; log and m must be non-nil.
func New(cfg *config.Config, drv diskdriver.Driver, log *logger.Logger, m *metrics.Metrics) *Cache {
	c := &Cache{
		buckets: make([]bucket, cfg.NBucket),
		bsize:   cfg.BSize,
		drv:     drv,
		log:     log,
		m:       m,
		clock:   newTickSource(10 * time.Millisecond),
	}

	head := &c.buckets[0]
	for i := 0; i < cfg.NBuf; i++ {
		buf := &Buffer{
			data:     make([]byte, cfg.BSize),
			refcnt:   0,
			lastUsed: 0,
		}
		buf.next = head.head
		head.head = buf
	}

	log.Infof("pool_init", "nbuf=%d nbucket=%d bsize=%d", cfg.NBuf, cfg.NBucket, cfg.BSize)
	return c
}

// Close stops the cache's background tick goroutine and the underlying
// disk driver. It does not wait for outstanding buffer holders to release.
func (c *Cache) Close() error {
	c.clock.close()
	return c.drv.Close()
}

// Stats returns a point-in-time snapshot of the cache's runtime counters.
func (c *Cache) Stats() metrics.Snapshot {
	return c.m.Snapshot()
}

func (c *Cache) hash(dev, blockno uint32) int {
	return int((blockno + dev*31) % uint32(len(c.buckets)))
}
