// Command blockcached runs the block buffer cache as a standalone process,
// driving it with a concurrent synthetic workload so its behavior (hit
// rates, eviction counts, latency) can be observed outside of the test
// suite.
//
// Usage:
//
//	# In-memory disk, defaults
//	./blockcached
//
//	# Real on-disk image, custom pool size
//	BCACHE_DISK_PATH=/var/lib/blockcache/disk.db BCACHE_NBUF=256 ./blockcached
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"blockcache/internal/bcache"
	"blockcache/internal/config"
	"blockcache/internal/diskdriver"
	"blockcache/internal/logger"
	"blockcache/internal/metrics"
)

func main() {
	cfg := config.Load()
	log := logger.New("BCACHE", cfg.LogLevel)

	printBanner(cfg)

	drv, err := openDriver(cfg, log)
	if err != nil {
		log.Fatalf("disk_open_error", "%v", err)
	}

	m := metrics.New()
	cache := bcache.New(cfg, drv, log, m)
	defer func() {
		if err := cache.Close(); err != nil {
			log.Errorf("cache_close_error", "%v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("shutdown", "signal received")
		cancel()
	}()

	runWorkload(ctx, cache, log)

	snap := cache.Stats()
	body, _ := json.MarshalIndent(snap, "", "  ")
	log.Infof("final_stats", "%s", body)
}

func openDriver(cfg *config.Config, log *logger.Logger) (diskdriver.Driver, error) {
	if cfg.DiskPath == "" {
		log.Info("disk_open", "using in-memory disk (set BCACHE_DISK_PATH for a persistent image)")
		return diskdriver.NewMemDriver(cfg.DiskLatencyDuration()), nil
	}
	return diskdriver.NewBboltDriver(cfg.DiskPath, cfg.DiskLatencyDuration(), log)
}

// runWorkload starts a fixed set of goroutines each issuing Read/Release on
// random keys within a bounded key space, large enough to force evictions
// against the configured pool size. It runs until ctx is cancelled.
func runWorkload(ctx context.Context, cache *bcache.Cache, log *logger.Logger) {
	const workers = 8
	const keySpace = 1000

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		w := w
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(w) + 1)) //nolint:gosec // demo workload, not security-sensitive
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				dev := uint32(rng.Intn(2))
				blockno := uint32(rng.Intn(keySpace))
				buf, err := cache.Read(dev, blockno)
				if err != nil {
					log.Errorf("workload_read_error", "worker=%d dev=%d blockno=%d: %v", w, dev, blockno, err)
					continue
				}
				time.Sleep(time.Millisecond)
				cache.Release(buf)
			}
		}()
	}
	wg.Wait()
}

func printBanner(cfg *config.Config) {
	disk := cfg.DiskPath
	if disk == "" {
		disk = "(in-memory)"
	}
	fmt.Printf(`
╔══════════════════════════════════════════════════════╗
║              Block Buffer Cache  (Go)                ║
╚══════════════════════════════════════════════════════╝
  Buffers (NBuf)  : %d
  Buckets (NBucket): %d
  Block size      : %d bytes
  Disk image      : %s
  Disk latency    : %s
  Log level       : %s

  Ctrl-C to stop and print final stats.
`, cfg.NBuf, cfg.NBucket, cfg.BSize, disk, cfg.DiskLatency, cfg.LogLevel)
}
