package diskdriver

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"blockcache/internal/logger"
)

// bboltBucketPrefix namespaces bbolt buckets by device, one bucket per dev.
const bboltBucketPrefix = "dev_"

// BboltDriver is a Driver backed by an embedded bbolt database. Blocks
// survive process restarts; the database file is created at the given path
// if it does not already exist.
type BboltDriver struct {
	db      *bolt.DB
	latency time.Duration
	log     *logger.Logger
}

// NewBboltDriver opens (or creates) the bbolt database at path. Returns an
// error if the file cannot be opened.
func NewBboltDriver(path string, latency time.Duration, log *logger.Logger) (*BboltDriver, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bbolt disk %q: %w", path, err)
	}

	log.Infof("disk_open", "bbolt disk opened at %s", path)
	return &BboltDriver{db: db, latency: latency, log: log}, nil
}

func devBucket(dev uint32) []byte {
	return []byte(fmt.Sprintf("%s%d", bboltBucketPrefix, dev))
}

func blockKey(blockno uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], blockno)
	return b[:]
}

func (d *BboltDriver) ReadBlock(dev, blockno uint32, buf []byte) error {
	if d.latency > 0 {
		time.Sleep(d.latency)
	}
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(devBucket(dev))
		if b == nil {
			for i := range buf {
				buf[i] = 0
			}
			return nil
		}
		v := b.Get(blockKey(blockno))
		if v == nil {
			for i := range buf {
				buf[i] = 0
			}
			return nil
		}
		copy(buf, v)
		return nil
	})
	if err != nil {
		d.log.Errorf("disk_read_error", "bbolt read dev=%d blockno=%d: %v", dev, blockno, err)
		return fmt.Errorf("bbolt read dev=%d blockno=%d: %w", dev, blockno, err)
	}
	return nil
}

func (d *BboltDriver) WriteBlock(dev, blockno uint32, buf []byte) error {
	if d.latency > 0 {
		time.Sleep(d.latency)
	}
	err := d.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(devBucket(dev))
		if err != nil {
			return err
		}
		return b.Put(blockKey(blockno), buf)
	})
	if err != nil {
		d.log.Errorf("disk_write_error", "bbolt write dev=%d blockno=%d: %v", dev, blockno, err)
		return fmt.Errorf("bbolt write dev=%d blockno=%d: %w", dev, blockno, err)
	}
	return nil
}

func (d *BboltDriver) Close() error {
	return d.db.Close()
}
