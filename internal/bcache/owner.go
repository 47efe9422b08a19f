package bcache

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID returns an identifier for the calling goroutine, used only to
// detect sleep-lock protocol violations (holdsSleepLock). Go deliberately
// exposes no public API for this; runtime.Stack parsing is the well-known
// workaround. It runs once per sleep-lock acquisition (markHolder) and once
// per Write/Release check (holdsSleepLock).
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := bytes.Fields(buf[:n])
	if len(field) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(field[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
