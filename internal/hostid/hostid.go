// Package hostid provides the per-process host identity used to deterministically
// spread key-split suffixes across a fleet. Real identity comes from the OS
// hostname; tests override it so key-splitting behavior doesn't depend on
// where the test happens to run.
package hostid

import (
	"hash/fnv"
	"os"
	"sync"
)

var (
	mu       sync.RWMutex
	override uint64
	hasOverr bool
)

// Get returns a stable, non-negative identifier for the current host.
// Absent an override, it hashes os.Hostname() so it stays stable across
// calls within a process without depending on any particular OS facility.
func Get() uint64 {
	mu.RLock()
	if hasOverr {
		defer mu.RUnlock()
		return override
	}
	mu.RUnlock()

	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "unknown-host"
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return h.Sum64()
}

// SetForTest pins Get to return id, for tests that need key-split suffixes
// to be reproducible. Not safe to call concurrently with Get from other
// goroutines.
func SetForTest(id uint64) {
	mu.Lock()
	defer mu.Unlock()
	override = id
	hasOverr = true
}

// ResetForTest clears an override installed by SetForTest.
func ResetForTest() {
	mu.Lock()
	defer mu.Unlock()
	hasOverr = false
}
