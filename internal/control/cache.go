package control

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// watermarkCache memoizes one computed value (active mode, the current
// logger-config set, logger status) against the LastUpdate timestamp
// spec.md §4.7 calls the watermark: "each cached method first checks
// whether the last-update time has advanced since it cached its result."
// The hash of the watermark, not the raw float, is what's compared --
// xxhash is already in this module's dependency set (DOMAIN STACK), and
// hashing sidesteps float equality subtleties across repeated writes of
// the same wall-clock instant.
type watermarkCache struct {
	mu    sync.Mutex
	valid bool
	hash  uint64
	value interface{}
}

func hashWatermark(t float64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(t*1e9))
	return xxhash.Sum64(buf[:])
}

// get returns the cached value if watermark t still matches what was
// cached, else calls compute, caches its result against t, and returns
// that.
func (c *watermarkCache) get(t float64, compute func() (interface{}, error)) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := hashWatermark(t)
	if c.valid && c.hash == h {
		return c.value, nil
	}

	v, err := compute()
	if err != nil {
		return nil, err
	}
	c.valid = true
	c.hash = h
	c.value = v
	return v, nil
}

// invalidate drops the cached value outright, used when a mutation changes
// state this cache depends on without itself advancing the watermark (not
// currently needed by any ControlAPI method, but kept available rather
// than leaving the cache able to wedge on a hash collision).
func (c *watermarkCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
}
