package core

import "sync"

// Buffer size thresholds for the bucketed allocator. Every request buffer
// growth and every framed response is drawn from here; sizes above 16MB are
// allocated directly.
const (
	size4k  = 4 * 1024
	size64k = 64 * 1024
	size1m  = 1024 * 1024
	size16m = 16 * 1024 * 1024
)

var globalPool = struct {
	pool4k  sync.Pool
	pool64k sync.Pool
	pool1m  sync.Pool
	pool16m sync.Pool
}{
	pool4k:  sync.Pool{New: func() any { b := make([]byte, size4k); return &b }},
	pool64k: sync.Pool{New: func() any { b := make([]byte, size64k); return &b }},
	pool1m:  sync.Pool{New: func() any { b := make([]byte, size1m); return &b }},
	pool16m: sync.Pool{New: func() any { b := make([]byte, size16m); return &b }},
}

// getBuffer returns a buffer of at least the requested size from the
// bucketed pool, or a freshly allocated one if size exceeds every bucket.
func getBuffer(size int) []byte {
	switch {
	case size <= size4k:
		return (*globalPool.pool4k.Get().(*[]byte))[:size]
	case size <= size64k:
		return (*globalPool.pool64k.Get().(*[]byte))[:size]
	case size <= size1m:
		return (*globalPool.pool1m.Get().(*[]byte))[:size]
	case size <= size16m:
		return (*globalPool.pool16m.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// putBuffer returns a buffer to the pool matching its capacity, if any.
func putBuffer(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case size4k:
		globalPool.pool4k.Put(&buf)
	case size64k:
		globalPool.pool64k.Put(&buf)
	case size1m:
		globalPool.pool1m.Put(&buf)
	case size16m:
		globalPool.pool16m.Put(&buf)
	}
}
