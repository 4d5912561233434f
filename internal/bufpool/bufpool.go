// Package bufpool provides a sync.Pool-backed byte buffer pool used by the
// checker's workers to keep steady-state allocations flat.
package bufpool

import "sync"

var pool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 0, 64*1024)
	},
}

// Get returns a byte slice of exactly size bytes, reusing pooled capacity
// when available.
func Get(size int) []byte {
	buf := pool.Get().([]byte)
	if cap(buf) < size {
		return make([]byte, size)
	}
	return buf[:size]
}

// Put returns buf to the pool for reuse.
func Put(buf []byte) {
	//nolint:staticcheck // slice descriptor copy is acceptable for sync.Pool
	pool.Put(buf[:0])
}
