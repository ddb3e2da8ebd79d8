// Package arena provides a shared, grow-only byte store with a single
// lifetime. Every encoded value produced while building a certificate is
// copied into an Arena so the whole build can be released at once.
package arena

import (
	"sync"
	"sync/atomic"
)

const defaultChunkSize = 4096

// Arena hands out byte storage from per-caller regions. It is safe for
// concurrent use; each goroutine bump-allocates from a region it holds
// exclusively for the duration of an Alloc call.
//
// Pooled regions dropped by the garbage collector stay registered and a
// replacement is created on the next Alloc, so the region count of a
// long-lived Arena keeps growing. Arenas are meant to live for one session.
type Arena struct {
	chunkSize int
	pool      sync.Pool

	mu      sync.Mutex
	regions []*Region

	allocated atomic.Int64
	chunks    atomic.Int64
}

// Stats is a point-in-time view of arena usage.
type Stats struct {
	Regions   int
	Chunks    int
	Allocated int64
}

// Option configures an Arena.
type Option func(*Arena)

// WithChunkSize sets the size of the chunks regions carve allocations from.
func WithChunkSize(n int) Option {
	return func(a *Arena) {
		if n > 0 {
			a.chunkSize = n
		}
	}
}

// New creates an empty Arena.
func New(opts ...Option) *Arena {
	a := &Arena{chunkSize: defaultChunkSize}
	for _, opt := range opts {
		opt(a)
	}
	a.pool.New = func() any {
		return a.newRegion()
	}
	return a
}

// Alloc copies b into arena-owned storage and returns the copy. The
// returned slice has its capacity clipped to its length.
func (a *Arena) Alloc(b []byte) []byte {
	r := a.pool.Get().(*Region)
	out := r.Alloc(b)
	a.pool.Put(r)
	return out
}

// Region returns a region owned by the caller. A Region must not be shared
// between goroutines; its allocations live as long as the Arena.
func (a *Arena) Region() *Region {
	return a.newRegion()
}

// Stats reports the current usage of the arena.
func (a *Arena) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Stats{
		Regions:   len(a.regions),
		Chunks:    int(a.chunks.Load()),
		Allocated: a.allocated.Load(),
	}
}

func (a *Arena) newRegion() *Region {
	r := &Region{arena: a}

	a.mu.Lock()
	a.regions = append(a.regions, r)
	a.mu.Unlock()

	return r
}

// Region is a single-owner bump allocator backed by its Arena.
type Region struct {
	arena *Arena
	buf   []byte
	// retained keeps filled chunks reachable for the lifetime of the arena
	retained [][]byte
}

// Alloc copies b into the region.
func (r *Region) Alloc(b []byte) []byte {
	n := len(b)
	if n == 0 {
		return []byte{}
	}

	if n > r.arena.chunkSize/2 {
		// large values get their own chunk so the current one is not wasted
		out := make([]byte, n)
		copy(out, b)
		r.retained = append(r.retained, out)
		r.arena.chunks.Add(1)
		r.arena.allocated.Add(int64(n))
		return out[:n:n]
	}

	if cap(r.buf)-len(r.buf) < n {
		if r.buf != nil {
			r.retained = append(r.retained, r.buf)
		}
		r.buf = make([]byte, 0, r.arena.chunkSize)
		r.arena.chunks.Add(1)
	}

	start := len(r.buf)
	r.buf = append(r.buf, b...)
	r.arena.allocated.Add(int64(n))

	return r.buf[start : start+n : start+n]
}
