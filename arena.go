package kvstore

// Allocator hands out byte blocks for value arenas.
// Free receives every block returned by Alloc exactly once.
type Allocator interface {
	Alloc(n int) ([]byte, error)
	Free(b []byte)
}

// HeapAllocator allocates from the Go heap. Free is a no-op; the GC reclaims
// blocks once the owning arena drops them.
type HeapAllocator struct{}

func (HeapAllocator) Alloc(n int) ([]byte, error) { return make([]byte, n), nil }
func (HeapAllocator) Free([]byte)                 {}

// Arena is the allocation region owned by exactly one Value. All bytes the
// value copies in are taken from it and released together.
type Arena struct {
	alloc    Allocator
	blocks   [][]byte
	released bool
}

func newArena(a Allocator) *Arena {
	return &Arena{alloc: coalesce[Allocator](a, HeapAllocator{})}
}

// Allocator returns the allocator backing the arena.
func (a *Arena) Allocator() Allocator { return a.alloc }

// Released reports whether the arena has already been released.
func (a *Arena) Released() bool { return a.released }

func (a *Arena) memdup(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return []byte{}, nil
	}
	b, err := a.alloc.Alloc(len(src))
	if err != nil || len(b) < len(src) {
		return nil, ErrAlloc
	}
	b = b[:len(src)]
	copy(b, src)
	a.blocks = append(a.blocks, b)
	return b, nil
}

// Release frees every block once. Later calls do nothing.
func (a *Arena) Release() {
	if a.released {
		return
	}
	a.released = true
	for _, b := range a.blocks {
		a.alloc.Free(b)
	}
	a.blocks = nil
}
