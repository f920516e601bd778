package util

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const defaultStripes = 256

// KeyLocks serializes work per key using a fixed set of striped mutexes.
// Distinct keys may share a stripe; that only costs parallelism.
type KeyLocks struct {
	stripes []sync.Mutex
}

func NewKeyLocks(n int) *KeyLocks {
	if n <= 0 {
		n = defaultStripes
	}
	return &KeyLocks{stripes: make([]sync.Mutex, n)}
}

func (l *KeyLocks) stripe(key []byte) *sync.Mutex {
	return &l.stripes[xxhash.Sum64(key)%uint64(len(l.stripes))]
}

// Lock locks key's stripe and returns the matching unlock.
func (l *KeyLocks) Lock(key []byte) func() {
	m := l.stripe(key)
	m.Lock()
	return m.Unlock
}
