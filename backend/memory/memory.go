// Package memory is an in-process kvstore backend. Versions are kept as
// private byte copies, so callers never share memory with the backend.
// Safe for concurrent use.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/unkn0wn-root/kvstore"
	"github.com/unkn0wn-root/kvstore/internal/wire"
)

type Backend struct {
	mu    sync.RWMutex
	data  map[string][]wire.Record
	mode  kvstore.ConflictMode
	alloc kvstore.Allocator
	now   func() time.Time
}

var (
	_ kvstore.Backend        = (*Backend)(nil)
	_ kvstore.AllocatorAware = (*Backend)(nil)
)

type Config struct {
	Mode kvstore.ConflictMode // default MergeOnRead
}

func New(cfg Config) *Backend {
	return &Backend{
		data:  make(map[string][]wire.Record),
		mode:  cfg.Mode,
		alloc: kvstore.HeapAllocator{},
		now:   time.Now,
	}
}

func (b *Backend) UseAllocator(a kvstore.Allocator) { b.alloc = a }

func (b *Backend) Connect(context.Context) error    { return nil }
func (b *Backend) Disconnect(context.Context) error { return nil }

// Get returns the live versions of key in insertion order and prunes the
// expired ones.
func (b *Backend) Get(_ context.Context, key kvstore.Key) ([]*kvstore.Value, error) {
	k := string(key)
	now := b.now()

	b.mu.RLock()
	recs := b.data[k]
	live := make([]wire.Record, 0, len(recs))
	for _, r := range recs {
		if !r.Expired(now) {
			live = append(live, r)
		}
	}
	b.mu.RUnlock()

	if len(live) != len(recs) {
		b.prune(k, now)
	}
	// stored records are never mutated in place, so reading them unlocked is fine
	return wire.Values(b.alloc, live)
}

func (b *Backend) prune(k string, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	recs := b.data[k]
	kept := recs[:0:0]
	for _, r := range recs {
		if !r.Expired(now) {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		delete(b.data, k)
		return
	}
	b.data[k] = kept
}

// Set appends a version, or in MergeOnWrite mode replaces the stored
// versions with the merge of them and v.
func (b *Backend) Set(_ context.Context, merge kvstore.MergePolicy, key kvstore.Key, v *kvstore.Value) error {
	k := string(key)
	now := b.now()

	if b.mode != kvstore.MergeOnWrite {
		rec := wire.FromValue(v, now).Clone()
		b.mu.Lock()
		// copy-on-write so readers holding the old slice are unaffected
		recs := b.data[k]
		next := make([]wire.Record, len(recs), len(recs)+1)
		copy(next, recs)
		b.data[k] = append(next, rec)
		b.mu.Unlock()
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var live []wire.Record
	for _, r := range b.data[k] {
		if !r.Expired(now) {
			live = append(live, r)
		}
	}
	stored, err := wire.Values(b.alloc, live)
	if err != nil {
		return err
	}
	merged, err := kvstore.Resolve(merge, key, stored, v)
	if err != nil {
		return err
	}
	defer merged.Destroy()

	b.data[k] = []wire.Record{wire.FromValue(merged, now).Clone()}
	return nil
}

func (b *Backend) Remove(_ context.Context, key kvstore.Key) error {
	b.mu.Lock()
	delete(b.data, string(key))
	b.mu.Unlock()
	return nil
}

// Destroy drops every stored version; the data lives only in this process.
func (b *Backend) Destroy(context.Context) error {
	b.mu.Lock()
	b.data = make(map[string][]wire.Record)
	b.mu.Unlock()
	return nil
}

// Len returns the number of stored versions of key, expired ones included.
func (b *Backend) Len(key kvstore.Key) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data[string(key)])
}
