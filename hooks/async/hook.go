// Package asynchook runs kvstore hooks on a small worker pool so slow sinks
// stay off the Get/Set path.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{MergeEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	store, _ := kvstore.New(kvstore.Options{Backend: be, Hooks: hooks})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/kvstore"
)

type Hooks struct {
	inner   kvstore.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards closed against sends on a closed queue
	closed  bool
	dropped atomic.Uint64
}

var _ kvstore.Hooks = (*Hooks)(nil)

func New(inner kvstore.Hooks, workers, qlen int) *Hooks {
	if inner == nil {
		inner = kvstore.NopHooks{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports events discarded because the queue was full or closed.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) MergeApplied(key string, n int, aliased bool) {
	h.try(func() { h.inner.MergeApplied(key, n, aliased) })
}
func (h *Hooks) BackendError(op, key string, err error) {
	h.try(func() { h.inner.BackendError(op, key, err) })
}
func (h *Hooks) AllocFailed(op string, err error) { h.try(func() { h.inner.AllocFailed(op, err) }) }
