// Package bigcache is a kvstore backend on allegro/bigcache. All versions of
// a key are kept as one encoded list entry; updates to a key are serialized
// in-process. Entry lifetime is bounded by bigcache's global LifeWindow in
// addition to each version's own expiration.
package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/kvstore"
	"github.com/unkn0wn-root/kvstore/internal/util"
	"github.com/unkn0wn-root/kvstore/internal/wire"
)

type Backend struct {
	c     *bc.BigCache
	life  time.Duration
	mode  kvstore.ConflictMode
	locks *util.KeyLocks
	alloc kvstore.Allocator
	log   kvstore.Logger
	now   func() time.Time
}

var (
	_ kvstore.Backend        = (*Backend)(nil)
	_ kvstore.AllocatorAware = (*Backend)(nil)
)

// DefaultLifeWindow applies when Config.LifeWindow is not positive. bigcache
// evicts anything older than the window, so zero would drop every entry on
// the next clean.
const DefaultLifeWindow = 10 * time.Minute

type Config struct {
	LifeWindow         time.Duration // <= 0 => DefaultLifeWindow
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
	Mode               kvstore.ConflictMode
	Logger             kvstore.Logger
}

func New(cfg Config) (*Backend, error) {
	if cfg.LifeWindow <= 0 {
		cfg.LifeWindow = DefaultLifeWindow
	}
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	b := &Backend{
		c:     c,
		life:  conf.LifeWindow,
		mode:  cfg.Mode,
		locks: util.NewKeyLocks(0),
		alloc: kvstore.HeapAllocator{},
		log:   cfg.Logger,
		now:   time.Now,
	}
	if b.log == nil {
		b.log = kvstore.NopLogger{}
	}
	return b, nil
}

func (b *Backend) UseAllocator(a kvstore.Allocator) { b.alloc = a }

func (b *Backend) Connect(context.Context) error    { return nil }
func (b *Backend) Disconnect(context.Context) error { return nil }

// load returns the live versions of k and whether any were dropped.
// A corrupt entry reads as empty.
func (b *Backend) load(k string) ([]wire.Record, bool, error) {
	raw, err := b.c.Get(k)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	recs, err := wire.DecodeList(raw)
	if err != nil {
		b.log.Warn("dropping corrupt entry", kvstore.Fields{"key": k})
		return nil, true, nil
	}
	now := b.now()
	live := recs[:0]
	for _, r := range recs {
		if !r.Expired(now) {
			live = append(live, r)
		}
	}
	return live, len(live) != len(recs), nil
}

func (b *Backend) store(k string, recs []wire.Record) error {
	if len(recs) == 0 {
		if err := b.c.Delete(k); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
			return err
		}
		return nil
	}
	return b.c.Set(k, wire.EncodeList(recs))
}

func (b *Backend) Get(_ context.Context, key kvstore.Key) ([]*kvstore.Value, error) {
	k := string(key)
	recs, dropped, err := b.load(k)
	if err != nil {
		return nil, err
	}
	if dropped {
		unlock := b.locks.Lock(key)
		// reload under the lock so a concurrent Set is not lost
		if fresh, again, err := b.load(k); err == nil && again {
			_ = b.store(k, fresh)
		}
		unlock()
	}
	return wire.Values(b.alloc, recs)
}

func (b *Backend) Set(_ context.Context, merge kvstore.MergePolicy, key kvstore.Key, v *kvstore.Value) error {
	k := string(key)
	unlock := b.locks.Lock(key)
	defer unlock()

	recs, _, err := b.load(k)
	if err != nil {
		return err
	}
	if b.mode != kvstore.MergeOnWrite {
		return b.store(k, append(recs, wire.FromValue(v, b.now())))
	}

	stored, err := wire.Values(b.alloc, recs)
	if err != nil {
		return err
	}
	merged, err := kvstore.Resolve(merge, key, stored, v)
	if err != nil {
		return err
	}
	defer merged.Destroy()
	return b.store(k, []wire.Record{wire.FromValue(merged, b.now())})
}

func (b *Backend) Remove(_ context.Context, key kvstore.Key) error {
	unlock := b.locks.Lock(key)
	defer unlock()
	return b.store(string(key), nil)
}

func (b *Backend) Destroy(context.Context) error {
	return b.c.Close()
}

// Stats exposes bigcache hit/miss counters (not part of kvstore.Backend).
func (b *Backend) Stats() bc.Stats { return b.c.Stats() }

// LifeWindow returns the window entries live in before bigcache evicts them.
func (b *Backend) LifeWindow() time.Duration { return b.life }
