// Package ristretto is a kvstore backend on dgraph-io/ristretto.
//
// Ristretto keeps one value per key and may evict at any time, so this
// backend always merges on write: Set runs the merge policy over the current
// version and the new one and stores the result. Entry cost is the encoded
// size in bytes unless Config.Cost says otherwise.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/kvstore"
	"github.com/unkn0wn-root/kvstore/internal/util"
	"github.com/unkn0wn-root/kvstore/internal/wire"
)

// ErrRejected is returned when ristretto dropped a write (admission or
// buffer pressure).
var ErrRejected = errors.New("ristretto backend: write rejected")

type Backend struct {
	c     *rc.Cache
	cost  func(key kvstore.Key, encoded []byte) int64
	locks *util.KeyLocks
	alloc kvstore.Allocator
	now   func() time.Time
}

var (
	_ kvstore.Backend        = (*Backend)(nil)
	_ kvstore.AllocatorAware = (*Backend)(nil)
)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
	// Cost computes the admission cost of an entry; nil => len(encoded).
	Cost func(key kvstore.Key, encoded []byte) int64
}

func New(cfg Config) (*Backend, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	b := &Backend{
		c:     c,
		cost:  cfg.Cost,
		locks: util.NewKeyLocks(0),
		alloc: kvstore.HeapAllocator{},
		now:   time.Now,
	}
	if b.cost == nil {
		b.cost = func(_ kvstore.Key, enc []byte) int64 { return int64(len(enc)) }
	}
	return b, nil
}

func (b *Backend) UseAllocator(a kvstore.Allocator) { b.alloc = a }

func (b *Backend) Connect(context.Context) error    { return nil }
func (b *Backend) Disconnect(context.Context) error { return nil }

func (b *Backend) load(k string) ([]wire.Record, error) {
	v, ok := b.c.Get(k)
	if !ok {
		return nil, nil
	}
	raw, _ := v.([]byte)
	rec, err := wire.DecodeRecord(raw)
	if err != nil {
		// self-heal: drop unexpected entry shape
		b.c.Del(k)
		return nil, nil
	}
	if rec.Expired(b.now()) {
		b.c.Del(k)
		return nil, nil
	}
	return []wire.Record{rec}, nil
}

// Get returns at most one candidate.
func (b *Backend) Get(_ context.Context, key kvstore.Key) ([]*kvstore.Value, error) {
	recs, err := b.load(string(key))
	if err != nil {
		return nil, err
	}
	return wire.Values(b.alloc, recs)
}

func (b *Backend) Set(_ context.Context, merge kvstore.MergePolicy, key kvstore.Key, v *kvstore.Value) error {
	k := string(key)
	unlock := b.locks.Lock(key)
	defer unlock()

	recs, err := b.load(k)
	if err != nil {
		return err
	}
	stored, err := wire.Values(b.alloc, recs)
	if err != nil {
		return err
	}
	merged, err := kvstore.Resolve(merge, key, stored, v)
	if err != nil {
		return err
	}
	now := b.now()
	rec := wire.FromValue(merged, now)
	enc := wire.EncodeRecord(rec)
	merged.Destroy()

	var ttl time.Duration
	if rec.TTL > 0 {
		ttl = rec.CreatedAt().Add(time.Duration(rec.TTL)).Sub(now)
		if ttl <= 0 {
			b.c.Del(k)
			b.c.Wait()
			return nil
		}
	}
	if !b.c.SetWithTTL(k, enc, b.cost(key, enc), ttl) {
		return ErrRejected
	}
	b.c.Wait()
	return nil
}

func (b *Backend) Remove(_ context.Context, key kvstore.Key) error {
	b.c.Del(string(key))
	b.c.Wait()
	return nil
}

func (b *Backend) Destroy(context.Context) error {
	b.c.Close()
	return nil
}

// Metrics exposes ristretto metrics if enabled (not part of kvstore.Backend).
func (b *Backend) Metrics() *rc.Metrics { return b.c.Metrics }
