// Package redis is a kvstore backend on top of go-redis. Each key is a Redis
// LIST of encoded versions under "<namespace>:<key>".
//
// MergeOnRead appends with RPUSH and never blocks other writers.
// MergeOnWrite reads, merges and rewrites the list inside WATCH/MULTI and
// retries when another writer got there first.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/kvstore"
	"github.com/unkn0wn-root/kvstore/internal/util"
	"github.com/unkn0wn-root/kvstore/internal/wire"
)

var (
	ErrNilClient = errors.New("redis backend: nil client")
	ErrConflict  = errors.New("redis backend: too many concurrent writers")
)

const (
	defaultNamespace  = "kv"
	defaultMaxRetries = 8
)

type Backend struct {
	rdb         goredis.UniversalClient
	closeClient bool
	ns          string
	mode        kvstore.ConflictMode
	maxRetries  int
	alloc       kvstore.Allocator
	log         kvstore.Logger
	now         func() time.Time
}

var (
	_ kvstore.Backend        = (*Backend)(nil)
	_ kvstore.AllocatorAware = (*Backend)(nil)
)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool   // set true only if this backend exclusively owns the client
	Namespace   string // key prefix; "" => "kv"
	Mode        kvstore.ConflictMode
	MaxRetries  int            // optimistic retries in MergeOnWrite; 0 => 8
	Logger      kvstore.Logger // nil => NopLogger
}

func New(cfg Config) (*Backend, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	b := &Backend{
		rdb:         cfg.Client,
		closeClient: cfg.CloseClient,
		ns:          cfg.Namespace,
		mode:        cfg.Mode,
		maxRetries:  cfg.MaxRetries,
		alloc:       kvstore.HeapAllocator{},
		log:         cfg.Logger,
		now:         time.Now,
	}
	if b.ns == "" {
		b.ns = defaultNamespace
	}
	if b.maxRetries <= 0 {
		b.maxRetries = defaultMaxRetries
	}
	if b.log == nil {
		b.log = kvstore.NopLogger{}
	}
	return b, nil
}

func (b *Backend) UseAllocator(a kvstore.Allocator) { b.alloc = a }

func (b *Backend) key(k kvstore.Key) string { return util.Namespaced(b.ns, k) }

// Connect pings the server.
func (b *Backend) Connect(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

func (b *Backend) Disconnect(context.Context) error { return nil }

// Get returns every live version. Corrupt and expired entries are removed
// from the list (best effort).
func (b *Backend) Get(ctx context.Context, key kvstore.Key) ([]*kvstore.Value, error) {
	k := b.key(key)
	raws, err := b.rdb.LRange(ctx, k, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	recs := b.live(ctx, k, raws, true)
	return wire.Values(b.alloc, recs)
}

// live decodes raws and drops corrupt or expired entries, removing them from
// the list when heal is set.
func (b *Backend) live(ctx context.Context, k string, raws []string, heal bool) []wire.Record {
	now := b.now()
	recs := make([]wire.Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := wire.DecodeRecord([]byte(raw))
		if err == nil && !rec.Expired(now) {
			recs = append(recs, rec)
			continue
		}
		if !heal {
			continue
		}
		if err := b.rdb.LRem(ctx, k, 1, raw).Err(); err != nil {
			b.log.Warn("self-heal LREM failed", kvstore.Fields{"key": k, "err": err})
		}
	}
	return recs
}

func (b *Backend) Set(ctx context.Context, merge kvstore.MergePolicy, key kvstore.Key, v *kvstore.Value) error {
	k := b.key(key)
	if b.mode != kvstore.MergeOnWrite {
		return b.rdb.RPush(ctx, k, wire.EncodeRecord(wire.FromValue(v, b.now()))).Err()
	}

	txf := func(tx *goredis.Tx) error {
		raws, err := tx.LRange(ctx, k, 0, -1).Result()
		if err != nil {
			return err
		}
		stored, err := wire.Values(b.alloc, b.live(ctx, k, raws, false))
		if err != nil {
			return err
		}
		merged, err := kvstore.Resolve(merge, key, stored, v)
		if err != nil {
			return err
		}
		enc := wire.EncodeRecord(wire.FromValue(merged, b.now()))
		merged.Destroy()

		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Del(ctx, k)
			p.RPush(ctx, k, enc)
			return nil
		})
		return err
	}

	for i := 0; i < b.maxRetries; i++ {
		err := b.rdb.Watch(ctx, txf, k)
		if err == nil {
			return nil
		}
		if !errors.Is(err, goredis.TxFailedErr) {
			return err
		}
		b.log.Debug("write merge raced, retrying", kvstore.Fields{"key": k, "attempt": i + 1})
	}
	return ErrConflict
}

func (b *Backend) Remove(ctx context.Context, key kvstore.Key) error {
	return b.rdb.Del(ctx, b.key(key)).Err()
}

// Destroy releases the underlying redis client only when this backend owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (b *Backend) Destroy(context.Context) error {
	if b.closeClient {
		if err := b.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
