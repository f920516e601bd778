package kvstore

import (
	"bytes"
	"context"
	"fmt"
	"time"

	c "github.com/unkn0wn-root/kvstore/codec"
)

// Typed is a view of a Store for values of type V encoded by a codec.
// The codec's content type is written as the type tag and checked on read.
type Typed[V any] struct {
	store *Store
	codec c.Codec[V]
	merge MergePolicy
	now   func() time.Time
}

// NewTyped returns a typed view using the store's default merge policy.
func NewTyped[V any](s *Store, codec c.Codec[V]) *Typed[V] {
	return &Typed[V]{store: s, codec: codec, now: time.Now}
}

// WithMerge returns a copy of t that passes policy on every Get and Set.
func (t *Typed[V]) WithMerge(policy MergePolicy) *Typed[V] {
	cp := *t
	cp.merge = policy
	return &cp
}

// Get decodes the value stored under key. Values with an empty type tag are
// accepted; any other tag must equal the codec's content type.
func (t *Typed[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V
	v, err := t.store.Get(ctx, t.merge, Key(key))
	if err != nil {
		return zero, err
	}
	defer v.Destroy()

	if typ := v.Type(); len(typ) > 0 && !bytes.Equal(typ, []byte(t.codec.ContentType())) {
		return zero, fmt.Errorf("%w: stored %q, codec %q", ErrTypeMismatch, typ, t.codec.ContentType())
	}
	out, err := t.codec.Decode(v.Payload())
	if err != nil {
		return zero, fmt.Errorf("kvstore: decode %q: %w", key, err)
	}
	return out, nil
}

// Set encodes value and stores it as a new version of key. ttl <= 0 means no
// expiration.
func (t *Typed[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	payload, err := t.codec.Encode(value)
	if err != nil {
		return err
	}
	v := t.store.NewValue()
	defer v.Destroy()

	v.SetPayload(payload)
	v.SetType([]byte(t.codec.ContentType()))
	v.SetCreation(t.now())
	if ttl > 0 {
		v.SetExpiration(ttl)
	}
	return t.store.Set(ctx, t.merge, Key(key), v)
}

func (t *Typed[V]) Remove(ctx context.Context, key string) error {
	return t.store.Remove(ctx, Key(key))
}
