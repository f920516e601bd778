package kvstore

import "time"

// Value is a snapshot of bytes plus metadata owned by a single Arena.
//
// Mutators are meant for construction only: once a value has been handed to
// Set or duplicated, treat it as immutable. A Value is not safe for concurrent
// mutation, and it must not be destroyed while another goroutine still reads
// its payload or type.
type Value struct {
	arena      *Arena
	payload    []byte
	typ        []byte
	creation   time.Time
	expiration time.Duration
}

// NewValue returns an empty value in a fresh arena backed by a.
// A nil allocator selects HeapAllocator.
func NewValue(a Allocator) *Value {
	return &Value{
		arena:   newArena(a),
		payload: []byte{},
		typ:     []byte{},
	}
}

// Arena returns the arena owning v. A Value built as a literal gets a heap
// arena on first use.
func (v *Value) Arena() *Arena {
	if v.arena == nil {
		v.arena = newArena(nil)
	}
	return v.arena
}

// SetPayload stores b verbatim. The caller keeps b alive for as long as v is
// used; Dup gives an independently owned copy.
func (v *Value) SetPayload(b []byte) { v.payload = b }

// CopyPayload copies b into v's arena.
func (v *Value) CopyPayload(b []byte) error {
	p, err := v.Arena().memdup(b)
	if err != nil {
		return err
	}
	v.payload = p
	return nil
}

func (v *Value) Payload() []byte { return v.payload }

// SetType stores the type tag verbatim, like SetPayload.
func (v *Value) SetType(b []byte) { v.typ = b }

// CopyType copies b into v's arena.
func (v *Value) CopyType(b []byte) error {
	t, err := v.Arena().memdup(b)
	if err != nil {
		return err
	}
	v.typ = t
	return nil
}

func (v *Value) Type() []byte { return v.typ }

func (v *Value) SetCreation(t time.Time) { v.creation = t }
func (v *Value) Creation() time.Time     { return v.creation }

// SetExpiration sets the lifetime relative to the creation time. Zero means
// the value never expires.
func (v *Value) SetExpiration(d time.Duration) { v.expiration = d }
func (v *Value) Expiration() time.Duration     { return v.expiration }

// ExpiresAt returns the absolute expiry, or the zero time when v never expires.
func (v *Value) ExpiresAt() time.Time {
	if v.expiration <= 0 || v.creation.IsZero() {
		return time.Time{}
	}
	return v.creation.Add(v.expiration)
}

// Expired reports whether v has expired at now.
func (v *Value) Expired(now time.Time) bool {
	exp := v.ExpiresAt()
	return !exp.IsZero() && !now.Before(exp)
}

// Dup deep-copies v into a new arena from the same allocator.
// On failure the partial copy is released and ErrAlloc is returned.
func (v *Value) Dup() (*Value, error) {
	nv := NewValue(v.Arena().alloc)
	if err := nv.CopyPayload(v.payload); err != nil {
		nv.Destroy()
		return nil, err
	}
	if err := nv.CopyType(v.typ); err != nil {
		nv.Destroy()
		return nil, err
	}
	nv.creation = v.creation
	nv.expiration = v.expiration
	return nv, nil
}

// Destroy releases v's arena. Every slice previously obtained from v
// through Payload or Type that was copied into the arena is invalid afterwards.
func (v *Value) Destroy() {
	if v == nil || v.arena == nil {
		return
	}
	v.arena.Release()
}
