package kvstore

import (
	"errors"
	"testing"
	"time"
)

func TestDupIsIndependent(t *testing.T) {
	ca := newCountingAlloc(t)
	v := NewValue(ca)
	if err := v.CopyPayload([]byte("hello")); err != nil {
		t.Fatalf("CopyPayload: %v", err)
	}
	created := time.Unix(1700000000, 0)
	v.SetCreation(created)
	v.SetExpiration(time.Minute)

	cp, err := v.Dup()
	if err != nil {
		t.Fatalf("Dup: %v", err)
	}
	if cp.Arena() == v.Arena() {
		t.Fatalf("copy shares the original arena")
	}
	v.Destroy()

	if string(cp.Payload()) != "hello" {
		t.Fatalf("copy payload = %q after original destroyed", cp.Payload())
	}
	if !cp.Creation().Equal(created) || cp.Expiration() != time.Minute {
		t.Fatalf("metadata not copied: %v %v", cp.Creation(), cp.Expiration())
	}
	if len(cp.Type()) != 0 {
		t.Fatalf("type = %q, want empty", cp.Type())
	}
	cp.Destroy()
	if n := ca.outstanding(); n != 0 {
		t.Fatalf("%d blocks leaked", n)
	}
}

func TestDupCopiesVerbatimPayload(t *testing.T) {
	buf := []byte("borrowed")
	v := NewValue(nil)
	v.SetPayload(buf)

	cp, err := v.Dup()
	if err != nil {
		t.Fatalf("Dup: %v", err)
	}
	defer cp.Destroy()
	buf[0] = 'X'
	if string(cp.Payload()) != "borrowed" {
		t.Fatalf("copy aliases caller buffer: %q", cp.Payload())
	}
}

func TestDupAllocFailureReleasesPartial(t *testing.T) {
	ca := newCountingAlloc(t)
	v := NewValue(ca)
	v.SetPayload([]byte("payload"))
	v.SetType([]byte("type"))

	ca.budget = 1
	if _, err := v.Dup(); !errors.Is(err, ErrAlloc) {
		t.Fatalf("err = %v, want ErrAlloc", err)
	}
	if n := ca.outstanding(); n != 0 {
		t.Fatalf("%d blocks leaked", n)
	}
}

func TestCopyPayloadRefused(t *testing.T) {
	ca := newCountingAlloc(t)
	ca.budget = 0
	v := NewValue(ca)
	if err := v.CopyPayload([]byte("x")); !errors.Is(err, ErrAlloc) {
		t.Fatalf("err = %v, want ErrAlloc", err)
	}
	if err := v.CopyType([]byte("x")); !errors.Is(err, ErrAlloc) {
		t.Fatalf("err = %v, want ErrAlloc", err)
	}
	// Empty input never touches the allocator.
	if err := v.CopyPayload(nil); err != nil {
		t.Fatalf("empty CopyPayload: %v", err)
	}
}

func TestDestroyIdempotent(t *testing.T) {
	ca := newCountingAlloc(t)
	v := NewValue(ca)
	_ = v.CopyPayload([]byte("a"))
	_ = v.CopyType([]byte("b"))
	v.Destroy()
	v.Destroy()
	if ca.frees != 2 {
		t.Fatalf("frees = %d, want 2", ca.frees)
	}
	if !v.Arena().Released() {
		t.Fatalf("arena not released")
	}

	var nilValue *Value
	nilValue.Destroy()
}

func TestNewValueDefaults(t *testing.T) {
	v := NewValue(nil)
	defer v.Destroy()
	if v.Payload() == nil || len(v.Payload()) != 0 || len(v.Type()) != 0 {
		t.Fatalf("new value not empty")
	}
	if !v.Creation().IsZero() || v.Expiration() != 0 {
		t.Fatalf("new value has metadata")
	}
	if _, ok := v.Arena().Allocator().(HeapAllocator); !ok {
		t.Fatalf("nil allocator not defaulted to HeapAllocator")
	}
}

func TestExpiry(t *testing.T) {
	base := time.Unix(1700000000, 0)
	v := NewValue(nil)
	v.SetCreation(base)

	if !v.ExpiresAt().IsZero() || v.Expired(base.Add(100*365*24*time.Hour)) {
		t.Fatalf("zero expiration must never expire")
	}

	v.SetExpiration(time.Minute)
	if !v.ExpiresAt().Equal(base.Add(time.Minute)) {
		t.Fatalf("ExpiresAt = %v", v.ExpiresAt())
	}
	if v.Expired(base.Add(59 * time.Second)) {
		t.Fatalf("expired early")
	}
	if !v.Expired(base.Add(time.Minute)) {
		t.Fatalf("not expired at deadline")
	}
}

func TestLiteralValueUsesHeapArena(t *testing.T) {
	v := &Value{}
	if err := v.CopyPayload([]byte("p")); err != nil {
		t.Fatalf("CopyPayload: %v", err)
	}
	if err := v.CopyType([]byte("t")); err != nil {
		t.Fatalf("CopyType: %v", err)
	}
	cp, err := v.Dup()
	if err != nil {
		t.Fatalf("Dup: %v", err)
	}
	defer cp.Destroy()
	if string(cp.Payload()) != "p" || string(cp.Type()) != "t" {
		t.Fatalf("copy = %q/%q", cp.Payload(), cp.Type())
	}
	if _, ok := cp.Arena().Allocator().(HeapAllocator); !ok {
		t.Fatalf("literal value not backed by HeapAllocator")
	}
	v.Destroy()

	empty := &Value{}
	if _, err := empty.Dup(); err != nil {
		t.Fatalf("Dup of empty literal: %v", err)
	}
}
