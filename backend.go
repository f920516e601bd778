package kvstore

import "context"

// Key is an opaque byte sequence. Backends may encode it (e.g. for paths),
// but must treat it as binary data.
type Key []byte

func (k Key) String() string { return string(k) }

// Backend is the capability set a storage medium provides to a Store.
//
// Implementations decide their own consistency and concurrency guarantees and
// document them. Errors are returned as-is to Store callers.
type Backend interface {
	// Connect prepares the medium (open files, dial, create schema).
	Connect(ctx context.Context) error
	// Disconnect undoes Connect. Stored data is kept.
	Disconnect(ctx context.Context) error

	// Get returns every candidate stored under key, in backend order.
	// No candidates is (nil, nil), not an error. Returned values are owned by
	// the caller, which destroys each one.
	Get(ctx context.Context, key Key) ([]*Value, error)

	// Set persists a new version of key. merge is the policy in effect; a
	// backend that reconciles at write time applies it (see Resolve), a backend
	// that keeps versions for read time ignores it.
	// The backend must not retain v or any slice obtained from it.
	Set(ctx context.Context, merge MergePolicy, key Key, v *Value) error

	// Remove deletes every candidate stored under key.
	Remove(ctx context.Context, key Key) error

	// Destroy releases backend-held resources. Stored data is kept.
	Destroy(ctx context.Context) error
}

// AllocatorAware is implemented by backends that build candidate values from
// the store's allocator. New calls UseAllocator before returning.
type AllocatorAware interface {
	UseAllocator(a Allocator)
}

// ConflictMode selects how a backend handles concurrent writers to one key.
type ConflictMode int

const (
	// MergeOnRead keeps every written version; Store.Get reconciles them.
	MergeOnRead ConflictMode = iota
	// MergeOnWrite serializes writers per key and applies the merge policy in
	// Set, so at most one version is stored.
	MergeOnWrite
)

func (m ConflictMode) String() string {
	switch m {
	case MergeOnRead:
		return "read"
	case MergeOnWrite:
		return "write"
	default:
		return "unknown"
	}
}

// ParseConflictMode maps "read"/"write" (and "" as read) to a ConflictMode.
func ParseConflictMode(s string) (ConflictMode, bool) {
	switch s {
	case "", "read":
		return MergeOnRead, true
	case "write":
		return MergeOnWrite, true
	default:
		return 0, false
	}
}
