// Package kvstore is a key/value engine that delegates storage to pluggable
// backends and reconciles multiple stored versions of a key with a merge
// policy.
//
// Components:
//   - Value: payload, type tag, creation time and expiration, owned by an Arena.
//   - Allocator: source of the arena's byte blocks (HeapAllocator by default).
//   - MergePolicy: reduces the candidates of a key to one value (FirstWins,
//     LastWins, Newest or your own).
//   - Backend: the capability contract storage implementations satisfy
//     (see backend/filesystem, backend/memory, backend/sqlite, backend/redis,
//     backend/bigcache, backend/ristretto).
//   - Store: mediates every call to the backend and owns the read-side merge.
//
// Ownership:
//
//	v := store.NewValue()       // caller owns v
//	_ = store.Set(ctx, nil, k, v)
//	v.Destroy()                 // Set never retains v
//
//	got, err := store.Get(ctx, nil, k)
//	defer got.Destroy()         // Get returns a caller-owned copy
package kvstore
