package kvstore

import "context"

// Store mediates every call to its backend and owns the read-side merge.
//
// The zero Store has no backend; all operations on it return ErrNotReady.
// Store holds no locks and starts no goroutines. It is as safe for
// concurrent use as its backend.
type Store struct {
	backend Backend
	alloc   Allocator
	merge   MergePolicy
	log     Logger
	hooks   Hooks
}

func (s *Store) ready() error {
	if s == nil || s.backend == nil {
		return ErrNotReady
	}
	return nil
}

// Allocator returns the allocator values of this store are built from.
func (s *Store) Allocator() Allocator {
	if s == nil || s.alloc == nil {
		return HeapAllocator{}
	}
	return s.alloc
}

// MergePolicy returns the default merge policy.
func (s *Store) MergePolicy() MergePolicy {
	if s == nil || s.merge == nil {
		return FirstWins
	}
	return s.merge
}

// NewValue returns an empty value backed by the store allocator.
func (s *Store) NewValue() *Value { return NewValue(s.Allocator()) }

func (s *Store) policy(override MergePolicy) MergePolicy {
	if override != nil {
		return override
	}
	return s.MergePolicy()
}

func (s *Store) Connect(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.backend.Connect(ctx); err != nil {
		s.hooks.BackendError("connect", "", err)
		return err
	}
	return nil
}

func (s *Store) Disconnect(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.backend.Disconnect(ctx); err != nil {
		s.hooks.BackendError("disconnect", "", err)
		return err
	}
	return nil
}

// Get returns a caller-owned copy of the value stored under key.
//
// A nil merge selects the store default. With several candidates the policy
// runs exactly once; its result is duplicated and every candidate is destroyed
// exactly once. A result that aliases a candidate is released through that
// candidate only.
func (s *Store) Get(ctx context.Context, merge MergePolicy, key Key) (*Value, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	merge = s.policy(merge)

	cands, err := s.backend.Get(ctx, key)
	if err != nil {
		s.hooks.BackendError("get", key.String(), err)
		return nil, err
	}

	var merged *Value
	defer func() { releaseCandidates(cands, merged, nil) }()

	switch len(cands) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return s.dup(cands[0])
	}

	merged, err = merge(key, cands)
	if err != nil {
		return nil, err
	}
	if merged == nil {
		return nil, ErrNoMergeResult
	}

	aliased := false
	for _, c := range cands {
		if c == merged {
			aliased = true
			break
		}
	}
	s.hooks.MergeApplied(key.String(), len(cands), aliased)
	s.log.Debug("merged candidates", Fields{"key": key.String(), "candidates": len(cands), "aliased": aliased})

	return s.dup(merged)
}

func (s *Store) dup(v *Value) (*Value, error) {
	out, err := v.Dup()
	if err != nil {
		s.hooks.AllocFailed("get", err)
		return nil, err
	}
	return out, nil
}

// Set hands v to the backend together with the effective merge policy.
// v is neither inspected nor retained; the caller destroys it when done.
func (s *Store) Set(ctx context.Context, merge MergePolicy, key Key, v *Value) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.backend.Set(ctx, s.policy(merge), key, v); err != nil {
		s.hooks.BackendError("set", key.String(), err)
		s.log.Debug("backend set failed", Fields{"key": key.String(), "err": err})
		return err
	}
	return nil
}

// Remove deletes every candidate stored under key.
func (s *Store) Remove(ctx context.Context, key Key) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.backend.Remove(ctx, key); err != nil {
		s.hooks.BackendError("remove", key.String(), err)
		return err
	}
	return nil
}

// Destroy releases the backend's resources. The Store itself stays with the
// caller and stored data is kept.
func (s *Store) Destroy(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.backend.Destroy(ctx); err != nil {
		s.hooks.BackendError("destroy", "", err)
		return err
	}
	return nil
}

// Close disconnects and destroys the backend. Both steps run even if the
// first fails.
func (s *Store) Close(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	derr := s.Disconnect(ctx)
	xerr := s.Destroy(ctx)
	if derr != nil || xerr != nil {
		s.log.Warn("close failed", Fields{"disconnect": derr, "destroy": xerr})
		return &CloseError{DisconnectErr: derr, DestroyErr: xerr}
	}
	return nil
}
