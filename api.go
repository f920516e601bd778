package kvstore

// Options configure a Store. Only Backend is required.
type Options struct {
	// Required
	Backend Backend

	Allocator Allocator   // nil => HeapAllocator
	Merge     MergePolicy // nil => FirstWins
	Logger    Logger      // nil => NopLogger
	Hooks     Hooks       // nil => NopHooks
}

// New installs the backend and the defaults and returns a ready Store.
// If the backend implements AllocatorAware it is handed the store allocator.
func New(opts Options) (*Store, error) {
	if opts.Backend == nil {
		return nil, ErrNoBackend
	}
	s := &Store{
		backend: opts.Backend,
		alloc:   coalesce[Allocator](opts.Allocator, HeapAllocator{}),
		log:     coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:   coalesce[Hooks](opts.Hooks, NopHooks{}),
		merge:   opts.Merge,
	}
	if s.merge == nil {
		s.merge = FirstWins
	}
	if aa, ok := opts.Backend.(AllocatorAware); ok {
		aa.UseAllocator(s.alloc)
	}
	return s, nil
}
