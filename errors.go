package kvstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when the backend holds no candidate for the key.
	ErrNotFound = errors.New("kvstore: not found")
	// ErrAlloc is returned when an allocator refuses a block.
	ErrAlloc = errors.New("kvstore: allocation failed")
	// ErrNotReady is returned by operations on a Store that has no backend installed.
	ErrNotReady = errors.New("kvstore: store not initialized")
	// ErrNoBackend is returned by New when Options.Backend is nil.
	ErrNoBackend = errors.New("kvstore: backend is required")
	// ErrNoMergeResult is returned when a merge policy produced nothing for a
	// non-empty candidate set.
	ErrNoMergeResult = errors.New("kvstore: merge policy returned no value")
	// ErrTypeMismatch is returned by Typed.Get when the stored type tag does not
	// match the codec's content type.
	ErrTypeMismatch = errors.New("kvstore: type tag mismatch")
)

// CloseError is returned by Store.Close when disconnecting or destroying the
// backend failed. Both steps are always attempted.
type CloseError struct {
	DisconnectErr error
	DestroyErr    error
}

func (e *CloseError) Error() string {
	switch {
	case e.DisconnectErr != nil && e.DestroyErr != nil:
		return fmt.Sprintf("close failed: disconnect=%v; destroy=%v", e.DisconnectErr, e.DestroyErr)
	case e.DisconnectErr != nil:
		return fmt.Sprintf("close: disconnect failed: %v", e.DisconnectErr)
	case e.DestroyErr != nil:
		return fmt.Sprintf("close: destroy failed: %v", e.DestroyErr)
	default:
		return "close: unknown error"
	}
}

func (e *CloseError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.DisconnectErr != nil {
		errs = append(errs, e.DisconnectErr)
	}
	if e.DestroyErr != nil {
		errs = append(errs, e.DestroyErr)
	}
	return errs
}
