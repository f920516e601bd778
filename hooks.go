package kvstore

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The store calls them on every Get/Set.
type Hooks interface {
	// A read observed more than one candidate and ran the merge policy.
	// aliased is true when the policy returned one of the candidates.
	MergeApplied(key string, candidates int, aliased bool)

	// A backend call failed. op ∈ {"connect", "disconnect", "get", "set", "remove", "destroy"}
	BackendError(op, key string, err error)

	// Duplicating a value failed. op ∈ {"get"}
	AllocFailed(op string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) MergeApplied(string, int, bool)     {}
func (NopHooks) BackendError(string, string, error) {}
func (NopHooks) AllocFailed(string, error)          {}
