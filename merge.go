package kvstore

// MergePolicy reduces the candidates stored under key to a single value.
//
// The result may be one of the candidates (an alias) or a freshly built value.
// Callers of a policy take care of ownership: aliased candidates are released
// once, fresh results are released after they have been duplicated.
// With zero candidates a policy should return (nil, nil).
type MergePolicy func(key Key, candidates []*Value) (*Value, error)

// FirstWins picks candidates[0]. It says nothing about recency; it is simply
// the first version the backend reported.
func FirstWins(_ Key, candidates []*Value) (*Value, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	return candidates[0], nil
}

// LastWins picks the last candidate the backend reported.
func LastWins(_ Key, candidates []*Value) (*Value, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	return candidates[len(candidates)-1], nil
}

// Newest picks the candidate with the latest creation time.
// Ties go to the earlier candidate.
func Newest(_ Key, candidates []*Value) (*Value, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Creation().After(best.Creation()) {
			best = c
		}
	}
	return best, nil
}

// Resolve runs policy over stored followed by incoming and returns an
// independently owned result. It is meant for backends that reconcile at
// write time.
//
// Every stored candidate is destroyed exactly once, whatever the outcome.
// incoming is never destroyed; it belongs to the caller of Set.
func Resolve(policy MergePolicy, key Key, stored []*Value, incoming *Value) (*Value, error) {
	if policy == nil {
		policy = FirstWins
	}
	cands := make([]*Value, 0, len(stored)+1)
	cands = append(cands, stored...)
	cands = append(cands, incoming)

	merged, err := policy(key, cands)
	defer releaseCandidates(cands, merged, incoming)
	if err != nil {
		return nil, err
	}
	if merged == nil {
		return nil, ErrNoMergeResult
	}
	return merged.Dup()
}

// releaseCandidates destroys each candidate once, except keep.
// merged is destroyed as well unless it aliases a candidate or keep.
func releaseCandidates(cands []*Value, merged, keep *Value) {
	for _, c := range cands {
		if merged == c {
			merged = nil
		}
		if c == keep {
			continue
		}
		c.Destroy()
	}
	if merged != nil && merged != keep {
		merged.Destroy()
	}
}
