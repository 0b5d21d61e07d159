package pact

// Merge combines a newly-recorded pact into an existing on-disk pact,
// replacing any interaction whose Key matches and preserving the rest,
// with the resulting sequence sorted stably by first-seen order (§3.2,
// §4.3's merge rule).
func Merge(existing, fresh *Pact) *Pact {
	if existing == nil {
		return fresh
	}

	merged := &Pact{
		Consumer:      fresh.Consumer,
		Provider:      fresh.Provider,
		Specification: fresh.Specification,
		Metadata:      fresh.Metadata,
	}

	freshByKey := make(map[string]Interaction, len(fresh.Interactions))
	for _, i := range fresh.Interactions {
		freshByKey[i.Key()] = i
	}

	seen := make(map[string]bool, len(existing.Interactions)+len(fresh.Interactions))
	for _, i := range existing.Interactions {
		key := i.Key()
		if replacement, ok := freshByKey[key]; ok {
			merged.Interactions = append(merged.Interactions, replacement)
		} else {
			merged.Interactions = append(merged.Interactions, i)
		}
		seen[key] = true
	}
	for _, i := range fresh.Interactions {
		key := i.Key()
		if !seen[key] {
			merged.Interactions = append(merged.Interactions, i)
			seen[key] = true
		}
	}
	return merged
}
