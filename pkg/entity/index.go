package entity

// entityIndex pairs an identity-keyed lookup table with the first-seen
// order of those keys, computed in one pass so the map and the ordering
// returned to callers can never drift apart.
type entityIndex struct {
	byKey map[string]*Entity
	order []string
}

func buildIndex(el *EntityList) entityIndex {
	idx := entityIndex{byKey: make(map[string]*Entity, len(el.Entities))}
	for i := range el.Entities {
		key := el.Entities[i].IdentityKey()
		if _, exists := idx.byKey[key]; exists {
			continue
		}
		idx.byKey[key] = &el.Entities[i]
		idx.order = append(idx.order, key)
	}
	return idx
}

// BuildEntityMap indexes entities by identity key. The entity resolver
// (pkg/merge) uses this for O(1) lookups when pairing up base/ours/theirs
// entities sharing a key; first occurrence wins so malformed duplicate
// keys don't make lookups order-dependent.
func BuildEntityMap(el *EntityList) map[string]*Entity {
	return buildIndex(el).byKey
}

// OrderedIdentityKeys returns unique identity keys in first-seen order,
// the stable ordering the entity resolver walks when assembling matches.
func OrderedIdentityKeys(el *EntityList) []string {
	return buildIndex(el).order
}
