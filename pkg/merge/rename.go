package merge

import "github.com/odvcencio/weave/pkg/entity"

// MatchEntitiesWithRenames is MatchEntities extended with rename awareness:
// a declaration that moved under a new identity key on one side (because
// its name changed) is matched against its base counterpart via oursRenames
// / theirsRenames instead of appearing as an unrelated AddedX/DeletedX
// pair. When both sides independently rename the same base declaration to
// different new names, both rename maps point at the same base key and the
// resulting MatchedEntity naturally surfaces as a Conflict (both Ours and
// Theirs present, bodies differ) rather than two unrelated adds — exactly
// the "RenameRename" scenario the entity conflict classifier distinguishes
// via ConflictKindRenameRename when both Ours.Name != Theirs.Name.
func MatchEntitiesWithRenames(base, ours, theirs *entity.EntityList, oursRenames, theirsRenames entity.RenameMap) []MatchedEntity {
	if len(oursRenames) == 0 && len(theirsRenames) == 0 {
		return MatchEntities(base, ours, theirs)
	}

	baseMap := entity.BuildEntityMap(base)
	oursMap := aliasedEntityMap(ours, oursRenames)
	theirsMap := aliasedEntityMap(theirs, theirsRenames)

	keys := reconstructionKeyOrder(
		entity.OrderedIdentityKeys(base),
		aliasedOrderedKeys(ours, oursRenames),
		aliasedOrderedKeys(theirs, theirsRenames),
	)

	result := make([]MatchedEntity, 0, len(keys))
	for _, key := range keys {
		b := baseMap[key]
		o := oursMap[key]
		t := theirsMap[key]
		result = append(result, MatchedEntity{
			Key:         key,
			Base:        b,
			Ours:        o,
			Theirs:      t,
			Disposition: classify(b, o, t),
		})
	}
	return result
}

// aliasedOrderedKeys returns el's identity keys in entity order, with keys
// named in renames replaced by the base key they alias, deduped on first
// occurrence.
func aliasedOrderedKeys(el *entity.EntityList, renames entity.RenameMap) []string {
	seen := make(map[string]bool, len(el.Entities))
	var keys []string
	for i := range el.Entities {
		key := el.Entities[i].IdentityKey()
		if aliased, ok := renames[key]; ok {
			key = aliased
		}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

// aliasedEntityMap indexes el's entities under their own identity key,
// except that a key present in renames is additionally indexed under its
// aliased (base) key, so lookups by the base key find the renamed entity.
func aliasedEntityMap(el *entity.EntityList, renames entity.RenameMap) map[string]*entity.Entity {
	m := make(map[string]*entity.Entity, len(el.Entities))
	for i := range el.Entities {
		key := el.Entities[i].IdentityKey()
		m[key] = &el.Entities[i]
		if aliased, ok := renames[key]; ok {
			m[aliased] = &el.Entities[i]
		}
	}
	return m
}
