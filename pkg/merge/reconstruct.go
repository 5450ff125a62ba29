package merge

import "github.com/odvcencio/weave/pkg/entity"

// ResolvedEntity wraps an entity with its merge resolution.
// For non-conflict entities, Body contains the resolved content.
// For conflict entities, OursBody and TheirsBody hold the two divergent
// versions and, when the conflict went through the classifier, Classified
// carries the entity/complexity metadata needed for the enhanced marker
// format. Merge sets Classified on every conflict it builds (the
// line-level fallback path builds no ResolvedEntity values); a conflict
// with a nil Classified is rendered with plain markers.
type ResolvedEntity struct {
	entity.Entity
	Conflict             bool
	OursBody, TheirsBody []byte
	Classified           *EntityConflict
}

// Reconstruct assembles source bytes from a sequence of resolved entities,
// in the order MatchEntities/MatchEntitiesWithRenames produced them: ours'
// entity sequence is the skeleton, theirs-only entities are spliced in
// directly after their nearest theirs-predecessor that survives in ours
// (the predecessor's predecessor when the immediate one was deleted, per
// the spec's sanctioned alternative), and only an insertion with no
// surviving predecessor at all falls back to the post-skeleton flush —
// the SPEC_FULL.md open-question decision covers that case alone, not
// general insertion ordering. Clean entities contribute their Body
// directly; conflict
// entities are wrapped in conflict markers, using the enhanced
// entity-aware format when a classification is available and the plain
// marker form otherwise.
func Reconstruct(entities []ResolvedEntity) []byte {
	if len(entities) == 0 {
		return nil
	}

	var buf []byte
	for _, e := range entities {
		switch {
		case !e.Conflict:
			buf = append(buf, e.Body...)
		case e.Classified != nil:
			buf = append(buf, e.Classified.ToConflictMarkers()...)
		default:
			buf = append(buf, "<<<<<<< ours\n"...)
			buf = append(buf, e.OursBody...)
			buf = append(buf, "\n=======\n"...)
			buf = append(buf, e.TheirsBody...)
			buf = append(buf, "\n>>>>>>> theirs\n"...)
		}
	}
	return buf
}
