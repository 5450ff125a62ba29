package merge

import (
	"fmt"

	"github.com/odvcencio/weave/pkg/entity"
)

// Disposition describes the merge status of a matched entity.
type Disposition int

const (
	Unchanged    Disposition = iota
	OursOnly                 // ours modified, theirs unchanged
	TheirsOnly               // theirs modified, ours unchanged
	BothSame                 // both modified identically
	Conflict                 // both modified differently
	AddedOurs                // new entity in ours, not in base
	AddedTheirs              // new entity in theirs, not in base
	DeletedOurs              // deleted by ours
	DeletedTheirs            // deleted by theirs
	DeletedBoth              // deleted by both sides
	DeleteVsModify           // one deleted, other modified
)

var dispositionNames = [...]string{
	Unchanged:      "Unchanged",
	OursOnly:       "OursOnly",
	TheirsOnly:     "TheirsOnly",
	BothSame:       "BothSame",
	Conflict:       "Conflict",
	AddedOurs:      "AddedOurs",
	AddedTheirs:    "AddedTheirs",
	DeletedOurs:    "DeletedOurs",
	DeletedTheirs:  "DeletedTheirs",
	DeletedBoth:    "DeletedBoth",
	DeleteVsModify: "DeleteVsModify",
}

func (d Disposition) String() string {
	if int(d) >= 0 && int(d) < len(dispositionNames) {
		return dispositionNames[d]
	}
	return fmt.Sprintf("Disposition(%d)", int(d))
}

// MatchedEntity pairs an entity key with its three-way merge disposition.
type MatchedEntity struct {
	Key         string
	Disposition Disposition
	Base        *entity.Entity
	Ours        *entity.Entity
	Theirs      *entity.Entity
}

// MatchEntities is the entity resolver: it pairs up base/ours/theirs
// entities sharing an identity key and classifies each pairing's
// disposition. Matches come back in reconstruction order: ours' entity
// sequence is the skeleton, with theirs-only entities spliced in after
// their theirs-predecessors (see orderedUnionKeys).
func MatchEntities(base, ours, theirs *entity.EntityList) []MatchedEntity {
	baseMap := entity.BuildEntityMap(base)
	oursMap := entity.BuildEntityMap(ours)
	theirsMap := entity.BuildEntityMap(theirs)

	keys := orderedUnionKeys(base, ours, theirs)

	result := make([]MatchedEntity, 0, len(keys))
	for _, key := range keys {
		b, o, t := baseMap[key], oursMap[key], theirsMap[key]
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

// orderedUnionKeys returns the union of identity keys in the order the
// reconstructor emits them: ours' entity sequence is the skeleton, and a
// key only theirs carries splices in directly after the nearest preceding
// theirs entity that ours also has.
func orderedUnionKeys(base, ours, theirs *entity.EntityList) []string {
	return reconstructionKeyOrder(
		entity.OrderedIdentityKeys(base),
		entity.OrderedIdentityKeys(ours),
		entity.OrderedIdentityKeys(theirs),
	)
}

// reconstructionKeyOrder implements the reconstructor's walk order over
// pre-aliased key sequences. Splicing by theirs-predecessor keeps an
// entity theirs inserted mid-file at its authored position instead of
// relegating it to the end of the output. Theirs-only keys with no
// surviving predecessor (they led the file, or their predecessor was
// deleted from ours) flush after the skeleton, followed by keys nothing
// but base still carries.
func reconstructionKeyOrder(baseKeys, oursKeys, theirsKeys []string) []string {
	inOurs := make(map[string]bool, len(oursKeys))
	for _, k := range oursKeys {
		inOurs[k] = true
	}

	spliceAfter := make(map[string][]string)
	var unanchored []string
	anchor := ""
	for _, k := range theirsKeys {
		if inOurs[k] {
			anchor = k
			continue
		}
		if anchor == "" {
			unanchored = append(unanchored, k)
		} else {
			spliceAfter[anchor] = append(spliceAfter[anchor], k)
		}
	}

	seen := make(map[string]bool, len(oursKeys)+len(theirsKeys))
	var keys []string
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, k := range oursKeys {
		add(k)
		for _, spliced := range spliceAfter[k] {
			add(spliced)
		}
	}
	for _, k := range unanchored {
		add(k)
	}
	for _, k := range baseKeys {
		add(k)
	}
	return keys
}

// presence encodes which of the three revisions hold an entity under a
// given key, as a 3-bit index (base<<2 | ours<<1 | theirs) into
// presenceResolvers below. This mirrors spec §4.4's 3x3 presence table
// directly: each table row becomes one slot in the array instead of a
// branch in a nested conditional.
type presence int

const (
	presentNone presence = iota
	presentTheirsOnly
	presentOursOnly
	presentOursTheirs
	presentBaseOnly
	presentBaseTheirs
	presentBaseOurs
	presentAll
)

func classify(base, ours, theirs *entity.Entity) Disposition {
	p := presence(b2i(base != nil)<<2 | b2i(ours != nil)<<1 | b2i(theirs != nil))
	resolve := presenceResolvers[p]
	if resolve == nil {
		return Unchanged
	}
	return resolve(base, ours, theirs)
}

func b2i(v bool) int {
	if v {
		return 1
	}
	return 0
}

type presenceResolver func(base, ours, theirs *entity.Entity) Disposition

var presenceResolvers = [8]presenceResolver{
	presentNone:       func(_, _, _ *entity.Entity) Disposition { return Unchanged },
	presentBaseOnly:   func(_, _, _ *entity.Entity) Disposition { return DeletedBoth },
	presentOursOnly:   func(_, _, _ *entity.Entity) Disposition { return AddedOurs },
	presentTheirsOnly: func(_, _, _ *entity.Entity) Disposition { return AddedTheirs },
	presentOursTheirs: func(_, ours, theirs *entity.Entity) Disposition {
		if ours.BodyHash == theirs.BodyHash {
			return BothSame
		}
		return Conflict
	},
	presentBaseOurs: func(base, ours, _ *entity.Entity) Disposition {
		if ours.BodyHash != base.BodyHash {
			return DeleteVsModify // theirs deleted, ours kept editing
		}
		return DeletedTheirs
	},
	presentBaseTheirs: func(base, _, theirs *entity.Entity) Disposition {
		if theirs.BodyHash != base.BodyHash {
			return DeleteVsModify // ours deleted, theirs kept editing
		}
		return DeletedOurs
	},
	presentAll: func(base, ours, theirs *entity.Entity) Disposition {
		oursChanged := ours.BodyHash != base.BodyHash
		theirsChanged := theirs.BodyHash != base.BodyHash
		switch {
		case !oursChanged && !theirsChanged:
			return Unchanged
		case oursChanged && !theirsChanged:
			return OursOnly
		case !oursChanged && theirsChanged:
			return TheirsOnly
		case ours.BodyHash == theirs.BodyHash:
			return BothSame
		default:
			return Conflict
		}
	},
}
