package merge

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/odvcencio/weave/pkg/diff3"
	"github.com/odvcencio/weave/pkg/entity"
)

// MergeStats tracks counts of entity dispositions during a structural
// merge, plus which resolution paths did the work: the text-3-way and
// inner-entity counters feed Confidence, and UsedFallback marks results
// that never went through entity matching at all.
type MergeStats struct {
	TotalEntities  int
	Unchanged      int
	OursModified   int
	TheirsModified int
	BothModified   int
	Added          int
	Deleted        int
	Conflicts      int

	ResolvedViaText3Way   int
	ResolvedViaInnerMerge int
	UsedFallback          bool
	SemanticWarnings      int
}

// MergeResult holds the output of a structural three-way merge.
type MergeResult struct {
	Merged        []byte
	HasConflicts  bool
	ConflictCount int
	Stats         MergeStats

	// Conflicts carries the classified conflict for every entity (and, per
	// the interstitial-conflict-carriage decision, every interstitial) that
	// could not be resolved automatically. Populated by MergeFiles/Merge;
	// len(Conflicts) == ConflictCount whenever structural merging ran.
	Conflicts []EntityConflict
	// Warnings carries advisory semantic-validation notices. Only set when
	// the caller requests validation (see Merge/Options.Validate) and the
	// merge produced at least two modified entities to cross-check.
	Warnings []SemanticWarning
}

// MergeFiles performs a structural three-way merge of source files using
// the default tree-sitter-backed extractor and no semantic validation. It
// is a convenience wrapper over Merge for callers that don't need to
// inject a custom Registry or request validation warnings.
func MergeFiles(path string, base, ours, theirs []byte) (*MergeResult, error) {
	return Merge(path, base, ours, theirs, nil, Options{})
}

// Options configures an individual Merge call.
type Options struct {
	// MaxFileSize bounds structural merging; files larger than this (on any
	// side) go straight to the line-level fallback. Zero means use the
	// package default (see internal/config for the normal way to set this).
	MaxFileSize int64
	// Validate requests a post-merge semantic validation pass; see
	// ValidateMerge. Disabled by default since it re-parses the merged
	// output and is only useful when the caller wants the warnings.
	Validate bool
	// MaxInnerMergeDepth bounds how many container levels the inner-entity
	// strategy recurses through before declaring the nesting pathological
	// and giving up on that member. Zero means the default of 8.
	MaxInnerMergeDepth int
	// ExcludeDecoratorTags lists annotation names (without the @ or #[
	// sigil) the decorator merger drops from its union instead of carrying
	// forward — tags regenerated by tooling rather than authored by hand.
	ExcludeDecoratorTags []string
}

const (
	defaultMaxFileSize     = 1 << 20 // 1 MiB, per the structural-merge size fallback gate.
	defaultInnerMergeDepth = 8
)

// cascadeOptions carries the tunables the merge strategy cascade threads
// through its recursive strategies.
type cascadeOptions struct {
	excludeDecoratorTags map[string]bool
	maxInnerDepth        int
}

func newCascadeOptions(opts Options) cascadeOptions {
	c := cascadeOptions{maxInnerDepth: opts.MaxInnerMergeDepth}
	if c.maxInnerDepth <= 0 {
		c.maxInnerDepth = defaultInnerMergeDepth
	}
	if len(opts.ExcludeDecoratorTags) > 0 {
		c.excludeDecoratorTags = make(map[string]bool, len(opts.ExcludeDecoratorTags))
		for _, tag := range opts.ExcludeDecoratorTags {
			c.excludeDecoratorTags[strings.TrimPrefix(tag, "@")] = true
		}
	}
	return c
}

// Merge performs a structural three-way merge of source files.
//
// Algorithm:
//  1. Fast-path gate: ours==theirs, base==ours, base==theirs, oversize, binary.
//  2. Extract entities from base, ours, theirs via reg (or the default registry).
//  3. Detect renames on each side relative to base.
//  4. Match entities via MatchEntitiesWithRenames.
//  5. For each matched entity, build a ResolvedEntity based on disposition.
//  6. Reconstruct output via Reconstruct.
//  7. Optionally run semantic validation over the reconstructed file.
func Merge(path string, base, ours, theirs []byte, reg *entity.Registry, opts Options) (*MergeResult, error) {
	if bytes.Equal(ours, theirs) {
		return &MergeResult{Merged: append([]byte(nil), ours...)}, nil
	}
	if bytes.Equal(base, ours) {
		return &MergeResult{Merged: append([]byte(nil), theirs...), Stats: MergeStats{TotalEntities: 1, TheirsModified: 1}}, nil
	}
	if bytes.Equal(base, theirs) {
		return &MergeResult{Merged: append([]byte(nil), ours...), Stats: MergeStats{TotalEntities: 1, OursModified: 1}}, nil
	}

	if isBinaryContent(base) || isBinaryContent(ours) || isBinaryContent(theirs) {
		return mergeBinaryFallback(base, ours, theirs), nil
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = defaultMaxFileSize
	}
	if int64(len(base)) > maxSize || int64(len(ours)) > maxSize || int64(len(theirs)) > maxSize {
		return mergeTextFallback(base, ours, theirs), nil
	}

	if reg == nil {
		reg = entity.DefaultRegistry()
	}

	baseEL, baseErr := reg.Extract(path, base)
	oursEL, oursErr := reg.Extract(path, ours)
	theirsEL, theirsErr := reg.Extract(path, theirs)
	if baseErr != nil || oursErr != nil || theirsErr != nil {
		// If structural extraction fails (unsupported grammar or parse failure),
		// fall back to line-level diff3 merge for text files.
		return mergeTextFallback(base, ours, theirs), nil
	}
	if !hasDeclaration(baseEL) || !hasDeclaration(oursEL) || !hasDeclaration(theirsEL) {
		// If any side has no declaration entities, structural matching becomes
		// unreliable. Prefer a safe line-level three-way merge.
		return mergeTextFallback(base, ours, theirs), nil
	}

	oursRenames := entity.BuildRenameMap(baseEL, oursEL)
	theirsRenames := entity.BuildRenameMap(baseEL, theirsEL)
	matches := MatchEntitiesWithRenames(baseEL, oursEL, theirsEL, oursRenames, theirsRenames)

	language := detectLanguage(path)
	cascade := newCascadeOptions(opts)

	var resolved []ResolvedEntity
	var modified []ModifiedEntity
	var stats MergeStats
	stats.TotalEntities = len(matches)

	for _, m := range matches {
		switch m.Disposition {
		case Unchanged:
			if m.Base != nil {
				resolved = append(resolved, ResolvedEntity{
					Entity: *m.Base,
				})
			}
			// If base is nil (both deleted from empty), skip.
			stats.Unchanged++

		case OursOnly:
			resolved = append(resolved, ResolvedEntity{
				Entity: *m.Ours,
			})
			if m.Ours.Name != "" {
				modified = append(modified, ModifiedEntity{Name: m.Ours.Name, Kind: m.Ours.Kind.String()})
			}
			stats.OursModified++

		case TheirsOnly:
			resolved = append(resolved, ResolvedEntity{
				Entity: *m.Theirs,
			})
			if m.Theirs.Name != "" {
				modified = append(modified, ModifiedEntity{Name: m.Theirs.Name, Kind: m.Theirs.Kind.String()})
			}
			stats.TheirsModified++

		case BothSame:
			resolved = append(resolved, ResolvedEntity{
				Entity: *m.Ours,
			})
			if m.Ours.Name != "" {
				modified = append(modified, ModifiedEntity{Name: m.Ours.Name, Kind: m.Ours.Kind.String()})
			}
			stats.BothModified++

		case AddedOurs:
			resolved = append(resolved, ResolvedEntity{
				Entity: *m.Ours,
			})
			stats.Added++

		case AddedTheirs:
			resolved = append(resolved, ResolvedEntity{
				Entity: *m.Theirs,
			})
			stats.Added++

		case DeletedOurs, DeletedTheirs:
			// Interstitials whose identity keys shifted because a new entity
			// was inserted between their neighbors are not truly deleted —
			// keep the base version to preserve whitespace separators.
			if m.Base != nil && m.Base.Kind == entity.KindInterstitial {
				resolved = append(resolved, ResolvedEntity{
					Entity: *m.Base,
				})
				stats.Unchanged++
			} else {
				// Real deletion — omit from output.
				stats.Deleted++
			}

		case DeletedBoth:
			// Gone from both sides; for an interstitial that means both
			// sides restructured the gap and carry their own replacements,
			// so emitting the base bytes would only duplicate separators.
			stats.Deleted++

		case Conflict:
			re, via := resolveConflict(m, language, cascade)
			resolved = append(resolved, re)
			switch via {
			case viaText3Way:
				stats.ResolvedViaText3Way++
			case viaInnerEntity:
				stats.ResolvedViaInnerMerge++
			}
			if re.Conflict {
				stats.Conflicts++
			} else {
				stats.BothModified++
				if re.Name != "" {
					modified = append(modified, ModifiedEntity{Name: re.Name, Kind: re.Kind.String()})
				}
			}

		case DeleteVsModify:
			re := resolveDeleteVsModify(m)
			resolved = append(resolved, re)
			stats.Conflicts++
		}
	}

	merged := Reconstruct(resolved)

	conflictCount := 0
	var conflicts []EntityConflict
	for _, re := range resolved {
		if re.Conflict {
			conflictCount++
			if re.Classified != nil {
				conflicts = append(conflicts, *re.Classified)
			}
		}
	}

	result := &MergeResult{
		Merged:        merged,
		HasConflicts:  conflictCount > 0,
		ConflictCount: conflictCount,
		Stats:         stats,
		Conflicts:     conflicts,
	}

	if opts.Validate && conflictCount == 0 && len(modified) >= 2 {
		warnings, err := ValidateMerge(path, merged, modified, reg)
		if err == nil {
			result.Warnings = warnings
			result.Stats.SemanticWarnings = len(warnings)
		}
	}

	return result, nil
}

// mergeStrategy identifies which cascade step resolved (or failed to
// resolve) a both-modified entity, for the stats roll-up.
type mergeStrategy int

const (
	viaTrivial mergeStrategy = iota // shortcut paths: identical bodies, whitespace-only, imports
	viaText3Way
	viaDecorator
	viaInnerEntity
	viaNone // cascade exhausted; conflict emitted
)

// resolveConflict handles entities where both sides modified differently.
// It runs the merge strategy cascade: import regions get commutative
// set-union merge; everything else tries, in order, a whitespace-only
// shortcut, a whole-body diff3 merge, a decorator-aware split merge, and
// finally a recursive inner-entity member merge for container
// declarations. Only when every strategy fails does it produce a
// classified conflict.
func resolveConflict(m MatchedEntity, language string, cascade cascadeOptions) (ResolvedEntity, mergeStrategy) {
	oursBody := m.Ours.Body
	theirsBody := m.Theirs.Body

	var baseBody []byte
	if m.Base != nil {
		baseBody = m.Base.Body
	}

	if m.Ours.Kind == entity.KindImportBlock ||
		(m.Ours.Kind == entity.KindInterstitial && IsImportRegion(oursBody) && IsImportRegion(theirsBody)) {
		merged, conflicted := MergeImports(baseBody, oursBody, theirsBody, language)
		if !conflicted {
			e := *m.Ours
			e.Body = merged
			return ResolvedEntity{Entity: e}, viaTrivial
		}
	}

	if bytes.Equal(oursBody, theirsBody) {
		e := *m.Ours
		return ResolvedEntity{Entity: e}, viaTrivial
	}

	if m.Base != nil {
		oursWhitespaceOnly := isWhitespaceOnlyDiff(baseBody, oursBody)
		theirsWhitespaceOnly := isWhitespaceOnlyDiff(baseBody, theirsBody)
		switch {
		case oursWhitespaceOnly && !theirsWhitespaceOnly:
			e := *m.Theirs
			return ResolvedEntity{Entity: e}, viaTrivial
		case theirsWhitespaceOnly && !oursWhitespaceOnly:
			e := *m.Ours
			return ResolvedEntity{Entity: e}, viaTrivial
		}
	}

	result := diff3.Merge(baseBody, oursBody, theirsBody)
	if !result.HasConflicts {
		e := *m.Ours
		e.Body = trimTrailingNewline(result.Merged)
		return ResolvedEntity{Entity: e}, viaText3Way
	}

	if m.Ours.Kind == entity.KindDeclaration {
		if merged, ok := tryDecoratorAwareMerge(baseBody, oursBody, theirsBody, cascade); ok {
			e := *m.Ours
			e.Body = merged
			return ResolvedEntity{Entity: e}, viaDecorator
		}
		if merged, ok := tryInnerEntityMerge(m.Ours.DeclKind, baseBody, oursBody, theirsBody, cascade); ok {
			e := *m.Ours
			e.Body = merged
			return ResolvedEntity{Entity: e}, viaInnerEntity
		}
	}

	e := *m.Ours
	ec := &EntityConflict{
		EntityName: conflictEntityName(m),
		EntityType: m.Ours.Kind.String(),
		Kind:       conflictKindFor(m),
		Complexity: classifyConflict(m.Base, m.Ours, m.Theirs),
		BaseBody:   baseBody,
		OursBody:   oursBody,
		TheirsBody: theirsBody,
	}
	if ec.Kind == ConflictKindRenameRename {
		// Divergent renames are a signature-level disagreement however the
		// bodies differ, and the marker label must carry all three names.
		ec.Complexity = ComplexitySyntax
		ec.BaseName = m.Base.Name
		ec.OursName = m.Ours.Name
		ec.TheirsName = m.Theirs.Name
		ec.EntityName = fmt.Sprintf("%s (renamed to %s by ours, %s by theirs)",
			ec.BaseName, ec.OursName, ec.TheirsName)
	}
	return ResolvedEntity{
		Entity:     e,
		Conflict:   true,
		OursBody:   oursBody,
		TheirsBody: theirsBody,
		Classified: ec,
	}, viaNone
}

// resolveDeleteVsModify handles the case where one side deleted and the other
// modified. This is always a conflict.
func resolveDeleteVsModify(m MatchedEntity) ResolvedEntity {
	var oursBody, theirsBody []byte
	if m.Ours != nil {
		oursBody = m.Ours.Body
	}
	if m.Theirs != nil {
		theirsBody = m.Theirs.Body
	}

	e := *m.Base
	ec := &EntityConflict{
		EntityName:     conflictEntityName(m),
		EntityType:     m.Base.Kind.String(),
		Kind:           ConflictKindDeleteVsModify,
		Complexity:     ComplexityFunctional,
		BaseBody:       m.Base.Body,
		OursBody:       oursBody,
		TheirsBody:     theirsBody,
		ModifiedInOurs: m.Theirs == nil,
	}
	return ResolvedEntity{
		Entity:     e,
		Conflict:   true,
		OursBody:   oursBody,
		TheirsBody: theirsBody,
		Classified: ec,
	}
}

// conflictEntityName prefers the base entity's name since that is the
// identity both sides started from; it falls back to whichever side is
// present when the entity was newly added on both sides, and finally to
// the identity key itself, which for interstitial regions is the position
// key (file_header, between:…, file_footer).
func conflictEntityName(m MatchedEntity) string {
	switch {
	case m.Base != nil && m.Base.Name != "":
		return m.Base.Name
	case m.Ours != nil && m.Ours.Name != "":
		return m.Ours.Name
	case m.Theirs != nil && m.Theirs.Name != "":
		return m.Theirs.Name
	}
	return m.Key
}

// conflictKindFor distinguishes a rename/rename conflict (both sides
// present, named differently, neither name matching base) and interstitial
// collisions from a plain content-diverged conflict.
func conflictKindFor(m MatchedEntity) ConflictKind {
	if m.Ours != nil && m.Ours.Kind == entity.KindInterstitial {
		return ConflictKindInterstitial
	}
	if m.Base != nil && m.Ours != nil && m.Theirs != nil &&
		m.Ours.Name != m.Theirs.Name &&
		m.Ours.Name != m.Base.Name && m.Theirs.Name != m.Base.Name {
		return ConflictKindRenameRename
	}
	return ConflictKindContentDiverged
}

// isWhitespaceOnlyDiff reports whether a and b differ only in whitespace
// runs, not in the non-whitespace tokens they contain.
func isWhitespaceOnlyDiff(a, b []byte) bool {
	return strings.Join(strings.Fields(string(a)), " ") == strings.Join(strings.Fields(string(b)), " ")
}

// trimTrailingNewline removes a single trailing newline from merged diff3
// output, since entity bodies typically do not end with a trailing newline
// (the interstitial between entities carries that whitespace).
func trimTrailingNewline(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\n' {
		return b[:len(b)-1]
	}
	return b
}

// detectLanguage returns the language name based on file extension.
func detectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".rs":
		return "rust"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx":
		return "javascript"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".cxx", ".hpp":
		return "cpp"
	case ".java":
		return "java"
	default:
		return ""
	}
}

// mergeTextFallback is the engine's last resort when structural extraction
// fails or is unreliable: Sesame-expand separators so brace/semicolon
// structure lines up across differently-formatted revisions, then run a
// classic line-level diff3 and collapse the result back to compact form.
// When even the expanded forms conflict, the merge is re-run on the
// original inputs so the emitted markers frame real source lines instead
// of exploded separator fragments, and the whole file is recorded as one
// classified conflict.
func mergeTextFallback(base, ours, theirs []byte) *MergeResult {
	stats := MergeStats{TotalEntities: 1, UsedFallback: true}

	expanded := sesameDiff3(base, ours, theirs)
	if !expanded.HasConflicts {
		stats.BothModified = 1
		return &MergeResult{
			Merged: collapseSeparators(expanded.Merged),
			Stats:  stats,
		}
	}

	// The expanded forms collided; re-run on the originals so the markers
	// frame real source lines.
	plain := diff3.Merge(base, ours, theirs)
	merged, conflictCount := resolveTextConflicts(plain)
	if conflictCount == 0 {
		stats.BothModified = 1
		return &MergeResult{Merged: merged, Stats: stats}
	}

	stats.Conflicts = conflictCount
	fileConflict := EntityConflict{
		EntityName: "file",
		EntityType: "other",
		Kind:       ConflictKindContentDiverged,
		Complexity: classifyConflict(
			&entity.Entity{Body: base},
			&entity.Entity{Body: ours},
			&entity.Entity{Body: theirs},
		),
		BaseBody:   base,
		OursBody:   ours,
		TheirsBody: theirs,
	}
	return &MergeResult{
		Merged:        merged,
		HasConflicts:  true,
		ConflictCount: conflictCount,
		Stats:         stats,
		Conflicts:     []EntityConflict{fileConflict},
	}
}

func mergeBinaryFallback(base, ours, theirs []byte) *MergeResult {
	stats := MergeStats{TotalEntities: 1, UsedFallback: true}
	switch {
	case bytes.Equal(ours, theirs):
		stats.Unchanged = 1
		return &MergeResult{
			Merged: append([]byte(nil), ours...),
			Stats:  stats,
		}
	case bytes.Equal(base, ours):
		stats.TheirsModified = 1
		return &MergeResult{
			Merged: append([]byte(nil), theirs...),
			Stats:  stats,
		}
	case bytes.Equal(base, theirs):
		stats.OursModified = 1
		return &MergeResult{
			Merged: append([]byte(nil), ours...),
			Stats:  stats,
		}
	default:
		// Keep ours bytes intact and force an explicit conflict state.
		stats.Conflicts = 1
		return &MergeResult{
			Merged:        append([]byte(nil), ours...),
			HasConflicts:  true,
			ConflictCount: 1,
			Stats:         stats,
		}
	}
}

func isBinaryContent(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0
}

func hasDeclaration(el *entity.EntityList) bool {
	for _, e := range el.Entities {
		if e.Kind == entity.KindDeclaration {
			return true
		}
	}
	return false
}

func resolveTextConflicts(result diff3.Result) ([]byte, int) {
	if !result.HasConflicts {
		return result.Merged, 0
	}

	var merged bytes.Buffer
	conflictCount := 0
	for _, h := range result.Hunks {
		if h.Type != diff3.HunkConflict {
			merged.Write(h.Merged)
			continue
		}
		if canResolveParallelInsertion(h) {
			merged.Write(mergeParallelInsertions(h.Ours, h.Theirs))
			continue
		}
		conflictCount++
		merged.WriteString("<<<<<<< ours\n")
		merged.Write(h.Ours)
		merged.WriteString("=======\n")
		merged.Write(h.Theirs)
		merged.WriteString(">>>>>>> theirs\n")
	}

	return merged.Bytes(), conflictCount
}

func canResolveParallelInsertion(h diff3.Hunk) bool {
	return len(bytes.TrimSpace(h.Base)) == 0 &&
		len(bytes.TrimSpace(h.Ours)) > 0 &&
		len(bytes.TrimSpace(h.Theirs)) > 0
}

func mergeParallelInsertions(ours, theirs []byte) []byte {
	ours = append([]byte(nil), ours...)
	if bytes.Equal(bytes.TrimSpace(ours), bytes.TrimSpace(theirs)) {
		return ours
	}
	if len(ours) == 0 {
		return append([]byte(nil), theirs...)
	}
	if len(theirs) == 0 {
		return ours
	}

	out := ours
	if out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	out = append(out, theirs...)
	return out
}
