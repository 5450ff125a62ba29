package merge

import (
	"strings"
	"testing"

	"github.com/odvcencio/weave/pkg/entity"
)

// stubExtract parses a deliberately tiny source format so engine-level
// behavior can be exercised without a real grammar: every blank-line
// separated paragraph is one declaration, named by the identifier before
// the first '(' (functions) or the token after "class" (containers).
// Trailing blank lines attach to the preceding declaration so that
// concatenating bodies reproduces the source.
func stubExtract(filename string, source []byte) (*entity.EntityList, error) {
	el := &entity.EntityList{Language: "stub", Path: filename, Source: source}
	if len(source) == 0 {
		return el, nil
	}

	lines := strings.SplitAfter(string(source), "\n")
	var current []string
	flush := func() {
		if len(current) == 0 {
			return
		}
		body := strings.Join(current, "")
		current = nil
		e := entity.Entity{Kind: entity.KindDeclaration, Body: []byte(body)}
		first := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(strings.Split(body, "\n")[0]), "export "))
		switch {
		case strings.HasPrefix(first, "class "):
			e.DeclKind = "class_declaration"
			e.Name = strings.Fields(first)[1]
		default:
			e.DeclKind = "function_definition"
			decl := first
			for _, kw := range []string{"fn ", "func ", "def "} {
				decl = strings.TrimPrefix(decl, kw)
			}
			if idx := strings.IndexByte(decl, '('); idx >= 0 {
				decl = decl[:idx]
			}
			e.Name = strings.TrimSpace(decl)
		}
		e.Signature = first
		e.ComputeHash()
		e.ComputeStructuralHash()
		el.Entities = append(el.Entities, e)
	}

	blank := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			current = append(current, line)
			blank = true
			continue
		}
		if blank && hasDeclarationLine(current) {
			flush()
		}
		blank = false
		current = append(current, line)
	}
	flush()
	return el, nil
}

func hasDeclarationLine(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}

func stubRegistry() *entity.Registry {
	return entity.NewRegistry(entity.ExtractorFunc(stubExtract))
}

// Renaming on one side only must resolve to the new name with no conflict
// and no duplicate of the old entity.
func TestMergeRenameOneSideKeepsSingleEntity(t *testing.T) {
	base := []byte("fn foo() { 42 }\n\nfn other() { 1 }\n")
	ours := []byte("fn bar() { 42 }\n\nfn other() { 1 }\n")
	theirs := []byte("fn foo() { 42 }\n\nfn other() { 2 }\n")

	result, err := Merge("test.rs", base, ours, theirs, stubRegistry(), Options{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	merged := string(result.Merged)

	if result.HasConflicts {
		t.Fatalf("expected clean merge, got conflicts:\n%s", merged)
	}
	if !strings.Contains(merged, "fn bar()") {
		t.Fatalf("merged output missing renamed entity bar:\n%s", merged)
	}
	if strings.Contains(merged, "fn foo()") {
		t.Fatalf("old name foo should not survive alongside the rename:\n%s", merged)
	}
	if strings.Count(merged, "{ 42 }") != 1 {
		t.Fatalf("renamed entity should appear exactly once:\n%s", merged)
	}
	if !strings.Contains(merged, "{ 2 }") {
		t.Fatalf("theirs' independent change to other() lost:\n%s", merged)
	}
}

// Divergent renames of the same base entity are a rename/rename conflict
// carrying all three names; neither new name survives as a clean entity.
func TestMergeDivergentRenameRaisesRenameRename(t *testing.T) {
	base := []byte("fn foo() { 42 }\n")
	ours := []byte("fn bar() { 42 }\n")
	theirs := []byte("fn baz() { 42 }\n")

	result, err := Merge("test.rs", base, ours, theirs, stubRegistry(), Options{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if !result.HasConflicts || len(result.Conflicts) != 1 {
		t.Fatalf("expected exactly one conflict, got %d (HasConflicts=%v)", len(result.Conflicts), result.HasConflicts)
	}
	c := result.Conflicts[0]
	if c.Kind != ConflictKindRenameRename {
		t.Fatalf("Kind = %v, want rename/rename", c.Kind)
	}
	if c.BaseName != "foo" || c.OursName != "bar" || c.TheirsName != "baz" {
		t.Fatalf("rename names = %q/%q/%q, want foo/bar/baz", c.BaseName, c.OursName, c.TheirsName)
	}
	if c.Complexity != ComplexitySyntax {
		t.Fatalf("Complexity = %v, want S for divergent renames", c.Complexity)
	}

	merged := string(result.Merged)
	for _, name := range []string{"foo", "bar", "baz"} {
		if !strings.Contains(merged, name) {
			t.Errorf("marker block should mention %q:\n%s", name, merged)
		}
	}
	// Exactly one conflict block, and no clean copy of either rename
	// outside it.
	if strings.Count(merged, "<<<<<<< ours") != 1 {
		t.Fatalf("expected a single conflict block:\n%s", merged)
	}
}

// Two methods of one container modified on different sides merge via the
// recursive inner-entity strategy.
func TestMergeInnerEntityResolvesDisjointMethodEdits(t *testing.T) {
	base := []byte("class Calc {\n  add(a,b){return a+b;}\n  sub(a,b){return a-b;}\n}\n")
	ours := []byte("class Calc {\n  add(a,b){return a+b+0;}\n  sub(a,b){return a-b;}\n}\n")
	theirs := []byte("class Calc {\n  add(a,b){return a+b;}\n  sub(a,b){return a-b-0;}\n}\n")

	result, err := Merge("test.ts", base, ours, theirs, stubRegistry(), Options{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	merged := string(result.Merged)

	if result.HasConflicts {
		t.Fatalf("expected inner-entity merge to resolve disjoint method edits:\n%s", merged)
	}
	if !strings.Contains(merged, "a+b+0") || !strings.Contains(merged, "a-b-0") {
		t.Fatalf("merged class missing one side's method edit:\n%s", merged)
	}
	if result.Stats.ResolvedViaInnerMerge < 1 {
		t.Fatalf("Stats.ResolvedViaInnerMerge = %d, want >= 1", result.Stats.ResolvedViaInnerMerge)
	}
	if result.Stats.Confidence() != "medium" {
		t.Fatalf("Confidence = %q, want medium after inner-entity merge", result.Stats.Confidence())
	}
}

// A side whose only divergence is whitespace must lose to the side with a
// real change, with no conflict.
func TestMergeWhitespaceOnlySideYieldsToRealChange(t *testing.T) {
	base := []byte("fn fmt_me() {\n    do_work();\n}\n")
	ours := []byte("fn fmt_me() {\n\tdo_work();\n}\n")
	theirs := []byte("fn fmt_me() {\n    do_work();\n    log();\n}\n")

	result, err := Merge("test.rs", base, ours, theirs, stubRegistry(), Options{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	merged := string(result.Merged)

	if result.HasConflicts {
		t.Fatalf("expected whitespace-only side to yield cleanly:\n%s", merged)
	}
	if !strings.Contains(merged, "log();") {
		t.Fatalf("real change from theirs lost:\n%s", merged)
	}
}

// An entity deleted on both sides stays deleted even when each side made
// other, unrelated changes.
func TestMergeBothDeletedStaysDeleted(t *testing.T) {
	base := []byte("fn keep() { 1 }\n\nfn drop_me() { 0 }\n")
	ours := []byte("fn keep() { 1 }\n\nfn added_ours(x) { x * x }\n")
	theirs := []byte("fn keep() { 1 }\n")

	result, err := Merge("test.rs", base, ours, theirs, stubRegistry(), Options{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	merged := string(result.Merged)

	if result.HasConflicts {
		t.Fatalf("expected clean merge:\n%s", merged)
	}
	if strings.Contains(merged, "drop_me") {
		t.Fatalf("entity deleted by both sides resurfaced:\n%s", merged)
	}
	if !strings.Contains(merged, "added_ours") {
		t.Fatalf("ours' addition lost:\n%s", merged)
	}
	if result.Stats.Deleted < 1 {
		t.Fatalf("Stats.Deleted = %d, want >= 1", result.Stats.Deleted)
	}
}

// The line-level fallback records one classified file-level conflict when
// even separator expansion cannot reconcile the sides.
func TestMergeFallbackRecordsFileConflict(t *testing.T) {
	base := []byte("alpha\nbeta\ngamma\n")
	ours := []byte("alpha-ours\nbeta\ngamma\n")
	theirs := []byte("alpha-theirs\nbeta\ngamma\n")

	result, err := MergeFiles("notes.txt", base, ours, theirs)
	if err != nil {
		t.Fatalf("MergeFiles: %v", err)
	}

	if !result.Stats.UsedFallback {
		t.Fatal("expected Stats.UsedFallback for an unsupported file type")
	}
	if !result.HasConflicts || len(result.Conflicts) != 1 {
		t.Fatalf("expected one recorded file-level conflict, got %d", len(result.Conflicts))
	}
	if result.Stats.Confidence() != "conflict" {
		t.Fatalf("Confidence = %q, want conflict", result.Stats.Confidence())
	}
	merged := string(result.Merged)
	if !strings.Contains(merged, "alpha-ours") || !strings.Contains(merged, "alpha-theirs") {
		t.Fatalf("conflict markers should carry both sides:\n%s", merged)
	}
}

// Idempotence and trivial-ancestry fast paths.
func TestMergeFastPaths(t *testing.T) {
	x := []byte("fn f() { 1 }\n")
	o := []byte("fn f() { 2 }\n")
	tt := []byte("fn f() { 3 }\n")

	same, err := Merge("t.rs", x, x, x, stubRegistry(), Options{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if string(same.Merged) != string(x) || same.HasConflicts || len(same.Warnings) != 0 {
		t.Fatalf("identical inputs should merge to themselves with empty stats, got %+v", same)
	}

	oursWins, err := Merge("t.rs", x, o, x, stubRegistry(), Options{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if string(oursWins.Merged) != string(o) {
		t.Fatalf("base==theirs should emit ours, got %q", oursWins.Merged)
	}

	theirsWins, err := Merge("t.rs", x, x, tt, stubRegistry(), Options{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if string(theirsWins.Merged) != string(tt) {
		t.Fatalf("base==ours should emit theirs, got %q", theirsWins.Merged)
	}
}

// Swapping ours and theirs must surface the same conflicted entity, with
// the sides' contents exchanged.
func TestMergeConflictSetIsSymmetric(t *testing.T) {
	base := []byte("fn f() { 0 }\n")
	ours := []byte("fn f() { 1 }\n")
	theirs := []byte("fn f() { 2 }\n")

	fwd, err := Merge("t.rs", base, ours, theirs, stubRegistry(), Options{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	rev, err := Merge("t.rs", base, theirs, ours, stubRegistry(), Options{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if len(fwd.Conflicts) != 1 || len(rev.Conflicts) != 1 {
		t.Fatalf("expected one conflict each way, got %d and %d", len(fwd.Conflicts), len(rev.Conflicts))
	}
	if fwd.Conflicts[0].EntityName != rev.Conflicts[0].EntityName {
		t.Fatalf("conflict entity differs across swap: %q vs %q",
			fwd.Conflicts[0].EntityName, rev.Conflicts[0].EntityName)
	}
	if string(fwd.Conflicts[0].OursBody) != string(rev.Conflicts[0].TheirsBody) {
		t.Fatal("swapping sides should exchange ours/theirs contents in the conflict record")
	}
}
