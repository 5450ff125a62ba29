package merge

import (
	"bytes"
	"testing"
)

func TestExpandSeparatorsIsolatesBraces(t *testing.T) {
	src := []byte(`if (x) { foo(); bar(); }`)
	got := expandSeparators(src)
	want := []byte("if (x) {\n foo();\n bar();\n }\n")
	if !bytes.Equal(got, want) {
		t.Fatalf("expandSeparators = %q, want %q", got, want)
	}
}

func TestExpandSeparatorsIgnoresSeparatorsInsideStrings(t *testing.T) {
	src := []byte(`msg := "a{b};c"`)
	got := expandSeparators(src)
	if !bytes.Equal(got, src) {
		t.Fatalf("expandSeparators should not touch separators inside a string literal: got %q", got)
	}
}

func TestExpandSeparatorsHandlesEscapedQuotes(t *testing.T) {
	src := []byte(`msg := "a\"{b}"`)
	got := expandSeparators(src)
	if bytes.Contains(got, []byte("\nb")) {
		t.Fatalf("expandSeparators broke out of the string literal early: %q", got)
	}
}

func TestCollapseSeparatorsJoinsBareSeparatorLines(t *testing.T) {
	// Only a line that is *solely* a separator character collapses onto
	// the previous line; "if (x) {" carries other text and stays put.
	src := []byte("if (x) {\nfoo();\nbar();\n}\n")
	got := collapseSeparators(src)
	want := []byte("if (x) {\nfoo();\nbar();}\n")
	if !bytes.Equal(got, want) {
		t.Fatalf("collapseSeparators = %q, want %q", got, want)
	}
}

func TestLineLevelFallbackMergesCleanly(t *testing.T) {
	base := []byte("if (x) { foo(); }")
	ours := []byte("if (x) { foo(); bar(); }")
	theirs := []byte("if (x) { foo(); }")

	merged, hasConflicts := lineLevelFallback(base, ours, theirs)
	if hasConflicts {
		t.Fatalf("expected a clean merge, got conflicts in %q", merged)
	}
	if !bytes.Contains(merged, []byte("bar();")) {
		t.Fatalf("merged output missing ours' addition: %q", merged)
	}
}
