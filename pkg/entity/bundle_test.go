package entity

import (
	"bytes"
	"testing"
)

func TestFindLeadingCommentStartDirectlyAbove(t *testing.T) {
	body := []byte("\n// Frobnicate does a thing.\n")
	start := findLeadingCommentStart(body)
	if start < 0 {
		t.Fatal("expected a leading comment start, got -1")
	}
	if string(body[start:]) != "// Frobnicate does a thing.\n" {
		t.Fatalf("split at wrong offset: got %q", body[start:])
	}
}

func TestFindLeadingCommentStartToleratesOneBlankLine(t *testing.T) {
	body := []byte("\n// Frobnicate does a thing.\n\n")
	start := findLeadingCommentStart(body)
	if start < 0 {
		t.Fatal("expected a leading comment start across one blank line, got -1")
	}
	if string(body[start:]) != "// Frobnicate does a thing.\n\n" {
		t.Fatalf("split at wrong offset: got %q", body[start:])
	}
}

func TestFindLeadingCommentStartRejectsTwoBlankLines(t *testing.T) {
	body := []byte("// Frobnicate does a thing.\n\n\n")
	if start := findLeadingCommentStart(body); start >= 0 {
		t.Fatalf("expected no leading comment across two blank lines, got split at %d", start)
	}
}

func TestFindLeadingCommentStartNoComment(t *testing.T) {
	body := []byte("\n\n")
	if start := findLeadingCommentStart(body); start >= 0 {
		t.Fatalf("expected -1 for a purely blank interstitial, got %d", start)
	}
}

func TestBundleLeadingCommentsMovesCommentIntoDeclaration(t *testing.T) {
	el := &EntityList{Entities: []Entity{
		{
			Kind: KindInterstitial,
			Body: []byte("\n// Frobnicate does a thing.\n"),
		},
		{
			Kind: KindDeclaration,
			Name: "Frobnicate",
			Body: []byte("func Frobnicate() {}\n"),
		},
	}}

	bundleLeadingComments(el)

	if !bytes.Contains(el.Entities[1].Body, []byte("// Frobnicate does a thing.")) {
		t.Fatalf("comment was not bundled into the declaration: %q", el.Entities[1].Body)
	}
	if bytes.Contains(el.Entities[0].Body, []byte("// Frobnicate")) {
		t.Fatalf("comment was not removed from the interstitial: %q", el.Entities[0].Body)
	}
}

func TestBundleLeadingCommentsLeavesNonCommentInterstitialAlone(t *testing.T) {
	el := &EntityList{Entities: []Entity{
		{
			Kind: KindInterstitial,
			Body: []byte("\n\n"),
		},
		{
			Kind: KindDeclaration,
			Name: "Frobnicate",
			Body: []byte("func Frobnicate() {}\n"),
		},
	}}

	bundleLeadingComments(el)

	if !bytes.Equal(el.Entities[0].Body, []byte("\n\n")) {
		t.Fatalf("blank interstitial should be untouched, got %q", el.Entities[0].Body)
	}
	if !bytes.Equal(el.Entities[1].Body, []byte("func Frobnicate() {}\n")) {
		t.Fatalf("declaration should be untouched, got %q", el.Entities[1].Body)
	}
}
