package symbol

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyEditsBottomUp(t *testing.T) {
	content := "func a() {}\nfunc b() {}\nfunc c() {}\n"
	edits := []TextEdit{
		{Range: Range{Start: Position{Line: 0}, End: Position{Line: 1}}, NewText: "func a() { return }\n"},
		{Range: Range{Start: Position{Line: 2}, End: Position{Line: 3}}, NewText: "func c() { return }\n"},
	}
	out, err := ApplyEdits(content, edits, UTF16)
	if err != nil {
		t.Fatalf("ApplyEdits: %v", err)
	}
	want := "func a() { return }\nfunc b() {}\nfunc c() { return }\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestApplyEditsRejectsOverlap(t *testing.T) {
	content := "abc\ndef\n"
	edits := []TextEdit{
		{Range: Range{Start: Position{Line: 0}, End: Position{Line: 1}}, NewText: "X"},
		{Range: Range{Start: Position{Line: 0, Character: 1}, End: Position{Line: 1}}, NewText: "Y"},
	}
	if _, err := ApplyEdits(content, edits, UTF16); err == nil {
		t.Fatal("expected overlap error")
	}
}

func TestDetectNewline(t *testing.T) {
	if got := DetectNewline("a\r\nb\r\n"); got != "\r\n" {
		t.Fatalf("got %q, want CRLF", got)
	}
	if got := DetectNewline("a\nb\n"); got != "\n" {
		t.Fatalf("got %q, want LF", got)
	}
}

func TestAtomicWriteRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calc.py")
	if err := os.WriteFile(path, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := AtomicWrite(path, []byte("updated")); err != nil {
		t.Fatalf("AtomicWrite: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "updated" {
		t.Fatalf("got %q", got)
	}
}

// TestEditRoundTripPreservesBytes: a chain of edits that round-trips a
// body back to its original leaves the file byte-identical, with no
// trailing newline drift.
func TestEditRoundTripPreservesBytes(t *testing.T) {
	original := "class Calc:\n    def add(self, a, b):\n        return a + b\n"
	sym := &Symbol{
		Location: Location{Range: Range{
			Start: Position{Line: 1, Character: 0},
			End:   Position{Line: 3, Character: 0},
		}},
	}
	newBody := "    def add(self, a, b):\n        return b + a\n"
	edit := ReplaceBody(sym, newBody)
	after, err := ApplyEdits(original, []TextEdit{edit}, UTF16)
	if err != nil {
		t.Fatalf("ApplyEdits: %v", err)
	}
	roundTripEdit := ReplaceBody(sym, "    def add(self, a, b):\n        return a + b\n")
	restored, err := ApplyEdits(after, []TextEdit{roundTripEdit}, UTF16)
	if err != nil {
		t.Fatalf("ApplyEdits (restore): %v", err)
	}
	if restored != original {
		t.Fatalf("got %q, want byte-identical original %q", restored, original)
	}
}

func TestExpectedBodyMatches(t *testing.T) {
	content := "x = 1\n"
	sym := &Symbol{Location: Location{Range: Range{Start: Position{Line: 0}, End: Position{Line: 0, Character: 5}}}}
	match := "x = 1"
	if !ExpectedBodyMatches(sym, content, UTF16, &match) {
		t.Fatal("expected match")
	}
	mismatch := "x = 2"
	if ExpectedBodyMatches(sym, content, UTF16, &mismatch) {
		t.Fatal("expected mismatch to be detected")
	}
	if !ExpectedBodyMatches(sym, content, UTF16, nil) {
		t.Fatal("nil expected body should always match (no optimistic check requested)")
	}
}
