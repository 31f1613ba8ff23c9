package symbol

import "testing"

func TestNegotiateEncoding(t *testing.T) {
	cases := map[string]PositionEncoding{
		"utf-8":  UTF8,
		"utf-32": UTF32,
		"":       UTF16,
		"bogus":  UTF16,
	}
	for in, want := range cases {
		if got := NegotiateEncoding(in); got != want {
			t.Fatalf("NegotiateEncoding(%q) = %v, want %v", in, got, want)
		}
	}
}

// TestSliceASCII covers the common ASCII case,
// where UTF-8 byte offsets and UTF-16 code-unit counts coincide.
func TestSliceASCII(t *testing.T) {
	content := "class Calc:\n    def add(self, a, b):\n        return a + b\n"
	r := Range{Start: Position{Line: 1, Character: 0}, End: Position{Line: 3, Character: 0}}
	got := Slice(content, r, UTF16)
	want := "    def add(self, a, b):\n        return a + b\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// TestSliceSurrogatePair covers a character outside the BMP (e.g. an emoji
// in a string literal) which occupies one UTF-16 surrogate pair (2 code
// units) but 4 UTF-8 bytes.
func TestSliceSurrogatePair(t *testing.T) {
	content := "x = \"\U0001F600y\"\n" // U+1F600 GRINNING FACE
	// Characters (UTF-16 units): x=0, ' '=1, '='=2, ' '=3, '"'=4, emoji=5..6, y=7, '"'=8
	r := Range{Start: Position{Line: 0, Character: 5}, End: Position{Line: 0, Character: 8}}
	got := Slice(content, r, UTF16)
	want := "\U0001F600y"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSliceUTF8Encoding(t *testing.T) {
	content := "é = 1\n"
	// In UTF-8-byte-offset mode, character count is a raw byte offset;
	// 'é' is 2 bytes, so character 2 is the space after it.
	r := Range{Start: Position{Line: 0, Character: 2}, End: Position{Line: 0, Character: 3}}
	got := Slice(content, r, UTF8)
	if got != " " {
		t.Fatalf("got %q, want %q", got, " ")
	}
}
