package symbol

// PositionEncoding is the unit the negotiated LSP `character` offset is
// measured in: negotiated per `general/positionEncodings` in the
// initialize exchange (LSP 3.17), defaulting to UTF-16 (the LSP
// 3.16-and-earlier mandatory default) when the server declares no
// preference. Whichever was negotiated is honored consistently through
// every range-to-byte-offset conversion in this file.
type PositionEncoding int

const (
	UTF16 PositionEncoding = iota
	UTF8
	UTF32
)

// NegotiateEncoding picks the position encoding from a server's
// `capabilities.positionEncoding` response field (LSP 3.17 general
// capability), given the client's offer in preference order. An empty or
// unrecognized server value means the server did not opt in, so per the
// LSP spec clients must assume UTF-16.
func NegotiateEncoding(serverValue string) PositionEncoding {
	switch serverValue {
	case "utf-8":
		return UTF8
	case "utf-32":
		return UTF32
	default:
		return UTF16
	}
}

// Slice extracts the substring of content spanning r, where r's
// Line/Character are expressed in enc units, and returns it as a Go
// string (which is always UTF-8). content must be the full text of the
// file r is relative to.
func Slice(content string, r Range, enc PositionEncoding) string {
	startByte := toByteOffset(content, r.Start, enc)
	endByte := toByteOffset(content, r.End, enc)
	if startByte < 0 || endByte < 0 || startByte > endByte || endByte > len(content) {
		return ""
	}
	return content[startByte:endByte]
}

// toByteOffset converts a Position expressed in enc units into a byte
// offset into content. Lines are always counted by '\n'; characters
// within a line are counted in the negotiated unit.
func toByteOffset(content string, pos Position, enc PositionEncoding) int {
	lineStart := 0
	line := 0
	for line < pos.Line {
		idx := indexByte(content, lineStart, '\n')
		if idx < 0 {
			return len(content)
		}
		lineStart = idx + 1
		line++
	}
	lineEnd := indexByte(content, lineStart, '\n')
	if lineEnd < 0 {
		lineEnd = len(content)
	}
	lineText := content[lineStart:lineEnd]
	return lineStart + charsToByteOffset(lineText, pos.Character, enc)
}

func indexByte(s string, from int, b byte) int {
	if from > len(s) {
		return -1
	}
	for i := from; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// charsToByteOffset converts a character count, measured in enc's units,
// into a byte offset within line (a single line of UTF-8 text).
func charsToByteOffset(line string, chars int, enc PositionEncoding) int {
	switch enc {
	case UTF8:
		if chars > len(line) {
			return len(line)
		}
		return chars
	case UTF32:
		count := 0
		for i, r := range line {
			if count == chars {
				return i
			}
			_ = r
			count++
		}
		return len(line)
	default: // UTF16
		count := 0
		for i, r := range line {
			if count >= chars {
				return i
			}
			if r > 0xFFFF {
				count += 2 // encodes as a surrogate pair in UTF-16
			} else {
				count++
			}
		}
		return len(line)
	}
}
