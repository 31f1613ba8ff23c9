package symbol

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// TextEdit is a single exact replacement range, the only edit primitive
// this layer ever produces; edits are exact ranges, never synthesized
// diffs.
type TextEdit struct {
	Range   Range
	NewText string
}

// ReplaceBody computes the TextEdit for replace_symbol_body: the exact
// range to replace is the symbol's own Location range.
func ReplaceBody(sym *Symbol, newBody string) TextEdit {
	return TextEdit{Range: sym.Location.Range, NewText: newBody}
}

// InsertBefore computes a zero-width TextEdit at the start of sym's line,
// preserving trailing newlines in text (the caller's text is inserted
// verbatim immediately before the symbol's first line).
func InsertBefore(sym *Symbol, text string) TextEdit {
	at := Position{Line: sym.Location.Range.Start.Line, Character: 0}
	return TextEdit{Range: Range{Start: at, End: at}, NewText: text}
}

// InsertAfter computes a zero-width TextEdit at the end of sym's range,
// positioned at the start of the line following the symbol so the
// inserted text begins its own line.
func InsertAfter(sym *Symbol, text string) TextEdit {
	at := Position{Line: sym.Location.Range.End.Line + 1, Character: 0}
	return TextEdit{Range: Range{Start: at, End: at}, NewText: text}
}

// ApplyEdits applies edits to content, which must all target the same
// file, in a single pass. Edits are sorted and applied from the highest
// start offset to the lowest ("bottom-up") so that earlier edits' offsets
// are never invalidated by later ones. The same discipline applies to
// every multi-edit operation, not only rename.
func ApplyEdits(content string, edits []TextEdit, enc PositionEncoding) (string, error) {
	if len(edits) == 0 {
		return content, nil
	}
	type offsetEdit struct {
		start, end int
		newText    string
	}
	offs := make([]offsetEdit, len(edits))
	for i, e := range edits {
		offs[i] = offsetEdit{
			start:   toByteOffset(content, e.Range.Start, enc),
			end:     toByteOffset(content, e.Range.End, enc),
			newText: e.NewText,
		}
	}
	sort.Slice(offs, func(i, j int) bool { return offs[i].start > offs[j].start })

	// Validate non-overlap now that we have byte offsets, highest first.
	for i := 1; i < len(offs); i++ {
		if offs[i].end > offs[i-1].start {
			return "", fmt.Errorf("overlapping edits at byte offsets %d..%d and %d..%d",
				offs[i].start, offs[i].end, offs[i-1].start, offs[i-1].end)
		}
	}

	result := content
	for _, e := range offs {
		if e.start < 0 || e.end > len(result) || e.start > e.end {
			return "", fmt.Errorf("edit range out of bounds: %d..%d (len %d)", e.start, e.end, len(result))
		}
		result = result[:e.start] + e.newText + result[e.end:]
	}
	return result, nil
}

// DetectNewline returns the newline convention found in content's first
// line terminator, or the platform default for an empty file.
func DetectNewline(content string) string {
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		if idx > 0 && content[idx-1] == '\r' {
			return "\r\n"
		}
		return "\n"
	}
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}

// AtomicWrite writes content to path via a sibling temporary file, fsync,
// and rename, so a failed write leaves path byte-identical to its
// pre-write state.
func AtomicWrite(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	cleanup = false
	return nil
}

// ExpectedBodyMatches implements the optimistic-concurrency check ahead of
// any write: when expected is non-nil, the symbol's current body (as
// sliced from its live file content) must equal *expected exactly, else
// the caller must fail StaleSymbol.
func ExpectedBodyMatches(sym *Symbol, fileContent string, enc PositionEncoding, expected *string) bool {
	if expected == nil {
		return true
	}
	return Slice(fileContent, sym.Location.Range, enc) == *expected
}
