package gateway

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"codegate/internal/cache"
	"codegate/internal/gatewaycfg"
	"codegate/internal/language"
)

// testGateway builds a Gateway whose file-tree/wrapper machinery is never
// exercised, sufficient for search_for_pattern, which never touches a
// language server.
func testGateway(t *testing.T, root string) *Gateway {
	t.Helper()
	registry := language.NewRegistry([]language.Language{
		{Name: "go", Suffixes: []string{".go"}},
		{Name: "python", Suffixes: []string{".py"}, IgnoreDirs: []string{"vendor"}},
	})
	return &Gateway{
		cfg:      gatewaycfg.Config{RootPath: root},
		registry: registry,
		caches:   cache.New(),
		logger:   log.New(io.Discard, "", 0),
	}
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSearchForPatternFindsMatchesWithContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n\nfunc main() {\n\t// TODO: wire things up\n\tprintln(\"hi\")\n}\n")
	writeFile(t, dir, "other.py", "# TODO: unrelated\nprint('hi')\n")

	g := testGateway(t, dir)
	matches, err := g.SearchForPattern(`TODO`, SearchOptions{ContextBefore: 1, ContextAfter: 1})
	if err != nil {
		t.Fatalf("SearchForPattern: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches across both files, got %d: %+v", len(matches), matches)
	}
	for _, m := range matches {
		if m.RelativePath == "main.go" {
			if len(m.Before) != 1 || len(m.After) != 1 {
				t.Fatalf("expected 1 line of context on each side, got before=%v after=%v", m.Before, m.After)
			}
		}
	}
}

func TestSearchForPatternRespectsIncludeGlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "// marker\n")
	writeFile(t, dir, "other.py", "# marker\n")

	g := testGateway(t, dir)
	matches, err := g.SearchForPattern(`marker`, SearchOptions{PathsIncludeGlob: "*.go"})
	if err != nil {
		t.Fatalf("SearchForPattern: %v", err)
	}
	if len(matches) != 1 || matches[0].RelativePath != "main.go" {
		t.Fatalf("expected only main.go to match, got %+v", matches)
	}
}

func TestSearchForPatternRespectsExcludeGlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "// marker\n")
	writeFile(t, dir, "gen/gen.go", "// marker\n")

	g := testGateway(t, dir)
	matches, err := g.SearchForPattern(`marker`, SearchOptions{PathsExcludeGlob: "gen/**"})
	if err != nil {
		t.Fatalf("SearchForPattern: %v", err)
	}
	if len(matches) != 1 || matches[0].RelativePath != "main.go" {
		t.Fatalf("expected gen/gen.go to be excluded, got %+v", matches)
	}
}

func TestSearchForPatternInvalidRegex(t *testing.T) {
	g := testGateway(t, t.TempDir())
	if _, err := g.SearchForPattern(`(unclosed`, SearchOptions{}); err == nil {
		t.Fatal("expected an error for an invalid regular expression")
	}
}

func TestSearchForPatternSkipsIgnoredDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vendor/dep.py", "# marker\n")
	writeFile(t, dir, "main.go", "// marker\n")

	g := testGateway(t, dir)
	matches, err := g.SearchForPattern(`marker`, SearchOptions{})
	if err != nil {
		t.Fatalf("SearchForPattern: %v", err)
	}
	if len(matches) != 1 || matches[0].RelativePath != "main.go" {
		t.Fatalf("expected vendor/ to be skipped, got %+v", matches)
	}
}
