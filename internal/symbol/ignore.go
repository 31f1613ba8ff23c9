package symbol

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreSet matches paths against a project's declared git-style ignore
// file, one of the two ignore sources directory walks honour alongside
// each language's unconditional ignore-directory list.
type IgnoreSet struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	glob      string
	dirOnly   bool
	anchored  bool
}

// LoadIgnoreFile parses a .gitignore-shaped file: blank lines and lines
// starting with '#' are skipped, a trailing '/' marks a directory-only
// entry, a leading '/' anchors the pattern to the ignore file's directory.
// A missing file yields an empty, always-non-matching IgnoreSet.
func LoadIgnoreFile(path string) (*IgnoreSet, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &IgnoreSet{}, nil
		}
		return nil, err
	}
	defer f.Close()

	set := &IgnoreSet{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p := ignorePattern{}
		if strings.HasSuffix(line, "/") {
			p.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}
		if strings.HasPrefix(line, "/") {
			p.anchored = true
			line = strings.TrimPrefix(line, "/")
		}
		if !strings.Contains(line, "/") && !p.anchored {
			// A bare name like "build" matches at any depth, the same as
			// "**/build" in doublestar.
			line = "**/" + line
		}
		p.glob = line
		set.patterns = append(set.patterns, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// Matches reports whether relPath (slash-separated, relative to the
// ignore file's directory) is ignored. isDir indicates whether relPath
// names a directory, for dir-only patterns.
func (s *IgnoreSet) Matches(relPath string, isDir bool) bool {
	if s == nil {
		return false
	}
	normalized := filepath.ToSlash(relPath)
	for _, p := range s.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		ok, err := doublestar.Match(p.glob, normalized)
		if err == nil && ok {
			return true
		}
	}
	return false
}
