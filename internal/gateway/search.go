package gateway

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"codegate/internal/errs"
)

// SearchMatch is one search_for_pattern hit: the matched line plus the
// requested window of surrounding context.
type SearchMatch struct {
	RelativePath string
	LineNumber   int // 1-based
	Line         string
	Before       []string
	After        []string
}

// SearchOptions carries search_for_pattern's optional arguments.
type SearchOptions struct {
	PathsIncludeGlob string
	PathsExcludeGlob string
	ContextBefore    int
	ContextAfter     int
}

// SearchForPattern implements search_for_pattern: a regexp grep over the
// project tree, independent of any language server. It
// reuses the same ignore-file and ignore-directory rules as the symbol
// layer's whole-project lookups.
func (g *Gateway) SearchForPattern(pattern string, opts SearchOptions) ([]SearchMatch, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, "search_for_pattern", err)
	}

	var out []SearchMatch
	walkErr := g.walkSourceFiles(g.cfg.RootPath, func(absPath, relPath string) error {
		if opts.PathsIncludeGlob != "" {
			if ok, _ := doublestar.Match(opts.PathsIncludeGlob, relPath); !ok {
				return nil
			}
		}
		if opts.PathsExcludeGlob != "" {
			if ok, _ := doublestar.Match(opts.PathsExcludeGlob, relPath); ok {
				return nil
			}
		}
		content, err := g.readFile(absPath)
		if err != nil {
			return nil
		}
		out = append(out, matchesInFile(re, relPath, content, opts.ContextBefore, opts.ContextAfter)...)
		return nil
	})
	if walkErr != nil {
		return nil, errs.Wrap(errs.ProtocolError, "search_for_pattern", walkErr)
	}
	return out, nil
}

func matchesInFile(re *regexp.Regexp, relPath, content string, before, after int) []SearchMatch {
	lines := strings.Split(content, "\n")
	var matches []SearchMatch
	for i, line := range lines {
		if !re.MatchString(line) {
			continue
		}
		m := SearchMatch{RelativePath: relPath, LineNumber: i + 1, Line: line}
		start := i - before
		if start < 0 {
			start = 0
		}
		if start < i {
			m.Before = append([]string{}, lines[start:i]...)
		}
		end := i + 1 + after
		if end > len(lines) {
			end = len(lines)
		}
		if end > i+1 {
			m.After = append([]string{}, lines[i+1:end]...)
		}
		matches = append(matches, m)
	}
	return matches
}
