package gateway

import (
	"os"
	"path/filepath"
	"strings"

	"codegate/internal/cache"
	"codegate/internal/errs"
)

// absPath resolves a project-relative path against the gateway's root.
func (g *Gateway) absPath(relPath string) string {
	if filepath.IsAbs(relPath) {
		return relPath
	}
	return filepath.Join(g.cfg.RootPath, relPath)
}

// relPath makes absPath relative to the gateway's root, falling back to
// absPath itself if it lies outside the root.
func (g *Gateway) relPath(abs string) string {
	rel, err := filepath.Rel(g.cfg.RootPath, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

// pathToURI converts an absolute filesystem path into the file:// URI form
// every wrapper request uses.
func pathToURI(absPath string) string {
	return "file://" + filepath.ToSlash(absPath)
}

// uriToPath reverses pathToURI.
func uriToPath(uri string) string {
	return filepath.FromSlash(strings.TrimPrefix(uri, "file://"))
}

// readFile returns absPath's content, preferring the file-contents cache
// (validated against the current mtime/size) and otherwise reading from
// disk and populating the cache.
func (g *Gateway) readFile(absPath string) (string, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errs.New(errs.FileNotFound, "read_file")
		}
		if os.IsPermission(err) {
			return "", errs.New(errs.PermissionDenied, "read_file")
		}
		return "", errs.Wrap(errs.EditFailed, "read_file", err)
	}
	if entry, ok := g.caches.GetFile(absPath); ok && !cache.FileEntryStale(entry, info.ModTime(), info.Size()) {
		return entry.Content, nil
	}
	raw, err := os.ReadFile(absPath)
	if err != nil {
		return "", errs.Wrap(errs.EditFailed, "read_file", err)
	}
	content := string(raw)
	g.caches.PutFile(absPath, cache.FileEntry{Content: content, ModTime: info.ModTime(), Size: info.Size()})
	return content, nil
}

// liveContent returns the most current view of absPath's text: the
// wrapper's in-memory overlay if the file is open against it, else the
// file-contents cache or disk.
func (g *Gateway) liveContent(absPath, uri string, w wrapperContentSource) (string, error) {
	if w != nil {
		if content, ok := w.ContentOf(uri); ok {
			return content, nil
		}
	}
	return g.readFile(absPath)
}

// wrapperContentSource is the subset of *lspwrapper.Wrapper the gateway
// needs for overlay lookups, named so files.go does not have to import
// lspwrapper just for this one method.
type wrapperContentSource interface {
	ContentOf(uri string) (string, bool)
}

// walkSourceFiles walks absDir depth-first, yielding (absPath, relPath)
// pairs for every file matched by any configured language, honoring both
// ignore sources: each language's unconditional ignore-directory list, and
// the project's declared git-style ignore file.
func (g *Gateway) walkSourceFiles(absDir string, visit func(absPath, relPath string) error) error {
	return filepath.Walk(absDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best-effort: skip unreadable entries rather than aborting the whole walk
		}
		rel := g.relPath(path)
		if info.IsDir() {
			if path != absDir && g.dirIgnored(info.Name(), rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if g.ignore != nil && g.ignore.Matches(rel, false) {
			return nil
		}
		for _, lang := range g.registry.Languages() {
			if lang.Matches(info.Name()) {
				return visit(path, rel)
			}
		}
		return nil
	})
}

func (g *Gateway) dirIgnored(name, rel string) bool {
	for _, lang := range g.registry.Languages() {
		if lang.IgnoresDir(name) {
			return true
		}
	}
	return g.ignore != nil && g.ignore.Matches(rel, true)
}
