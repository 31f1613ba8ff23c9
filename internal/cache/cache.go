package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"codegate/internal/symbol"
)

// Default cache bounds.
const (
	rawEntries  = 1000
	rawBytes    = 200 * 1024 * 1024
	treeEntries = 500
	treeBytes   = 100 * 1024 * 1024
	fileEntries = 200
	fileBytes   = 50 * 1024 * 1024
)

// ContentHash fingerprints a file's text for use as the volatile half of a
// (URI, content-hash) cache key: two calls against unchanged content hash
// identically, so a cache lookup on the same content is a hit regardless of
// how many times the file was reopened.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:8])
}

type rawKey struct {
	uri  string
	hash string
}

type treeKey struct {
	uri  string
	hash string
}

// FileEntry is the cached content of one file plus the on-disk metadata it
// was captured at, for the mtime/size staleness check.
type FileEntry struct {
	Content string
	ModTime time.Time
	Size    int64
}

// Caches bundles the three bounded LRU caches and the
// invalidation operations the rest of the gateway drives them with.
type Caches struct {
	raw   *bounded[rawKey, json.RawMessage]
	trees *bounded[treeKey, *symbol.BuildResult]
	files *bounded[string, FileEntry]
}

// New constructs the three caches at their spec-mandated default bounds.
func New() *Caches {
	return &Caches{
		raw:   newBounded[rawKey, json.RawMessage](rawEntries, rawBytes, sizeOfRaw),
		trees: newBounded[treeKey, *symbol.BuildResult](treeEntries, treeBytes, sizeOfTree),
		files: newBounded[string, FileEntry](fileEntries, fileBytes, sizeOfFile),
	}
}

func sizeOfRaw(v json.RawMessage) int { return len(v) }

func sizeOfFile(v FileEntry) int { return len(v.Content) + 64 }

// sizeOfTree approximates a symbol tree's footprint as a fixed per-symbol
// cost times the number of symbols, cheaper than re-marshalling the tree
// just to measure it.
func sizeOfTree(v *symbol.BuildResult) int {
	if v == nil {
		return 0
	}
	return countSymbols(v.Root) * 256
}

func countSymbols(s *symbol.Symbol) int {
	if s == nil {
		return 0
	}
	n := 1
	for _, c := range s.Children {
		n += countSymbols(c)
	}
	return n
}

// GetRawSymbols returns the cached raw documentSymbol response body for
// (uri, contentHash), if present.
func (c *Caches) GetRawSymbols(uri, contentHash string) (json.RawMessage, bool) {
	return c.raw.get(rawKey{uri, contentHash})
}

// PutRawSymbols caches a raw documentSymbol response body.
func (c *Caches) PutRawSymbols(uri, contentHash string, body json.RawMessage) {
	c.raw.put(rawKey{uri, contentHash}, body)
}

// GetTree returns the cached processed symbol tree for (uri, contentHash),
// if present.
func (c *Caches) GetTree(uri, contentHash string) (*symbol.BuildResult, bool) {
	return c.trees.get(treeKey{uri, contentHash})
}

// PutTree caches a processed symbol tree.
func (c *Caches) PutTree(uri, contentHash string, tree *symbol.BuildResult) {
	c.trees.put(treeKey{uri, contentHash}, tree)
}

// GetFile returns the cached content of path along with the metadata it was
// captured at, if present and not evicted.
func (c *Caches) GetFile(path string) (FileEntry, bool) {
	return c.files.get(path)
}

// PutFile caches a file's content and the mtime/size it was read at.
func (c *Caches) PutFile(path string, entry FileEntry) {
	c.files.put(path, entry)
}

// FileEntryStale reports whether a cached entry's recorded mtime/size no
// longer match what's currently on disk.
func FileEntryStale(entry FileEntry, modTime time.Time, size int64) bool {
	return !entry.ModTime.Equal(modTime) || entry.Size != size
}

// InvalidateURI purges every cache entry (raw, tree, and file content)
// associated with uri and its corresponding file path, per the "on any edit"
// and "on wrapper crash or restart" invalidation rules. path is the
// filesystem path the same file is keyed by in the file-content cache; pass
// "" if unknown and only the URI-keyed caches need purging.
func (c *Caches) InvalidateURI(uri, path string) {
	c.raw.removeIf(func(k rawKey) bool { return k.uri == uri })
	c.trees.removeIf(func(k treeKey) bool { return k.uri == uri })
	if path != "" {
		c.files.remove(path)
	}
}

// InvalidateURIs purges all three caches for every (uri, path) pair, used
// when an entire wrapper is torn down and every file it had open must be
// dropped in one pass.
func (c *Caches) InvalidateURIs(pairs map[string]string) {
	for uri, path := range pairs {
		c.InvalidateURI(uri, path)
	}
}

// Stats reports current occupancy, used by the manager's housekeeping
// surface and by tests asserting cache behaviour without depending on
// timing.
type Stats struct {
	RawEntries  int
	TreeEntries int
	FileEntries int
}

func (c *Caches) Stats() Stats {
	return Stats{
		RawEntries:  c.raw.len(),
		TreeEntries: c.trees.len(),
		FileEntries: c.files.len(),
	}
}
