// Package gateway implements the symbol-level query and edit layer's
// orchestration: it binds the LSP manager, the symbol layer, and the
// caches together into the language-agnostic operation set the
// tool-dispatch/MCP layer calls directly.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"path/filepath"
	"sync"

	"codegate/internal/cache"
	"codegate/internal/errs"
	"codegate/internal/gatewaycfg"
	"codegate/internal/language"
	"codegate/internal/lspwrapper"
	"codegate/internal/manager"
	"codegate/internal/symbol"
)

// Gateway is the long-lived object an embedder constructs once per project
// and calls the symbol operations against.
type Gateway struct {
	cfg      gatewaycfg.Config
	registry *language.Registry
	manager  *manager.Manager
	caches   *cache.Caches
	ignore   *symbol.IgnoreSet
	logger   *log.Logger

	// Optional snapshot persistence: raw documentSymbol
	// responses are queued here and flushed by the persister on its
	// debounce window. All three fields are nil when no CacheDir is
	// configured.
	store     *cache.Store
	persister *cache.Persister
	snapMu    sync.Mutex
	pending   map[snapKey]json.RawMessage
}

type snapKey struct {
	uri  string
	hash string
}

// New builds a Gateway from cfg: it applies any adapter overrides, loads the
// project's ignore file (if configured), and constructs the manager and
// caches it will drive every operation through. It does not start any
// language server unless cfg.Eager is set.
func New(ctx context.Context, cfg gatewaycfg.Config, logger *log.Logger) (*Gateway, error) {
	if logger == nil {
		logger = log.Default()
	}

	langs := cfg.Languages
	if cfg.AdapterOverridesPath != "" {
		overrides, err := language.LoadAdapterOverrides(cfg.AdapterOverridesPath)
		if err != nil {
			return nil, err
		}
		langs = language.ApplyOverrides(langs, overrides)
	}
	registry := language.NewRegistry(langs)
	if cfg.PrimaryLanguage != "" {
		registry.SetPrimary(cfg.PrimaryLanguage)
	}

	var ignoreSet *symbol.IgnoreSet
	if cfg.IgnoreFilePath != "" {
		set, err := symbol.LoadIgnoreFile(cfg.IgnoreFilePath)
		if err != nil {
			return nil, err
		}
		ignoreSet = set
	}

	caches := cache.New()

	mgrCfg := manager.DefaultConfig(cfg.RootPath, cfg.RootURI)
	if cfg.BudgetMiB > 0 {
		mgrCfg.BudgetMiB = cfg.BudgetMiB
	}
	mgrCfg.RepoSize = cfg.RepoSize
	mgrCfg.Eager = cfg.Eager
	if cfg.InitializeTimeout > 0 {
		mgrCfg.StartTimeout = cfg.InitializeTimeout
		mgrCfg.WaitTimeout = cfg.InitializeTimeout + cfg.CallTimeout
	}

	mgr := manager.New(registry, caches, mgrCfg, logger, noConfigurationProvider)

	g := &Gateway{
		cfg:      cfg,
		registry: registry,
		manager:  mgr,
		caches:   caches,
		ignore:   ignoreSet,
		logger:   logger,
	}

	if cfg.CacheDir != "" {
		store, err := cache.OpenStore(filepath.Join(cfg.CacheDir, "snapshots.db"))
		if err != nil {
			// Snapshots are advisory: a corrupt or unopenable
			// store is discarded, never fatal.
			logger.Printf("gateway: snapshot store unavailable: %v", err)
		} else {
			g.store = store
			g.pending = make(map[snapKey]json.RawMessage)
			g.persister = cache.NewPersister(store, g.flushSnapshots)
		}
	}

	if cfg.Eager {
		if errsByLang := mgr.EagerStart(ctx); len(errsByLang) > 0 {
			for name, err := range errsByLang {
				logger.Printf("gateway: eager start of %s failed: %v", name, err)
			}
		}
	}

	return g, nil
}

// noConfigurationProvider is the default workspace/configuration answer
// when a deployment supplies no per-server settings: every section comes
// back empty, which every language server treats as "use your defaults".
func noConfigurationProvider(section string) interface{} {
	return map[string]interface{}{}
}

// ResetLSPManager shuts down and clears every running wrapper; concurrent
// callers yield exactly one shutdown sweep.
func (g *Gateway) ResetLSPManager(ctx context.Context) error {
	return g.manager.ResetAll(ctx)
}

// buildFileTree resolves absPath/relPath into its symbol tree, consulting
// the raw-response and tree caches (and the on-disk snapshot store, when
// configured) before issuing a documentSymbol request, and populating both
// caches on a miss.
func (g *Gateway) buildFileTree(ctx context.Context, absPath, relPath string) (*symbol.BuildResult, *lspwrapper.Wrapper, error) {
	content, err := g.readFile(absPath)
	if err != nil {
		return nil, nil, err
	}
	uri := pathToURI(absPath)
	hash := cache.ContentHash(content)

	if tree, ok := g.caches.GetTree(uri, hash); ok {
		return tree, nil, nil
	}

	w, lang, err := g.manager.RouteAndAcquire(ctx, absPath)
	if err != nil {
		return nil, nil, err
	}

	raw, ok := g.caches.GetRawSymbols(uri, hash)
	if !ok && g.store != nil {
		raw, ok = g.store.LoadRaw(uri, hash)
		if ok {
			g.caches.PutRawSymbols(uri, hash, raw)
		}
	}
	if !ok {
		raw, err = w.DocumentSymbolsRaw(ctx, uri, content)
		if err != nil {
			// Idempotent query: one internal retry on a transient failure
			// before surfacing it.
			if ge, isGE := err.(*errs.Error); isGE && errs.Retryable(ge.Kind) {
				raw, err = w.DocumentSymbolsRaw(ctx, uri, content)
			}
			if err != nil {
				return nil, w, err
			}
		}
		g.caches.PutRawSymbols(uri, hash, raw)
		g.queueSnapshot(uri, hash, raw)
	}

	fileRange := symbol.Range{End: symbol.Position{Line: countLines(content), Character: 0}}
	tree, err := symbol.BuildTree(raw, uri, relPath, fileRange)
	if err != nil {
		return nil, w, errs.Wrap(errs.ProtocolError, "symbols", err)
	}
	for _, warning := range tree.Warnings {
		g.logger.Printf("gateway: %s: %s", relPath, warning)
	}
	g.caches.PutTree(uri, hash, tree)
	g.manager.NoteOpen(lang.Name, uri, absPath)
	return tree, w, nil
}

// queueSnapshot records a freshly-fetched raw response for the persister's
// next debounced flush. No-op when snapshot persistence is disabled.
func (g *Gateway) queueSnapshot(uri, hash string, raw json.RawMessage) {
	if g.persister == nil {
		return
	}
	g.snapMu.Lock()
	g.pending[snapKey{uri, hash}] = raw
	g.snapMu.Unlock()
	g.persister.MarkDirty()
}

// flushSnapshots drains the pending snapshot queue into the store. Write
// failures are dropped: snapshots are advisory and the next flush retries
// nothing older than what has been queued since.
func (g *Gateway) flushSnapshots(store *cache.Store) error {
	g.snapMu.Lock()
	batch := g.pending
	g.pending = make(map[snapKey]json.RawMessage)
	g.snapMu.Unlock()

	for key, raw := range batch {
		if err := store.SaveRaw(key.uri, key.hash, raw); err != nil {
			g.logger.Printf("gateway: snapshot write for %s failed: %v", key.uri, err)
		}
	}
	return nil
}

// Close drains the gateway: every running wrapper is shut down, and the
// snapshot persister (if configured) performs its final flush before the
// store is closed.
func (g *Gateway) Close(ctx context.Context) error {
	err := g.manager.ResetAll(ctx)
	if g.persister != nil {
		g.persister.Stop()
	}
	if g.store != nil {
		if cerr := g.store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func countLines(content string) int {
	n := 0
	for _, r := range content {
		if r == '\n' {
			n++
		}
	}
	return n + 1
}

// populateBodies fills in Body for every symbol in the tree rooted at root
// (except the synthetic File root) by slicing content at the negotiated
// encoding; bodies are never cached per-symbol, they are reconstructed
// from the file buffer cache.
func populateBodies(root *symbol.Symbol, content string, enc symbol.PositionEncoding) {
	var walk func(*symbol.Symbol)
	walk = func(s *symbol.Symbol) {
		if s.Kind != symbol.KindFile {
			body := symbol.Slice(content, s.Location.Range, enc)
			s.Body = &body
		}
		for _, c := range s.Children {
			walk(c)
		}
	}
	walk(root)
}

// encodingFor returns the position encoding negotiated with w, or the
// LSP-mandated UTF-16 default when w is nil (a cache hit with no live
// wrapper involved).
func encodingFor(w *lspwrapper.Wrapper) symbol.PositionEncoding {
	if w == nil {
		return symbol.UTF16
	}
	return symbol.NegotiateEncoding(w.Capabilities().PositionEncoding)
}
