// Package manager implements the LSP manager: the registry from Language
// to running wrapper, memory-budgeted eviction, eager/lazy startup, and
// polyglot fan-out.
package manager

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"codegate/internal/cache"
	"codegate/internal/errs"
	"codegate/internal/language"
	"codegate/internal/lspwrapper"
)

// miB renders a memory estimate in MiB as a human-readable byte count for
// log lines (e.g. "512 MiB" -> "537 MB").
func miB(n int) string {
	return humanize.Bytes(uint64(n) * 1024 * 1024)
}

// entryState is the registry's view of a wrapper
// (starting/running/failed); it is distinct from lspwrapper.State, which
// tracks the wrapper's own protocol lifecycle.
type entryState int

const (
	entryStarting entryState = iota
	entryRunning
	entryFailed
)

type entry struct {
	lang     language.Language
	wrapper  *lspwrapper.Wrapper
	state    entryState
	lastUse  time.Time
	memMiB   int
	err      error
	ready    chan struct{} // closed once state leaves entryStarting
	openURIs map[string]string

	// instanceID distinguishes one start generation of a language's wrapper
	// from the next across crash/restart/eviction, so log lines from two
	// successive subprocesses for the same language are never confused with
	// one another.
	instanceID string
}

// Config carries the manager's tunables: the memory budget and the repo
// size category used to pick per-language estimates, plus the start/wait
// deadlines.
type Config struct {
	BudgetMiB    int
	RepoSize     language.RepoSize
	Eager        bool
	StartTimeout time.Duration
	WaitTimeout  time.Duration

	// RootPath and RootURI are passed through to every wrapper's Start.
	RootPath string
	RootURI  string
}

// DefaultConfig returns the stock budget, deadlines, and lazy startup.
func DefaultConfig(rootPath, rootURI string) Config {
	return Config{
		BudgetMiB:    2048,
		RepoSize:     language.RepoSmall,
		Eager:        false,
		StartTimeout: 30 * time.Second,
		WaitTimeout:  45 * time.Second,
		RootPath:     rootPath,
		RootURI:      rootURI,
	}
}

// ConfigurationProvider is passed through to every wrapper this manager
// starts; see lspwrapper.ConfigurationProvider.
type ConfigurationProvider = lspwrapper.ConfigurationProvider

// Manager owns the registry of running wrappers and enforces the memory
// budget across them.
type Manager struct {
	registry *language.Registry
	caches   *cache.Caches
	cfg      Config
	logger   *log.Logger
	getCfg   ConfigurationProvider

	mu       sync.Mutex
	entries  map[string]*entry // keyed by language name
	resetMu  sync.Mutex
	starting map[string]*sync.Mutex // per-language start-lock

	// startWrapper launches and hands back a running wrapper for lang. It
	// defaults to spawning the real subprocess via lspwrapper.Start; tests
	// in this package substitute an in-process fake so Acquire's budget and
	// coalescing logic can be exercised without a real language server.
	startWrapper func(ctx context.Context, lang language.Language) (*lspwrapper.Wrapper, error)
}

// New constructs a Manager bound to registry and caches.
func New(registry *language.Registry, caches *cache.Caches, cfg Config, logger *log.Logger, getCfg ConfigurationProvider) *Manager {
	m := &Manager{
		registry: registry,
		caches:   caches,
		cfg:      cfg,
		logger:   logger,
		getCfg:   getCfg,
		entries:  make(map[string]*entry),
		starting: make(map[string]*sync.Mutex),
	}
	m.startWrapper = m.realStartWrapper
	return m
}

func (m *Manager) realStartWrapper(ctx context.Context, lang language.Language) (*lspwrapper.Wrapper, error) {
	w := lspwrapper.New(lang, lspwrapper.DefaultConfig(), m.logger, m.getCfg)
	startCtx, cancel := context.WithTimeout(ctx, m.cfg.StartTimeout)
	defer cancel()
	if err := w.Start(startCtx, m.cfg.RootPath, m.cfg.RootURI); err != nil {
		return nil, err
	}
	return w, nil
}

// RouteAndAcquire routes path to a Language via the registry, then
// acquires (starting if necessary) that language's wrapper.
func (m *Manager) RouteAndAcquire(ctx context.Context, path string) (*lspwrapper.Wrapper, language.Language, error) {
	lang, err := m.registry.Route(path)
	if err != nil {
		return nil, language.Language{}, errs.Wrap(errs.UnsupportedFile, "route_file", err)
	}
	w, err := m.Acquire(ctx, lang)
	return w, lang, err
}

func (m *Manager) startLockFor(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.starting[name]
	if !ok {
		l = &sync.Mutex{}
		m.starting[name] = l
	}
	return l
}

// Acquire returns a running wrapper for lang, starting one if needed and
// evicting other languages' wrappers under memory pressure.
func (m *Manager) Acquire(ctx context.Context, lang language.Language) (*lspwrapper.Wrapper, error) {
	for {
		m.mu.Lock()
		e, ok := m.entries[lang.Name]
		if ok {
			switch e.state {
			case entryRunning:
				e.lastUse = time.Now()
				m.mu.Unlock()
				return e.wrapper, nil
			case entryFailed:
				delete(m.entries, lang.Name)
				m.mu.Unlock()
				// fall through to start a fresh entry below.
			case entryStarting:
				ready := e.ready
				m.mu.Unlock()
				select {
				case <-ready:
					continue // re-check state from the top
				case <-time.After(m.cfg.WaitTimeout):
					return nil, errs.New(errs.Timeout, "acquire_wrapper")
				case <-ctx.Done():
					return nil, errs.Wrap(errs.Cancelled, "acquire_wrapper", ctx.Err())
				}
			}
		} else {
			m.mu.Unlock()
		}
		return m.startEntry(ctx, lang)
	}
}

// startEntry computes projected memory, evicts until the budget is
// satisfied, inserts a `starting` placeholder, then starts the wrapper
// outside the global lock but inside a per-language start-lock so
// concurrent callers for the same language coalesce onto one start
// attempt.
func (m *Manager) startEntry(ctx context.Context, lang language.Language) (*lspwrapper.Wrapper, error) {
	startLock := m.startLockFor(lang.Name)
	startLock.Lock()
	defer startLock.Unlock()

	// Another goroutine may have finished starting this language while we
	// waited for the start-lock; re-check before doing any eviction work.
	m.mu.Lock()
	if e, ok := m.entries[lang.Name]; ok && e.state == entryRunning {
		e.lastUse = time.Now()
		m.mu.Unlock()
		return e.wrapper, nil
	}

	estimate := lang.MemoryEstimateMiB.ForSize(m.cfg.RepoSize)
	m.evictUntilBudgetLocked(lang.Name, estimate)

	instanceID := uuid.NewString()
	placeholder := &entry{
		lang:       lang,
		state:      entryStarting,
		ready:      make(chan struct{}),
		instanceID: instanceID,
	}
	m.entries[lang.Name] = placeholder
	m.mu.Unlock()

	w, err := m.startWrapper(ctx, lang)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		placeholder.state = entryFailed
		placeholder.err = err
		close(placeholder.ready)
		m.logger.Printf("manager: %s[%s] failed to start: %v", lang.Name, instanceID, err)
		return nil, errs.Wrap(errs.ServerTerminated, "start_wrapper", err)
	}
	placeholder.wrapper = w
	placeholder.state = entryRunning
	placeholder.lastUse = time.Now()
	placeholder.memMiB = estimate
	placeholder.openURIs = make(map[string]string)
	close(placeholder.ready)
	m.logger.Printf("manager: %s[%s] running", lang.Name, instanceID)
	return w, nil
}

// evictUntilBudgetLocked evicts least-recently-used running wrappers of a
// different language than keepLang until projected usage (existing running
// wrappers plus incoming's estimate) fits the budget. Must be called with
// mu held; it releases and re-acquires mu around
// each eviction's Shutdown call, which may suspend.
func (m *Manager) evictUntilBudgetLocked(keepLang string, incomingEstimate int) {
	for {
		total := incomingEstimate
		var candidates []*entry
		for name, e := range m.entries {
			if e.state != entryRunning {
				continue
			}
			total += e.memMiB
			if name != keepLang {
				candidates = append(candidates, e)
			}
		}
		if total <= m.cfg.BudgetMiB || len(candidates) == 0 {
			return
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].lastUse.Before(candidates[j].lastUse)
		})
		victim := candidates[0]
		m.logger.Printf("manager: budget %s exceeded (%s projected); evicting least-recently-used %s[%s]", miB(m.cfg.BudgetMiB), miB(total), victim.lang.Name, victim.instanceID)
		delete(m.entries, victim.lang.Name)
		m.mu.Unlock()
		m.shutdownEntry(victim)
		m.mu.Lock()
	}
}

func (m *Manager) shutdownEntry(e *entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.wrapper.Shutdown(ctx); err != nil {
		m.logger.Printf("manager: shutdown %s[%s]: %v", e.lang.Name, e.instanceID, err)
	}
	m.caches.InvalidateURIs(e.openURIs)
	m.logger.Printf("manager: evicted %s[%s] (%s)", e.lang.Name, e.instanceID, miB(e.memMiB))
}

// NoteOpen records that uri (backed by path on disk) was opened against the
// wrapper for lang, so a future crash/eviction knows to purge it.
func (m *Manager) NoteOpen(langName, uri, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[langName]; ok && e.state == entryRunning {
		e.openURIs[uri] = path
	}
}

// Running returns the names of currently-running languages, for fan-out
// and diagnostics.
func (m *Manager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for name, e := range m.entries {
		if e.state == entryRunning {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// EagerStart starts every configured language's wrapper up front,
// time-slicing the starts with a small stagger to avoid a thundering herd
// of subprocess launches. Per-language
// failures are collected but do not abort the remaining starts.
func (m *Manager) EagerStart(ctx context.Context) map[string]error {
	errsByLang := make(map[string]error)
	for i, lang := range m.registry.Languages() {
		if i > 0 {
			time.Sleep(50 * time.Millisecond)
		}
		if _, err := m.Acquire(ctx, lang); err != nil {
			errsByLang[lang.Name] = err
		}
	}
	return errsByLang
}

// FanOutResult pairs a per-language wrapper (nil on failure) with the error
// that prevented acquiring it, for a polyglot query's partial-failure
// reporting.
type FanOutResult struct {
	Language language.Language
	Wrapper  *lspwrapper.Wrapper
	Err      error
}

// FanOut acquires every configured language's wrapper, tolerating
// per-language failures: a single language failing to start does not abort
// the fan-out, its error is attached to the result set instead.
func (m *Manager) FanOut(ctx context.Context) []FanOutResult {
	langs := m.registry.Languages()
	results := make([]FanOutResult, len(langs))
	var wg sync.WaitGroup
	for i, lang := range langs {
		wg.Add(1)
		go func(i int, lang language.Language) {
			defer wg.Done()
			w, err := m.Acquire(ctx, lang)
			results[i] = FanOutResult{Language: lang, Wrapper: w, Err: err}
		}(i, lang)
	}
	wg.Wait()
	return results
}

// ResetAll shuts down every running wrapper and clears the registry, used
// by the reset_lsp_manager operation. Concurrent callers are serialized by
// resetMu so only one of them actually performs the shutdowns; the rest
// observe an already-empty registry and return immediately.
func (m *Manager) ResetAll(ctx context.Context) error {
	m.resetMu.Lock()
	defer m.resetMu.Unlock()

	m.mu.Lock()
	victims := make([]*entry, 0, len(m.entries))
	for name, e := range m.entries {
		if e.state == entryRunning {
			victims = append(victims, e)
		}
		delete(m.entries, name)
	}
	m.mu.Unlock()

	for _, e := range victims {
		m.shutdownEntry(e)
	}
	return nil
}
