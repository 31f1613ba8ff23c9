package manager

import (
	"context"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codegate/internal/cache"
	"codegate/internal/language"
	"codegate/internal/lspwrapper"
	"codegate/internal/rpc"
)

// fakeWrapperFactory returns a startWrapper function that drives an
// in-process lspwrapper.Wrapper through the same io.Pipe handshake the
// lspwrapper package's own tests use, so Acquire's budget/coalescing logic
// is exercised without spawning a real language-server subprocess.
func fakeWrapperFactory(t *testing.T, starts *int64) func(ctx context.Context, lang language.Language) (*lspwrapper.Wrapper, error) {
	t.Helper()
	discard := log.New(io.Discard, "", 0)
	return func(ctx context.Context, lang language.Language) (*lspwrapper.Wrapper, error) {
		atomic.AddInt64(starts, 1)
		cr, sw := io.Pipe()
		sr, cw := io.Pipe()

		serverHandler := func(ctx context.Context, method string, params interface{}) (interface{}, error) {
			switch method {
			case "initialize":
				return map[string]interface{}{"capabilities": map[string]interface{}{}}, nil
			case "shutdown":
				return nil, nil
			default:
				return nil, nil
			}
		}
		server := rpc.Dial(context.Background(), sr, sw, nil, discard, serverHandler, nil)
		w := lspwrapper.New(lang, lspwrapper.DefaultConfig(), discard, nil)
		clientConn := rpc.Dial(context.Background(), cr, cw, nil, discard, w.HandleServerRequest, w.HandleNotification)

		startCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := w.StartWithConn(startCtx, clientConn, "file:///proj"); err != nil {
			server.Close()
			clientConn.Close()
			return nil, err
		}
		return w, nil
	}
}

func testRegistry() *language.Registry {
	return language.NewRegistry([]language.Language{
		{Name: "go", Suffixes: []string{".go"}, MemoryEstimateMiB: language.SizeEstimate{Small: 100, Medium: 100, Large: 100}},
		{Name: "python", Suffixes: []string{".py"}, MemoryEstimateMiB: language.SizeEstimate{Small: 100, Medium: 100, Large: 100}},
		{Name: "rust", Suffixes: []string{".rs"}, MemoryEstimateMiB: language.SizeEstimate{Small: 100, Medium: 100, Large: 100}},
	})
}

func newTestManager(t *testing.T, budgetMiB int) (*Manager, *int64) {
	var starts int64
	cfg := DefaultConfig("/proj", "file:///proj")
	cfg.BudgetMiB = budgetMiB
	m := New(testRegistry(), cache.New(), cfg, log.New(io.Discard, "", 0), nil)
	m.startWrapper = fakeWrapperFactory(t, &starts)
	return m, &starts
}

func TestAcquireStartsAndReuses(t *testing.T) {
	m, starts := newTestManager(t, 2048)
	goLang, _ := m.registry.Lookup("go")

	w1, err := m.Acquire(context.Background(), goLang)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	w2, err := m.Acquire(context.Background(), goLang)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if w1 != w2 {
		t.Fatal("expected the same wrapper returned on the second Acquire")
	}
	if got := atomic.LoadInt64(starts); got != 1 {
		t.Fatalf("expected exactly one start, got %d", got)
	}
}

func TestAcquireEvictsUnderBudget(t *testing.T) {
	m, _ := newTestManager(t, 150) // fits exactly one 100MiB wrapper
	goLang, _ := m.registry.Lookup("go")
	pyLang, _ := m.registry.Lookup("python")

	if _, err := m.Acquire(context.Background(), goLang); err != nil {
		t.Fatalf("Acquire go: %v", err)
	}
	if _, err := m.Acquire(context.Background(), pyLang); err != nil {
		t.Fatalf("Acquire python: %v", err)
	}

	running := m.Running()
	if len(running) != 1 || running[0] != "python" {
		t.Fatalf("expected only python running after eviction, got %v", running)
	}
}

func TestConcurrentAcquireCoalescesToOneStart(t *testing.T) {
	m, starts := newTestManager(t, 2048)
	goLang, _ := m.registry.Lookup("go")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Acquire(context.Background(), goLang); err != nil {
				t.Errorf("Acquire: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(starts); got != 1 {
		t.Fatalf("expected exactly one start across concurrent acquires, got %d", got)
	}
}

func TestRouteAndAcquireUnsupportedFile(t *testing.T) {
	m, _ := newTestManager(t, 2048)
	_, _, err := m.RouteAndAcquire(context.Background(), "README.md")
	if err == nil {
		t.Fatal("expected an error for an unroutable file")
	}
}

func TestResetAllIsIdempotentUnderConcurrency(t *testing.T) {
	m, _ := newTestManager(t, 2048)
	goLang, _ := m.registry.Lookup("go")
	if _, err := m.Acquire(context.Background(), goLang); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.ResetAll(context.Background()); err != nil {
				t.Errorf("ResetAll: %v", err)
			}
		}()
	}
	wg.Wait()

	if running := m.Running(); len(running) != 0 {
		t.Fatalf("expected no running wrappers after reset, got %v", running)
	}
}

func TestFanOutToleratesPerLanguageFailure(t *testing.T) {
	m, _ := newTestManager(t, 2048)
	failing := "rust"
	realFactory := m.startWrapper
	m.startWrapper = func(ctx context.Context, lang language.Language) (*lspwrapper.Wrapper, error) {
		if lang.Name == failing {
			return nil, errTestStart
		}
		return realFactory(ctx, lang)
	}

	results := m.FanOut(context.Background())
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	var sawFailure, sawSuccess bool
	for _, r := range results {
		if r.Language.Name == failing {
			if r.Err == nil {
				t.Fatal("expected rust to fail")
			}
			sawFailure = true
		} else if r.Err == nil && r.Wrapper != nil {
			sawSuccess = true
		}
	}
	if !sawFailure || !sawSuccess {
		t.Fatalf("expected partial failure with other languages unaffected: sawFailure=%v sawSuccess=%v", sawFailure, sawSuccess)
	}
}

var errTestStart = &testStartError{}

type testStartError struct{}

func (e *testStartError) Error() string { return "simulated start failure" }
