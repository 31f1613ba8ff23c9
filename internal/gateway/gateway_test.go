package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"

	"codegate/internal/cache"
	"codegate/internal/errs"
	"codegate/internal/manager"
)

// TestFindSymbolUnsupportedFile: a path whose extension maps to no
// configured language fails UnsupportedFile without any wrapper being
// started (routing fails before the manager ever reaches its start path).
func TestFindSymbolUnsupportedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "README.md", "# docs\n")

	g := testGateway(t, dir)
	g.manager = manager.New(g.registry, g.caches, manager.DefaultConfig(dir, "file://"+dir), log.New(io.Discard, "", 0), nil)

	_, err := g.FindSymbol(context.Background(), "Anything", FindSymbolOptions{RelativePath: "README.md"})
	var ge *errs.Error
	if !errors.As(err, &ge) || ge.Kind != errs.UnsupportedFile {
		t.Fatalf("expected UnsupportedFile, got %v", err)
	}
	if running := g.manager.Running(); len(running) != 0 {
		t.Fatalf("expected no wrapper started for an unroutable file, got %v", running)
	}
}

func TestGetSymbolsOverviewMissingFile(t *testing.T) {
	g := testGateway(t, t.TempDir())
	_, err := g.GetSymbolsOverview(context.Background(), "absent.py", 1, false)
	var ge *errs.Error
	if !errors.As(err, &ge) || ge.Kind != errs.FileNotFound {
		t.Fatalf("expected FileNotFound, got %v", err)
	}
}

// TestSnapshotQueueFlushesToStore: a queued raw snapshot survives a
// persister Stop and is readable back from the store.
func TestSnapshotQueueFlushesToStore(t *testing.T) {
	store, err := cache.OpenStore(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	g := testGateway(t, t.TempDir())
	g.store = store
	g.pending = make(map[snapKey]json.RawMessage)
	g.persister = cache.NewPersister(store, g.flushSnapshots)

	g.queueSnapshot("file:///a.go", "h1", json.RawMessage(`[{"name":"Foo"}]`))
	g.persister.Stop()

	got, ok := store.LoadRaw("file:///a.go", "h1")
	if !ok {
		t.Fatal("expected the queued snapshot to be flushed on Stop")
	}
	if string(got) != `[{"name":"Foo"}]` {
		t.Fatalf("got %s", got)
	}
}
