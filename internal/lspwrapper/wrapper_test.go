package lspwrapper

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"

	"codegate/internal/errs"
	"codegate/internal/language"
	"codegate/internal/rpc"
)

// fakeServer answers just enough of the LSP handshake and a
// documentSymbol request to exercise the wrapper's request path without a
// real subprocess, using the same in-process pipe approach as
// internal/rpc's own tests.
func fakeServer(t *testing.T, docSymbolResponse json.RawMessage) (*Wrapper, func()) {
	t.Helper()
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()
	discard := log.New(io.Discard, "", 0)

	serverHandler := func(ctx context.Context, method string, params interface{}) (interface{}, error) {
		switch method {
		case "initialize":
			return map[string]interface{}{
				"capabilities": map[string]interface{}{
					"documentSymbolProvider": true,
					"referencesProvider":     true,
				},
			}, nil
		case "textDocument/documentSymbol":
			return docSymbolResponse, nil
		case "shutdown":
			return nil, nil
		default:
			return nil, nil
		}
	}
	server := rpc.Dial(context.Background(), sr, sw, nil, discard, serverHandler, nil)

	w := New(language.Language{Name: "python", Command: "pyls"}, DefaultConfig(), discard, nil)
	clientConn := rpc.Dial(context.Background(), cr, cw, nil, discard, w.HandleServerRequest, w.HandleNotification)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.StartWithConn(ctx, clientConn, "file:///proj"); err != nil {
		t.Fatalf("StartWithConn: %v", err)
	}

	return w, func() {
		server.Close()
		clientConn.Close()
	}
}

func TestWrapperNotReadyBeforeStart(t *testing.T) {
	w := New(language.Language{Name: "go"}, DefaultConfig(), log.New(io.Discard, "", 0), nil)
	_, err := w.DocumentSymbols(context.Background(), "file:///a.go", "a.go", "package a")
	if err == nil {
		t.Fatal("expected error before Start")
	}
	if e, ok := err.(*errs.Error); !ok || e.Kind != errs.NotReady {
		t.Fatalf("expected NotReady, got %v", err)
	}
}

func TestWrapperHandshakeRecordsCapabilities(t *testing.T) {
	w, cleanup := fakeServer(t, json.RawMessage(`[]`))
	defer cleanup()

	if w.State() != Running {
		t.Fatalf("expected Running, got %v", w.State())
	}
	caps := w.Capabilities()
	if !caps.DocumentSymbolProvider || !caps.ReferencesProvider {
		t.Fatalf("expected capabilities recorded, got %+v", caps)
	}
}

func TestWrapperDocumentSymbolsBuildsTree(t *testing.T) {
	raw := json.RawMessage(`[
		{
			"name": "Calc",
			"kind": 5,
			"range": {"start": {"line": 0, "character": 0}, "end": {"line": 2, "character": 20}},
			"selectionRange": {"start": {"line": 0, "character": 6}, "end": {"line": 0, "character": 10}}
		}
	]`)
	w, cleanup := fakeServer(t, raw)
	defer cleanup()

	result, err := w.DocumentSymbols(context.Background(), "file:///calc.py", "calc.py", "class Calc:\n    pass\n")
	if err != nil {
		t.Fatalf("DocumentSymbols: %v", err)
	}
	if len(result.Root.Children) != 1 || result.Root.Children[0].Name != "Calc" {
		t.Fatalf("unexpected tree: %+v", result.Root)
	}
}

func TestWrapperUnsupportedCapabilityFailsCleanly(t *testing.T) {
	w, cleanup := fakeServer(t, json.RawMessage(`[]`))
	defer cleanup()

	_, err := w.WorkspaceSymbol(context.Background(), "foo")
	if e, ok := err.(*errs.Error); !ok || e.Kind != errs.Unsupported {
		t.Fatalf("expected Unsupported, got %v", err)
	}
}

func TestShutdownIdempotent(t *testing.T) {
	w := New(language.Language{Name: "go"}, DefaultConfig(), log.New(io.Discard, "", 0), nil)
	if err := w.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown on not-started wrapper: %v", err)
	}
	if err := w.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}
