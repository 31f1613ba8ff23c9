package session

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
)

// mintingHandler fakes an MCP streamable-HTTP transport: it mints a new
// session id whenever the request carries no session header, and echoes the
// header straight through when one is present.
func mintingHandler(counter *int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(DefaultHeader)
		if id == "" {
			id = "sess-" + strconv.FormatInt(atomic.AddInt64(counter, 1), 10)
		}
		w.Header().Set(DefaultHeader, id)
		w.WriteHeader(http.StatusOK)
	}
}

func TestShimMissingSessionMintsAndAdopts(t *testing.T) {
	var counter int64
	shim := New(mintingHandler(&counter), "", log.New(io.Discard, "", 0))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	shim.ServeHTTP(rec, req)

	got := rec.Header().Get(DefaultHeader)
	if got == "" {
		t.Fatal("expected the inner transport's minted session id to be present")
	}
	if !shim.isKnown(got) {
		t.Fatalf("expected shim to adopt minted session %q", got)
	}
}

func TestShimKnownSessionPassesThrough(t *testing.T) {
	var counter int64
	shim := New(mintingHandler(&counter), "", log.New(io.Discard, "", 0))

	first := httptest.NewRecorder()
	shim.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	id := first.Header().Get(DefaultHeader)

	second := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set(DefaultHeader, id)
	shim.ServeHTTP(second, req)

	if got := second.Header().Get(DefaultHeader); got != id {
		t.Fatalf("expected known session id %q to pass through unchanged, got %q", id, got)
	}
	if atomic.LoadInt64(&counter) != 1 {
		t.Fatalf("expected exactly one mint for a repeated known session, got %d", counter)
	}
}

func TestShimUnknownSessionIsRebound(t *testing.T) {
	var counter int64
	var logBuf bytes.Buffer
	shim := New(mintingHandler(&counter), "", log.New(&logBuf, "", 0))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set(DefaultHeader, "abc123")
	shim.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected the stale session to be silently rebound, got status %d", rec.Code)
	}
	newID := rec.Header().Get(DefaultHeader)
	if newID == "" || newID == "abc123" {
		t.Fatalf("expected a freshly minted session id distinct from the stale one, got %q", newID)
	}
	if !shim.isKnown(newID) {
		t.Fatal("expected the rebound session to be adopted")
	}
	if logBuf.Len() == 0 {
		t.Fatal("expected a warning to be logged for the stale session")
	}
	if got := logBuf.String(); !bytes.Contains([]byte(got), []byte("abc123")) {
		t.Fatalf("expected the log to mention the stale id %q, got %q", "abc123", got)
	}
}

func TestShimUnknownSessionRequestIsUnmodified(t *testing.T) {
	var counter int64
	var sawHeader string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawHeader = r.Header.Get(DefaultHeader)
		mintingHandler(&counter)(w, r)
	})
	shim := New(inner, "", log.New(io.Discard, "", 0))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set(DefaultHeader, "stale-id")
	shim.ServeHTTP(rec, req)

	if sawHeader != "" {
		t.Fatalf("expected the inner transport to see no session header, got %q", sawHeader)
	}
	if req.Header.Get(DefaultHeader) != "stale-id" {
		t.Fatal("shim must not mutate the caller's original request")
	}
}
