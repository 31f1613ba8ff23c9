// Package session implements the session-resilient streamable-HTTP shim:
// an http.Handler middleware that sits in
// front of the MCP streamable-HTTP transport and never lets an
// invalid/expired session identifier surface as an error to the client.
package session

import (
	"log"
	"net/http"
	"sync"
)

// DefaultHeader is the header the MCP streamable-HTTP transport uses to
// carry the server-allocated session identifier.
const DefaultHeader = "Mcp-Session-Id"

// Shim wraps an inner streamable-HTTP handler (normally the one returned by
// a mark3labs/mcp-go server.NewStreamableHTTPServer) with recovery
// behaviour for stale session identifiers:
//
//   - missing session id: forwarded unchanged; the inner transport mints one
//     and returns it in the response header, which the shim then adopts.
//   - known session id: forwarded unchanged.
//   - present but unknown session id (e.g. the client cached an id from
//     before a server restart): never rejected. The shim logs a warning
//     naming the stale id, strips it from a cloned request so the inner
//     transport treats the call as a fresh initialization, and adopts
//     whatever new id comes back.
//
// A single mutex (creationMu) serialises the stale-id path so two racing
// requests bearing the same unknown id cannot each construct a competing
// transport underneath the inner handler.
type Shim struct {
	inner  http.Handler
	header string
	logger *log.Logger

	mu    sync.RWMutex
	known map[string]struct{}

	creationMu sync.Mutex
}

// New builds a Shim around inner. An empty header defaults to DefaultHeader.
func New(inner http.Handler, header string, logger *log.Logger) *Shim {
	if header == "" {
		header = DefaultHeader
	}
	return &Shim{
		inner:  inner,
		header: header,
		logger: logger,
		known:  make(map[string]struct{}),
	}
}

func (s *Shim) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(s.header)
	if id == "" || s.isKnown(id) {
		s.inner.ServeHTTP(w, r)
		s.adopt(w)
		return
	}
	s.handleStale(w, r, id)
}

func (s *Shim) isKnown(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.known[id]
	return ok
}

// adopt records whatever session id the inner transport minted for this
// response, if any. http.ResponseWriter.Header() returns the live header
// map, so reading it back after ServeHTTP returns still sees what the
// handler set even though the bytes have already gone out on the wire.
func (s *Shim) adopt(w http.ResponseWriter) {
	id := w.Header().Get(s.header)
	if id == "" {
		return
	}
	s.mu.Lock()
	s.known[id] = struct{}{}
	s.mu.Unlock()
}

// handleStale handles a session id that is present but unknown.
func (s *Shim) handleStale(w http.ResponseWriter, r *http.Request, staleID string) {
	s.creationMu.Lock()
	defer s.creationMu.Unlock()

	// Another request for the same stale id may have resolved it while we
	// waited on the lock.
	if s.isKnown(staleID) {
		s.inner.ServeHTTP(w, r)
		s.adopt(w)
		return
	}

	s.logger.Printf("session: unknown session id %q; minting a fresh session", staleID)

	fresh := r.Clone(r.Context())
	fresh.Header = r.Header.Clone()
	fresh.Header.Del(s.header)

	s.inner.ServeHTTP(w, fresh)
	s.adopt(w)
}

// Forget drops id from the known-session table, e.g. after the inner
// transport reports the session closed.
func (s *Shim) Forget(id string) {
	s.mu.Lock()
	delete(s.known, id)
	s.mu.Unlock()
}

// Known reports how many sessions the shim currently tracks. Exposed for
// tests and diagnostics.
func (s *Shim) Known() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.known)
}
