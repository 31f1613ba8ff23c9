package lspwrapper

import (
	"context"
	"strings"
	"sync"

	lsp "github.com/sourcegraph/go-lsp"
)

// openDoc tracks one open text document's synchronization state.
type openDoc struct {
	content string
	version int
}

// documentSet is the wrapper's open-set of URIs: every symbol request
// transparently ensures didOpen has been sent before proceeding.
type documentSet struct {
	mu   sync.Mutex
	open map[string]*openDoc
}

func newDocumentSet() *documentSet {
	return &documentSet{open: make(map[string]*openDoc)}
}

func (d *documentSet) isOpen(uri string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.open[uri]
	return ok
}

func (d *documentSet) closeAll() {
	d.mu.Lock()
	d.open = make(map[string]*openDoc)
	d.mu.Unlock()
}

// languageIDFor guesses the LSP languageId from a URI's suffix; servers use
// this only for syntax-highlighting-adjacent bookkeeping, not routing.
func languageIDFor(uri, fallback string) string {
	lower := strings.ToLower(uri)
	switch {
	case strings.HasSuffix(lower, ".go"):
		return "go"
	case strings.HasSuffix(lower, ".py"):
		return "python"
	case strings.HasSuffix(lower, ".rs"):
		return "rust"
	case strings.HasSuffix(lower, ".ts"), strings.HasSuffix(lower, ".tsx"):
		return "typescript"
	case strings.HasSuffix(lower, ".java"):
		return "java"
	case strings.HasSuffix(lower, ".c"), strings.HasSuffix(lower, ".h"):
		return "c"
	default:
		return fallback
	}
}

// EnsureOpen sends textDocument/didOpen for uri if it is not already open,
// using content as the initial text. It is a no-op if already open.
func (w *Wrapper) EnsureOpen(ctx context.Context, uri, content string) error {
	if err := w.checkRunning("ensure_open"); err != nil {
		return err
	}
	if w.docs.isOpen(uri) {
		return nil
	}
	w.docs.mu.Lock()
	if _, ok := w.docs.open[uri]; ok {
		w.docs.mu.Unlock()
		return nil
	}
	w.docs.open[uri] = &openDoc{content: content, version: 1}
	w.docs.mu.Unlock()

	return w.conn.Notify(ctx, "textDocument/didOpen", lsp.DidOpenTextDocumentParams{
		TextDocument: lsp.TextDocumentItem{
			URI:        lsp.DocumentURI(uri),
			LanguageID: languageIDFor(uri, w.lang.Name),
			Version:    1,
			Text:       content,
		},
	})
}

// Change sends a full-sync textDocument/didChange with newContent,
// incrementing the document's version counter; the notification must
// reach the server before the next symbol query on that file observes the
// new state. Incremental sync is not attempted: the gateway always has
// the full new text in hand after an edit, so full-document sync is never
// wrong regardless of what the server negotiated.
func (w *Wrapper) Change(ctx context.Context, uri, newContent string) error {
	if err := w.checkRunning("change_document"); err != nil {
		return err
	}
	w.docs.mu.Lock()
	doc, ok := w.docs.open[uri]
	if !ok {
		doc = &openDoc{version: 0}
		w.docs.open[uri] = doc
	}
	doc.version++
	doc.content = newContent
	version := doc.version
	w.docs.mu.Unlock()

	return w.conn.Notify(ctx, "textDocument/didChange", lsp.DidChangeTextDocumentParams{
		TextDocument: lsp.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: lsp.TextDocumentIdentifier{URI: lsp.DocumentURI(uri)},
			Version:                version,
		},
		ContentChanges: []lsp.TextDocumentContentChangeEvent{{Text: newContent}},
	})
}

// Close sends textDocument/didClose and removes uri from the open-set.
func (w *Wrapper) Close(ctx context.Context, uri string) error {
	if err := w.checkRunning("close_document"); err != nil {
		return err
	}
	w.docs.mu.Lock()
	_, ok := w.docs.open[uri]
	delete(w.docs.open, uri)
	w.docs.mu.Unlock()
	if !ok {
		return nil
	}
	return w.conn.Notify(ctx, "textDocument/didClose", lsp.DidCloseTextDocumentParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: lsp.DocumentURI(uri)},
	})
}

// ContentOf returns the wrapper's in-memory view of uri, if open, else
// ("", false) so the caller falls back to reading the file from disk.
func (w *Wrapper) ContentOf(uri string) (string, bool) {
	w.docs.mu.Lock()
	defer w.docs.mu.Unlock()
	doc, ok := w.docs.open[uri]
	if !ok {
		return "", false
	}
	return doc.content, true
}
