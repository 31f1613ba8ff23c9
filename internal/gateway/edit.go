package gateway

import (
	"context"

	"codegate/internal/errs"
	"codegate/internal/lspwrapper"
	"codegate/internal/symbol"
)

// resolveOne locates exactly one symbol matching namePath within
// relativePath's file, returning it alongside the wrapper (if one was used
// to build the tree), the file's current content, and its absolute path.
// Ambiguous matches fail with a candidate list; absent matches fail
// UnknownSymbol.
func (g *Gateway) resolveOne(ctx context.Context, namePath, relativePath string) (*symbol.Symbol, *lspwrapper.Wrapper, string, string, error) {
	absPath := g.absPath(relativePath)
	tree, w, err := g.buildFileTree(ctx, absPath, relativePath)
	if err != nil {
		return nil, nil, "", "", err
	}
	np := symbol.ParseNamePath(namePath)
	matches := symbol.FindInTree(tree.Root, np, symbol.MatchExact, symbol.KindFilter{})
	if len(matches) == 0 {
		return nil, nil, "", "", errs.New(errs.UnknownSymbol, "edit")
	}
	if len(matches) > 1 {
		candidates := make([]string, len(matches))
		for i, m := range matches {
			candidates[i] = m.NamePath
		}
		return nil, nil, "", "", errs.Ambiguous("edit", candidates)
	}
	if w == nil {
		w, _, err = g.manager.RouteAndAcquire(ctx, absPath)
		if err != nil {
			return nil, nil, "", "", err
		}
	}
	content, err := g.liveContent(absPath, pathToURI(absPath), w)
	if err != nil {
		return nil, nil, "", "", err
	}
	return matches[0], w, content, absPath, nil
}

// applyOneEdit writes edit to absPath (currently holding content), notifies
// w of the new content, and invalidates every cache entry for uri, per the
// edit-safety invariants: atomic write, then a didChange
// before any subsequent symbol query can observe the new state.
func (g *Gateway) applyOneEdit(ctx context.Context, w *lspwrapper.Wrapper, uri, absPath, content string, edit symbol.TextEdit) error {
	return g.applyEdits(ctx, w, uri, absPath, content, []symbol.TextEdit{edit})
}

func (g *Gateway) applyEdits(ctx context.Context, w *lspwrapper.Wrapper, uri, absPath, content string, edits []symbol.TextEdit) error {
	newContent, err := symbol.ApplyEdits(content, edits, encodingFor(w))
	if err != nil {
		return errs.Wrap(errs.EditFailed, "edit", err)
	}
	if err := symbol.AtomicWrite(absPath, []byte(newContent)); err != nil {
		return errs.Wrap(errs.EditFailed, "edit", err)
	}
	if err := w.Change(ctx, uri, newContent); err != nil {
		g.logger.Printf("gateway: didChange after edit to %s failed: %v", uri, err)
	}
	g.caches.InvalidateURI(uri, absPath)
	return nil
}

// ReplaceSymbolBody implements replace_symbol_body: an optimistic-
// concurrency-checked, exact-range replacement of a symbol's body.
func (g *Gateway) ReplaceSymbolBody(ctx context.Context, namePath, relativePath, body string, expectedBody *string) error {
	sym, w, content, absPath, err := g.resolveOne(ctx, namePath, relativePath)
	if err != nil {
		return err
	}
	enc := encodingFor(w)
	if !symbol.ExpectedBodyMatches(sym, content, enc, expectedBody) {
		return errs.New(errs.StaleSymbol, "replace_symbol_body")
	}
	uri := pathToURI(absPath)
	return g.applyOneEdit(ctx, w, uri, absPath, content, symbol.ReplaceBody(sym, body))
}

// InsertBeforeSymbol implements insert_before_symbol.
func (g *Gateway) InsertBeforeSymbol(ctx context.Context, namePath, relativePath, body string) error {
	sym, w, content, absPath, err := g.resolveOne(ctx, namePath, relativePath)
	if err != nil {
		return err
	}
	text := ensureTrailingNewline(body, symbol.DetectNewline(content))
	uri := pathToURI(absPath)
	return g.applyOneEdit(ctx, w, uri, absPath, content, symbol.InsertBefore(sym, text))
}

// InsertAfterSymbol implements insert_after_symbol.
func (g *Gateway) InsertAfterSymbol(ctx context.Context, namePath, relativePath, body string) error {
	sym, w, content, absPath, err := g.resolveOne(ctx, namePath, relativePath)
	if err != nil {
		return err
	}
	text := ensureTrailingNewline(body, symbol.DetectNewline(content))
	uri := pathToURI(absPath)
	return g.applyOneEdit(ctx, w, uri, absPath, content, symbol.InsertAfter(sym, text))
}

func ensureTrailingNewline(text, newline string) string {
	if len(text) == 0 {
		return text
	}
	last := text[len(text)-1]
	if last == '\n' {
		return text
	}
	return text + newline
}

// RenameSymbol implements rename_symbol: a server-driven rename whose
// WorkspaceEdit may span multiple files. Each touched file is read, edited
// bottom-up, and written atomically; a failure on one file does not undo
// files already written. The first error is surfaced so the caller can
// inspect which files changed.
func (g *Gateway) RenameSymbol(ctx context.Context, namePath, relativePath, newName string) error {
	sym, w, content, absPath, err := g.resolveOne(ctx, namePath, relativePath)
	if err != nil {
		return err
	}
	uri := pathToURI(absPath)
	raw, err := w.Rename(ctx, uri, content, sym.SelectionRange.Start, newName)
	if err != nil {
		return err
	}
	perFile, err := symbol.DecodeWorkspaceEdit(raw)
	if err != nil {
		return errs.Wrap(errs.ProtocolError, "rename_symbol", err)
	}

	var firstErr error
	for fileURI, edits := range perFile {
		fileAbs := uriToPath(fileURI)
		fileContent, err := g.readFile(fileAbs)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fileW := w
		if fileURI != uri {
			fileW, _, err = g.manager.RouteAndAcquire(ctx, fileAbs)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
		}
		if err := g.applyEdits(ctx, fileW, fileURI, fileAbs, fileContent, edits); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
