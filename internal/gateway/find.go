package gateway

import (
	"context"
	"os"

	"codegate/internal/errs"
	"codegate/internal/symbol"
)

// FindSymbolOptions carries find_symbol's optional arguments.
type FindSymbolOptions struct {
	RelativePath      string // "" means whole-project scope
	IncludeBody       bool
	IncludeKinds      []symbol.Kind
	ExcludeKinds      []symbol.Kind
	SubstringMatching bool
}

// FindSymbol implements find_symbol: a lazy-in-spirit, eagerly-materialized
// (bounded by symbol.MaxLookupResults) sequence of Symbols matching
// namePath, scoped to a single file, a directory, or the whole project.
func (g *Gateway) FindSymbol(ctx context.Context, namePath string, opts FindSymbolOptions) ([]*symbol.Symbol, error) {
	np := symbol.ParseNamePath(namePath)
	mode := symbol.MatchExact
	if opts.SubstringMatching {
		mode = symbol.MatchSubstring
	}
	filter := symbol.KindFilter{Include: opts.IncludeKinds, Exclude: opts.ExcludeKinds}

	scope := opts.RelativePath
	if scope == "" {
		scope = "."
	}
	absPath := g.absPath(scope)
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, errs.New(errs.FileNotFound, "find_symbol")
	}

	if !info.IsDir() {
		// A single-file scope surfaces its own errors, including
		// UnsupportedFile for an unroutable extension; only directory-wide
		// scans tolerate per-file failures.
		return g.findInFile(ctx, absPath, scope, np, mode, filter, opts.IncludeBody)
	}

	var out []*symbol.Symbol
	walkErr := g.walkSourceFiles(absPath, func(fileAbs, fileRel string) error {
		matches, err := g.findInFile(ctx, fileAbs, fileRel, np, mode, filter, opts.IncludeBody)
		if err != nil {
			g.logger.Printf("gateway: find_symbol skipped %s: %v", fileRel, err)
			return nil
		}
		out = append(out, matches...)
		if len(out) > symbol.MaxLookupResults {
			out = out[:symbol.MaxLookupResults]
		}
		return nil
	})
	if walkErr != nil {
		return nil, errs.Wrap(errs.ProtocolError, "find_symbol", walkErr)
	}
	return out, nil
}

func (g *Gateway) findInFile(ctx context.Context, fileAbs, fileRel string, np symbol.NamePath, mode symbol.MatchMode, filter symbol.KindFilter, includeBody bool) ([]*symbol.Symbol, error) {
	tree, w, err := g.buildFileTree(ctx, fileAbs, fileRel)
	if err != nil {
		return nil, err
	}
	matches := symbol.FindInTree(tree.Root, np, mode, filter)
	if len(matches) == 0 {
		return nil, nil
	}
	if includeBody {
		if content, err := g.readFile(fileAbs); err == nil {
			enc := encodingFor(w)
			for i, m := range matches {
				// Copy before setting Body: m belongs to the cached tree.
				body := symbol.Slice(content, m.Location.Range, enc)
				cp := *m
				cp.Body = &body
				matches[i] = &cp
			}
		}
	}
	return matches, nil
}

// FindReferencingSymbols implements find_referencing_symbols: references to
// the symbol uniquely identified by (namePath, relativePath), enriched per
// contextMode.
func (g *Gateway) FindReferencingSymbols(ctx context.Context, namePath, relativePath string, contextMode symbol.ContextMode) ([]symbol.Reference, error) {
	absPath := g.absPath(relativePath)
	tree, w, err := g.buildFileTree(ctx, absPath, relativePath)
	if err != nil {
		return nil, err
	}
	np := symbol.ParseNamePath(namePath)
	matches := symbol.FindInTree(tree.Root, np, symbol.MatchExact, symbol.KindFilter{})
	if len(matches) == 0 {
		return nil, errs.New(errs.UnknownSymbol, "find_referencing_symbols")
	}
	if len(matches) > 1 {
		candidates := make([]string, len(matches))
		for i, m := range matches {
			candidates[i] = m.NamePath
		}
		return nil, errs.Ambiguous("find_referencing_symbols", candidates)
	}
	target := matches[0]

	uri := pathToURI(absPath)
	refWrapper := w
	if refWrapper == nil {
		refWrapper, _, err = g.manager.RouteAndAcquire(ctx, absPath)
		if err != nil {
			return nil, err
		}
	}
	content, err := g.liveContent(absPath, uri, refWrapper)
	if err != nil {
		return nil, err
	}

	locs, err := refWrapper.References(ctx, uri, content, target.SelectionRange.Start)
	if err != nil {
		return nil, err
	}

	refs := make([]symbol.Reference, 0, len(locs))
	for _, loc := range locs {
		refs = append(refs, g.enrichReference(ctx, loc, contextMode))
	}
	return refs, nil
}

// enrichReference reads the referencing file (which may differ from the
// target symbol's own file) and builds its Reference per contextMode.
func (g *Gateway) enrichReference(ctx context.Context, loc symbol.Location, mode symbol.ContextMode) symbol.Reference {
	if mode == symbol.ContextNone {
		return symbol.Reference{Location: loc}
	}
	absPath := uriToPath(loc.URI)
	content, err := g.readFile(absPath)
	if err != nil {
		return symbol.Reference{Location: loc}
	}
	header := ""
	if mode == symbol.ContextFull {
		relPath := g.relPath(absPath)
		if tree, _, err := g.buildFileTree(ctx, absPath, relPath); err == nil {
			if enclosing := symbol.EnclosingSymbol(tree.Root, loc.Range.Start); enclosing != nil {
				header = symbol.HeaderLine(enclosing, content, symbol.UTF16)
			}
		}
	}
	return symbol.EnrichReference(loc, content, mode, header)
}
