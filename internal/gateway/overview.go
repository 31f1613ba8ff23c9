package gateway

import (
	"context"
	"os"

	"codegate/internal/errs"
	"codegate/internal/symbol"
)

// GetSymbolsOverview implements get_symbols_overview: the Symbol tree of one
// file, or the union over every source file in a directory, down to depth
// levels (depth<=0 means the full tree).
func (g *Gateway) GetSymbolsOverview(ctx context.Context, relativePath string, depth int, includeBody bool) ([]*symbol.Symbol, error) {
	absPath := g.absPath(relativePath)
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, errs.New(errs.FileNotFound, "get_symbols_overview")
	}

	if !info.IsDir() {
		sym, err := g.overviewOneFile(ctx, absPath, relativePath, depth, includeBody)
		if err != nil {
			return nil, err
		}
		return sym, nil
	}

	var out []*symbol.Symbol
	walkErr := g.walkSourceFiles(absPath, func(fileAbs, fileRel string) error {
		syms, err := g.overviewOneFile(ctx, fileAbs, fileRel, depth, includeBody)
		if err != nil {
			// One unroutable or failing file must not abort a
			// directory-wide overview; it is simply omitted.
			g.logger.Printf("gateway: get_symbols_overview skipped %s: %v", fileRel, err)
			return nil
		}
		out = append(out, syms...)
		return nil
	})
	if walkErr != nil {
		return nil, errs.Wrap(errs.ProtocolError, "get_symbols_overview", walkErr)
	}
	return out, nil
}

func (g *Gateway) overviewOneFile(ctx context.Context, absPath, relPath string, depth int, includeBody bool) ([]*symbol.Symbol, error) {
	tree, w, err := g.buildFileTree(ctx, absPath, relPath)
	if err != nil {
		return nil, err
	}
	// Overview returns copies, so bodies are set on those rather than on
	// the cached tree.
	syms := symbol.Overview(tree.Root, depth)
	if includeBody {
		content, err := g.readFile(absPath)
		if err == nil {
			for _, s := range syms {
				populateBodies(s, content, encodingFor(w))
			}
		}
	}
	return syms, nil
}
