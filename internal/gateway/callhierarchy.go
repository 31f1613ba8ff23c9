package gateway

import (
	"context"

	"codegate/internal/errs"
	"codegate/internal/language"
	"codegate/internal/symbol"
)

// GetCallHierarchyIncoming implements get_call_hierarchy_incoming.
func (g *Gateway) GetCallHierarchyIncoming(ctx context.Context, namePath, relativePath string, maxDepth int) ([]symbol.Location, error) {
	return g.callHierarchy(ctx, namePath, relativePath, maxDepth, true)
}

// GetCallHierarchyOutgoing implements get_call_hierarchy_outgoing.
func (g *Gateway) GetCallHierarchyOutgoing(ctx context.Context, namePath, relativePath string, maxDepth int) ([]symbol.Location, error) {
	return g.callHierarchy(ctx, namePath, relativePath, maxDepth, false)
}

func (g *Gateway) callHierarchy(ctx context.Context, namePath, relativePath string, maxDepth int, incoming bool) ([]symbol.Location, error) {
	sym, w, content, absPath, err := g.resolveOne(ctx, namePath, relativePath)
	if err != nil {
		return nil, err
	}
	uri := pathToURI(absPath)

	// The adapter's declared expectation short-circuits the attempt: a
	// language whose server is known to lack call hierarchy goes straight
	// to the references fallback instead of a doomed prepare round-trip.
	if lang, routeErr := g.registry.Route(absPath); routeErr == nil && !lang.HasCapability(language.CapCallHierarchy) {
		return w.References(ctx, uri, content, sym.SelectionRange.Start)
	}

	var locs []symbol.Location
	if incoming {
		locs, err = w.CallHierarchyIncoming(ctx, uri, content, sym.SelectionRange.Start, maxDepth)
	} else {
		locs, err = w.CallHierarchyOutgoing(ctx, uri, content, sym.SelectionRange.Start, maxDepth)
	}
	if err == nil {
		return locs, nil
	}

	// Capability-gated fallback: a server with no call-hierarchy support
	// degrades to a references-shaped result rather than surfacing
	// Unsupported to the caller.
	if ge, ok := err.(*errs.Error); ok && ge.Kind == errs.Unsupported {
		refLocs, refErr := w.References(ctx, uri, content, sym.SelectionRange.Start)
		if refErr != nil {
			return nil, refErr
		}
		return refLocs, nil
	}
	return nil, err
}
