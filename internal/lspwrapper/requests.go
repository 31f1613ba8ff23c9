package lspwrapper

import (
	"context"
	"encoding/json"

	lsp "github.com/sourcegraph/go-lsp"

	"codegate/internal/errs"
	"codegate/internal/symbol"
)

func textDocumentPosition(uri string, pos symbol.Position) lsp.TextDocumentPositionParams {
	return lsp.TextDocumentPositionParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: lsp.DocumentURI(uri)},
		Position:     lsp.Position{Line: pos.Line, Character: pos.Character},
	}
}

// call wraps a single LSP request with the common discipline: state
// check, backpressure slot, per-call deadline, timeout-triggers-
// cancelRequest, and a bounded retry on the two transient JSON-RPC codes.
func (w *Wrapper) call(ctx context.Context, op, method string, params, result interface{}) error {
	if err := w.checkRunning(op); err != nil {
		return err
	}
	release, err := w.acquireSlot(op)
	if err != nil {
		return err
	}
	defer release()

	callCtx, cancel := context.WithTimeout(ctx, w.cfg.CallTimeout)
	defer cancel()

	const maxRetries = 3
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		id, err := w.conn.CallWithID(callCtx, method, params, result)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			_ = w.conn.CancelRequest(context.Background(), id)
			return errs.New(errs.Cancelled, op)
		}
		if callCtx.Err() != nil {
			_ = w.conn.CancelRequest(context.Background(), id)
			return errs.New(errs.Timeout, op)
		}
		if se, ok := err.(*errs.Error); ok && se.Kind == errs.ServerErrorKind && errs.IsRequestCancelledOrContentModified(se.Code) {
			continue // RequestCancelled/ContentModified retry up to a small bound
		}
		return err
	}
	return lastErr
}

// DocumentSymbolsRaw issues textDocument/documentSymbol for uri, ensuring
// it is open first, and returns the raw response body so the caller can
// cache it keyed by content hash before building the tree.
func (w *Wrapper) DocumentSymbolsRaw(ctx context.Context, uri, content string) (json.RawMessage, error) {
	if err := w.EnsureOpen(ctx, uri, content); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	params := lsp.DocumentSymbolParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: lsp.DocumentURI(uri)},
	}
	if err := w.call(ctx, "document_symbols", "textDocument/documentSymbol", params, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// DocumentSymbols is DocumentSymbolsRaw followed by tree construction, for
// callers with no raw-response cache of their own.
func (w *Wrapper) DocumentSymbols(ctx context.Context, uri, relPath, content string) (*symbol.BuildResult, error) {
	raw, err := w.DocumentSymbolsRaw(ctx, uri, content)
	if err != nil {
		return nil, err
	}
	lines := countLines(content)
	fileRange := symbol.Range{End: symbol.Position{Line: lines, Character: 0}}
	return symbol.BuildTree(raw, uri, relPath, fileRange)
}

func countLines(content string) int {
	n := 0
	for _, r := range content {
		if r == '\n' {
			n++
		}
	}
	return n + 1
}

// References issues textDocument/references at pos, excluding the
// declaration.
func (w *Wrapper) References(ctx context.Context, uri, content string, pos symbol.Position) ([]symbol.Location, error) {
	if !w.Capabilities().ReferencesProvider {
		return nil, errs.New(errs.Unsupported, "find_referencing_symbols")
	}
	if err := w.EnsureOpen(ctx, uri, content); err != nil {
		return nil, err
	}
	params := lsp.ReferenceParams{
		TextDocumentPositionParams: textDocumentPosition(uri, pos),
		Context:                    lsp.ReferenceContext{IncludeDeclaration: false},
	}
	var raw []wireLoc
	if err := w.call(ctx, "find_referencing_symbols", "textDocument/references", params, &raw); err != nil {
		return nil, err
	}
	return decodeLocs(raw), nil
}

// Definition issues textDocument/definition at pos.
func (w *Wrapper) Definition(ctx context.Context, uri, content string, pos symbol.Position) ([]symbol.Location, error) {
	if !w.Capabilities().DefinitionProvider {
		return nil, errs.New(errs.Unsupported, "definition")
	}
	if err := w.EnsureOpen(ctx, uri, content); err != nil {
		return nil, err
	}
	params := textDocumentPosition(uri, pos)
	var raw json.RawMessage
	if err := w.call(ctx, "definition", "textDocument/definition", params, &raw); err != nil {
		return nil, err
	}
	return decodeLocationOrArray(raw), nil
}

// TypeDefinition issues textDocument/typeDefinition at pos.
func (w *Wrapper) TypeDefinition(ctx context.Context, uri, content string, pos symbol.Position) ([]symbol.Location, error) {
	if !w.Capabilities().TypeDefinitionProvider {
		return nil, errs.New(errs.Unsupported, "type_definition")
	}
	if err := w.EnsureOpen(ctx, uri, content); err != nil {
		return nil, err
	}
	params := textDocumentPosition(uri, pos)
	var raw json.RawMessage
	if err := w.call(ctx, "type_definition", "textDocument/typeDefinition", params, &raw); err != nil {
		return nil, err
	}
	return decodeLocationOrArray(raw), nil
}

// Hover issues textDocument/hover at pos, returning the raw markup content.
func (w *Wrapper) Hover(ctx context.Context, uri, content string, pos symbol.Position) (string, error) {
	if !w.Capabilities().HoverProvider {
		return "", errs.New(errs.Unsupported, "hover")
	}
	if err := w.EnsureOpen(ctx, uri, content); err != nil {
		return "", err
	}
	params := textDocumentPosition(uri, pos)
	var result struct {
		Contents json.RawMessage `json:"contents"`
	}
	if err := w.call(ctx, "hover", "textDocument/hover", params, &result); err != nil {
		return "", err
	}
	return hoverContentsToString(result.Contents), nil
}

// WorkspaceSymbol issues workspace/symbol, guarded by capability.
func (w *Wrapper) WorkspaceSymbol(ctx context.Context, query string) ([]symbol.Location, error) {
	if !w.Capabilities().WorkspaceSymbolProvider {
		return nil, errs.New(errs.Unsupported, "workspace_symbol")
	}
	params := lsp.WorkspaceSymbolParams{Query: query}
	var raw []struct {
		Name     string  `json:"name"`
		Location wireLoc `json:"location"`
	}
	if err := w.call(ctx, "workspace_symbol", "workspace/symbol", params, &raw); err != nil {
		return nil, err
	}
	locs := make([]symbol.Location, 0, len(raw))
	for _, r := range raw {
		locs = append(locs, wireLocToLocation(r.Location))
	}
	return locs, nil
}

// callHierarchyItem mirrors the LSP CallHierarchyItem shape this gateway
// round-trips back to the server for incoming/outgoing calls.
type callHierarchyItem struct {
	Name           string          `json:"name"`
	Kind           int             `json:"kind"`
	URI            string          `json:"uri"`
	Range          json.RawMessage `json:"range"`
	SelectionRange json.RawMessage `json:"selectionRange"`
}

// CallHierarchyIncoming resolves incoming calls to the symbol at pos, up to
// maxDepth levels, guarded by capability. Callers degrade to references
// when this returns Unsupported.
func (w *Wrapper) CallHierarchyIncoming(ctx context.Context, uri, content string, pos symbol.Position, maxDepth int) ([]symbol.Location, error) {
	return w.callHierarchy(ctx, uri, content, pos, maxDepth, "callHierarchy/incomingCalls", "from")
}

// CallHierarchyOutgoing resolves outgoing calls from the symbol at pos.
func (w *Wrapper) CallHierarchyOutgoing(ctx context.Context, uri, content string, pos symbol.Position, maxDepth int) ([]symbol.Location, error) {
	return w.callHierarchy(ctx, uri, content, pos, maxDepth, "callHierarchy/outgoingCalls", "to")
}

func (w *Wrapper) callHierarchy(ctx context.Context, uri, content string, pos symbol.Position, maxDepth int, method, itemField string) ([]symbol.Location, error) {
	if !w.Capabilities().CallHierarchyProvider {
		return nil, errs.New(errs.Unsupported, method)
	}
	if err := w.EnsureOpen(ctx, uri, content); err != nil {
		return nil, err
	}
	prepareParams := textDocumentPosition(uri, pos)
	var items []callHierarchyItem
	if err := w.call(ctx, method, "textDocument/prepareCallHierarchy", prepareParams, &items); err != nil {
		return nil, err
	}

	var locs []symbol.Location
	seen := make(map[string]bool)
	frontier := items
	for depth := 0; depth < maxDepth && len(frontier) > 0 && len(locs) < symbol.MaxLookupResults; depth++ {
		var next []callHierarchyItem
		for _, item := range frontier {
			var calls []struct {
				RawFrom json.RawMessage `json:"from"`
				RawTo   json.RawMessage `json:"to"`
			}
			callParams := map[string]interface{}{"item": item}
			if err := w.call(ctx, method, method, callParams, &calls); err != nil {
				return locs, err
			}
			for _, c := range calls {
				var raw json.RawMessage
				if itemField == "from" {
					raw = c.RawFrom
				} else {
					raw = c.RawTo
				}
				var next2 callHierarchyItem
				if err := json.Unmarshal(raw, &next2); err != nil {
					continue
				}
				key := next2.URI + "#" + string(next2.SelectionRange)
				if seen[key] {
					continue
				}
				seen[key] = true
				locs = append(locs, symbol.Location{URI: next2.URI, Range: decodeWireRange(next2.SelectionRange)})
				next = append(next, next2)
			}
		}
		frontier = next
	}
	return locs, nil
}

// Rename requests textDocument/rename and returns the server's raw
// WorkspaceEdit, left to the Symbol Layer to decode and apply bottom-up
// per file.
func (w *Wrapper) Rename(ctx context.Context, uri, content string, pos symbol.Position, newName string) (json.RawMessage, error) {
	if !w.Capabilities().RenameProvider {
		return nil, errs.New(errs.Unsupported, "rename_symbol")
	}
	if err := w.EnsureOpen(ctx, uri, content); err != nil {
		return nil, err
	}
	params := lsp.RenameParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: lsp.DocumentURI(uri)},
		Position:     lsp.Position{Line: pos.Line, Character: pos.Character},
		NewName:      newName,
	}
	var raw json.RawMessage
	if err := w.call(ctx, "rename_symbol", "textDocument/rename", params, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// --- wire decoding helpers shared across the request methods above ---

type wirePos struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}
type wireRng struct {
	Start wirePos `json:"start"`
	End   wirePos `json:"end"`
}
type wireLoc struct {
	URI   string  `json:"uri"`
	Range wireRng `json:"range"`
}

func wireLocToLocation(l wireLoc) symbol.Location {
	return symbol.Location{
		URI: l.URI,
		Range: symbol.Range{
			Start: symbol.Position{Line: l.Range.Start.Line, Character: l.Range.Start.Character},
			End:   symbol.Position{Line: l.Range.End.Line, Character: l.Range.End.Character},
		},
	}
}

func decodeLocs(raw []wireLoc) []symbol.Location {
	locs := make([]symbol.Location, 0, len(raw))
	for _, r := range raw {
		locs = append(locs, wireLocToLocation(r))
	}
	return locs
}

// decodeLocationOrArray handles definition/typeDefinition responses, which
// may be a single Location, a Location[], or a LocationLink[] depending on
// server capability; this gateway only needs the target range, present
// under different keys in each shape.
func decodeLocationOrArray(raw json.RawMessage) []symbol.Location {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var asArray []json.RawMessage
	if err := json.Unmarshal(raw, &asArray); err == nil {
		locs := make([]symbol.Location, 0, len(asArray))
		for _, item := range asArray {
			if loc, ok := decodeOneLocation(item); ok {
				locs = append(locs, loc)
			}
		}
		return locs
	}
	if loc, ok := decodeOneLocation(raw); ok {
		return []symbol.Location{loc}
	}
	return nil
}

func decodeOneLocation(raw json.RawMessage) (symbol.Location, bool) {
	var asLoc wireLoc
	if err := json.Unmarshal(raw, &asLoc); err == nil && asLoc.URI != "" {
		return wireLocToLocation(asLoc), true
	}
	var asLink struct {
		TargetURI   string  `json:"targetUri"`
		TargetRange wireRng `json:"targetRange"`
	}
	if err := json.Unmarshal(raw, &asLink); err == nil && asLink.TargetURI != "" {
		return wireLocToLocation(wireLoc{URI: asLink.TargetURI, Range: asLink.TargetRange}), true
	}
	return symbol.Location{}, false
}

func decodeWireRange(raw json.RawMessage) symbol.Range {
	var r wireRng
	if err := json.Unmarshal(raw, &r); err != nil {
		return symbol.Range{}
	}
	return symbol.Range{
		Start: symbol.Position{Line: r.Start.Line, Character: r.Start.Character},
		End:   symbol.Position{Line: r.End.Line, Character: r.End.Character},
	}
}

func hoverContentsToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asMarked struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &asMarked); err == nil && asMarked.Value != "" {
		return asMarked.Value
	}
	var asArray []json.RawMessage
	if err := json.Unmarshal(raw, &asArray); err == nil {
		parts := make([]string, 0, len(asArray))
		for _, item := range asArray {
			parts = append(parts, hoverContentsToString(item))
		}
		return joinNonEmpty(parts, "\n")
	}
	return ""
}

func joinNonEmpty(parts []string, sep string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += sep
		}
		out += p
	}
	return out
}
