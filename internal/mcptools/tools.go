// Package mcptools registers the gateway's operations as MCP
// tools on a github.com/mark3labs/mcp-go server, validating every call's
// arguments against internal/toolschema before it reaches the gateway.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"codegate/internal/errs"
	"codegate/internal/gateway"
	"codegate/internal/symbol"
	"codegate/internal/toolschema"
)

// Register builds an MCP server exposing every gateway operation against
// g, and returns it ready for server.ServeStdio or
// mounting behind a streamable-HTTP transport.
func Register(g *gateway.Gateway) *server.MCPServer {
	s := server.NewMCPServer("codegate", "1.0.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool(toolschema.GetSymbolsOverview,
		mcp.WithDescription("Return the symbol tree of one file, or the union over a directory."),
		mcp.WithString("relative_path", mcp.Required()),
		mcp.WithNumber("depth"),
		mcp.WithBoolean("include_body"),
	), dispatch(g, toolschema.GetSymbolsOverview, handleGetSymbolsOverview))

	s.AddTool(mcp.NewTool(toolschema.FindSymbol,
		mcp.WithDescription("Find symbols by name-path, scoped to a file, a directory, or the whole project."),
		mcp.WithString("name_path", mcp.Required()),
		mcp.WithString("relative_path"),
		mcp.WithBoolean("include_body"),
		mcp.WithArray("include_kinds"),
		mcp.WithArray("exclude_kinds"),
		mcp.WithBoolean("substring_matching"),
	), dispatch(g, toolschema.FindSymbol, handleFindSymbol))

	s.AddTool(mcp.NewTool(toolschema.FindReferencingSymbols,
		mcp.WithDescription("Find references to a symbol identified by name-path and file."),
		mcp.WithString("name_path", mcp.Required()),
		mcp.WithString("relative_path", mcp.Required()),
		mcp.WithString("context_mode"),
	), dispatch(g, toolschema.FindReferencingSymbols, handleFindReferencingSymbols))

	s.AddTool(mcp.NewTool(toolschema.ReplaceSymbolBody,
		mcp.WithDescription("Replace a symbol's body, optionally guarded by its expected current body."),
		mcp.WithString("name_path", mcp.Required()),
		mcp.WithString("relative_path", mcp.Required()),
		mcp.WithString("body", mcp.Required()),
		mcp.WithString("expected_body"),
	), dispatch(g, toolschema.ReplaceSymbolBody, handleReplaceSymbolBody))

	s.AddTool(mcp.NewTool(toolschema.InsertBeforeSymbol,
		mcp.WithDescription("Insert text immediately before a symbol."),
		mcp.WithString("name_path", mcp.Required()),
		mcp.WithString("relative_path", mcp.Required()),
		mcp.WithString("body", mcp.Required()),
	), dispatch(g, toolschema.InsertBeforeSymbol, handleInsertBeforeSymbol))

	s.AddTool(mcp.NewTool(toolschema.InsertAfterSymbol,
		mcp.WithDescription("Insert text immediately after a symbol."),
		mcp.WithString("name_path", mcp.Required()),
		mcp.WithString("relative_path", mcp.Required()),
		mcp.WithString("body", mcp.Required()),
	), dispatch(g, toolschema.InsertAfterSymbol, handleInsertAfterSymbol))

	s.AddTool(mcp.NewTool(toolschema.RenameSymbol,
		mcp.WithDescription("Rename a symbol across the project via the language server."),
		mcp.WithString("name_path", mcp.Required()),
		mcp.WithString("relative_path", mcp.Required()),
		mcp.WithString("new_name", mcp.Required()),
	), dispatch(g, toolschema.RenameSymbol, handleRenameSymbol))

	s.AddTool(mcp.NewTool(toolschema.SearchForPattern,
		mcp.WithDescription("Regular-expression search over the project tree, independent of any language server."),
		mcp.WithString("pattern", mcp.Required()),
		mcp.WithString("paths_include_glob"),
		mcp.WithString("paths_exclude_glob"),
		mcp.WithNumber("context_lines_before"),
		mcp.WithNumber("context_lines_after"),
	), dispatch(g, toolschema.SearchForPattern, handleSearchForPattern))

	s.AddTool(mcp.NewTool(toolschema.GetCallHierarchyIncoming,
		mcp.WithDescription("Incoming call hierarchy for a symbol; falls back to references when unsupported."),
		mcp.WithString("name_path", mcp.Required()),
		mcp.WithString("relative_path", mcp.Required()),
		mcp.WithNumber("max_depth", mcp.Required()),
	), dispatch(g, toolschema.GetCallHierarchyIncoming, handleCallHierarchy(true)))

	s.AddTool(mcp.NewTool(toolschema.GetCallHierarchyOutgoing,
		mcp.WithDescription("Outgoing call hierarchy for a symbol; falls back to references when unsupported."),
		mcp.WithString("name_path", mcp.Required()),
		mcp.WithString("relative_path", mcp.Required()),
		mcp.WithNumber("max_depth", mcp.Required()),
	), dispatch(g, toolschema.GetCallHierarchyOutgoing, handleCallHierarchy(false)))

	return s
}

// gatewayHandler is the shape every operation's concrete handler takes once
// its arguments have passed schema validation and been decoded.
type gatewayHandler func(ctx context.Context, g *gateway.Gateway, args json.RawMessage) (interface{}, error)

// dispatch wraps handler with the toolschema validation boundary and the
// errs.Error → structured MCP error-result translation shared by every
// operation.
func dispatch(g *gateway.Gateway, name string, handler gatewayHandler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(req.Params.Arguments)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s: encode arguments: %v", name, err)), nil
		}
		if err := toolschema.Validate(name, args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		result, err := handler(ctx, g, args)
		if err != nil {
			return errorResult(name, err), nil
		}
		body, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s: encode result: %v", name, err)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

// errorResult renders an error from the gateway into the structured-error
// shape every operation surfaces: a Kind, the
// operation name, and whatever detail is available.
func errorResult(name string, err error) *mcp.CallToolResult {
	ge, ok := err.(*errs.Error)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", name, err))
	}
	payload := map[string]interface{}{
		"kind": ge.Kind.String(),
		"op":   ge.Op,
	}
	if ge.Detail != "" {
		payload["detail"] = ge.Detail
	}
	if len(ge.Candidates) > 0 {
		payload["candidates"] = ge.Candidates
	}
	if ge.Message != "" {
		payload["message"] = ge.Message
	}
	body, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return mcp.NewToolResultError(ge.Error())
	}
	return mcp.NewToolResultError(string(body))
}

func handleGetSymbolsOverview(ctx context.Context, g *gateway.Gateway, args json.RawMessage) (interface{}, error) {
	var a struct {
		RelativePath string `json:"relative_path"`
		Depth        int    `json:"depth"`
		IncludeBody  bool   `json:"include_body"`
	}
	a.Depth = 1
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, toolschema.GetSymbolsOverview, err)
	}
	return g.GetSymbolsOverview(ctx, a.RelativePath, a.Depth, a.IncludeBody)
}

func handleFindSymbol(ctx context.Context, g *gateway.Gateway, args json.RawMessage) (interface{}, error) {
	var a struct {
		NamePath          string   `json:"name_path"`
		RelativePath      string   `json:"relative_path"`
		IncludeBody       bool     `json:"include_body"`
		IncludeKinds      []string `json:"include_kinds"`
		ExcludeKinds      []string `json:"exclude_kinds"`
		SubstringMatching bool     `json:"substring_matching"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, toolschema.FindSymbol, err)
	}
	opts := gateway.FindSymbolOptions{
		RelativePath:      a.RelativePath,
		IncludeBody:       a.IncludeBody,
		IncludeKinds:      parseKinds(a.IncludeKinds),
		ExcludeKinds:      parseKinds(a.ExcludeKinds),
		SubstringMatching: a.SubstringMatching,
	}
	return g.FindSymbol(ctx, a.NamePath, opts)
}

func parseKinds(names []string) []symbol.Kind {
	if len(names) == 0 {
		return nil
	}
	out := make([]symbol.Kind, 0, len(names))
	for _, n := range names {
		if k, ok := symbol.ParseKind(n); ok {
			out = append(out, k)
		}
	}
	return out
}

func handleFindReferencingSymbols(ctx context.Context, g *gateway.Gateway, args json.RawMessage) (interface{}, error) {
	var a struct {
		NamePath     string `json:"name_path"`
		RelativePath string `json:"relative_path"`
		ContextMode  string `json:"context_mode"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, toolschema.FindReferencingSymbols, err)
	}
	return g.FindReferencingSymbols(ctx, a.NamePath, a.RelativePath, symbol.ParseContextMode(a.ContextMode))
}

func handleReplaceSymbolBody(ctx context.Context, g *gateway.Gateway, args json.RawMessage) (interface{}, error) {
	var a struct {
		NamePath     string  `json:"name_path"`
		RelativePath string  `json:"relative_path"`
		Body         string  `json:"body"`
		ExpectedBody *string `json:"expected_body"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, toolschema.ReplaceSymbolBody, err)
	}
	if err := g.ReplaceSymbolBody(ctx, a.NamePath, a.RelativePath, a.Body, a.ExpectedBody); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func handleInsertBeforeSymbol(ctx context.Context, g *gateway.Gateway, args json.RawMessage) (interface{}, error) {
	var a struct {
		NamePath     string `json:"name_path"`
		RelativePath string `json:"relative_path"`
		Body         string `json:"body"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, toolschema.InsertBeforeSymbol, err)
	}
	if err := g.InsertBeforeSymbol(ctx, a.NamePath, a.RelativePath, a.Body); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func handleInsertAfterSymbol(ctx context.Context, g *gateway.Gateway, args json.RawMessage) (interface{}, error) {
	var a struct {
		NamePath     string `json:"name_path"`
		RelativePath string `json:"relative_path"`
		Body         string `json:"body"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, toolschema.InsertAfterSymbol, err)
	}
	if err := g.InsertAfterSymbol(ctx, a.NamePath, a.RelativePath, a.Body); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func handleRenameSymbol(ctx context.Context, g *gateway.Gateway, args json.RawMessage) (interface{}, error) {
	var a struct {
		NamePath     string `json:"name_path"`
		RelativePath string `json:"relative_path"`
		NewName      string `json:"new_name"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, toolschema.RenameSymbol, err)
	}
	if err := g.RenameSymbol(ctx, a.NamePath, a.RelativePath, a.NewName); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func handleSearchForPattern(ctx context.Context, g *gateway.Gateway, args json.RawMessage) (interface{}, error) {
	var a struct {
		Pattern            string `json:"pattern"`
		PathsIncludeGlob   string `json:"paths_include_glob"`
		PathsExcludeGlob   string `json:"paths_exclude_glob"`
		ContextLinesBefore int    `json:"context_lines_before"`
		ContextLinesAfter  int    `json:"context_lines_after"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, toolschema.SearchForPattern, err)
	}
	return g.SearchForPattern(a.Pattern, gateway.SearchOptions{
		PathsIncludeGlob: a.PathsIncludeGlob,
		PathsExcludeGlob: a.PathsExcludeGlob,
		ContextBefore:    a.ContextLinesBefore,
		ContextAfter:     a.ContextLinesAfter,
	})
}

func handleCallHierarchy(incoming bool) gatewayHandler {
	return func(ctx context.Context, g *gateway.Gateway, args json.RawMessage) (interface{}, error) {
		var a struct {
			NamePath     string `json:"name_path"`
			RelativePath string `json:"relative_path"`
			MaxDepth     int    `json:"max_depth"`
		}
		name := toolschema.GetCallHierarchyOutgoing
		if incoming {
			name = toolschema.GetCallHierarchyIncoming
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, errs.Wrap(errs.InvalidArgument, name, err)
		}
		if incoming {
			return g.GetCallHierarchyIncoming(ctx, a.NamePath, a.RelativePath, a.MaxDepth)
		}
		return g.GetCallHierarchyOutgoing(ctx, a.NamePath, a.RelativePath, a.MaxDepth)
	}
}
