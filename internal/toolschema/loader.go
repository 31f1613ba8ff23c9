// Package toolschema validates tool-call arguments against the JSON
// schemas for each gateway operation, at the tool-dispatch boundary
// (internal/mcptools) before a request ever reaches the gateway.
package toolschema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed *.schema.json
var schemaFS embed.FS

const (
	GetSymbolsOverview       = "get_symbols_overview"
	FindSymbol               = "find_symbol"
	FindReferencingSymbols   = "find_referencing_symbols"
	ReplaceSymbolBody        = "replace_symbol_body"
	InsertBeforeSymbol       = "insert_before_symbol"
	InsertAfterSymbol        = "insert_after_symbol"
	RenameSymbol             = "rename_symbol"
	SearchForPattern         = "search_for_pattern"
	GetCallHierarchyIncoming = "get_call_hierarchy_incoming"
	GetCallHierarchyOutgoing = "get_call_hierarchy_outgoing"
)

// names is the full inbound tool surface.
var names = []string{
	GetSymbolsOverview,
	FindSymbol,
	FindReferencingSymbols,
	ReplaceSymbolBody,
	InsertBeforeSymbol,
	InsertAfterSymbol,
	RenameSymbol,
	SearchForPattern,
	GetCallHierarchyIncoming,
	GetCallHierarchyOutgoing,
}

var (
	compileOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	compileErr  error
)

func getSchemas() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		for _, name := range names {
			data, err := schemaFS.ReadFile(schemaPath(name))
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
			if err != nil {
				compileErr = fmt.Errorf("decode schema %s: %w", name, err)
				return
			}
			if err := c.AddResource(schemaURL(name), doc); err != nil {
				compileErr = fmt.Errorf("register schema %s: %w", name, err)
				return
			}
		}
		out := make(map[string]*jsonschema.Schema, len(names))
		for _, name := range names {
			s, err := c.Compile(schemaURL(name))
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			out[name] = s
		}
		schemas = out
	})
	return schemas, compileErr
}

func schemaPath(name string) string { return fmt.Sprintf("%s.schema.json", name) }
func schemaURL(name string) string  { return fmt.Sprintf("mem://toolschema/%s.schema.json", name) }

// Validate checks args (a tool call's raw JSON arguments object) against
// the named operation's schema. An unknown operation name is itself an
// error, since the tool-dispatch layer should never call Validate for a
// name outside the fixed tool set.
func Validate(name string, args json.RawMessage) error {
	set, err := getSchemas()
	if err != nil {
		return err
	}
	s, ok := set[name]
	if !ok {
		return fmt.Errorf("toolschema: unknown operation %q", name)
	}
	var v interface{}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, &v); err != nil {
		return fmt.Errorf("toolschema: %s: decode arguments: %w", name, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("toolschema: %s: %w", name, err)
	}
	return nil
}
