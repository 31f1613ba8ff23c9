package symbol

import "encoding/json"

// wirePosition/wireRange/wireLocation mirror the LSP 3.17 wire shapes
// directly (not sourcegraph/go-lsp's older, flat-only SymbolInformation
// focus) because the hierarchical DocumentSymbol response this gateway
// prefers has no equivalent in that library; see tree.go for why both
// shapes must be accepted.
type wirePosition struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type wireRange struct {
	Start wirePosition `json:"start"`
	End   wirePosition `json:"end"`
}

type wireLocation struct {
	URI   string    `json:"uri"`
	Range wireRange `json:"range"`
}

// hierarchicalSymbol is the shape of one entry in a textDocument/
// documentSymbol response when the server returns DocumentSymbol[]
// (LSP 3.10+, hierarchicalDocumentSymbolSupport).
type hierarchicalSymbol struct {
	Name           string               `json:"name"`
	Detail         string               `json:"detail,omitempty"`
	Kind           int                  `json:"kind"`
	Range          wireRange            `json:"range"`
	SelectionRange wireRange            `json:"selectionRange"`
	Children       []hierarchicalSymbol `json:"children,omitempty"`
}

// flatSymbol is the shape of one entry when the server falls back to
// SymbolInformation[] (pre-3.10 servers, or ones that never adopted
// hierarchical support).
type flatSymbol struct {
	Name          string       `json:"name"`
	Kind          int          `json:"kind"`
	Location      wireLocation `json:"location"`
	ContainerName string       `json:"containerName,omitempty"`
}

// decodeDocumentSymbolResponse parses a textDocument/documentSymbol
// response body and reports whether it was the flat SymbolInformation[]
// form. Hierarchical responses are returned as hierarchicalSymbol trees;
// flat responses are returned via the second return value.
func decodeDocumentSymbolResponse(raw json.RawMessage) (hier []hierarchicalSymbol, flat []flatSymbol, isFlat bool, err error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil, false, nil
	}

	// Hierarchical entries always carry a "range" and "selectionRange";
	// flat entries carry "location" instead. Peek at the first element to
	// classify without double-unmarshalling errors into the caller.
	var probe []json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, nil, false, err
	}
	if len(probe) == 0 {
		return nil, nil, false, nil
	}
	var shape struct {
		Location json.RawMessage `json:"location"`
	}
	_ = json.Unmarshal(probe[0], &shape)
	if shape.Location != nil {
		if err := json.Unmarshal(raw, &flat); err != nil {
			return nil, nil, false, err
		}
		return nil, flat, true, nil
	}
	if err := json.Unmarshal(raw, &hier); err != nil {
		return nil, nil, false, err
	}
	return hier, nil, false, nil
}
