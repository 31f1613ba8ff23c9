package symbol

import "encoding/json"

// DecodeWorkspaceEdit parses the raw WorkspaceEdit body returned by
// textDocument/rename into a per-URI list of TextEdits, preferring the
// versioned documentChanges form (LSP 3.6+) over the older flat changes
// map when a server sends both. Edits within each URI are returned in the
// order the server sent them; ApplyEdits re-sorts them bottom-up before
// applying.
func DecodeWorkspaceEdit(raw json.RawMessage) (map[string][]TextEdit, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var withDocChanges struct {
		DocumentChanges []struct {
			TextDocument struct {
				URI string `json:"uri"`
			} `json:"textDocument"`
			Edits []wireTextEdit `json:"edits"`
		} `json:"documentChanges"`
	}
	if err := json.Unmarshal(raw, &withDocChanges); err == nil && len(withDocChanges.DocumentChanges) > 0 {
		out := make(map[string][]TextEdit, len(withDocChanges.DocumentChanges))
		for _, dc := range withDocChanges.DocumentChanges {
			out[dc.TextDocument.URI] = append(out[dc.TextDocument.URI], toTextEdits(dc.Edits)...)
		}
		return out, nil
	}

	var withChanges struct {
		Changes map[string][]wireTextEdit `json:"changes"`
	}
	if err := json.Unmarshal(raw, &withChanges); err != nil {
		return nil, err
	}
	out := make(map[string][]TextEdit, len(withChanges.Changes))
	for uri, edits := range withChanges.Changes {
		out[uri] = toTextEdits(edits)
	}
	return out, nil
}

type wireTextEdit struct {
	Range   wireRange `json:"range"`
	NewText string    `json:"newText"`
}

func toTextEdits(wire []wireTextEdit) []TextEdit {
	out := make([]TextEdit, len(wire))
	for i, w := range wire {
		out[i] = TextEdit{Range: toRange(w.Range), NewText: w.NewText}
	}
	return out
}
