package lspwrapper

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"codegate/internal/errs"
)

// Diagnostic mirrors the fields of an LSP Diagnostic this gateway surfaces
// to callers; severities follow the LSP numbering (1=Error..4=Hint).
type Diagnostic struct {
	Range struct {
		Start struct{ Line, Character int }
		End   struct{ Line, Character int }
	}
	Severity int
	Message  string
	Source   string
}

type diagnosticsStore struct {
	mu    sync.RWMutex
	byURI map[string][]Diagnostic
}

func newDiagnosticsStore() *diagnosticsStore {
	return &diagnosticsStore{byURI: make(map[string][]Diagnostic)}
}

// Diagnostics returns the last-published diagnostics for uri, last-writer-wins.
func (w *Wrapper) Diagnostics(uri string) []Diagnostic {
	w.diags.mu.RLock()
	defer w.diags.mu.RUnlock()
	return w.diags.byURI[uri]
}

type progressTracker struct {
	mu     sync.Mutex
	tokens map[string]string // token -> last phase observed ("begin","report","end")
}

func newProgressTracker() *progressTracker {
	return &progressTracker{tokens: make(map[string]string)}
}

// Busy reports whether any work-done progress token is still open, used as
// a readiness heuristic: a server that just started may report itself
// initialize-complete while still indexing.
func (w *Wrapper) Busy() bool {
	w.prog.mu.Lock()
	defer w.prog.mu.Unlock()
	for _, phase := range w.prog.tokens {
		if phase != "end" {
			return true
		}
	}
	return false
}

// HandleNotification dispatches a server-to-client notification:
// diagnostics, log/show messages, and $/progress.
func (w *Wrapper) HandleNotification(method string, params interface{}) {
	switch method {
	case "textDocument/publishDiagnostics":
		w.onPublishDiagnostics(params)
	case "window/logMessage":
		w.onLogMessage(params)
	case "window/showMessage":
		w.onShowMessage(params)
	case "$/progress":
		w.onProgress(params)
	default:
		w.logger.Printf("lspwrapper[%s]: dropped notification %s", w.lang.Name, method)
	}
}

func (w *Wrapper) onPublishDiagnostics(params interface{}) {
	raw, err := reencode(params)
	if err != nil {
		return
	}
	var decoded struct {
		URI         string `json:"uri"`
		Diagnostics []struct {
			Range struct {
				Start struct{ Line, Character int } `json:"start"`
				End   struct{ Line, Character int } `json:"end"`
			} `json:"range"`
			Severity int    `json:"severity"`
			Message  string `json:"message"`
			Source   string `json:"source"`
		} `json:"diagnostics"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return
	}
	diags := make([]Diagnostic, 0, len(decoded.Diagnostics))
	for _, d := range decoded.Diagnostics {
		var diag Diagnostic
		diag.Range.Start.Line, diag.Range.Start.Character = d.Range.Start.Line, d.Range.Start.Character
		diag.Range.End.Line, diag.Range.End.Character = d.Range.End.Line, d.Range.End.Character
		diag.Severity = d.Severity
		diag.Message = d.Message
		diag.Source = d.Source
		diags = append(diags, diag)
	}
	w.diags.mu.Lock()
	w.diags.byURI[decoded.URI] = diags
	w.diags.mu.Unlock()
}

func (w *Wrapper) onLogMessage(params interface{}) {
	raw, err := reencode(params)
	if err != nil {
		return
	}
	var decoded struct {
		Type    int    `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return
	}
	w.logger.Printf("lspwrapper[%s]: server log (%d): %s", w.lang.Name, decoded.Type, decoded.Message)
}

func (w *Wrapper) onShowMessage(params interface{}) {
	raw, err := reencode(params)
	if err != nil {
		return
	}
	var decoded struct {
		Type    int    `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return
	}
	w.logger.Printf("lspwrapper[%s]: server message (%d): %s", w.lang.Name, decoded.Type, decoded.Message)
}

func (w *Wrapper) onProgress(params interface{}) {
	raw, err := reencode(params)
	if err != nil {
		return
	}
	var decoded struct {
		Token interface{} `json:"token"`
		Value struct {
			Kind string `json:"kind"`
		} `json:"value"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return
	}
	token := fmt.Sprintf("%v", decoded.Token)
	w.prog.mu.Lock()
	w.prog.tokens[token] = decoded.Value.Kind
	w.prog.mu.Unlock()
}

// HandleServerRequest answers server-to-client requests: workspace/
// configuration with the configured settings, and window/workDoneProgress/
// create, client/registerCapability and client/unregisterCapability with a
// null result; anything else fails Unsupported so the server sees a clean
// JSON-RPC error rather than a hang.
func (w *Wrapper) HandleServerRequest(ctx context.Context, method string, params interface{}) (interface{}, error) {
	switch method {
	case "workspace/configuration":
		return w.onWorkspaceConfiguration(params), nil
	case "window/workDoneProgress/create":
		return nil, nil
	case "client/registerCapability", "client/unregisterCapability":
		return nil, nil
	default:
		return nil, errs.New(errs.Unsupported, method)
	}
}

func (w *Wrapper) onWorkspaceConfiguration(params interface{}) []interface{} {
	raw, err := reencode(params)
	if err != nil {
		return nil
	}
	var decoded struct {
		Items []struct {
			Section string `json:"section"`
		} `json:"items"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}
	results := make([]interface{}, len(decoded.Items))
	for i, item := range decoded.Items {
		if w.getCfg != nil {
			results[i] = w.getCfg(item.Section)
		} else {
			results[i] = nil
		}
	}
	return results
}

func reencode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
