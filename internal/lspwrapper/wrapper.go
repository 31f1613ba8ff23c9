package lspwrapper

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"codegate/internal/errs"
	"codegate/internal/language"
	"codegate/internal/rpc"
)

// Config carries the per-wrapper, language-configurable tunables:
// handshake/per-call/shutdown deadlines and the backpressure bounds on
// in-flight requests.
type Config struct {
	InitializeTimeout time.Duration
	CallTimeout       time.Duration
	ShutdownTimeout   time.Duration

	// MaxPending+MaxQueued bounds the number of requests in flight; a call
	// beyond that sum fails Busy. Calls above MaxPending are still sent
	// immediately: there is no wait queue.
	MaxPending int
	MaxQueued  int
}

// DefaultConfig returns the stock deadlines and backpressure bounds.
func DefaultConfig() Config {
	return Config{
		InitializeTimeout: 30 * time.Second,
		CallTimeout:       30 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		MaxPending:        1024,
		MaxQueued:         256,
	}
}

// Capabilities records the subset of the server's declared
// ServerCapabilities this gateway acts on. Anything else in the
// initialize response is ignored; language servers are free to declare
// capabilities the core has no corresponding operation for.
type Capabilities struct {
	DocumentSymbolProvider  bool
	ReferencesProvider      bool
	DefinitionProvider      bool
	TypeDefinitionProvider  bool
	HoverProvider           bool
	WorkspaceSymbolProvider bool
	RenameProvider          bool
	CallHierarchyProvider   bool
	IncrementalSync         bool
	PositionEncoding        string
}

// ConfigurationProvider answers the server-to-client workspace/configuration
// request with this wrapper's per-server settings. The LSP Manager passes
// through the provider its embedder gives it; the gateway's provider
// answers every section with an empty object.
type ConfigurationProvider func(section string) interface{}

// Wrapper owns one language-server subprocess end to end: lifecycle,
// document synchronization, diagnostics, and the symbol-oriented request
// API.
type Wrapper struct {
	lang   language.Language
	cfg    Config
	logger *log.Logger
	getCfg ConfigurationProvider

	mu    sync.Mutex
	state State
	caps  Capabilities

	cmd  *exec.Cmd
	conn *rpc.Conn

	docs  *documentSet
	diags *diagnosticsStore
	prog  *progressTracker

	pending int64 // in-flight request count, for the Busy bound

	// doneCh is closed once the underlying connection disconnects
	// (crash or clean shutdown), waking anyone blocked waiting on it.
	doneCh chan struct{}
}

// New constructs a Wrapper in state NotStarted. It does not spawn anything.
func New(lang language.Language, cfg Config, logger *log.Logger, getCfg ConfigurationProvider) *Wrapper {
	return &Wrapper{
		lang:   lang,
		cfg:    cfg,
		logger: logger,
		getCfg: getCfg,
		state:  NotStarted,
		docs:   newDocumentSet(),
		diags:  newDiagnosticsStore(),
		prog:   newProgressTracker(),
	}
}

// State returns the wrapper's current lifecycle state.
func (w *Wrapper) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Wrapper) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Capabilities returns the server's declared capabilities, valid once
// State() is Running.
func (w *Wrapper) Capabilities() Capabilities {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.caps
}

// Start spawns the language-server subprocess and performs the LSP
// initialize/initialized handshake.
// rootURI is the workspace root passed to the server; rootPath is the
// filesystem directory the subprocess is launched from.
func (w *Wrapper) Start(ctx context.Context, rootPath, rootURI string) (err error) {
	w.setState(Starting)
	defer func() {
		if err != nil {
			w.setState(Failed)
		}
	}()

	cmd := exec.Command(w.lang.Command, w.lang.Args...)
	cmd.Dir = rootPath

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", w.lang.Command, err)
	}
	w.cmd = cmd

	conn := rpc.Dial(context.Background(), stdout, stdin, stderr, w.logger, w.HandleServerRequest, w.HandleNotification)
	return w.StartWithConn(ctx, conn, rootURI)
}

// StartWithConn drives the handshake over an already-dialed connection,
// factored out so tests can inject an in-memory Conn instead of a real
// subprocess.
func (w *Wrapper) StartWithConn(ctx context.Context, conn *rpc.Conn, rootURI string) error {
	w.conn = conn
	w.doneCh = make(chan struct{})
	go func() {
		<-conn.DisconnectNotify()
		w.onDisconnect()
	}()

	initCtx, cancel := context.WithTimeout(ctx, w.cfg.InitializeTimeout)
	defer cancel()

	params := map[string]interface{}{
		"processId": nil,
		"rootUri":   rootURI,
		"capabilities": map[string]interface{}{
			"general": map[string]interface{}{
				"positionEncodings": []string{"utf-16", "utf-8"},
			},
			"textDocument": map[string]interface{}{
				"documentSymbol": map[string]interface{}{
					"hierarchicalDocumentSymbolSupport": true,
				},
				"synchronization": map[string]interface{}{
					"didSave": true,
				},
			},
			"workspace": map[string]interface{}{
				"symbol":        map[string]interface{}{},
				"configuration": true,
			},
		},
	}
	if len(w.lang.InitializationOptions) > 0 {
		params["initializationOptions"] = w.lang.InitializationOptions
	}

	var result struct {
		Capabilities struct {
			DocumentSymbolProvider  bool                   `json:"documentSymbolProvider"`
			ReferencesProvider      bool                   `json:"referencesProvider"`
			DefinitionProvider      bool                   `json:"definitionProvider"`
			TypeDefinitionProvider  bool                   `json:"typeDefinitionProvider"`
			HoverProvider           bool                   `json:"hoverProvider"`
			WorkspaceSymbolProvider bool                   `json:"workspaceSymbolProvider"`
			RenameProvider          interface{}             `json:"renameProvider"`
			CallHierarchyProvider   interface{}             `json:"callHierarchyProvider"`
			TextDocumentSync        interface{}             `json:"textDocumentSync"`
			PositionEncoding        string                 `json:"positionEncoding"`
		} `json:"capabilities"`
	}
	if err := w.conn.Call(initCtx, "initialize", params, &result); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if err := w.conn.Notify(ctx, "initialized", map[string]interface{}{}); err != nil {
		return fmt.Errorf("initialized: %w", err)
	}

	w.mu.Lock()
	w.caps = Capabilities{
		DocumentSymbolProvider:  result.Capabilities.DocumentSymbolProvider,
		ReferencesProvider:      result.Capabilities.ReferencesProvider,
		DefinitionProvider:      result.Capabilities.DefinitionProvider,
		TypeDefinitionProvider:  result.Capabilities.TypeDefinitionProvider,
		HoverProvider:           result.Capabilities.HoverProvider,
		WorkspaceSymbolProvider: result.Capabilities.WorkspaceSymbolProvider,
		RenameProvider:          result.Capabilities.RenameProvider != nil && result.Capabilities.RenameProvider != false,
		CallHierarchyProvider:   result.Capabilities.CallHierarchyProvider != nil && result.Capabilities.CallHierarchyProvider != false,
		IncrementalSync:         isIncrementalSync(result.Capabilities.TextDocumentSync),
		PositionEncoding:        result.Capabilities.PositionEncoding,
	}
	w.state = Running
	w.mu.Unlock()

	w.logger.Printf("lspwrapper[%s]: running (pid %d)", w.lang.Name, pidOf(w.cmd))
	return nil
}

func isIncrementalSync(v interface{}) bool {
	switch t := v.(type) {
	case float64:
		return int(t) == 2
	case map[string]interface{}:
		if c, ok := t["change"].(float64); ok {
			return int(c) == 2
		}
	}
	return false
}

func pidOf(cmd *exec.Cmd) int {
	if cmd == nil || cmd.Process == nil {
		return 0
	}
	return cmd.Process.Pid
}

func (w *Wrapper) onDisconnect() {
	w.mu.Lock()
	if w.state != ShutDown && w.state != ShuttingDown {
		w.state = Failed
	}
	close(w.doneCh)
	w.mu.Unlock()
	w.docs.closeAll()
}

// Shutdown performs the graceful shutdown/exit sequence, falling back to a
// forced kill if the subprocess doesn't exit within the deadline. It is
// idempotent: a second call on an already shut-down wrapper is a no-op.
func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if w.state == ShutDown || w.state == NotStarted {
		w.mu.Unlock()
		return nil
	}
	w.state = ShuttingDown
	w.mu.Unlock()

	if w.conn != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, w.cfg.ShutdownTimeout)
		_ = w.conn.Call(shutdownCtx, "shutdown", nil, nil)
		cancel()
		_ = w.conn.Notify(ctx, "exit", nil)
		_ = w.conn.Close()
	}

	if w.cmd != nil && w.cmd.Process != nil {
		done := make(chan error, 1)
		go func() { done <- w.cmd.Wait() }()
		select {
		case <-done:
		case <-time.After(w.cfg.ShutdownTimeout):
			_ = w.cmd.Process.Kill()
			<-done
		}
	}

	w.mu.Lock()
	w.state = ShutDown
	w.mu.Unlock()
	return nil
}

// checkRunning returns NotReady unless the wrapper is Running, and
// ServerTerminated if it has failed or shut down.
func (w *Wrapper) checkRunning(op string) error {
	w.mu.Lock()
	s := w.state
	w.mu.Unlock()
	switch s {
	case Running:
		return nil
	case Failed, ShutDown, ShuttingDown:
		return errs.New(errs.ServerTerminated, op)
	default:
		return errs.New(errs.NotReady, op)
	}
}

// acquireSlot enforces the MaxPending+MaxQueued backpressure bound on
// in-flight calls. It never blocks: a call within the bound proceeds at
// once, and one beyond it fails Busy.
func (w *Wrapper) acquireSlot(op string) (release func(), err error) {
	n := atomic.AddInt64(&w.pending, 1)
	if int(n) > w.cfg.MaxPending+w.cfg.MaxQueued {
		atomic.AddInt64(&w.pending, -1)
		return nil, errs.New(errs.Busy, op)
	}
	return func() { atomic.AddInt64(&w.pending, -1) }, nil
}
