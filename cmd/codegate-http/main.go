// Command codegate-http is the streamable-HTTP MCP entrypoint for the
// polyglot code-intelligence gateway. It fronts the MCP transport with a
// session-resilient shim: unknown session identifiers are silently
// rebound to a fresh session instead of being rejected.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"codegate/cmd/configfile"
	"codegate/internal/gateway"
	"codegate/internal/logging"
	"codegate/internal/mcptools"
	"codegate/internal/session"
)

func main() {
	var (
		root       = flag.String("root", ".", "project root directory")
		configPath = flag.String("config", "", "path to a codegate.jsonc configuration file")
		addr       = flag.String("addr", ":8080", "address to listen on")
		logPath    = flag.String("log", "", "path to a log file (defaults to stderr)")
	)
	flag.Parse()

	if err := run(*root, *configPath, *addr, *logPath); err != nil {
		fmt.Fprintf(os.Stderr, "codegate-http: %v\n", err)
		os.Exit(1)
	}
}

func run(root, configPath, addr, logPath string) error {
	logWriter := os.Stderr
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logWriter = f
	}
	logger := logging.New("codegate-http", logWriter)

	file, err := configfile.Load(configPath)
	if err != nil {
		return err
	}
	if file.RootPath == "" {
		file.RootPath = root
	}
	cfg := file.Build(file.RootPath)
	if file.Addr != "" {
		addr = file.Addr
	}
	headerName := file.SessionHeader
	if headerName == "" {
		headerName = session.DefaultHeader
	}

	ctx := context.Background()
	g, err := gateway.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("construct gateway: %w", err)
	}
	defer g.Close(ctx)

	s := mcptools.Register(g)
	transport := server.NewStreamableHTTPServer(s,
		server.WithHeartbeatInterval(30*time.Second),
	)

	shim := session.New(transport, headerName, logger)

	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	logger.Printf("listening on %s", listener.Addr())

	httpServer := &http.Server{
		Handler:      shim,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return httpServer.Serve(listener)
}
