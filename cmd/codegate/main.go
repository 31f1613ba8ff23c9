// Command codegate is the stdio MCP entrypoint for the polyglot
// code-intelligence gateway: it wires a project root into a Gateway and
// serves its symbol operations as MCP tools over stdin/stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"codegate/cmd/configfile"
	"codegate/internal/gateway"
	"codegate/internal/logging"
	"codegate/internal/mcptools"
)

func main() {
	var (
		root       = flag.String("root", ".", "project root directory")
		configPath = flag.String("config", "", "path to a codegate.jsonc configuration file")
		logPath    = flag.String("log", "", "path to a log file (defaults to stderr, never stdout)")
	)
	flag.Parse()

	if err := run(*root, *configPath, *logPath); err != nil {
		fmt.Fprintf(os.Stderr, "codegate: %v\n", err)
		os.Exit(1)
	}
}

func run(root, configPath, logPath string) error {
	logWriter := os.Stderr
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logWriter = f
	}
	logger := logging.New("codegate", logWriter)

	file, err := configfile.Load(configPath)
	if err != nil {
		return err
	}
	if file.RootPath == "" {
		file.RootPath = root
	}
	cfg := file.Build(file.RootPath)

	ctx := context.Background()
	g, err := gateway.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("construct gateway: %w", err)
	}
	defer g.Close(ctx)

	s := mcptools.Register(g)
	return server.ServeStdio(s)
}
