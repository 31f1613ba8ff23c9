// Package gatewaycfg defines the plain configuration shape the LSP
// multiplexer core is constructed from. The core deliberately contains no
// CLI or file-loading code of its own; this package only describes the
// struct an embedder builds and hands to the gateway.
package gatewaycfg

import (
	"time"

	"codegate/internal/language"
)

// Config carries every tunable the core's subsystems need: the memory
// budget and repo-size category for the LSP manager, eager-vs-lazy
// startup, the per-wrapper timeouts, and the project root.
type Config struct {
	// RootPath is the absolute filesystem path of the project root.
	RootPath string
	// RootURI is the file:// URI form of RootPath, passed to every
	// wrapper's initialize handshake.
	RootURI string

	// Languages is the ordered set of languages this project has
	// configured; Registry.Route consults this order to disambiguate
	// overlapping filename patterns.
	Languages []language.Language
	// PrimaryLanguage, if non-empty, is preferred over declaration order
	// when disambiguating a path that matches more than one language.
	PrimaryLanguage string

	// BudgetMiB is the total memory budget across all running wrappers.
	BudgetMiB int
	// RepoSize classifies the project for per-language memory estimates.
	RepoSize language.RepoSize
	// Eager starts every configured language's wrapper at construction
	// time instead of deferring to first use.
	Eager bool

	InitializeTimeout time.Duration
	CallTimeout       time.Duration
	ShutdownTimeout   time.Duration

	// IgnoreFilePath is the project's git-style ignore file, consulted by
	// whole-project symbol lookups and search_for_pattern in addition to
	// each language's unconditional ignore-directory list.
	IgnoreFilePath string

	// CacheDir is the project-local directory cache snapshots are written
	// under; empty disables snapshot persistence.
	CacheDir string

	// AdapterOverridesPath, if set, points at a JSONC file of
	// language.AdapterOverride entries applied on top of Languages.
	AdapterOverridesPath string
}

// DefaultBudgetMiB is the manager's default total memory budget.
const DefaultBudgetMiB = 2048

// Default returns a Config for rootPath with the built-in language
// adapters, lazy startup, and the stock timeouts. Callers
// typically start from Default and override only what their deployment
// needs.
func Default(rootPath, rootURI string) Config {
	return Config{
		RootPath:          rootPath,
		RootURI:           rootURI,
		Languages:         language.DefaultLanguages(),
		BudgetMiB:         DefaultBudgetMiB,
		RepoSize:          language.RepoSmall,
		Eager:             false,
		InitializeTimeout: 30 * time.Second,
		CallTimeout:       30 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}
