// Package configfile is the thin, cmd/-only JSONC configuration reader
// shared by codegate's two entrypoints. It is deliberately outside
// internal/: the core contains no configuration loading of its own, so
// this package only turns a JSONC file into a plain struct the binaries
// use to build an internal/gatewaycfg.Config.
package configfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	jsonc "github.com/muhammadmuzzammil1998/jsonc"

	"codegate/internal/gatewaycfg"
	"codegate/internal/language"
)

// File is the on-disk shape of codegate.jsonc.
type File struct {
	RootPath         string `json:"root_path"`
	BudgetMiB        int    `json:"budget_mib"`
	RepoSize         string `json:"repo_size"` // "small" | "medium" | "large" | "" (auto)
	Eager            bool   `json:"eager"`
	IgnoreFile       string `json:"ignore_file"`
	CacheDir         string `json:"cache_dir"`
	AdapterOverrides string `json:"adapter_overrides"`
	SessionHeader    string `json:"session_header"` // codegate-http only
	Addr             string `json:"addr"`            // codegate-http only
}

// Load reads and parses a JSONC file at path. A missing file is not an
// error: Load returns a zero File so callers fall back to defaults.
func Load(path string) (File, error) {
	var f File
	if path == "" {
		return f, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return f, fmt.Errorf("read %s: %w", path, err)
	}
	clean := jsonc.ToJSON(b)
	if err := json.Unmarshal(clean, &f); err != nil {
		return f, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

// Build turns f into a gatewaycfg.Config rooted at rootPath, falling back to
// gatewaycfg.Default for anything the file left unset. When f.RepoSize is
// empty, the repo size is classified by counting files under rootPath.
func (f File) Build(rootPath string) gatewaycfg.Config {
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		abs = rootPath
	}
	cfg := gatewaycfg.Default(abs, "file://"+abs)

	if f.RootPath != "" {
		cfg.RootPath = f.RootPath
		cfg.RootURI = "file://" + f.RootPath
	}
	if f.BudgetMiB > 0 {
		cfg.BudgetMiB = f.BudgetMiB
	}
	cfg.Eager = f.Eager
	cfg.IgnoreFilePath = f.IgnoreFile
	cfg.CacheDir = f.CacheDir
	cfg.AdapterOverridesPath = f.AdapterOverrides

	switch f.RepoSize {
	case "medium":
		cfg.RepoSize = language.RepoMedium
	case "large":
		cfg.RepoSize = language.RepoLarge
	case "small":
		cfg.RepoSize = language.RepoSmall
	default:
		cfg.RepoSize = language.ClassifyRepoSize(countFiles(cfg.RootPath))
	}
	return cfg
}

// countFiles walks root and counts plain files, skipping the usual version
// control directory, for the repo-size classification used when no
// explicit size category is configured.
func countFiles(root string) int {
	n := 0
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		n++
		return nil
	})
	return n
}
