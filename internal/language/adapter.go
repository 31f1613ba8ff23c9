package language

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/muhammadmuzzammil1998/jsonc"
)

// AdapterOverride is the on-disk shape of a per-language adapter override:
// small per-language quirks (command, args, initialization options) that
// deployments want to tweak without recompiling, kept as pure data.
type AdapterOverride struct {
	Name                   string         `json:"name"`
	Command                string         `json:"command,omitempty"`
	Args                   []string       `json:"args,omitempty"`
	InitializationOptions  map[string]any `json:"initializationOptions,omitempty"`
	ExtraIgnoreDirs        []string       `json:"extraIgnoreDirs,omitempty"`
}

// LoadAdapterOverrides reads a JSONC file (comments and trailing commas
// allowed) of AdapterOverride entries keyed by language name. A missing
// file is not an error; it simply yields no overrides, since adapter
// overrides are an optional enrichment, not required configuration.
func LoadAdapterOverrides(path string) ([]AdapterOverride, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read adapter overrides %s: %w", path, err)
	}
	stripped := jsonc.ToJSON(raw)

	var overrides []AdapterOverride
	if err := json.Unmarshal(stripped, &overrides); err != nil {
		return nil, fmt.Errorf("parse adapter overrides %s: %w", path, err)
	}
	return overrides, nil
}

// ApplyOverrides merges overrides into langs by name, returning a new slice
// in the same order. An override for a name not present in langs is
// ignored; the registry only adjusts languages it already knows.
func ApplyOverrides(langs []Language, overrides []AdapterOverride) []Language {
	byName := make(map[string]AdapterOverride, len(overrides))
	for _, o := range overrides {
		byName[o.Name] = o
	}
	out := make([]Language, len(langs))
	for i, l := range langs {
		o, ok := byName[l.Name]
		if !ok {
			out[i] = l
			continue
		}
		if o.Command != "" {
			l.Command = o.Command
		}
		if len(o.Args) > 0 {
			l.Args = o.Args
		}
		if len(o.InitializationOptions) > 0 {
			merged := make(map[string]any, len(l.InitializationOptions)+len(o.InitializationOptions))
			for k, v := range l.InitializationOptions {
				merged[k] = v
			}
			for k, v := range o.InitializationOptions {
				merged[k] = v
			}
			l.InitializationOptions = merged
		}
		if len(o.ExtraIgnoreDirs) > 0 {
			l.IgnoreDirs = append(append([]string{}, l.IgnoreDirs...), o.ExtraIgnoreDirs...)
		}
		out[i] = l
	}
	return out
}
