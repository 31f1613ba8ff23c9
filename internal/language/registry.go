package language

// Registry owns the set of configured languages for a project and performs
// file -> language routing, disambiguating overlapping filename patterns.
type Registry struct {
	// Order is the project-declared language order; the first language in
	// Order whose patterns match a path wins ties.
	Order []string

	// Primary, if non-empty, is preferred over Order for disambiguation
	// when the project declares a primary language among the matches.
	Primary string

	byName map[string]Language
}

// NewRegistry builds a Registry from an ordered list of languages. The
// first occurrence of a name wins if duplicated.
func NewRegistry(langs []Language) *Registry {
	r := &Registry{byName: make(map[string]Language, len(langs))}
	for _, l := range langs {
		if _, exists := r.byName[l.Name]; exists {
			continue
		}
		r.byName[l.Name] = l
		r.Order = append(r.Order, l.Name)
	}
	return r
}

// Lookup returns the Language registered under name.
func (r *Registry) Lookup(name string) (Language, bool) {
	l, ok := r.byName[name]
	return l, ok
}

// SetPrimary designates the project's primary language for disambiguation.
func (r *Registry) SetPrimary(name string) {
	r.Primary = name
}

// RouteError is returned by Route when no configured language matches path.
type RouteError struct {
	Path string
}

func (e *RouteError) Error() string { return "no configured language matches " + e.Path }

// Route maps a file basename to a Language:
//  1. case-insensitive suffix match against each configured language;
//  2. if several match, prefer Primary if it is among the matches, else
//     the first match in declared Order, else lexicographic by name;
//  3. if none match, return a *RouteError.
func (r *Registry) Route(basename string) (Language, error) {
	var matches []Language
	for _, name := range r.Order {
		l := r.byName[name]
		if l.Matches(basename) {
			matches = append(matches, l)
		}
	}
	if len(matches) == 0 {
		return Language{}, &RouteError{Path: basename}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	if r.Primary != "" {
		for _, m := range matches {
			if m.Name == r.Primary {
				return m, nil
			}
		}
	}
	// matches is already in declared Order, so the first configured
	// language wins; NewRegistry never builds a registry without a
	// meaningful Order.
	return matches[0], nil
}

// Languages returns all configured languages in declared order.
func (r *Registry) Languages() []Language {
	out := make([]Language, 0, len(r.Order))
	for _, name := range r.Order {
		out = append(out, r.byName[name])
	}
	return out
}

// DefaultLanguages returns the built-in adapter descriptors for the
// languages the gateway ships support for out of the box. Memory estimates
// are coarse defaults; deployments override them via gatewaycfg.
func DefaultLanguages() []Language {
	return []Language{
		{
			Name:       "go",
			Suffixes:   []string{".go"},
			IgnoreDirs: []string{"vendor", "node_modules", ".git"},
			Capabilities: CapWorkspaceSymbol | CapCallHierarchy | CapRename |
				CapTypeDefinition,
			Command:           "gopls",
			Args:              []string{"serve"},
			MemoryEstimateMiB: SizeEstimate{Small: 150, Medium: 400, Large: 900},
		},
		{
			Name:              "python",
			Suffixes:          []string{".py", ".pyi"},
			IgnoreDirs:        []string{"__pycache__", ".venv", "venv", "node_modules", ".git"},
			Capabilities:      CapWorkspaceSymbol | CapRename,
			Command:           "pyright-langserver",
			Args:              []string{"--stdio"},
			MemoryEstimateMiB: SizeEstimate{Small: 200, Medium: 500, Large: 1200},
		},
		{
			Name:       "typescript",
			Suffixes:   []string{".ts", ".tsx", ".js", ".jsx"},
			IgnoreDirs: []string{"node_modules", "dist", "build", ".git"},
			Capabilities: CapWorkspaceSymbol | CapCallHierarchy | CapRename |
				CapTypeDefinition,
			Command:           "typescript-language-server",
			Args:              []string{"--stdio"},
			MemoryEstimateMiB: SizeEstimate{Small: 250, Medium: 600, Large: 1400},
		},
		{
			Name:       "rust",
			Suffixes:   []string{".rs"},
			IgnoreDirs: []string{"target", "node_modules", ".git"},
			Capabilities: CapWorkspaceSymbol | CapCallHierarchy | CapRename |
				CapTypeDefinition,
			Command:           "rust-analyzer",
			MemoryEstimateMiB: SizeEstimate{Small: 300, Medium: 700, Large: 2000},
		},
		{
			Name:       "java",
			Suffixes:   []string{".java"},
			IgnoreDirs: []string{"target", "build", "node_modules", ".git"},
			Capabilities: CapWorkspaceSymbol | CapCallHierarchy | CapRename |
				CapTypeDefinition,
			Command:           "jdtls",
			MemoryEstimateMiB: SizeEstimate{Small: 400, Medium: 1000, Large: 2500},
		},
		{
			// .h is intentionally ambiguous with Objective-C / C++; a
			// project that wants unambiguous routing must declare a
			// Primary or list one of them first in Order.
			Name:              "c",
			Suffixes:          []string{".c", ".h"},
			IgnoreDirs:        []string{"build", "node_modules", ".git"},
			Capabilities:      CapWorkspaceSymbol,
			Command:           "clangd",
			MemoryEstimateMiB: SizeEstimate{Small: 150, Medium: 400, Large: 900},
		},
	}
}
