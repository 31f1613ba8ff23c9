package symbol

import "strings"

// NamePath is a parsed name-path pattern: a '/'-separated sequence of
// components, optionally rooted (leading '/') and optionally requiring the
// final match to have children (trailing '/').
type NamePath struct {
	Rooted      bool
	RequireKids bool
	Components  []string
}

// MatchMode controls how a single component compares against a symbol
// name.
type MatchMode int

const (
	MatchExact MatchMode = iota
	MatchSubstring
)

// ParseNamePath parses a raw name-path string like "/Calculator/multiply"
// or "Calculator/" or "User" into its structural parts.
func ParseNamePath(raw string) NamePath {
	np := NamePath{}
	s := raw
	if strings.HasPrefix(s, "/") {
		np.Rooted = true
		s = s[1:]
	}
	if strings.HasSuffix(s, "/") && len(s) > 0 {
		np.RequireKids = true
		s = s[:len(s)-1]
	}
	if s == "" {
		return np
	}
	np.Components = strings.Split(s, "/")
	return np
}

// componentMatches compares a single name-path component against a
// symbol's name under the given match mode.
func componentMatches(component, name string, mode MatchMode) bool {
	if mode == MatchSubstring {
		return strings.Contains(strings.ToLower(name), strings.ToLower(component))
	}
	return component == name
}

// Match reports whether sym, found at the given ancestor chain of names
// (from the file root's children down to sym's own parent, sym itself
// excluded), satisfies np under mode.
//
// Matching rules:
//   - a rooted pattern ("/A/B") must match starting at the File root's
//     direct children, i.e. ancestors+[sym.Name] must be exactly
//     len(Components) long and match the components in order;
//   - an unrooted pattern ("A/B") matches at any depth: the last
//     len(Components) elements of ancestors+[sym.Name] must match the
//     pattern's components in order;
//   - a trailing-slash pattern additionally requires sym.HasChildren().
func (np NamePath) Match(sym *Symbol, ancestors []string, mode MatchMode) bool {
	if len(np.Components) == 0 {
		return false
	}
	if np.RequireKids && !sym.HasChildren() {
		return false
	}
	chain := append(append([]string{}, ancestors...), sym.Name)

	if np.Rooted {
		if len(chain) != len(np.Components) {
			return false
		}
		return matchChain(np.Components, chain, mode)
	}

	if len(chain) < len(np.Components) {
		return false
	}
	tail := chain[len(chain)-len(np.Components):]
	return matchChain(np.Components, tail, mode)
}

func matchChain(components, chain []string, mode MatchMode) bool {
	for i, c := range components {
		if !componentMatches(c, chain[i], mode) {
			return false
		}
	}
	return true
}

// String reconstructs the textual form of the name path, useful for
// error messages (e.g. AmbiguousNamePath candidate lists).
func (np NamePath) String() string {
	var b strings.Builder
	if np.Rooted {
		b.WriteByte('/')
	}
	b.WriteString(strings.Join(np.Components, "/"))
	if np.RequireKids {
		b.WriteByte('/')
	}
	return b.String()
}
