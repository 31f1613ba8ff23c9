package symbol

// MaxLookupResults bounds any single lookup's materialized result buffer,
// so a pathological query cannot hold unbounded memory.
const MaxLookupResults = 1000

// KindFilter narrows a lookup to include/exclude specific kinds. A nil or
// empty Include means "all kinds"; Exclude always applies after Include.
type KindFilter struct {
	Include []Kind
	Exclude []Kind
}

func (f KindFilter) allows(k Kind) bool {
	if len(f.Include) > 0 {
		found := false
		for _, inc := range f.Include {
			if inc == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, exc := range f.Exclude {
		if exc == k {
			return false
		}
	}
	return true
}

// FindInTree walks root in source order (depth-first, children already in
// start-position order from BuildTree) and returns every Symbol whose
// position in the tree matches np under mode and passes filter. Truncates
// at MaxLookupResults.
func FindInTree(root *Symbol, np NamePath, mode MatchMode, filter KindFilter) []*Symbol {
	var out []*Symbol
	walk(root, nil, func(sym *Symbol, ancestors []string) bool {
		if sym.Kind != KindFile && np.Match(sym, ancestors, mode) && filter.allows(sym.Kind) {
			out = append(out, sym)
		}
		return len(out) < MaxLookupResults
	})
	return out
}

// walk performs a depth-first, source-order traversal of the tree rooted
// at sym, invoking visit(sym, ancestorNames) for every node including the
// File root itself (ancestors is empty for the root's direct children).
// visit returns false to stop the traversal early.
func walk(sym *Symbol, ancestors []string, visit func(*Symbol, []string) bool) bool {
	if !visit(sym, ancestors) {
		return false
	}
	childAncestors := ancestors
	if sym.Kind != KindFile {
		childAncestors = append(append([]string{}, ancestors...), sym.Name)
	}
	for _, c := range sym.Children {
		if !walk(c, childAncestors, visit) {
			return false
		}
	}
	return true
}

// Overview returns root's children up to depth levels deep (depth=1 means
// only root's direct children, matching get_symbols_overview's default),
// or the full tree if depth <= 0.
func Overview(root *Symbol, depth int) []*Symbol {
	var collect func(sym *Symbol, remaining int) *Symbol
	collect = func(sym *Symbol, remaining int) *Symbol {
		clone := *sym
		if remaining == 0 {
			clone.Children = nil
			return &clone
		}
		next := remaining - 1
		if remaining < 0 {
			next = remaining
		}
		clone.Children = make([]*Symbol, len(sym.Children))
		for i, c := range sym.Children {
			clone.Children[i] = collect(c, next)
		}
		return &clone
	}
	start := depth
	if depth > 0 {
		start = depth
	}
	out := make([]*Symbol, len(root.Children))
	for i, c := range root.Children {
		out[i] = collect(c, start-1)
	}
	return out
}
