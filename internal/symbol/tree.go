package symbol

import (
	"encoding/json"
	"fmt"
	"sort"
)

// BuildResult is the outcome of constructing a file's symbol tree: the
// File root plus any warnings logged during overlap resolution.
type BuildResult struct {
	Root     *Symbol
	Warnings []string
}

// BuildTree constructs the File-rooted symbol tree for one file from a raw
// textDocument/documentSymbol response body. relPath is the file's
// project-relative path, used as the File symbol's Name; uri is its LSP
// document URI; fileRange spans the whole file (end line/char of its
// content) used for the synthetic root's Location.
func BuildTree(raw json.RawMessage, uri, relPath string, fileRange Range) (*BuildResult, error) {
	hier, flat, isFlat, err := decodeDocumentSymbolResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("decode documentSymbol response: %w", err)
	}

	root := &Symbol{
		Name:     relPath,
		Kind:     KindFile,
		Location: Location{URI: uri, Range: fileRange},
		SelectionRange: fileRange,
		NamePath: "",
	}

	result := &BuildResult{Root: root}

	if isFlat {
		children := promoteFlatToHierarchy(flat, uri, result)
		result.attachChildren(root, children, "")
		return result, nil
	}

	children := make([]*Symbol, 0, len(hier))
	for _, h := range hier {
		children = append(children, fromHierarchical(h, uri))
	}
	sortByStart(children)
	result.attachChildren(root, children, "")
	return result, nil
}

func fromHierarchical(h hierarchicalSymbol, uri string) *Symbol {
	s := &Symbol{
		Name:           h.Name,
		Kind:           FromLSPSymbolKind(h.Kind),
		Location:       Location{URI: uri, Range: toRange(h.Range)},
		SelectionRange: toRange(h.SelectionRange),
	}
	children := make([]*Symbol, 0, len(h.Children))
	for _, c := range h.Children {
		children = append(children, fromHierarchical(c, uri))
	}
	sortByStart(children)
	s.Children = children
	return s
}

func toRange(r wireRange) Range {
	return Range{
		Start: Position{Line: r.Start.Line, Character: r.Start.Character},
		End:   Position{Line: r.End.Line, Character: r.End.Character},
	}
}

func sortByStart(syms []*Symbol) {
	sort.SliceStable(syms, func(i, j int) bool {
		return syms[i].Location.Range.Before(syms[j].Location.Range)
	})
}

// promoteFlatToHierarchy sorts a flat SymbolInformation list by start
// position and assigns each symbol as a child of the innermost preceding
// symbol whose range strictly contains it, using a stack of open ranges.
func promoteFlatToHierarchy(flat []flatSymbol, uri string, result *BuildResult) []*Symbol {
	syms := make([]*Symbol, len(flat))
	for i, f := range flat {
		syms[i] = &Symbol{
			Name:           f.Name,
			Kind:           FromLSPSymbolKind(f.Kind),
			Location:       Location{URI: uri, Range: toRange(f.Location.Range)},
			SelectionRange: toRange(f.Location.Range),
		}
	}
	sortByStart(syms)

	var roots []*Symbol
	var stack []*Symbol // open ancestors, outermost first
	for _, s := range syms {
		for len(stack) > 0 && !stack[len(stack)-1].Location.Range.StrictlyContains(s.Location.Range) {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, s)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, s)
		}
		stack = append(stack, s)
	}
	return roots
}

// attachChildren assigns NamePath/ParentPath recursively and validates the
// non-overlap and containment invariants, resolving
// violations by preferring the larger range as parent and dropping the
// conflicting smaller sibling with a logged warning.
func (result *BuildResult) attachChildren(parent *Symbol, children []*Symbol, parentPath string) {
	kept := make([]*Symbol, 0, len(children))
	var prevEnd *Position
	for _, c := range children {
		if prevEnd != nil && comparePos(c.Location.Range.Start, *prevEnd) < 0 {
			// Overlaps the previous sibling: keep whichever has the larger
			// range, drop the other.
			last := kept[len(kept)-1]
			if rangeSize(c.Location.Range) > rangeSize(last.Location.Range) {
				result.Warnings = append(result.Warnings, fmt.Sprintf(
					"symbol %q overlaps preceding sibling %q; dropping %q", c.Name, last.Name, last.Name))
				kept[len(kept)-1] = c
			} else {
				result.Warnings = append(result.Warnings, fmt.Sprintf(
					"symbol %q overlaps preceding sibling %q; dropping %q", c.Name, last.Name, c.Name))
			}
			continue
		}
		kept = append(kept, c)
		end := c.Location.Range.End
		prevEnd = &end
	}

	parent.Children = kept
	for _, c := range kept {
		c.ParentPath = parentPath
		c.NamePath = joinPath(parentPath, c.Name)
		result.attachChildren(c, c.Children, c.NamePath)
	}
}

func rangeSize(r Range) int {
	lines := r.End.Line - r.Start.Line
	return lines*1_000_000 + (r.End.Character - r.Start.Character)
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
