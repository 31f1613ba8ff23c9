package symbol

import (
	"encoding/json"
	"testing"
)

// TestBuildTreeHierarchical: a single Python file with a class containing
// one method, reported hierarchically.
func TestBuildTreeHierarchical(t *testing.T) {
	raw := json.RawMessage(`[
		{
			"name": "Calc",
			"kind": 5,
			"range": {"start": {"line": 0, "character": 0}, "end": {"line": 2, "character": 20}},
			"selectionRange": {"start": {"line": 0, "character": 6}, "end": {"line": 0, "character": 10}},
			"children": [
				{
					"name": "add",
					"kind": 6,
					"range": {"start": {"line": 1, "character": 4}, "end": {"line": 2, "character": 20}},
					"selectionRange": {"start": {"line": 1, "character": 8}, "end": {"line": 1, "character": 11}}
				}
			]
		}
	]`)

	result, err := BuildTree(raw, "file:///calc.py", "calc.py", Range{End: Position{Line: 3, Character: 0}})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	root := result.Root
	if root.Kind != KindFile || root.Name != "calc.py" {
		t.Fatalf("unexpected root: %+v", root)
	}
	if len(root.Children) != 1 || root.Children[0].Name != "Calc" {
		t.Fatalf("expected single Calc child, got %+v", root.Children)
	}
	calc := root.Children[0]
	if calc.Kind != KindClass {
		t.Fatalf("expected Calc to be KindClass, got %v", calc.Kind)
	}
	if calc.NamePath != "Calc" {
		t.Fatalf("expected Calc namepath 'Calc', got %q", calc.NamePath)
	}
	if len(calc.Children) != 1 || calc.Children[0].Name != "add" {
		t.Fatalf("expected Calc to have one child add, got %+v", calc.Children)
	}
	add := calc.Children[0]
	if add.Kind != KindMethod {
		t.Fatalf("expected add to be KindMethod, got %v", add.Kind)
	}
	if add.NamePath != "Calc/add" {
		t.Fatalf("expected add namepath 'Calc/add', got %q", add.NamePath)
	}
	if add.ParentPath != "Calc" {
		t.Fatalf("expected add parentPath 'Calc', got %q", add.ParentPath)
	}
}

// TestBuildTreePromotesFlatSymbolInformation: a flat SymbolInformation[]
// response is promoted to a hierarchy by range containment.
func TestBuildTreePromotesFlatSymbolInformation(t *testing.T) {
	raw := json.RawMessage(`[
		{
			"name": "add",
			"kind": 6,
			"location": {"uri": "file:///calc.py", "range": {"start": {"line": 1, "character": 4}, "end": {"line": 2, "character": 20}}}
		},
		{
			"name": "Calc",
			"kind": 5,
			"location": {"uri": "file:///calc.py", "range": {"start": {"line": 0, "character": 0}, "end": {"line": 2, "character": 20}}}
		}
	]`)

	result, err := BuildTree(raw, "file:///calc.py", "calc.py", Range{End: Position{Line: 3, Character: 0}})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	root := result.Root
	if len(root.Children) != 1 || root.Children[0].Name != "Calc" {
		t.Fatalf("expected Calc promoted to root, got %+v", root.Children)
	}
	if len(root.Children[0].Children) != 1 || root.Children[0].Children[0].Name != "add" {
		t.Fatalf("expected add nested under Calc after promotion, got %+v", root.Children[0].Children)
	}
}

func TestBuildTreeOverlapResolution(t *testing.T) {
	// Two siblings reported at the same level whose ranges overlap: the
	// larger one should win and the smaller should be dropped with a
	// warning.
	raw := json.RawMessage(`[
		{
			"name": "Big",
			"kind": 5,
			"range": {"start": {"line": 0, "character": 0}, "end": {"line": 5, "character": 0}},
			"selectionRange": {"start": {"line": 0, "character": 0}, "end": {"line": 0, "character": 3}}
		},
		{
			"name": "Overlapping",
			"kind": 5,
			"range": {"start": {"line": 3, "character": 0}, "end": {"line": 4, "character": 0}},
			"selectionRange": {"start": {"line": 3, "character": 0}, "end": {"line": 3, "character": 3}}
		}
	]`)
	result, err := BuildTree(raw, "file:///x.go", "x.go", Range{End: Position{Line: 6, Character: 0}})
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if len(result.Root.Children) != 1 || result.Root.Children[0].Name != "Big" {
		t.Fatalf("expected only Big to survive, got %+v", result.Root.Children)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected an overlap warning to be logged")
	}
}
