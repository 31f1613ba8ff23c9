package toolschema

import (
	"encoding/json"
	"testing"
)

func TestValidateAcceptsWellFormedArguments(t *testing.T) {
	cases := []struct {
		name string
		args string
	}{
		{GetSymbolsOverview, `{"relative_path": "main.go"}`},
		{FindSymbol, `{"name_path": "Foo/Bar"}`},
		{FindReferencingSymbols, `{"name_path": "Foo", "relative_path": "a.go", "context_mode": "full"}`},
		{ReplaceSymbolBody, `{"name_path": "Foo", "relative_path": "a.go", "body": "func Foo() {}"}`},
		{InsertBeforeSymbol, `{"name_path": "Foo", "relative_path": "a.go", "body": "// x\n"}`},
		{InsertAfterSymbol, `{"name_path": "Foo", "relative_path": "a.go", "body": "// x\n"}`},
		{RenameSymbol, `{"name_path": "Foo", "relative_path": "a.go", "new_name": "Bar"}`},
		{SearchForPattern, `{"pattern": "TODO"}`},
		{GetCallHierarchyIncoming, `{"name_path": "Foo", "relative_path": "a.go", "max_depth": 2}`},
		{GetCallHierarchyOutgoing, `{"name_path": "Foo", "relative_path": "a.go", "max_depth": 2}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Validate(tc.name, json.RawMessage(tc.args)); err != nil {
				t.Fatalf("Validate(%s): %v", tc.name, err)
			}
		})
	}
}

func TestValidateRejectsMissingRequiredField(t *testing.T) {
	err := Validate(ReplaceSymbolBody, json.RawMessage(`{"name_path": "Foo"}`))
	if err == nil {
		t.Fatal("expected a validation error for a missing required field")
	}
}

func TestValidateRejectsUnknownProperty(t *testing.T) {
	err := Validate(SearchForPattern, json.RawMessage(`{"pattern": "TODO", "bogus": 1}`))
	if err == nil {
		t.Fatal("expected a validation error for an unexpected property")
	}
}

func TestValidateRejectsWrongType(t *testing.T) {
	err := Validate(GetCallHierarchyIncoming, json.RawMessage(`{"name_path": "Foo", "relative_path": "a.go", "max_depth": "two"}`))
	if err == nil {
		t.Fatal("expected a validation error for a max_depth of the wrong type")
	}
}

func TestValidateUnknownOperation(t *testing.T) {
	if err := Validate("not_a_real_tool", json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected an error for an unknown operation name")
	}
}
