package symbol

import "testing"

func TestParseNamePath(t *testing.T) {
	cases := []struct {
		raw         string
		rooted      bool
		requireKids bool
		components  []string
	}{
		{"/Calculator/multiply", true, false, []string{"Calculator", "multiply"}},
		{"Calculator/", false, true, []string{"Calculator"}},
		{"User", false, false, []string{"User"}},
		{"/A/B/", true, true, []string{"A", "B"}},
	}
	for _, c := range cases {
		np := ParseNamePath(c.raw)
		if np.Rooted != c.rooted || np.RequireKids != c.requireKids {
			t.Fatalf("%q: got rooted=%v requireKids=%v", c.raw, np.Rooted, np.RequireKids)
		}
		if len(np.Components) != len(c.components) {
			t.Fatalf("%q: got components %v", c.raw, np.Components)
		}
		for i := range c.components {
			if np.Components[i] != c.components[i] {
				t.Fatalf("%q: component %d = %q, want %q", c.raw, i, np.Components[i], c.components[i])
			}
		}
	}
}

func TestNamePathMatchRooted(t *testing.T) {
	add := &Symbol{Name: "add", Kind: KindMethod}
	np := ParseNamePath("/Calc/add")
	if !np.Match(add, []string{"Calc"}, MatchExact) {
		t.Fatal("expected rooted match at exact depth")
	}
	if np.Match(add, []string{"Outer", "Calc"}, MatchExact) {
		t.Fatal("rooted pattern must not match at a deeper nesting")
	}
}

func TestNamePathMatchUnrootedAnyDepth(t *testing.T) {
	user := &Symbol{Name: "User", Kind: KindClass}
	np := ParseNamePath("User")
	if !np.Match(user, nil, MatchExact) {
		t.Fatal("expected top-level match")
	}
	if !np.Match(user, []string{"models", "auth"}, MatchExact) {
		t.Fatal("expected deep match for unrooted pattern")
	}
}

func TestNamePathTrailingSlashRequiresChildren(t *testing.T) {
	withKids := &Symbol{Name: "Calc", Kind: KindClass, Children: []*Symbol{{Name: "add"}}}
	withoutKids := &Symbol{Name: "Calc", Kind: KindClass}
	np := ParseNamePath("Calc/")
	if !np.Match(withKids, nil, MatchExact) {
		t.Fatal("expected match for symbol with children")
	}
	if np.Match(withoutKids, nil, MatchExact) {
		t.Fatal("expected no match for symbol without children")
	}
}

func TestNamePathSubstringMatch(t *testing.T) {
	sym := &Symbol{Name: "UserService", Kind: KindClass}
	np := ParseNamePath("Service")
	if np.Match(sym, nil, MatchExact) {
		t.Fatal("exact mode must not substring-match")
	}
	if !np.Match(sym, nil, MatchSubstring) {
		t.Fatal("substring mode should match")
	}
}
