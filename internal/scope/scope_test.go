package scope

import "testing"

func TestParentMapInsertAndLookup(t *testing.T) {
	pm := NewParentMap()
	child := New()
	pm.Insert(child, ROOT, true)

	parent, ok := pm.Lookup(child)
	if !ok || parent != ROOT {
		t.Fatalf("expected parent=ROOT ok=true, got parent=%v ok=%v", parent, ok)
	}

	if _, ok := pm.Lookup(New()); ok {
		t.Fatalf("unknown scope should have no parent recorded")
	}
}

func TestParentMapInsertTwiceIsAProgrammerError(t *testing.T) {
	pm := NewParentMap()
	child := New()
	pm.Insert(child, ROOT, true)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on duplicate insert")
		}
	}()
	pm.Insert(child, ROOT, true)
}

func TestAncestorsWalksToRoot(t *testing.T) {
	pm := NewParentMap()
	a := New()
	b := New()
	pm.Insert(a, ROOT, true)
	pm.Insert(b, a, true)

	chain := pm.Ancestors(b)
	if len(chain) != 2 || chain[0] != a || chain[1] != ROOT {
		t.Fatalf("unexpected ancestor chain: %v", chain)
	}
}

func TestMembershipSetAndHas(t *testing.T) {
	m := NewMembership()
	s := New()
	m.Set(s, []string{"assistant-1", "tool-read_file"})

	if !m.Has(s, "assistant-1") {
		t.Fatal("expected assistant-1 to be a member")
	}
	if m.Has(s, "tool-unknown") {
		t.Fatal("did not expect tool-unknown to be a member")
	}
	if m.Known(New()) {
		t.Fatal("a fresh scope should not be known")
	}
	if !m.Known(s) {
		t.Fatal("expected s to be known after Set")
	}
}
