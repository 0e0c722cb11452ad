package sandbox

import "testing"

func TestInsertAndGetRoundTrips(t *testing.T) {
	tbl := NewResourceTable()
	h := tbl.Insert("hello")
	got, err := tbl.Get(h)
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello" {
		t.Fatalf("got %v", got)
	}
}

func TestReplaceInvalidatesOldHandle(t *testing.T) {
	tbl := NewResourceTable()
	h1 := tbl.Insert("v1")
	h2, err := tbl.Replace(h1, "v2")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Get(h1); err != ErrProtocolViolation {
		t.Fatalf("expected ErrProtocolViolation reusing the old handle, got %v", err)
	}
	got, err := tbl.Get(h2)
	if err != nil || got != "v2" {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestConsumeThenReuseSlotGetsFreshGeneration(t *testing.T) {
	tbl := NewResourceTable()
	h1 := tbl.Insert("first")
	if err := tbl.Consume(h1); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Get(h1); err != ErrProtocolViolation {
		t.Fatalf("expected ErrProtocolViolation after consume, got %v", err)
	}

	h2 := tbl.Insert("second")
	if h2.Index != h1.Index {
		t.Fatalf("expected the freed slot to be reused, got index %d vs %d", h2.Index, h1.Index)
	}
	if h2.Gen == h1.Gen {
		t.Fatal("expected a bumped generation on slot reuse")
	}
}

func TestDoubleConsumeIsProtocolViolation(t *testing.T) {
	tbl := NewResourceTable()
	h := tbl.Insert("x")
	if err := tbl.Consume(h); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Consume(h); err != ErrProtocolViolation {
		t.Fatalf("expected ErrProtocolViolation on double consume, got %v", err)
	}
}
