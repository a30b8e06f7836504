package acl

import (
	"testing"

	"sentedit.dev/sentedit/errors"
)

func TestAddRejectsDuplicate(t *testing.T) {
	a := New(0)
	if err := a.Add("bob", Read); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := a.Add("bob", Read); !errors.Is(errors.Exist, err) {
		t.Fatalf("second Add = %v, want Exist", err)
	}
}

func TestAddOrUpgradeIdempotent(t *testing.T) {
	a := New(0)
	if err := a.AddOrUpgrade("bob", Read); err != nil {
		t.Fatalf("AddOrUpgrade: %v", err)
	}
	if err := a.AddOrUpgrade("bob", Read); err != nil {
		t.Fatalf("second AddOrUpgrade: %v", err)
	}
	if got := a.Entries(); len(got) != 1 {
		t.Fatalf("Entries = %v, want exactly one entry for bob", got)
	}
}

func TestRemoveRejectsUnknown(t *testing.T) {
	a := New(0)
	if err := a.Remove("nope"); !errors.Is(errors.NotFound, err) {
		t.Fatalf("Remove(unknown) = %v, want NotFound", err)
	}
}

func TestHasRespectsOwner(t *testing.T) {
	a := New(0)
	if !a.Has("alice", "alice", Write) {
		t.Fatal("owner should always have Write")
	}
	if a.Has("bob", "alice", Write) {
		t.Fatal("bob should not have Write before being granted")
	}
	a.Add("bob", Read)
	if a.Has("bob", "alice", Write) {
		t.Fatal("bob should not have Write after being granted only Read")
	}
	if !a.Has("bob", "alice", Read) {
		t.Fatal("bob should have Read")
	}
}

func TestCapacity(t *testing.T) {
	a := New(1)
	if err := a.Add("bob", Read); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := a.Add("carl", Read); !errors.Is(errors.InvalidParameters, err) {
		t.Fatalf("Add beyond capacity = %v, want InvalidParameters", err)
	}
}
