package errors

import "testing"

func TestErrorString(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{E(Op("Create"), "doc1", Exist), "Create: doc1: file exists"},
		{E(Op("Read"), "doc1", "u2", PermissionDenied), "Read: doc1, user u2: permission denied"},
		{E(Op("LockAcquire"), "doc1", Locked, Str("held by u1")), "LockAcquire: doc1: file locked: held by u1"},
	}
	for _, c := range cases {
		if got := c.err.Error(); got != c.want {
			t.Errorf("Error() = %q, want %q", got, c.want)
		}
	}
}

func TestNestedSuppressesDuplicates(t *testing.T) {
	inner := E(Op("readFile"), "doc1", Internal, Str("disk error"))
	outer := E(Op("Read"), "doc1", inner)
	e, ok := outer.(*Error)
	if !ok {
		t.Fatalf("outer is not *Error")
	}
	in, ok := e.Err.(*Error)
	if !ok {
		t.Fatalf("inner is not *Error")
	}
	if in.Filename != "" {
		t.Errorf("inner filename not suppressed: %q", in.Filename)
	}
	if e.Kind != Internal {
		t.Errorf("outer Kind = %v, want Internal (pulled up)", e.Kind)
	}
}

func TestIsAndKindOf(t *testing.T) {
	err := E(Op("Read"), "doc1", E(Op("stat"), NotFound))
	if !Is(NotFound, err) {
		t.Errorf("Is(NotFound, err) = false, want true")
	}
	if Is(Exist, err) {
		t.Errorf("Is(Exist, err) = true, want false")
	}
	if got := KindOf(err); got != NotFound {
		t.Errorf("KindOf(err) = %v, want NotFound", got)
	}
	if got := KindOf(Str("plain")); got != Other {
		t.Errorf("KindOf(plain) = %v, want Other", got)
	}
}

func TestMatch(t *testing.T) {
	got := E(Op("Read"), "doc1", "u2", Locked, Str("boom"))
	expect := &Error{Identity: "u2", Kind: Locked}
	if !Match(expect, got) {
		t.Errorf("Match(%v, %v) = false, want true", expect, got)
	}
	mismatch := E(Op("Read"), "doc1", "u2", Exist, Str("boom"))
	if Match(expect, mismatch) {
		t.Errorf("Match(%v, %v) = true, want false", expect, mismatch)
	}
}
