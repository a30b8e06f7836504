// Package acl implements the per-file access control list described
// in spec.md §3 and §4.7: a small, owner-managed set of (identity,
// permission) pairs. The owner is never stored in the list; it
// implicitly holds both permissions.
package acl

import "sentedit.dev/sentedit/errors"

// Permission is a right an identity may hold over a file.
type Permission int

// Permissions.
const (
	Read Permission = 1 << iota
	Write
)

// DefaultCapacity bounds the number of entries an ACL will hold,
// overridable via flags.MaxACLEntries. See SPEC_FULL.md §12.
const DefaultCapacity = 32

// ACL is an owner-managed set of (identity, permission) pairs.
// Construct one with New: the zero value has a capacity of 0, so Add
// and AddOrUpgrade on it fail with InvalidParameters.
type ACL struct {
	capacity int
	entries  map[string]Permission
}

// New returns an empty ACL with the given capacity. A capacity of 0
// uses DefaultCapacity.
func New(capacity int) *ACL {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ACL{capacity: capacity, entries: make(map[string]Permission)}
}

// Add grants perm to identity. It fails with Exist if identity is
// already present (spec.md §4.7: "AddAccess rejects duplicates") and
// with InvalidParameters if the ACL is already at capacity.
func (a *ACL) Add(identity string, perm Permission) error {
	const op = errors.Op("acl.Add")
	if _, ok := a.entries[identity]; ok {
		return errors.E(op, identity, errors.Exist)
	}
	if len(a.entries) >= a.capacity {
		return errors.E(op, identity, errors.InvalidParameters, errors.Str("ACL at capacity"))
	}
	a.entries[identity] = perm
	return nil
}

// AddOrUpgrade grants perm to identity, adding the permission to any
// bits the identity already holds rather than failing if the identity
// is already present. This is what the access-request approval
// workflow uses (spec.md §4.6), since re-running an approval must be
// idempotent rather than erroring on an existing grant.
func (a *ACL) AddOrUpgrade(identity string, perm Permission) error {
	const op = errors.Op("acl.AddOrUpgrade")
	if existing, ok := a.entries[identity]; ok {
		a.entries[identity] = existing | perm
		return nil
	}
	if len(a.entries) >= a.capacity {
		return errors.E(op, identity, errors.InvalidParameters, errors.Str("ACL at capacity"))
	}
	a.entries[identity] = perm
	return nil
}

// Remove revokes all permissions for identity. It fails with
// NotFound if identity is not present (spec.md §4.7: "RemAccess
// rejects unknown targets").
func (a *ACL) Remove(identity string) error {
	if _, ok := a.entries[identity]; !ok {
		return errors.E(errors.Op("acl.Remove"), identity, errors.NotFound)
	}
	delete(a.entries, identity)
	return nil
}

// Has reports whether identity holds perm, either directly or because
// owner equals identity (the owner is never stored in the list but
// implicitly holds both permissions).
func (a *ACL) Has(identity string, owner string, perm Permission) bool {
	if identity == owner {
		return true
	}
	return a.entries[identity]&perm == perm
}

// Contains reports whether identity has any entry in the ACL,
// irrespective of which permissions it holds.
func (a *ACL) Contains(identity string) bool {
	_, ok := a.entries[identity]
	return ok
}

// Entry is one (identity, permission) pair, used for listing.
type Entry struct {
	Identity string
	Perm     Permission
}

// Entries returns a snapshot of the ACL's entries in unspecified
// order; callers that need deterministic output sort by Identity
// themselves (see storagenode.Server.Info).
func (a *ACL) Entries() []Entry {
	out := make([]Entry, 0, len(a.entries))
	for id, p := range a.entries {
		out = append(out, Entry{Identity: id, Perm: p})
	}
	return out
}

// String renders a permission as "R", "W", or "RW".
func (p Permission) String() string {
	s := ""
	if p&Read != 0 {
		s += "R"
	}
	if p&Write != 0 {
		s += "W"
	}
	return s
}
