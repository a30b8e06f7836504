package namenode

import (
	"testing"

	"sentedit.dev/sentedit/errors"
)

func TestRequestAccessThenApproveGrantsOnce(t *testing.T) {
	r := newTestRegistryWithFile(t, "doc.txt", "alice")
	if err := r.RequestAccess("doc.txt", "bob"); err != nil {
		t.Fatalf("RequestAccess: %v", err)
	}
	reqs := r.ViewRequests("alice")
	if len(reqs) != 1 || reqs[0].Requester != "bob" {
		t.Fatalf("ViewRequests = %+v, want one pending request from bob", reqs)
	}

	if _, err := r.ApproveRequest("doc.txt", "bob", "alice"); err != nil {
		t.Fatalf("ApproveRequest: %v", err)
	}
	if reqs := r.ViewRequests("alice"); len(reqs) != 0 {
		t.Fatalf("ViewRequests after approval = %+v, want none pending", reqs)
	}
}

func TestApproveRequestIsIdempotent(t *testing.T) {
	r := newTestRegistryWithFile(t, "doc.txt", "alice")
	r.RequestAccess("doc.txt", "bob")
	if _, err := r.ApproveRequest("doc.txt", "bob", "alice"); err != nil {
		t.Fatalf("first ApproveRequest: %v", err)
	}
	if _, err := r.ApproveRequest("doc.txt", "bob", "alice"); err != nil {
		t.Fatalf("second ApproveRequest should also succeed, got %v", err)
	}
}

func TestDenyRequestAfterApprovalIsNotFound(t *testing.T) {
	r := newTestRegistryWithFile(t, "doc.txt", "alice")
	r.RequestAccess("doc.txt", "bob")
	if _, err := r.ApproveRequest("doc.txt", "bob", "alice"); err != nil {
		t.Fatalf("ApproveRequest: %v", err)
	}
	err := r.DenyRequest("doc.txt", "bob", "alice")
	if !errors.Is(errors.NotFound, err) {
		t.Fatalf("DenyRequest after approval = %v, want NotFound", err)
	}
}

func TestDenyRequestResolvesPendingRequest(t *testing.T) {
	r := newTestRegistryWithFile(t, "doc.txt", "alice")
	r.RequestAccess("doc.txt", "bob")
	if err := r.DenyRequest("doc.txt", "bob", "alice"); err != nil {
		t.Fatalf("DenyRequest: %v", err)
	}
	if reqs := r.ViewRequests("alice"); len(reqs) != 0 {
		t.Fatalf("ViewRequests after deny = %+v, want none pending", reqs)
	}
	// Denying again fails: the request is resolved, not pending.
	if err := r.DenyRequest("doc.txt", "bob", "alice"); !errors.Is(errors.NotFound, err) {
		t.Fatalf("second DenyRequest = %v, want NotFound", err)
	}
}

func TestApproveRequestRejectsNonOwnerCaller(t *testing.T) {
	r := newTestRegistryWithFile(t, "doc.txt", "alice")
	r.RequestAccess("doc.txt", "bob")
	_, err := r.ApproveRequest("doc.txt", "bob", "carol")
	if !errors.Is(errors.Unauthorized, err) {
		t.Fatalf("ApproveRequest by non-owner = %v, want Unauthorized", err)
	}
}

func TestRequestAccessUnknownFileIsNotFound(t *testing.T) {
	r := NewRegistry(10)
	err := r.RequestAccess("ghost.txt", "bob")
	if !errors.Is(errors.NotFound, err) {
		t.Fatalf("RequestAccess on unknown file = %v, want NotFound", err)
	}
}
