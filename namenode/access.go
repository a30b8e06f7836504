package namenode

import (
	"time"

	"sentedit.dev/sentedit/errors"
)

// requestKey is the composite key of the access-request table: a
// (filename, requester) pair (spec.md §3, §4.6).
type requestKey struct {
	filename  string
	requester string
}

// AccessRequest tracks one pending or resolved request for access to
// a file not owned by the requester.
type AccessRequest struct {
	Filename    string
	Requester   string
	Owner       string
	RequestedAt time.Time
	Pending     bool
}

// RequestAccess creates a pending AccessRequest for (filename,
// requester), recording the file's current owner. It fails with
// NotFound if the file does not exist.
func (r *Registry) RequestAccess(filename, requester string) error {
	const op = errors.Op("namenode.RequestAccess")
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.files[filename]
	if !ok {
		return errors.E(op, filename, errors.NotFound)
	}
	key := requestKey{filename, requester}
	r.reqs[key] = &AccessRequest{
		Filename:    filename,
		Requester:   requester,
		Owner:       rec.Owner,
		RequestedAt: r.now(),
		Pending:     true,
	}
	return nil
}

// ViewRequests returns every pending AccessRequest whose owner equals
// caller, per spec.md §4.6.
func (r *Registry) ViewRequests(caller string) []AccessRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AccessRequest
	for _, req := range r.reqs {
		if req.Pending && req.Owner == caller {
			out = append(out, *req)
		}
	}
	return out
}

// findRequest finds the request for (filename, requester) and
// verifies caller is its owner, without regard to whether it is still
// pending. Callers must hold r.mu.
func (r *Registry) findRequest(op errors.Op, filename, requester, caller string) (*AccessRequest, error) {
	key := requestKey{filename, requester}
	req, ok := r.reqs[key]
	if !ok {
		return nil, errors.E(op, filename, errors.NotFound, errors.Str("no such request"))
	}
	if req.Owner != caller {
		return nil, errors.E(op, filename, caller, errors.Unauthorized)
	}
	return req, nil
}

// ApproveRequest marks the request for (filename, requester) as
// resolved and returns the file's home Storage Node so the caller can
// add requester to its ACL with read permission, per spec.md §4.6.
// Approval is idempotent on the Name Node side (spec.md §4.6, §8):
// approving an already-approved request succeeds again, relying on
// the Storage Node's ACL.AddOrUpgrade to avoid a duplicate grant.
func (r *Registry) ApproveRequest(filename, requester, caller string) (StorageNodeRecord, error) {
	const op = errors.Op("namenode.ApproveRequest")
	r.mu.Lock()
	defer r.mu.Unlock()

	req, err := r.findRequest(op, filename, requester, caller)
	if err != nil {
		return StorageNodeRecord{}, err
	}
	rec, ok := r.files[filename]
	if !ok {
		return StorageNodeRecord{}, errors.E(op, filename, errors.NotFound)
	}
	node, ok := r.nodes[rec.HomeSS]
	if !ok || !node.Connected {
		return StorageNodeRecord{}, errors.E(op, filename, errors.Unavailable)
	}
	req.Pending = false
	return *node, nil
}

// DenyRequest marks a still-pending request for (filename, requester)
// as resolved with no ACL effect, per spec.md §4.6. Denying a request
// that has already been approved or denied fails with NotFound
// ("request not found"), matching spec.md's scenario S4.
func (r *Registry) DenyRequest(filename, requester, caller string) error {
	const op = errors.Op("namenode.DenyRequest")
	r.mu.Lock()
	defer r.mu.Unlock()

	req, err := r.findRequest(op, filename, requester, caller)
	if err != nil {
		return err
	}
	if !req.Pending {
		return errors.E(op, filename, errors.NotFound, errors.Str("request not found"))
	}
	req.Pending = false
	return nil
}
