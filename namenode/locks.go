package namenode

import (
	"time"

	"sentedit.dev/sentedit/errors"
)

// lockKey is the composite key of the sentence-lock table: a
// (filename, sentence-index) pair (spec.md §3, §4.4).
type lockKey struct {
	filename string
	index    int
}

// SentenceLock is a single reservation in the lock table.
type SentenceLock struct {
	Filename string
	Index    int
	Holder   string
	AcquiredAt time.Time
}

// LockAcquire attempts to acquire the sentence lock (filename, idx)
// on behalf of holder, per spec.md §4.4:
//
//   - the file must exist;
//   - if no lock entry exists, one is created and the call succeeds,
//     returning the home Storage Node's address so the caller can
//     proceed directly to a commit;
//   - if a lock entry exists and is already held by holder, the call
//     succeeds as a no-op (idempotent re-entry; the timestamp is not
//     renewed);
//   - if a lock entry exists and is held by someone else, the call
//     fails with Locked.
func (r *Registry) LockAcquire(holder, filename string, index int) (StorageNodeRecord, error) {
	const op = errors.Op("namenode.LockAcquire")
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.files[filename]
	if !ok {
		return StorageNodeRecord{}, errors.E(op, filename, errors.NotFound)
	}

	key := lockKey{filename, index}
	if existing, ok := r.locks[key]; ok {
		if existing.Holder != holder {
			return StorageNodeRecord{}, errors.E(op, filename, holder, errors.Locked)
		}
		// Idempotent re-acquisition: succeed without renewing AcquiredAt.
	} else {
		r.locks[key] = &SentenceLock{
			Filename:   filename,
			Index:      index,
			Holder:     holder,
			AcquiredAt: r.now(),
		}
	}

	node, ok := r.nodes[rec.HomeSS]
	if !ok || !node.Connected {
		return StorageNodeRecord{}, errors.E(op, filename, errors.Unavailable)
	}
	return *node, nil
}

// LockRelease releases the sentence lock (filename, idx), provided it
// is held by holder, per spec.md §4.4. It fails with Unauthorized if
// the lock is held by someone else, or InvalidParameters if no lock
// entry exists.
func (r *Registry) LockRelease(holder, filename string, index int) error {
	const op = errors.Op("namenode.LockRelease")
	r.mu.Lock()
	defer r.mu.Unlock()

	key := lockKey{filename, index}
	existing, ok := r.locks[key]
	if !ok {
		return errors.E(op, filename, errors.InvalidParameters)
	}
	if existing.Holder != holder {
		return errors.E(op, filename, holder, errors.Unauthorized)
	}
	delete(r.locks, key)
	return nil
}

// LockHolder reports the current holder of (filename, index), for
// diagnostics and tests. The empty string means the lock is free.
func (r *Registry) LockHolder(filename string, index int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.locks[lockKey{filename, index}]; ok {
		return existing.Holder
	}
	return ""
}
