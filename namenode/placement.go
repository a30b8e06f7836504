package namenode

import "sentedit.dev/sentedit/errors"

// choosePlacement returns the connected StorageNodeRecord with the
// lowest FileCount, breaking ties by registration order — the first
// node ever registered wins an exact tie, per spec.md §4.3 and
// scenario S1 (§8). r.order, not the r.nodes map, supplies that
// order: map iteration order is randomized per run and cannot be used
// for a deterministic tie-break. Callers must hold r.mu.
func (r *Registry) choosePlacement() (*StorageNodeRecord, error) {
	var best *StorageNodeRecord
	for _, id := range r.order {
		node := r.nodes[id]
		if !node.Connected {
			continue
		}
		if best == nil || node.FileCount < best.FileCount {
			best = node
		}
	}
	if best == nil {
		return nil, errors.E(errors.Op("namenode.choosePlacement"), errors.NoStorageServers)
	}
	return best, nil
}

// Create inserts a new FileRecord for filename, owned by owner,
// placed on whichever connected Storage Node currently holds the
// fewest files. It fails with Exist if filename is already present.
// The chosen node's FileCount is incremented atomically with the
// FileRecord insertion, under the same lock, per spec.md §4.3.
//
// Create is not transactional across the Name Node and the chosen
// Storage Node (spec.md §7): the FileRecord becomes visible here
// before the caller has actually created the content on that node.
func (r *Registry) Create(filename, owner string) (StorageNodeRecord, error) {
	const op = errors.Op("namenode.Create")
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.files[filename]; ok {
		return StorageNodeRecord{}, errors.E(op, filename, errors.Exist)
	}
	node, err := r.choosePlacement()
	if err != nil {
		return StorageNodeRecord{}, errors.E(op, err)
	}

	now := r.now()
	rec := &FileRecord{
		Filename:       filename,
		Owner:          owner,
		HomeSS:         node.ID,
		Created:        now,
		Modified:       now,
		Accessed:       now,
		LastAccessedBy: owner,
	}
	r.files[filename] = rec
	node.FileCount++
	r.cache.Put(filename, rec)
	return *node, nil
}
