package namenode

import "sentedit.dev/sentedit/errors"

// CreateFolder registers a single-level folder name, per SPEC_FULL.md
// §12, which Move can then store as a FileRecord's Folder tag. The tag
// is kept beside the filename; the filename itself never changes, and
// there is no nested directory tree. It is idempotent.
func (r *Registry) CreateFolder(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.folders[name] = true
	return nil
}

// Move assigns filename's folder tag, requiring requester to own the
// file. folder must already exist (created via CreateFolder), or be
// the empty string to clear the file's folder tag.
func (r *Registry) Move(filename, folder, requester string) error {
	const op = errors.Op("namenode.Move")
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.files[filename]
	if !ok {
		return errors.E(op, filename, errors.NotFound)
	}
	if rec.Owner != requester {
		return errors.E(op, filename, requester, errors.Unauthorized)
	}
	if folder != "" && !r.folders[folder] {
		return errors.E(op, folder, errors.NotFound, errors.Str("no such folder"))
	}
	rec.Folder = folder
	r.cache.Put(filename, rec)
	return nil
}

// ViewFolder returns every FileRecord tagged with folder.
func (r *Registry) ViewFolder(folder string) []FileRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []FileRecord
	for _, f := range r.files {
		if f.Folder == folder {
			out = append(out, *f)
		}
	}
	return out
}
