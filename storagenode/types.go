// Package storagenode implements the Storage Node: the process that
// owns file content, metadata, undo buffers, and checkpoints for the
// subset of files placed on it by the Name Node (spec.md §4.7-§4.9).
//
// Generalizes upspin.io/store/inprocess's single in-memory blob map
// into the richer per-file record (body + metadata + ACL + undo slot +
// checkpoints) spec.md §3 requires, behind the same small mutex-guarded
// map idiom.
package storagenode

import (
	"time"

	"sentedit.dev/sentedit/acl"
)

// FileMetadata is the Storage Node's record of one file's bookkeeping,
// mirroring spec.md §3's FileMetadata.
type FileMetadata struct {
	Owner          string
	Created        time.Time
	Modified       time.Time
	Accessed       time.Time
	LastAccessedBy string
	Words          int
	Chars          int
	ACL            *acl.ACL
}

// Checkpoint is one immutable named snapshot of a file's body, per
// spec.md §3.
type Checkpoint struct {
	Tag  string
	Body string
	At   time.Time
}

// record is the Storage Node's in-memory state for one file: its
// metadata, a depth-one undo slot, and its checkpoints. A nil Undo
// means the slot is empty. Body is set to "" on creation and not
// updated afterwards; the current body is read from and written to
// the Server's Backend.
type record struct {
	Body        string
	Meta        FileMetadata
	Undo        *string
	Checkpoints map[string]Checkpoint
}

func newRecord(owner string, now time.Time, capacity int) *record {
	return &record{
		Body: "",
		Meta: FileMetadata{
			Owner:    owner,
			Created:  now,
			Modified: now,
			Accessed: now,
			ACL:      acl.New(capacity),
		},
		Checkpoints: make(map[string]Checkpoint),
	}
}
