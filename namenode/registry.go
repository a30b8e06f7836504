// Package namenode implements the Name Node: the coordinator process
// that holds the global namespace, storage-node registry, user
// registry, sentence-lock table, and access-request workflow
// described in spec.md §4.2-§4.6. Handlers are methods on *Registry,
// a struct owned by the Name Node process and passed explicitly to
// the dispatcher in server.go — generalizing upspin.io/dir/inprocess's
// mutex-guarded database into an injectable, testable type rather
// than a package-level singleton (spec.md §9, "Global mutable state").
package namenode

import (
	"context"
	"net"
	"sync"
	"time"

	"sentedit.dev/sentedit/cache"
	"sentedit.dev/sentedit/errors"
)

// FileRecord is the Name Node's authoritative record of a file's
// existence and placement. See spec.md §3.
type FileRecord struct {
	Filename       string
	Owner          string
	HomeSS         string // StorageNodeRecord.ID; a weak back-reference, never a pointer (spec.md §9).
	Created        time.Time
	Modified       time.Time
	Accessed       time.Time
	LastAccessedBy string
	Words          int
	Chars          int
	Folder         string // optional single-level folder tag; see SPEC_FULL.md §12.
}

// StorageNodeRecord is the Name Node's record of a registered Storage
// Node. See spec.md §3.
type StorageNodeRecord struct {
	ID            string
	Address       string
	ControlPort   int
	ClientPort    int
	Connected     bool
	LastHeartbeat time.Time
	FileCount     int
	ReplicaPeer   string // ID of another StorageNodeRecord, best-effort.
}

// UserRecord is the Name Node's record of a registered user identity.
// See spec.md §3.
type UserRecord struct {
	Identity     string
	Address      string
	RegisteredAt time.Time
}

// Registry holds all of the Name Node's mutable state: the single
// coarse mutex described in spec.md §4.2 guards FileRecords,
// StorageNodeRecords, and the lock/access-request tables, while the
// FileRecord cache is a separate, independently-synchronized
// accelerator (spec.md §4.10).
type Registry struct {
	mu sync.Mutex

	files   map[string]*FileRecord
	nodes   map[string]*StorageNodeRecord
	order   []string // node IDs in first-registration order; breaks placement ties (spec.md §4.3)
	users   *cache.Index[string, *UserRecord]
	locks   map[lockKey]*SentenceLock
	reqs    map[requestKey]*AccessRequest
	folders map[string]bool
	cache   *cache.LRU[string, *FileRecord]
	nowFunc func() time.Time

	// dial opens a control-port connection to confirm a suspected
	// Storage Node failure (ScanForFailures, in heartbeat.go). It is a
	// field, not a direct net.Dialer call, so tests can substitute a
	// deterministic stub.
	dial func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewRegistry returns an empty Registry. cacheSize bounds the
// FileRecord cache (spec.md §4.10); a non-positive value uses
// flags.CacheSize's default of 100.
func NewRegistry(cacheSize int) *Registry {
	if cacheSize <= 0 {
		cacheSize = 100
	}
	return &Registry{
		files:   make(map[string]*FileRecord),
		nodes:   make(map[string]*StorageNodeRecord),
		users:   cache.NewIndex[string, *UserRecord](),
		locks:   make(map[lockKey]*SentenceLock),
		reqs:    make(map[requestKey]*AccessRequest),
		folders: make(map[string]bool),
		cache:   cache.NewLRU[string, *FileRecord](cacheSize),
		nowFunc: time.Now,
		dial:    (&net.Dialer{}).DialContext,
	}
}

// now returns the current time, indirected through nowFunc so tests
// can supply a deterministic clock.
func (r *Registry) now() time.Time {
	return r.nowFunc()
}

// SetClock overrides the registry's clock. It exists for tests.
func (r *Registry) SetClock(f func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nowFunc = f
}

// RegisterStorageNode inserts or updates a StorageNodeRecord and
// assigns mutual replica peers on first registration, per spec.md
// §4.2: "assigns the newest and one existing SN as mutual replica
// peers (best-effort, no replication semantics required)."
func (r *Registry) RegisterStorageNode(id, address string, controlPort, clientPort int) *StorageNodeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, existing := r.nodes[id]
	if !existing {
		rec = &StorageNodeRecord{ID: id}
		r.nodes[id] = rec
		r.order = append(r.order, id)
	}
	rec.Address = address
	rec.ControlPort = controlPort
	rec.ClientPort = clientPort
	rec.Connected = true
	rec.LastHeartbeat = r.now()

	if !existing {
		// Pick any other currently-known node as a replica peer for
		// both ends; this is best-effort and not relied on for any
		// consistency guarantee (spec.md §4.2).
		for otherID, other := range r.nodes {
			if otherID == id {
				continue
			}
			rec.ReplicaPeer = otherID
			if other.ReplicaPeer == "" {
				other.ReplicaPeer = id
			}
			break
		}
	}
	cp := *rec
	return &cp
}

// Heartbeat updates the last-heartbeat timestamp for node id. It
// fails with NotFound if the node has never registered.
func (r *Registry) Heartbeat(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.nodes[id]
	if !ok {
		return errors.E(errors.Op("namenode.Heartbeat"), id, errors.NotFound)
	}
	rec.LastHeartbeat = r.now()
	rec.Connected = true
	return nil
}

// StorageNode returns a copy of the record for id, if known.
func (r *Registry) StorageNode(id string) (StorageNodeRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.nodes[id]
	if !ok {
		return StorageNodeRecord{}, false
	}
	return *rec, true
}

// StorageNodes returns a snapshot of all registered nodes.
func (r *Registry) StorageNodes() []StorageNodeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StorageNodeRecord, 0, len(r.nodes))
	for _, rec := range r.nodes {
		out = append(out, *rec)
	}
	return out
}

// RegisterUser upserts a UserRecord for identity.
func (r *Registry) RegisterUser(identity, address string) *UserRecord {
	rec, ok := r.users.Get(identity)
	if !ok {
		rec = &UserRecord{Identity: identity, RegisteredAt: r.now()}
	}
	rec.Address = address
	r.users.Put(identity, rec)
	return rec
}

// Users returns a snapshot of all registered users.
func (r *Registry) Users() []UserRecord {
	var out []UserRecord
	r.users.Range(func(_ string, v *UserRecord) bool {
		out = append(out, *v)
		return true
	})
	return out
}

// View returns every FileRecord's filename, owner, and cached counts,
// per spec.md §4.2's View operation.
func (r *Registry) View() []FileRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]FileRecord, 0, len(r.files))
	for _, f := range r.files {
		out = append(out, *f)
	}
	return out
}

// Lookup returns a copy of the FileRecord for filename, consulting
// the FileRecord cache first (spec.md §4.10) and falling back to, and
// repopulating from, the authoritative map.
func (r *Registry) Lookup(filename string) (FileRecord, error) {
	if rec, ok := r.cache.Get(filename); ok {
		return *rec, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.files[filename]
	if !ok {
		return FileRecord{}, errors.E(errors.Op("namenode.Lookup"), filename, errors.NotFound)
	}
	r.cache.Put(filename, rec)
	return *rec, nil
}

// Delete removes filename's FileRecord, provided requester is its
// owner, and evicts it from the cache (spec.md §4.2's Delete
// operation).
func (r *Registry) Delete(filename, requester string) error {
	const op = errors.Op("namenode.Delete")
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.files[filename]
	if !ok {
		return errors.E(op, filename, errors.NotFound)
	}
	if rec.Owner != requester {
		return errors.E(op, filename, requester, errors.Unauthorized)
	}
	delete(r.files, filename)
	r.cache.Remove(filename)
	return nil
}

// touchLocked updates accessed/modified bookkeeping on a FileRecord found
// by the content-operation redirection handlers in server.go. It does
// not take r.mu itself; callers must already hold it, or operate via
// Resolve, which does.
func (r *Registry) touchLocked(rec *FileRecord, by string, modified bool) {
	now := r.now()
	rec.Accessed = now
	rec.LastAccessedBy = by
	if modified {
		rec.Modified = now
	}
	r.cache.Put(rec.Filename, rec)
}

// Resolve returns the home Storage Node address for filename, for use
// by the redirection family of operations (spec.md §4.2: Read, Info,
// Stream, Copy, Write, AddAccess, RemAccess, Undo, Checkpoint, ...).
// It fails with NotFound if the file does not exist, or Unavailable
// if its home node is not currently connected (spec.md §9's weak
// back-reference: "it leaves FileRecords whose lookups now fail with
// availability errors").
func (r *Registry) Resolve(filename string) (StorageNodeRecord, error) {
	const op = errors.Op("namenode.Resolve")
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.files[filename]
	if !ok {
		return StorageNodeRecord{}, errors.E(op, filename, errors.NotFound)
	}
	node, ok := r.nodes[rec.HomeSS]
	if !ok || !node.Connected {
		return StorageNodeRecord{}, errors.E(op, filename, errors.Unavailable)
	}
	r.touchLocked(rec, rec.LastAccessedBy, false)
	return *node, nil
}
