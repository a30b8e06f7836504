package storagenode

import (
	"sort"
	"sync"
	"time"

	"sentedit.dev/sentedit/acl"
	"sentedit.dev/sentedit/editengine"
	"sentedit.dev/sentedit/errors"
)

// Server holds a Storage Node's complete content-operation surface:
// the file index, the fine-grained per-file lock table, and the
// injected Backend that persists each file's current body. It
// generalizes upspin.io/store/inprocess's single mutex-guarded blob
// map into the operation set of spec.md §4.7.
type Server struct {
	indexMu sync.Mutex // guards insertion/removal from files, not content mutation
	files   map[string]*record

	locks       *fileLockTable
	backend     Backend
	aclCapacity int
	nowFunc     func() time.Time
}

// NewServer returns a Server backed by backend. aclCapacity bounds new
// files' ACLs; a non-positive value uses acl.DefaultCapacity.
func NewServer(backend Backend, aclCapacity int) *Server {
	return &Server{
		files:       make(map[string]*record),
		locks:       newFileLockTable(),
		backend:     backend,
		aclCapacity: aclCapacity,
		nowFunc:     time.Now,
	}
}

func (s *Server) now() time.Time {
	return s.nowFunc()
}

// SetClock overrides the server's clock. It exists for tests.
func (s *Server) SetClock(f func() time.Time) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	s.nowFunc = f
}

func (s *Server) lookup(filename string) (*record, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	rec, ok := s.files[filename]
	if !ok {
		return nil, errors.E(errors.Op("storagenode.lookup"), filename, errors.NotFound)
	}
	return rec, nil
}

// Create makes an empty file owned by user, per spec.md §4.7. It
// fails with Exist if filename is already present.
func (s *Server) Create(filename, user string) error {
	const op = errors.Op("storagenode.Create")
	s.indexMu.Lock()
	if _, ok := s.files[filename]; ok {
		s.indexMu.Unlock()
		return errors.E(op, filename, errors.Exist)
	}
	rec := newRecord(user, s.now(), s.aclCapacity)
	s.files[filename] = rec
	s.indexMu.Unlock()

	if err := s.backend.Save(filename, []byte("")); err != nil {
		return errors.E(op, filename, err)
	}
	return nil
}

// Read returns the current body of filename for user, provided user
// holds read permission, updating access bookkeeping.
func (s *Server) Read(filename, user string) (string, error) {
	const op = errors.Op("storagenode.Read")
	rec, err := s.lookup(filename)
	if err != nil {
		return "", err
	}
	unlock := s.locks.rlock(filename)
	defer unlock()

	if !rec.Meta.ACL.Has(user, rec.Meta.Owner, acl.Read) {
		return "", errors.E(op, filename, user, errors.PermissionDenied)
	}
	body, err := s.backend.Load(filename)
	if err != nil {
		return "", errors.E(op, filename, err)
	}
	rec.Meta.Accessed = s.now()
	rec.Meta.LastAccessedBy = user
	return string(body), nil
}

// WriteCommit parses and applies an edit script to filename on behalf
// of user, requiring write permission, per spec.md §4.7 and §4.9. It
// snapshots the pre-commit body into the undo slot even when the edit
// script carries no inserts (spec.md §8: "WriteCommit with an empty
// edit pair list is a no-op on the body but still snapshots current
// into the undo slot").
func (s *Server) WriteCommit(filename, user, rawScript string) error {
	const op = errors.Op("storagenode.WriteCommit")
	rec, err := s.lookup(filename)
	if err != nil {
		return err
	}
	unlock := s.locks.lock(filename)
	defer unlock()

	if !rec.Meta.ACL.Has(user, rec.Meta.Owner, acl.Write) {
		return errors.E(op, filename, user, errors.PermissionDenied)
	}
	script, err := editengine.ParseScript(rawScript)
	if err != nil {
		return errors.E(op, filename, err)
	}
	current, err := s.backend.Load(filename)
	if err != nil {
		return errors.E(op, filename, err)
	}
	newBody, err := editengine.Apply(string(current), script)
	if err != nil {
		return errors.E(op, filename, err)
	}
	if err := s.backend.Save(filename, []byte(newBody)); err != nil {
		return errors.E(op, filename, err)
	}
	prev := string(current)
	rec.Undo = &prev
	words, chars := editengine.Counts(newBody)
	rec.Meta.Words, rec.Meta.Chars = words, chars
	rec.Meta.Modified = s.now()
	return nil
}

// Delete removes filename's body, metadata, and undo slot, requiring
// user == owner, draining any outstanding fine-grained lock
// references before the entry is removed (spec.md §4.8).
func (s *Server) Delete(filename, user string) error {
	const op = errors.Op("storagenode.Delete")
	rec, err := s.lookup(filename)
	if err != nil {
		return err
	}
	if rec.Meta.Owner != user {
		return errors.E(op, filename, user, errors.Unauthorized)
	}
	if err := s.locks.drainAndEvict(filename); err != nil {
		return errors.E(op, filename, err)
	}

	s.indexMu.Lock()
	delete(s.files, filename)
	s.indexMu.Unlock()

	if err := s.backend.Delete(filename); err != nil {
		return errors.E(op, filename, err)
	}
	return nil
}

// Undo swaps filename's current body with its undo slot, requiring
// write permission. Undo depth is one: applying Undo twice returns
// the body to its pre-Undo state (spec.md §3, §8).
func (s *Server) Undo(filename, user string) error {
	const op = errors.Op("storagenode.Undo")
	rec, err := s.lookup(filename)
	if err != nil {
		return err
	}
	unlock := s.locks.lock(filename)
	defer unlock()

	if !rec.Meta.ACL.Has(user, rec.Meta.Owner, acl.Write) {
		return errors.E(op, filename, user, errors.PermissionDenied)
	}
	if rec.Undo == nil {
		return errors.E(op, filename, errors.InvalidParameters, errors.Str("no undo slot available"))
	}
	current, err := s.backend.Load(filename)
	if err != nil {
		return errors.E(op, filename, err)
	}
	swapped := *rec.Undo
	if err := s.backend.Save(filename, []byte(swapped)); err != nil {
		return errors.E(op, filename, err)
	}
	prev := string(current)
	rec.Undo = &prev
	words, chars := editengine.Counts(swapped)
	rec.Meta.Words, rec.Meta.Chars = words, chars
	rec.Meta.Modified = s.now()
	return nil
}

// FileInfoResult is the human-readable metadata snapshot returned by
// Info/FileInfo, per spec.md §4.7.
type FileInfoResult struct {
	Owner          string
	Created        time.Time
	Modified       time.Time
	Accessed       time.Time
	LastAccessedBy string
	Words          int
	Chars          int
	ACL            []acl.Entry
}

// Info returns filename's metadata for user, requiring read
// permission. ACL entries are sorted by identity for deterministic
// output.
func (s *Server) Info(filename, user string) (FileInfoResult, error) {
	const op = errors.Op("storagenode.Info")
	rec, err := s.lookup(filename)
	if err != nil {
		return FileInfoResult{}, err
	}
	unlock := s.locks.rlock(filename)
	defer unlock()

	if !rec.Meta.ACL.Has(user, rec.Meta.Owner, acl.Read) {
		return FileInfoResult{}, errors.E(op, filename, user, errors.PermissionDenied)
	}
	entries := rec.Meta.ACL.Entries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Identity < entries[j].Identity })
	return FileInfoResult{
		Owner:          rec.Meta.Owner,
		Created:        rec.Meta.Created,
		Modified:       rec.Meta.Modified,
		Accessed:       rec.Meta.Accessed,
		LastAccessedBy: rec.Meta.LastAccessedBy,
		Words:          rec.Meta.Words,
		Chars:          rec.Meta.Chars,
		ACL:            entries,
	}, nil
}

// Stream returns filename's body tokenised into words, for
// client-side paced display, requiring read permission.
func (s *Server) Stream(filename, user string) ([]string, error) {
	const op = errors.Op("storagenode.Stream")
	body, err := s.Read(filename, user)
	if err != nil {
		return nil, errors.E(op, err)
	}
	var words []string
	for _, sentence := range editengine.Split(body) {
		words = append(words, editengine.Words(sentence)...)
	}
	return words, nil
}

// Copy clones src's body into a new file dst owned by user, requiring
// read permission on src. It fails with Exist if dst already exists.
func (s *Server) Copy(src, dst, user string) error {
	const op = errors.Op("storagenode.Copy")
	body, err := s.Read(src, user)
	if err != nil {
		return errors.E(op, err)
	}
	if err := s.Create(dst, user); err != nil {
		return errors.E(op, err)
	}
	if err := s.backend.Save(dst, []byte(body)); err != nil {
		return errors.E(op, dst, err)
	}
	rec, err := s.lookup(dst)
	if err != nil {
		return err
	}
	words, chars := editengine.Counts(body)
	rec.Meta.Words, rec.Meta.Chars = words, chars
	return nil
}

// AddAccess grants target read or write permission on filename,
// requiring caller == owner. It rejects duplicates and enforces the
// ACL's capacity bound (spec.md §4.7).
func (s *Server) AddAccess(filename, caller, target string, perm acl.Permission) error {
	const op = errors.Op("storagenode.AddAccess")
	rec, err := s.lookup(filename)
	if err != nil {
		return err
	}
	unlock := s.locks.lock(filename)
	defer unlock()

	if rec.Meta.Owner != caller {
		return errors.E(op, filename, caller, errors.Unauthorized)
	}
	if err := rec.Meta.ACL.Add(target, perm); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// addOrUpgradeAccess grants target perm on filename, upgrading an
// existing grant instead of failing on duplicates. It is used by the
// Name Node's access-request-approval push (spec.md §4.6), which must
// be safely re-runnable.
func (s *Server) addOrUpgradeAccess(filename, target string, perm acl.Permission) error {
	const op = errors.Op("storagenode.addOrUpgradeAccess")
	rec, err := s.lookup(filename)
	if err != nil {
		return err
	}
	unlock := s.locks.lock(filename)
	defer unlock()
	if err := rec.Meta.ACL.AddOrUpgrade(target, perm); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// RemAccess revokes target's permissions on filename, requiring
// caller == owner. It fails with NotFound for an unknown target.
func (s *Server) RemAccess(filename, caller, target string) error {
	const op = errors.Op("storagenode.RemAccess")
	rec, err := s.lookup(filename)
	if err != nil {
		return err
	}
	unlock := s.locks.lock(filename)
	defer unlock()

	if rec.Meta.Owner != caller {
		return errors.E(op, filename, caller, errors.Unauthorized)
	}
	if err := rec.Meta.ACL.Remove(target); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// Checkpoint persists a snapshot of filename's current body under tag,
// requiring read permission (spec.md §9 Open Question (i): the source
// permits read-only callers, which this rewrite preserves rather than
// silently tightening).
func (s *Server) Checkpoint(filename, user, tag string) error {
	const op = errors.Op("storagenode.Checkpoint")
	rec, err := s.lookup(filename)
	if err != nil {
		return err
	}
	unlock := s.locks.rlock(filename)
	defer unlock()

	if !rec.Meta.ACL.Has(user, rec.Meta.Owner, acl.Read) {
		return errors.E(op, filename, user, errors.PermissionDenied)
	}
	body, err := s.backend.Load(filename)
	if err != nil {
		return errors.E(op, filename, err)
	}
	rec.Checkpoints[tag] = Checkpoint{Tag: tag, Body: string(body), At: s.now()}
	return nil
}

// ViewCheckpoint returns the stored body for (filename, tag) without
// mutating current state.
func (s *Server) ViewCheckpoint(filename, user, tag string) (string, error) {
	const op = errors.Op("storagenode.ViewCheckpoint")
	rec, err := s.lookup(filename)
	if err != nil {
		return "", err
	}
	unlock := s.locks.rlock(filename)
	defer unlock()

	if !rec.Meta.ACL.Has(user, rec.Meta.Owner, acl.Read) {
		return "", errors.E(op, filename, user, errors.PermissionDenied)
	}
	cp, ok := rec.Checkpoints[tag]
	if !ok {
		return "", errors.E(op, filename, errors.NotFound, errors.Str("no such checkpoint"))
	}
	return cp.Body, nil
}

// Revert replaces filename's current body with checkpoint tag,
// requiring write permission, and snapshots the pre-revert body into
// the undo slot first (spec.md §3, §9 Open Question (ii): "the
// source implements" a single-toggle Undo after Revert).
func (s *Server) Revert(filename, user, tag string) error {
	const op = errors.Op("storagenode.Revert")
	rec, err := s.lookup(filename)
	if err != nil {
		return err
	}
	unlock := s.locks.lock(filename)
	defer unlock()

	if !rec.Meta.ACL.Has(user, rec.Meta.Owner, acl.Write) {
		return errors.E(op, filename, user, errors.PermissionDenied)
	}
	cp, ok := rec.Checkpoints[tag]
	if !ok {
		return errors.E(op, filename, errors.NotFound, errors.Str("no such checkpoint"))
	}
	current, err := s.backend.Load(filename)
	if err != nil {
		return errors.E(op, filename, err)
	}
	if err := s.backend.Save(filename, []byte(cp.Body)); err != nil {
		return errors.E(op, filename, err)
	}
	prev := string(current)
	rec.Undo = &prev
	words, chars := editengine.Counts(cp.Body)
	rec.Meta.Words, rec.Meta.Chars = words, chars
	rec.Meta.Modified = s.now()
	return nil
}

// ListCheckpoints returns filename's checkpoint tags, lexicographic by
// tag then by timestamp for ties (SPEC_FULL.md §12).
func (s *Server) ListCheckpoints(filename, user string) ([]Checkpoint, error) {
	const op = errors.Op("storagenode.ListCheckpoints")
	rec, err := s.lookup(filename)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.rlock(filename)
	defer unlock()

	if !rec.Meta.ACL.Has(user, rec.Meta.Owner, acl.Read) {
		return nil, errors.E(op, filename, user, errors.PermissionDenied)
	}
	out := make([]Checkpoint, 0, len(rec.Checkpoints))
	for _, cp := range rec.Checkpoints {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tag != out[j].Tag {
			return out[i].Tag < out[j].Tag
		}
		return out[i].At.Before(out[j].At)
	})
	return out, nil
}
