package storagenode

import (
	"os"
	"path/filepath"
	"sync"

	"sentedit.dev/sentedit/errors"
)

// Backend is the opaque blob store a Storage Node's core consumes,
// per spec.md §1: "a storage backend (load/save/stat of an opaque
// blob keyed by filename)". The core never touches a filesystem path
// directly; it is injected so tests can use an in-memory Backend.
type Backend interface {
	Load(filename string) ([]byte, error)
	Save(filename string, data []byte) error
	Stat(filename string) (bool, error)
	Delete(filename string) error
}

// MemBackend is an in-memory Backend, used by tests and by any
// deployment that does not need content to survive a restart.
type MemBackend struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemBackend returns an empty MemBackend.
func NewMemBackend() *MemBackend {
	return &MemBackend{blobs: make(map[string][]byte)}
}

func (b *MemBackend) Load(filename string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.blobs[filename]
	if !ok {
		return nil, errors.E(errors.Op("storagenode.MemBackend.Load"), filename, errors.NotFound)
	}
	return append([]byte(nil), data...), nil
}

func (b *MemBackend) Save(filename string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[filename] = append([]byte(nil), data...)
	return nil
}

func (b *MemBackend) Stat(filename string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.blobs[filename]
	return ok, nil
}

func (b *MemBackend) Delete(filename string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, filename)
	return nil
}

// DiskBackend is a filesystem-backed Backend rooted at Dir, one blob
// per regular file. Writes are made atomic with a write-then-rename
// into place (spec.md §6's "content files live under a content
// directory"); no advisory file locking (flock) is used.
type DiskBackend struct {
	Dir string
}

// NewDiskBackend returns a DiskBackend rooted at dir, creating it if
// necessary.
func NewDiskBackend(dir string) (*DiskBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.E(errors.Op("storagenode.NewDiskBackend"), errors.Internal, err)
	}
	return &DiskBackend{Dir: dir}, nil
}

func (b *DiskBackend) path(filename string) string {
	return filepath.Join(b.Dir, filename)
}

func (b *DiskBackend) Load(filename string) ([]byte, error) {
	data, err := os.ReadFile(b.path(filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.E(errors.Op("storagenode.DiskBackend.Load"), filename, errors.NotFound)
		}
		return nil, errors.E(errors.Op("storagenode.DiskBackend.Load"), filename, errors.Internal, err)
	}
	return data, nil
}

func (b *DiskBackend) Save(filename string, data []byte) error {
	const op = errors.Op("storagenode.DiskBackend.Save")
	tmp, err := os.CreateTemp(b.Dir, ".tmp-*")
	if err != nil {
		return errors.E(op, filename, errors.Internal, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.E(op, filename, errors.Internal, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.E(op, filename, errors.Internal, err)
	}
	if err := os.Rename(tmpName, b.path(filename)); err != nil {
		os.Remove(tmpName)
		return errors.E(op, filename, errors.Internal, err)
	}
	return nil
}

func (b *DiskBackend) Stat(filename string) (bool, error) {
	_, err := os.Stat(b.path(filename))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.E(errors.Op("storagenode.DiskBackend.Stat"), filename, errors.Internal, err)
}

func (b *DiskBackend) Delete(filename string) error {
	if err := os.Remove(b.path(filename)); err != nil && !os.IsNotExist(err) {
		return errors.E(errors.Op("storagenode.DiskBackend.Delete"), filename, errors.Internal, err)
	}
	return nil
}
