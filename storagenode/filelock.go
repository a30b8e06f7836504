package storagenode

import (
	"sync"
	"time"

	"sentedit.dev/sentedit/errors"
)

// fileLockTable is the optional fine-grained per-file read/write lock
// table of spec.md §4.8, replacing a single coarse file-subsystem
// mutex so that reads of distinct files proceed in parallel. Each
// filename gets its own sync.RWMutex, created on first use and
// reference-counted so it can be safely evicted once a file is
// deleted.
type fileLockTable struct {
	mu      sync.Mutex
	entries map[string]*fileLockEntry
}

type fileLockEntry struct {
	mu   sync.RWMutex
	refs int
}

func newFileLockTable() *fileLockTable {
	return &fileLockTable{entries: make(map[string]*fileLockEntry)}
}

func (t *fileLockTable) acquire(filename string) *fileLockEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[filename]
	if !ok {
		e = &fileLockEntry{}
		t.entries[filename] = e
	}
	e.refs++
	return e
}

func (t *fileLockTable) release(filename string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[filename]; ok {
		e.refs--
		if e.refs == 0 {
			delete(t.entries, filename)
		}
	}
}

// rlock takes a read reference on filename, returning an unlock
// function the caller must defer.
func (t *fileLockTable) rlock(filename string) func() {
	e := t.acquire(filename)
	e.mu.RLock()
	return func() {
		e.mu.RUnlock()
		t.release(filename)
	}
}

// lock takes a write reference on filename, returning an unlock
// function the caller must defer.
func (t *fileLockTable) lock(filename string) func() {
	e := t.acquire(filename)
	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		t.release(filename)
	}
}

// drainAndEvict blocks, with a bounded back-off, until filename has no
// outstanding read or write references, then removes it from the
// table entirely, per spec.md §4.8: "File deletion must drain
// outstanding refs before removing the entry (with a bounded back-off
// sleep)." It returns Unavailable if refs never drain within budget.
func (t *fileLockTable) drainAndEvict(filename string) error {
	const op = errors.Op("storagenode.drainAndEvict")
	backoff := time.Millisecond
	const maxBackoff = 100 * time.Millisecond
	deadline := time.Now().Add(5 * time.Second)
	for {
		t.mu.Lock()
		e, ok := t.entries[filename]
		if !ok || e.refs == 0 {
			delete(t.entries, filename)
			t.mu.Unlock()
			return nil
		}
		t.mu.Unlock()

		if time.Now().After(deadline) {
			return errors.E(op, filename, errors.Unavailable, errors.Str("timed out waiting for file references to drain"))
		}
		time.Sleep(backoff)
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
