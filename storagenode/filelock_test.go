package storagenode

import (
	"testing"
	"time"
)

func TestFileLockTableAllowsConcurrentReaders(t *testing.T) {
	tbl := newFileLockTable()
	unlock1 := tbl.rlock("doc.txt")
	done := make(chan struct{})
	go func() {
		unlock2 := tbl.rlock("doc.txt")
		unlock2()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second reader should not block on the first")
	}
	unlock1()
}

func TestFileLockTableWriterExcludesReaders(t *testing.T) {
	tbl := newFileLockTable()
	unlockWriter := tbl.lock("doc.txt")

	acquired := make(chan struct{})
	go func() {
		unlock := tbl.rlock("doc.txt")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("reader acquired while writer held the lock")
	case <-time.After(50 * time.Millisecond):
	}
	unlockWriter()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("reader never acquired after writer released")
	}
}

func TestFileLockTableEntryEvictedWhenUnreferenced(t *testing.T) {
	tbl := newFileLockTable()
	unlock := tbl.rlock("doc.txt")
	unlock()
	if err := tbl.drainAndEvict("doc.txt"); err != nil {
		t.Fatalf("drainAndEvict on unreferenced file: %v", err)
	}
	if _, ok := tbl.entries["doc.txt"]; ok {
		t.Fatal("entry should have been evicted")
	}
}

func TestFileLockTableDrainWaitsForReleaser(t *testing.T) {
	tbl := newFileLockTable()
	unlock := tbl.rlock("doc.txt")
	go func() {
		time.Sleep(20 * time.Millisecond)
		unlock()
	}()
	if err := tbl.drainAndEvict("doc.txt"); err != nil {
		t.Fatalf("drainAndEvict: %v", err)
	}
}
