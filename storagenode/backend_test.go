package storagenode

import (
	"testing"

	"sentedit.dev/sentedit/errors"
)

func TestMemBackendRoundTrip(t *testing.T) {
	b := NewMemBackend()
	if err := b.Save("doc.txt", []byte("hello")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := b.Load("doc.txt")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("Load = %q", data)
	}
	if ok, _ := b.Stat("doc.txt"); !ok {
		t.Fatal("Stat should report existence")
	}
	if err := b.Delete("doc.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := b.Load("doc.txt"); !errors.Is(errors.NotFound, err) {
		t.Fatalf("Load after delete = %v, want NotFound", err)
	}
}

func TestDiskBackendRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b, err := NewDiskBackend(dir)
	if err != nil {
		t.Fatalf("NewDiskBackend: %v", err)
	}
	if err := b.Save("doc.txt", []byte("hello disk")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := b.Load("doc.txt")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != "hello disk" {
		t.Fatalf("Load = %q", data)
	}
	if ok, _ := b.Stat("doc.txt"); !ok {
		t.Fatal("Stat should report existence")
	}
	if err := b.Delete("doc.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := b.Stat("doc.txt"); ok {
		t.Fatal("Stat should report absence after delete")
	}
}

func TestDiskBackendLoadMissingIsNotFound(t *testing.T) {
	dir := t.TempDir()
	b, _ := NewDiskBackend(dir)
	if _, err := b.Load("ghost.txt"); !errors.Is(errors.NotFound, err) {
		t.Fatalf("Load missing = %v, want NotFound", err)
	}
}
