package storagenode

import (
	"testing"

	"sentedit.dev/sentedit/acl"
	"sentedit.dev/sentedit/errors"
)

func newTestServer() *Server {
	return NewServer(NewMemBackend(), 0)
}

func TestCreateThenReadRoundTrip(t *testing.T) {
	s := newTestServer()
	if err := s.Create("doc.txt", "alice"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	body, err := s.Read("doc.txt", "alice")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if body != "" {
		t.Fatalf("body = %q, want empty", body)
	}
}

func TestCreateRejectsDuplicate(t *testing.T) {
	s := newTestServer()
	s.Create("doc.txt", "alice")
	if err := s.Create("doc.txt", "bob"); !errors.Is(errors.Exist, err) {
		t.Fatalf("second Create = %v, want Exist", err)
	}
}

func TestReadRequiresPermission(t *testing.T) {
	s := newTestServer()
	s.Create("doc.txt", "alice")
	if _, err := s.Read("doc.txt", "bob"); !errors.Is(errors.PermissionDenied, err) {
		t.Fatalf("Read by stranger = %v, want PermissionDenied", err)
	}
}

// TestLockScopedEditScenario reproduces spec.md's literal scenario S2.
func TestLockScopedEditScenario(t *testing.T) {
	s := newTestServer()
	s.Create("doc.txt", "u1")
	s.backend.Save("doc.txt", []byte("Hello world. Goodbye world."))

	if err := s.WriteCommit("doc.txt", "u1", "0|1|cruel|"); err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	body, _ := s.Read("doc.txt", "u1")
	if body != "Hello cruel world. Goodbye world." {
		t.Fatalf("body = %q, want %q", body, "Hello cruel world. Goodbye world.")
	}

	if err := s.Undo("doc.txt", "u1"); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	body, _ = s.Read("doc.txt", "u1")
	if body != "Hello world. Goodbye world." {
		t.Fatalf("body after undo = %q, want pre-commit body", body)
	}
}

func TestWriteCommitEmptyScriptStillSnapshotsUndo(t *testing.T) {
	s := newTestServer()
	s.Create("doc.txt", "u1")
	s.backend.Save("doc.txt", []byte("Same body."))

	if err := s.WriteCommit("doc.txt", "u1", "0"); err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	body, _ := s.Read("doc.txt", "u1")
	if body != "Same body." {
		t.Fatalf("body = %q, want unchanged", body)
	}
	if err := s.Undo("doc.txt", "u1"); err != nil {
		t.Fatalf("Undo after no-op commit should succeed: %v", err)
	}
}

func TestWriteCommitRequiresWritePermission(t *testing.T) {
	s := newTestServer()
	s.Create("doc.txt", "alice")
	if err := s.WriteCommit("doc.txt", "bob", "0"); !errors.Is(errors.PermissionDenied, err) {
		t.Fatalf("WriteCommit by stranger = %v, want PermissionDenied", err)
	}
}

func TestDeleteRemovesBodyAndMetadata(t *testing.T) {
	s := newTestServer()
	s.Create("doc.txt", "alice")
	if err := s.Delete("doc.txt", "bob"); !errors.Is(errors.Unauthorized, err) {
		t.Fatalf("Delete by non-owner = %v, want Unauthorized", err)
	}
	if err := s.Delete("doc.txt", "alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("doc.txt", "alice"); !errors.Is(errors.NotFound, err) {
		t.Fatalf("Read after delete = %v, want NotFound", err)
	}
}

func TestCopyClonesContentWithNewOwner(t *testing.T) {
	s := newTestServer()
	s.Create("src.txt", "alice")
	s.backend.Save("src.txt", []byte("Hello there."))
	if err := s.AddAccess("src.txt", "alice", "bob", acl.Read); err != nil {
		t.Fatalf("AddAccess: %v", err)
	}

	if err := s.Copy("src.txt", "dst.txt", "bob"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	body, err := s.Read("dst.txt", "bob")
	if err != nil {
		t.Fatalf("Read dst: %v", err)
	}
	if body != "Hello there." {
		t.Fatalf("copied body = %q", body)
	}
}

func TestCopyFailsWhenDestinationExists(t *testing.T) {
	s := newTestServer()
	s.Create("src.txt", "alice")
	s.Create("dst.txt", "bob")
	if err := s.Copy("src.txt", "dst.txt", "alice"); !errors.Is(errors.Exist, err) {
		t.Fatalf("Copy onto existing dst = %v, want Exist", err)
	}
}

func TestAddAccessThenReadSucceeds(t *testing.T) {
	s := newTestServer()
	s.Create("doc.txt", "alice")
	if err := s.AddAccess("doc.txt", "alice", "bob", acl.Read); err != nil {
		t.Fatalf("AddAccess: %v", err)
	}
	if _, err := s.Read("doc.txt", "bob"); err != nil {
		t.Fatalf("Read after grant: %v", err)
	}
}

func TestAddAccessRejectsNonOwner(t *testing.T) {
	s := newTestServer()
	s.Create("doc.txt", "alice")
	if err := s.AddAccess("doc.txt", "bob", "carol", acl.Read); !errors.Is(errors.Unauthorized, err) {
		t.Fatalf("AddAccess by non-owner = %v, want Unauthorized", err)
	}
}

func TestRemAccessRejectsUnknownTarget(t *testing.T) {
	s := newTestServer()
	s.Create("doc.txt", "alice")
	if err := s.RemAccess("doc.txt", "alice", "ghost"); !errors.Is(errors.NotFound, err) {
		t.Fatalf("RemAccess on unknown target = %v, want NotFound", err)
	}
}

// TestCheckpointScenario reproduces spec.md's literal scenario S5.
func TestCheckpointScenario(t *testing.T) {
	s := newTestServer()
	s.Create("doc.txt", "u1")
	s.backend.Save("doc.txt", []byte("X0"))

	if err := s.Checkpoint("doc.txt", "u1", "v1"); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	s.backend.Save("doc.txt", []byte("X1"))
	rec, _ := s.lookup("doc.txt")
	prev := "X0"
	rec.Undo = &prev // simulate the snapshot WriteCommit would have taken

	if err := s.Revert("doc.txt", "u1", "v1"); err != nil {
		t.Fatalf("Revert: %v", err)
	}
	body, _ := s.Read("doc.txt", "u1")
	if body != "X0" {
		t.Fatalf("body after revert = %q, want X0", body)
	}

	if err := s.Undo("doc.txt", "u1"); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	body, _ = s.Read("doc.txt", "u1")
	if body != "X1" {
		t.Fatalf("body after first undo = %q, want X1", body)
	}

	if err := s.Undo("doc.txt", "u1"); err != nil {
		t.Fatalf("second Undo: %v", err)
	}
	body, _ = s.Read("doc.txt", "u1")
	if body != "X0" {
		t.Fatalf("body after second undo = %q, want X0", body)
	}
}

func TestListCheckpointsOrderedByTag(t *testing.T) {
	s := newTestServer()
	s.Create("doc.txt", "u1")
	s.Checkpoint("doc.txt", "u1", "v2")
	s.Checkpoint("doc.txt", "u1", "v1")

	cps, err := s.ListCheckpoints("doc.txt", "u1")
	if err != nil {
		t.Fatalf("ListCheckpoints: %v", err)
	}
	if len(cps) != 2 || cps[0].Tag != "v1" || cps[1].Tag != "v2" {
		t.Fatalf("ListCheckpoints order = %+v, want [v1 v2]", cps)
	}
}

func TestInfoReturnsSortedACL(t *testing.T) {
	s := newTestServer()
	s.Create("doc.txt", "alice")
	s.AddAccess("doc.txt", "alice", "zed", acl.Read)
	s.AddAccess("doc.txt", "alice", "amy", acl.Write)

	info, err := s.Info("doc.txt", "alice")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if len(info.ACL) != 2 || info.ACL[0].Identity != "amy" || info.ACL[1].Identity != "zed" {
		t.Fatalf("Info.ACL = %+v, want amy before zed", info.ACL)
	}
}
