package client

import (
	"net"
	"strconv"
	"testing"

	"sentedit.dev/sentedit/acl"
	"sentedit.dev/sentedit/editengine"
	"sentedit.dev/sentedit/namenode"
	"sentedit.dev/sentedit/storagenode"
)

// testSystem wires a real Name Node and a single real Storage Node
// over loopback TCP and returns a Client already pointed at the Name
// Node, with the Storage Node pre-registered (bypassing the
// heartbeat session, whose registration handshake is covered
// separately in storagenode's own tests).
func testSystem(t *testing.T) *Client {
	t.Helper()

	reg := namenode.NewRegistry(10)
	nnLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen NN: %v", err)
	}
	t.Cleanup(func() { nnLn.Close() })
	nnSrv := namenode.NewServer(reg)
	go nnSrv.Serve(nnLn)

	ssSrv := storagenode.NewServer(storagenode.NewMemBackend(), 0)
	disp := storagenode.NewDispatcher(ssSrv)

	ssClientLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen SS client: %v", err)
	}
	t.Cleanup(func() { ssClientLn.Close() })
	ssControlLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen SS control: %v", err)
	}
	t.Cleanup(func() { ssControlLn.Close() })
	go disp.ServeClients(ssClientLn)
	go disp.ServeControl(ssControlLn)

	clientHost, clientPortStr, err := net.SplitHostPort(ssClientLn.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	clientPort, _ := strconv.Atoi(clientPortStr)
	_, controlPortStr, err := net.SplitHostPort(ssControlLn.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	controlPort, _ := strconv.Atoi(controlPortStr)

	reg.RegisterStorageNode("ss-a", clientHost, controlPort, clientPort)

	return New("alice", nnLn.Addr().String())
}

func TestCreateReadWriteCommitUndoRoundTrip(t *testing.T) {
	c := testSystem(t)
	defer c.Close()

	if err := c.Create("doc.txt"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	body, err := c.Read("doc.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if body != "" {
		t.Fatalf("initial body = %q, want empty", body)
	}

	script := editengine.Script{SentenceIndex: 0, Inserts: []editengine.WordInsert{{WordIndex: 0, Word: "Hello"}}}
	if err := c.WriteCommit("doc.txt", script); err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	body, err = c.Read("doc.txt")
	if err != nil {
		t.Fatalf("Read after commit: %v", err)
	}
	if body != "Hello" {
		t.Fatalf("body after commit = %q, want Hello", body)
	}

	if err := c.Undo("doc.txt"); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	body, err = c.Read("doc.txt")
	if err != nil {
		t.Fatalf("Read after undo: %v", err)
	}
	if body != "" {
		t.Fatalf("body after undo = %q, want empty", body)
	}
}

// TestLockScopedEditScenario reproduces spec.md's literal scenario S2
// through the client's public surface.
func TestLockScopedEditScenario(t *testing.T) {
	c := testSystem(t)
	defer c.Close()

	if err := c.Create("doc.txt"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	seed := editengine.Script{SentenceIndex: 0, Inserts: []editengine.WordInsert{
		{WordIndex: 0, Word: "Hello"}, {WordIndex: 1, Word: "world."},
		{WordIndex: 2, Word: "Goodbye"}, {WordIndex: 3, Word: "world."},
	}}
	if err := c.WriteCommit("doc.txt", seed); err != nil {
		t.Fatalf("seed WriteCommit: %v", err)
	}

	if _, err := c.LockAcquire("doc.txt", 0); err != nil {
		t.Fatalf("LockAcquire: %v", err)
	}
	edit := editengine.Script{SentenceIndex: 0, Inserts: []editengine.WordInsert{{WordIndex: 1, Word: "cruel"}}}
	if err := c.WriteCommit("doc.txt", edit); err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	if err := c.LockRelease("doc.txt", 0); err != nil {
		t.Fatalf("LockRelease: %v", err)
	}

	body, err := c.Read("doc.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if body != "Hello cruel world. Goodbye world." {
		t.Fatalf("body = %q, want %q", body, "Hello cruel world. Goodbye world.")
	}

	if err := c.Undo("doc.txt"); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	body, _ = c.Read("doc.txt")
	if body != "Hello world. Goodbye world." {
		t.Fatalf("body after undo = %q, want pre-commit body", body)
	}
}

// TestLockContentionScenario reproduces spec.md's literal scenario S3.
func TestLockContentionScenario(t *testing.T) {
	c := testSystem(t)
	defer c.Close()
	if err := c.Create("doc.txt"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := c.LockAcquire("doc.txt", 0); err != nil {
		t.Fatalf("first LockAcquire: %v", err)
	}

	other := New("bob", c.nnAddr)
	defer other.Close()

	if _, err := other.LockAcquire("doc.txt", 0); err == nil {
		t.Fatal("contended LockAcquire should fail")
	}

	if err := c.LockRelease("doc.txt", 0); err != nil {
		t.Fatalf("LockRelease: %v", err)
	}
	if _, err := other.LockAcquire("doc.txt", 0); err != nil {
		t.Fatalf("LockAcquire after release: %v", err)
	}
}

// TestAccessRequestWorkflow reproduces spec.md's literal scenario S4.
func TestAccessRequestWorkflow(t *testing.T) {
	owner := testSystem(t)
	defer owner.Close()

	if err := owner.Create("doc.txt"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	requester := New("bob", owner.nnAddr)
	defer requester.Close()

	if err := requester.RequestAccess("doc.txt"); err != nil {
		t.Fatalf("RequestAccess: %v", err)
	}

	pending, err := owner.ViewRequests()
	if err != nil {
		t.Fatalf("ViewRequests: %v", err)
	}
	if len(pending) != 1 || pending[0].Requester != "bob" || pending[0].Filename != "doc.txt" {
		t.Fatalf("ViewRequests = %+v, want one entry for bob/doc.txt", pending)
	}

	if err := owner.ApproveRequest("doc.txt", "bob"); err != nil {
		t.Fatalf("ApproveRequest: %v", err)
	}

	if _, err := requester.Read("doc.txt"); err != nil {
		t.Fatalf("Read by bob after approval: %v", err)
	}

	if err := owner.DenyRequest("doc.txt", "bob"); err == nil {
		t.Fatal("DenyRequest on a non-pending request should fail")
	}
}

func TestAddAccessAndRemAccess(t *testing.T) {
	owner := testSystem(t)
	defer owner.Close()
	if err := owner.Create("doc.txt"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	bob := New("bob", owner.nnAddr)
	defer bob.Close()

	if err := owner.AddAccess("doc.txt", "bob", acl.Read); err != nil {
		t.Fatalf("AddAccess: %v", err)
	}
	if _, err := bob.Read("doc.txt"); err != nil {
		t.Fatalf("Read by bob: %v", err)
	}

	if err := owner.RemAccess("doc.txt", "bob"); err != nil {
		t.Fatalf("RemAccess: %v", err)
	}
	if _, err := bob.Read("doc.txt"); err == nil {
		t.Fatal("Read by bob after RemAccess should fail")
	}
}

func TestCopyAndDelete(t *testing.T) {
	c := testSystem(t)
	defer c.Close()
	if err := c.Create("src.txt"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	script := editengine.Script{SentenceIndex: 0, Inserts: []editengine.WordInsert{{WordIndex: 0, Word: "Shared"}}}
	if err := c.WriteCommit("src.txt", script); err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	if err := c.Copy("src.txt", "dst.txt"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	body, err := c.Read("dst.txt")
	if err != nil {
		t.Fatalf("Read dst: %v", err)
	}
	if body != "Shared" {
		t.Fatalf("copied body = %q, want Shared", body)
	}

	if err := c.Delete("src.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Read("src.txt"); err == nil {
		t.Fatal("Read after Delete should fail")
	}
}

// TestCheckpointScenario reproduces spec.md's literal scenario S5.
func TestCheckpointScenario(t *testing.T) {
	c := testSystem(t)
	defer c.Close()
	if err := c.Create("doc.txt"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	x0 := editengine.Script{SentenceIndex: 0, Inserts: []editengine.WordInsert{{WordIndex: 0, Word: "X0"}}}
	if err := c.WriteCommit("doc.txt", x0); err != nil {
		t.Fatalf("seed WriteCommit: %v", err)
	}
	if err := c.Checkpoint("doc.txt", "v1"); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}

	x1 := editengine.Script{SentenceIndex: 0, Inserts: []editengine.WordInsert{{WordIndex: 1, Word: "X1"}}}
	if err := c.WriteCommit("doc.txt", x1); err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}

	if err := c.Revert("doc.txt", "v1"); err != nil {
		t.Fatalf("Revert: %v", err)
	}
	body, err := c.Read("doc.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if body != "X0" {
		t.Fatalf("body after revert = %q, want X0", body)
	}

	if err := c.Undo("doc.txt"); err != nil {
		t.Fatalf("first Undo: %v", err)
	}
	body, _ = c.Read("doc.txt")
	if body != "X0 X1" {
		t.Fatalf("body after first undo = %q, want X0 X1", body)
	}

	if err := c.Undo("doc.txt"); err != nil {
		t.Fatalf("second Undo: %v", err)
	}
	body, _ = c.Read("doc.txt")
	if body != "X0" {
		t.Fatalf("body after second undo = %q, want X0", body)
	}

	cps, err := c.ListCheckpoints("doc.txt")
	if err != nil {
		t.Fatalf("ListCheckpoints: %v", err)
	}
	if len(cps) != 1 || cps[0].Tag != "v1" {
		t.Fatalf("ListCheckpoints = %+v, want one v1 entry", cps)
	}
}

func TestFoldersAndView(t *testing.T) {
	c := testSystem(t)
	defer c.Close()
	if err := c.Create("doc.txt"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := c.CreateFolder("notes"); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if err := c.Move("doc.txt", "notes"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	rows, err := c.ViewFolder("notes")
	if err != nil {
		t.Fatalf("ViewFolder: %v", err)
	}
	if len(rows) != 1 || rows[0].Filename != "doc.txt" {
		t.Fatalf("ViewFolder = %+v, want one row for doc.txt", rows)
	}

	all, err := c.View()
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(all) != 1 || all[0].Filename != "doc.txt" {
		t.Fatalf("View = %+v, want one row for doc.txt", all)
	}
}
