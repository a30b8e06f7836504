package storagenode

import (
	"testing"

	"sentedit.dev/sentedit/wire"
)

func TestDispatchCreateReadWriteCommit(t *testing.T) {
	d := NewDispatcher(newTestServer())

	resp := d.dispatchCommand(&wire.Frame{Command: wire.CmdCreate, Identity: "u1", Filename: "doc.txt"})
	if resp.Error != wire.CodeSuccess {
		t.Fatalf("Create error = %v", resp.Error)
	}

	d.Srv.backend.Save("doc.txt", []byte("Hello world."))
	resp = d.dispatchCommand(&wire.Frame{Command: wire.CmdWriteCommit, Identity: "u1", Filename: "doc.txt", Data: []byte("0|1|there|")})
	if resp.Error != wire.CodeSuccess {
		t.Fatalf("WriteCommit error = %v", resp.Error)
	}

	resp = d.dispatchCommand(&wire.Frame{Command: wire.CmdRead, Identity: "u1", Filename: "doc.txt"})
	if resp.Error != wire.CodeSuccess {
		t.Fatalf("Read error = %v", resp.Error)
	}
	if string(resp.Data) != "Hello there world." {
		t.Fatalf("body = %q, want %q", resp.Data, "Hello there world.")
	}
}

func TestDispatchReadDeniedWithoutPermission(t *testing.T) {
	d := NewDispatcher(newTestServer())
	d.dispatchCommand(&wire.Frame{Command: wire.CmdCreate, Identity: "alice", Filename: "doc.txt"})

	resp := d.dispatchCommand(&wire.Frame{Command: wire.CmdRead, Identity: "bob", Filename: "doc.txt"})
	if resp.Error != wire.CodePermissionDenied {
		t.Fatalf("Read by stranger = %v, want CodePermissionDenied", resp.Error)
	}
}

func TestDispatchSSCommandAddAccessIsIdempotent(t *testing.T) {
	d := NewDispatcher(newTestServer())
	d.dispatchCommand(&wire.Frame{Command: wire.CmdCreate, Identity: "alice", Filename: "doc.txt"})

	grant := &wire.Frame{Kind: wire.KindSSCommand, Command: wire.CmdAddAccess, Filename: "doc.txt", Data: []byte("bob|R")}
	if resp := d.dispatchSSCommand(grant); resp.Error != wire.CodeSuccess {
		t.Fatalf("first ACL push error = %v", resp.Error)
	}
	if resp := d.dispatchSSCommand(grant); resp.Error != wire.CodeSuccess {
		t.Fatalf("second ACL push should also succeed, got %v", resp.Error)
	}

	resp := d.dispatchCommand(&wire.Frame{Command: wire.CmdRead, Identity: "bob", Filename: "doc.txt"})
	if resp.Error != wire.CodeSuccess {
		t.Fatalf("Read by bob after ACL push = %v", resp.Error)
	}
}

func TestDispatchSSCommandRejectsNonAddAccess(t *testing.T) {
	d := NewDispatcher(newTestServer())
	resp := d.dispatchSSCommand(&wire.Frame{Kind: wire.KindSSCommand, Command: wire.CmdDelete})
	if resp.Error != wire.CodeInvalidCommand {
		t.Fatalf("non-AddAccess SSCommand = %v, want CodeInvalidCommand", resp.Error)
	}
}

func TestDispatchCopy(t *testing.T) {
	d := NewDispatcher(newTestServer())
	d.dispatchCommand(&wire.Frame{Command: wire.CmdCreate, Identity: "alice", Filename: "src.txt"})
	d.Srv.backend.Save("src.txt", []byte("Shared content."))

	resp := d.dispatchCommand(&wire.Frame{Command: wire.CmdCopy, Identity: "alice", Data: []byte("src.txt|dst.txt")})
	if resp.Error != wire.CodeSuccess {
		t.Fatalf("Copy error = %v", resp.Error)
	}
	resp = d.dispatchCommand(&wire.Frame{Command: wire.CmdRead, Identity: "alice", Filename: "dst.txt"})
	if string(resp.Data) != "Shared content." {
		t.Fatalf("copied body = %q", resp.Data)
	}
}
