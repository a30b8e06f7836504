package storagenode

import (
	"context"
	"net"
	"testing"
	"time"

	"sentedit.dev/sentedit/wire"
)

func TestHeartbeatSessionRegistersThenSendsHeartbeats(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	registered := make(chan string, 1)
	heartbeats := make(chan string, 1)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reg, err := wire.Decode(conn)
		if err != nil {
			return
		}
		host, controlPort, clientPort, ok := wire.DecodeRegistration(reg.Data)
		if !ok || host != "10.0.0.9" || controlPort != 6000 || clientPort != 7000 {
			return
		}
		registered <- reg.Identity
		wire.Encode(conn, &wire.Frame{Kind: wire.KindAck, Error: wire.CodeSuccess})

		hb, err := wire.Decode(conn)
		if err != nil {
			return
		}
		heartbeats <- hb.Identity
		wire.Encode(conn, &wire.Frame{Kind: wire.KindAck, Error: wire.CodeSuccess})
	}()

	h := NewHeartbeatSession(ln.Addr().String(), "ss-a", "10.0.0.9:7000", "10.0.0.9:6000", 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	defer cancel()

	select {
	case id := <-registered:
		if id != "ss-a" {
			t.Fatalf("registered identity = %q, want ss-a", id)
		}
	case <-time.After(time.Second):
		t.Fatal("registration never arrived")
	}

	select {
	case id := <-heartbeats:
		if id != "ss-a" {
			t.Fatalf("heartbeat identity = %q, want ss-a", id)
		}
	case <-time.After(time.Second):
		t.Fatal("heartbeat never arrived")
	}
}

func TestSplitHostPort(t *testing.T) {
	host, port, err := splitHostPort("10.0.0.5:7000")
	if err != nil {
		t.Fatalf("splitHostPort: %v", err)
	}
	if host != "10.0.0.5" || port != 7000 {
		t.Fatalf("splitHostPort = %q:%d", host, port)
	}
}
