// Storagenoded runs a single Storage Node: the holder of file
// content, metadata, ACLs, and checkpoint history for the files
// placed on it by the Name Node (spec.md §2, §4.6–§4.10).
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"

	"sentedit.dev/sentedit/flags"
	"sentedit.dev/sentedit/rpclog"
	"sentedit.dev/sentedit/shutdown"
	"sentedit.dev/sentedit/storagenode"
	"sentedit.dev/sentedit/version"
	"sentedit.dev/sentedit/wire"
)

var (
	selfID      = flag.String("id", "", "this storage node's unique identifier (required)")
	showVersion = flag.Bool("version", false, "print build version and exit")
)

func main() {
	flags.Parse(&flags.SSClientAddr, &flags.SSControlAddr, &flags.ContentDir,
		&flags.NNAddr, &flags.HeartbeatInterval, &flags.MaxACLEntries, &flags.MaxPayload)
	if *showVersion {
		fmt.Print(version.Version())
		os.Exit(0)
	}
	wire.SetMaxPayload(flags.MaxPayload)

	if *selfID == "" {
		rpclog.Error.Fatalf("storagenode: -id is required")
	}

	backend, err := storagenode.NewDiskBackend(flags.ContentDir)
	if err != nil {
		rpclog.Error.Fatalf("storagenode: open content dir %s: %v", flags.ContentDir, err)
	}
	srv := storagenode.NewServer(backend, flags.MaxACLEntries)
	disp := storagenode.NewDispatcher(srv)

	clientLn, err := net.Listen("tcp", flags.SSClientAddr)
	if err != nil {
		rpclog.Error.Fatalf("storagenode: listen on %s: %v", flags.SSClientAddr, err)
	}
	controlLn, err := net.Listen("tcp", flags.SSControlAddr)
	if err != nil {
		rpclog.Error.Fatalf("storagenode: listen on %s: %v", flags.SSControlAddr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	hb := storagenode.NewHeartbeatSession(flags.NNAddr, *selfID, flags.SSClientAddr, flags.SSControlAddr, flags.HeartbeatInterval)
	go hb.Run(ctx)

	shutdown.Handle(func() {
		rpclog.Printf("storagenode: shutting down")
		cancel()
		clientLn.Close()
		controlLn.Close()
	})

	go func() {
		if err := disp.ServeControl(controlLn); err != nil {
			rpclog.Debug.Printf("storagenode: control listener closed: %v", err)
		}
	}()

	rpclog.Printf("storagenode: %s listening for clients on %s, control on %s", *selfID, flags.SSClientAddr, flags.SSControlAddr)
	if err := disp.ServeClients(clientLn); err != nil {
		select {
		case <-ctx.Done():
			// Expected: ServeClients returns once shutdown closes clientLn.
		default:
			rpclog.Error.Fatalf("storagenode: serve: %v", err)
		}
	}
}
