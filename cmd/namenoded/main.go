// Namenoded runs the Name Node: the coordinator that owns the global
// namespace, Storage Node placement, sentence locks, and the
// access-request workflow described in spec.md §2–§4.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"

	"sentedit.dev/sentedit/flags"
	"sentedit.dev/sentedit/namenode"
	"sentedit.dev/sentedit/rpclog"
	"sentedit.dev/sentedit/shutdown"
	"sentedit.dev/sentedit/version"
	"sentedit.dev/sentedit/wire"
)

var showVersion = flag.Bool("version", false, "print build version and exit")

func main() {
	flags.Parse(&flags.NNAddr, &flags.ScanInterval, &flags.FailureThreshold, &flags.CacheSize, &flags.MaxPayload)
	if *showVersion {
		fmt.Print(version.Version())
		os.Exit(0)
	}
	wire.SetMaxPayload(flags.MaxPayload)

	reg := namenode.NewRegistry(flags.CacheSize)

	ctx, cancel := context.WithCancel(context.Background())
	go reg.RunFailureScanner(ctx, flags.ScanInterval, flags.FailureThreshold)

	ln, err := net.Listen("tcp", flags.NNAddr)
	if err != nil {
		rpclog.Error.Fatalf("namenode: listen on %s: %v", flags.NNAddr, err)
	}
	shutdown.Handle(func() {
		rpclog.Printf("namenode: shutting down")
		cancel()
		ln.Close()
	})

	srv := namenode.NewServer(reg)
	rpclog.Printf("namenode: listening on %s", flags.NNAddr)
	if err := srv.Serve(ln); err != nil {
		select {
		case <-ctx.Done():
			// Expected: Serve returns once shutdown closes ln.
		default:
			rpclog.Error.Fatalf("namenode: serve: %v", err)
		}
	}
}
