package namenode

import (
	"context"
	"net"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"sentedit.dev/sentedit/rpclog"
)

// ScanForFailures walks every registered Storage Node and treats as
// suspects those whose last heartbeat is older than threshold. It
// pings all suspects' control ports together with PingAll: if every
// suspect answers, their heartbeats are refreshed and nothing is
// marked down; if any ping fails, every suspect is marked
// disconnected, including suspects that answered. Each node marked
// disconnected is logged with its replica peer (if any) as the
// failover candidate, per spec.md §4.5. It does not re-home any
// files; it only surfaces the degradation.
//
// A stale heartbeat alone is not proof of death — a slow sender or a
// missed tick looks identical on the Name Node side — which is why
// the suspects are pinged before any of them is marked disconnected.
func (r *Registry) ScanForFailures(ctx context.Context, threshold time.Duration) {
	r.mu.Lock()
	cutoff := r.now().Add(-threshold)
	var suspects []StorageNodeRecord
	for _, node := range r.nodes {
		if node.Connected && node.LastHeartbeat.Before(cutoff) {
			suspects = append(suspects, *node)
		}
	}
	r.mu.Unlock()

	if len(suspects) == 0 {
		return
	}

	if err := PingAll(ctx, suspects, r.pingNode); err == nil {
		r.mu.Lock()
		now := r.now()
		for _, s := range suspects {
			if node, ok := r.nodes[s.ID]; ok {
				node.LastHeartbeat = now
			}
		}
		r.mu.Unlock()
		return
	}

	type casualty struct {
		id   string
		peer string
	}
	r.mu.Lock()
	var dead []casualty
	for _, s := range suspects {
		node, ok := r.nodes[s.ID]
		if !ok || !node.Connected {
			continue
		}
		node.Connected = false
		dead = append(dead, casualty{s.ID, node.ReplicaPeer})
	}
	r.mu.Unlock()

	for _, c := range dead {
		if c.peer != "" {
			rpclog.Error.Printf("namenode: storage node %s disconnected (no heartbeat); failover candidate %s", c.id, c.peer)
		} else {
			rpclog.Error.Printf("namenode: storage node %s disconnected (no heartbeat); no replica peer registered", c.id)
		}
	}
}

// pingNode confirms a suspected Storage Node by dialing its control
// address; a successful dial is itself the liveness confirmation, so
// the connection is closed immediately rather than exchanging a
// frame.
func (r *Registry) pingNode(ctx context.Context, node StorageNodeRecord) error {
	addr := net.JoinHostPort(node.Address, strconv.Itoa(node.ControlPort))
	conn, err := r.dial(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

// RunFailureScanner runs ScanForFailures every interval until ctx is
// canceled. It is the Name Node's background task described in
// spec.md §4.5 and §5; callers typically run it in its own goroutine
// from main.
func (r *Registry) RunFailureScanner(ctx context.Context, interval, threshold time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ScanForFailures(ctx, threshold)
		}
	}
}

// PingAll concurrently confirms every node in nodes using ping,
// bounding the fan-out with errgroup and reporting the first error
// encountered. ScanForFailures is its production caller, confirming a
// batch of heartbeat-stale Storage Nodes before declaring any of them
// disconnected.
func PingAll(ctx context.Context, nodes []StorageNodeRecord, ping func(context.Context, StorageNodeRecord) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, n := range nodes {
		n := n
		g.Go(func() error {
			return ping(ctx, n)
		})
	}
	return g.Wait()
}
