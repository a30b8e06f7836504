package storagenode

import (
	"context"
	"net"
	"strconv"
	"time"

	"sentedit.dev/sentedit/rpclog"
	"sentedit.dev/sentedit/wire"
)

// HeartbeatSession is the Storage Node's long-lived connection to the
// Name Node: it registers once, then sends a heartbeat frame every
// interval until ctx is canceled, reconnecting with a fixed back-off
// on any I/O failure (spec.md §4.5, §7: "Heartbeat sessions reconnect
// after a 5-s back-off on failure").
type HeartbeatSession struct {
	NNAddr      string
	SelfID      string
	ClientAddr  string // this node's client-facing address, host:port
	ControlAddr string // this node's control address, host:port (ACL pushes)

	Interval time.Duration
	Backoff  time.Duration

	dial func(network, address string) (net.Conn, error)
}

// NewHeartbeatSession returns a session that will register as selfID
// at nnAddr, advertising clientAddr and controlAddr as this node's
// client-facing and control addresses respectively.
func NewHeartbeatSession(nnAddr, selfID, clientAddr, controlAddr string, interval time.Duration) *HeartbeatSession {
	return &HeartbeatSession{
		NNAddr:      nnAddr,
		SelfID:      selfID,
		ClientAddr:  clientAddr,
		ControlAddr: controlAddr,
		Interval:    interval,
		Backoff:     5 * time.Second,
		dial:        net.Dial,
	}
}

// Run blocks, maintaining the heartbeat session until ctx is canceled.
func (h *HeartbeatSession) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := h.runOnce(ctx); err != nil {
			rpclog.Error.Printf("storagenode: heartbeat session to %s failed: %v", h.NNAddr, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(h.Backoff):
		}
	}
}

func (h *HeartbeatSession) runOnce(ctx context.Context) error {
	conn, err := h.dial("tcp", h.NNAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	host, clientPort, err := splitHostPort(h.ClientAddr)
	if err != nil {
		return err
	}
	_, controlPort, err := splitHostPort(h.ControlAddr)
	if err != nil {
		return err
	}
	reg := &wire.Frame{Kind: wire.KindRegisterSS, Identity: h.SelfID, Data: wire.EncodeRegistration(host, controlPort, clientPort)}
	if err := wire.Encode(conn, reg); err != nil {
		return err
	}
	if _, err := wire.Decode(conn); err != nil {
		return err
	}
	rpclog.Printf("storagenode: registered with name node at %s", h.NNAddr)

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			hb := &wire.Frame{Kind: wire.KindHeartbeat, Identity: h.SelfID}
			if err := wire.Encode(conn, hb); err != nil {
				return err
			}
			if _, err := wire.Decode(conn); err != nil {
				return err
			}
		}
	}
}

func splitHostPort(addr string) (host string, port int, err error) {
	h, p, splitErr := net.SplitHostPort(addr)
	if splitErr != nil {
		return "", 0, splitErr
	}
	n, convErr := strconv.Atoi(p)
	if convErr != nil {
		return "", 0, convErr
	}
	return h, n, nil
}
