package namenode

import (
	"net"
	"strconv"
	"strings"
	"time"

	"sentedit.dev/sentedit/errors"
	"sentedit.dev/sentedit/rpclog"
	"sentedit.dev/sentedit/wire"
)

// Server dispatches frames arriving on the Name Node's single TCP
// port (spec.md §6, default 5000) against a Registry. One Server may
// back many concurrent connections; each connection is handled by its
// own goroutine, matching the multi-threaded, one-worker-per-session
// model of spec.md §5.
type Server struct {
	Reg *Registry

	// dial opens a connection to a Storage Node's control address.
	// It is a field, not a direct net.Dial call, so tests can
	// substitute an in-memory pipe.
	dial func(address string) (net.Conn, error)
}

// NewServer returns a Server dispatching against reg.
func NewServer(reg *Registry) *Server {
	return &Server{Reg: reg, dial: net.Dial}
}

// Serve accepts connections on ln until it returns an error (normally
// because ln was closed), handling each on its own goroutine.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// handleConn serves frames from a single long-lived connection in
// arrival order (spec.md §5: "Within a single NN session, requests
// are serialised in arrival order"). A decode failure is fatal to the
// session per spec.md §4.1.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	for {
		req, err := wire.Decode(conn)
		if err != nil {
			rpclog.Debug.Printf("namenode: session ended: %v", err)
			return
		}
		resp := s.dispatch(req)
		if err := wire.Encode(conn, resp); err != nil {
			rpclog.Error.Printf("namenode: write failed: %v", err)
			return
		}
	}
}

func errorResponse(kind wire.Kind, err error) *wire.Frame {
	return &wire.Frame{Kind: kind, Error: wire.CodeForError(err)}
}

func (s *Server) dispatch(req *wire.Frame) *wire.Frame {
	switch req.Kind {
	case wire.KindRegisterSS:
		return s.handleRegisterSS(req)
	case wire.KindHeartbeat:
		return s.handleHeartbeat(req)
	case wire.KindRegisterUser:
		return s.handleRegisterUser(req)
	case wire.KindCommand:
		return s.handleCommand(req)
	default:
		return errorResponse(wire.KindResponse, errors.E(errors.Op("namenode.dispatch"), errors.InvalidCommand))
	}
}

func (s *Server) handleRegisterSS(req *wire.Frame) *wire.Frame {
	host, controlPort, clientPort, ok := wire.DecodeRegistration(req.Data)
	if !ok {
		return errorResponse(wire.KindAck, errors.E(errors.Op("namenode.RegisterSS"), errors.InvalidParameters))
	}
	_ = s.Reg.RegisterStorageNode(req.Identity, host, controlPort, clientPort)
	rpclog.Printf("namenode: storage node %s registered at %s (control %d, client %d)", req.Identity, host, controlPort, clientPort)
	return &wire.Frame{Kind: wire.KindAck, Error: wire.CodeSuccess}
}

func (s *Server) handleHeartbeat(req *wire.Frame) *wire.Frame {
	if err := s.Reg.Heartbeat(req.Identity); err != nil {
		return errorResponse(wire.KindAck, err)
	}
	return &wire.Frame{Kind: wire.KindAck, Error: wire.CodeSuccess}
}

func (s *Server) handleRegisterUser(req *wire.Frame) *wire.Frame {
	s.Reg.RegisterUser(req.Identity, string(req.Data))
	return &wire.Frame{Kind: wire.KindAck, Error: wire.CodeSuccess}
}

// redirect builds a success response carrying the given node's
// client address, used by every operation that resolves to a
// Storage-Node hop.
func redirect(node StorageNodeRecord) *wire.Frame {
	return &wire.Frame{
		Kind:  wire.KindResponse,
		Error: wire.CodeSuccess,
		Data:  wire.EncodeAddress(node.Address, node.ClientPort),
	}
}

func (s *Server) handleCommand(req *wire.Frame) *wire.Frame {
	switch req.Command {
	case wire.CmdView:
		rows := make([]wire.ViewRow, 0)
		for _, f := range s.Reg.View() {
			rows = append(rows, wire.ViewRow{Filename: f.Filename, Owner: f.Owner, Words: f.Words, Chars: f.Chars})
		}
		return &wire.Frame{Kind: wire.KindResponse, Error: wire.CodeSuccess, Data: wire.EncodeView(rows)}

	case wire.CmdList:
		var ids, addrs []string
		for _, u := range s.Reg.Users() {
			ids = append(ids, u.Identity)
			addrs = append(addrs, u.Address)
		}
		return &wire.Frame{Kind: wire.KindResponse, Error: wire.CodeSuccess, Data: wire.EncodeUserList(ids, addrs)}

	case wire.CmdCreate:
		node, err := s.Reg.Create(req.Filename, req.Identity)
		if err != nil {
			return errorResponse(wire.KindResponse, err)
		}
		return redirect(node)

	case wire.CmdRead, wire.CmdInfo, wire.CmdFileInfo, wire.CmdStream, wire.CmdCopy,
		wire.CmdWrite, wire.CmdWriteCommit, wire.CmdAddAccess, wire.CmdRemAccess, wire.CmdUndo,
		wire.CmdCheckpoint, wire.CmdViewCheckpoint, wire.CmdRevert, wire.CmdListCheckpoints:
		node, err := s.Reg.Resolve(req.Filename)
		if err != nil {
			return errorResponse(wire.KindResponse, err)
		}
		return redirect(node)

	case wire.CmdCreateFolder:
		// req.Filename carries the folder name (SPEC_FULL.md §12).
		if err := s.Reg.CreateFolder(req.Filename); err != nil {
			return errorResponse(wire.KindResponse, err)
		}
		return &wire.Frame{Kind: wire.KindResponse, Error: wire.CodeSuccess}

	case wire.CmdMove:
		// req.Filename is the file to move; req.Data is the destination folder.
		if err := s.Reg.Move(req.Filename, string(req.Data), req.Identity); err != nil {
			return errorResponse(wire.KindResponse, err)
		}
		return &wire.Frame{Kind: wire.KindResponse, Error: wire.CodeSuccess}

	case wire.CmdViewFolder:
		// req.Filename carries the folder name being listed.
		rows := make([]wire.ViewRow, 0)
		for _, f := range s.Reg.ViewFolder(req.Filename) {
			rows = append(rows, wire.ViewRow{Filename: f.Filename, Owner: f.Owner, Words: f.Words, Chars: f.Chars})
		}
		return &wire.Frame{Kind: wire.KindResponse, Error: wire.CodeSuccess, Data: wire.EncodeView(rows)}

	case wire.CmdDelete:
		if err := s.Reg.Delete(req.Filename, req.Identity); err != nil {
			return errorResponse(wire.KindResponse, err)
		}
		return &wire.Frame{Kind: wire.KindResponse, Error: wire.CodeSuccess}

	case wire.CmdExec:
		// Exec materialises client-supplied content and runs it on
		// the Name Node host: a remote-code-execution surface
		// (spec.md §9). It is disabled rather than reimplemented.
		return errorResponse(wire.KindResponse, errors.E(errors.Op("namenode.Exec"), errors.ExecFailed,
			errors.Str("exec is disabled")))

	case wire.CmdLockAcquire:
		idx, err := strconv.Atoi(string(req.Data))
		if err != nil {
			return errorResponse(wire.KindResponse, errors.E(errors.Op("namenode.LockAcquire"), errors.InvalidParameters))
		}
		node, err := s.Reg.LockAcquire(req.Identity, req.Filename, idx)
		if err != nil {
			return errorResponse(wire.KindResponse, err)
		}
		return redirect(node)

	case wire.CmdLockRelease:
		idx, err := strconv.Atoi(string(req.Data))
		if err != nil {
			return errorResponse(wire.KindResponse, errors.E(errors.Op("namenode.LockRelease"), errors.InvalidParameters))
		}
		if err := s.Reg.LockRelease(req.Identity, req.Filename, idx); err != nil {
			return errorResponse(wire.KindResponse, err)
		}
		return &wire.Frame{Kind: wire.KindResponse, Error: wire.CodeSuccess}

	case wire.CmdRequestAccess:
		if err := s.Reg.RequestAccess(req.Filename, req.Identity); err != nil {
			return errorResponse(wire.KindResponse, err)
		}
		return &wire.Frame{Kind: wire.KindResponse, Error: wire.CodeSuccess}

	case wire.CmdViewRequests:
		reqs := s.Reg.ViewRequests(req.Identity)
		var b strings.Builder
		for _, ar := range reqs {
			b.WriteString(ar.Filename)
			b.WriteString("|")
			b.WriteString(ar.Requester)
			b.WriteString("|")
		}
		return &wire.Frame{Kind: wire.KindResponse, Error: wire.CodeSuccess, Data: []byte(b.String())}

	case wire.CmdApproveRequest:
		requester := string(req.Data)
		node, err := s.Reg.ApproveRequest(req.Filename, requester, req.Identity)
		if err != nil {
			return errorResponse(wire.KindResponse, err)
		}
		if err := s.pushACLGrant(node, req.Filename, requester); err != nil {
			return errorResponse(wire.KindResponse, err)
		}
		return &wire.Frame{Kind: wire.KindResponse, Error: wire.CodeSuccess}

	case wire.CmdDenyRequest:
		requester := string(req.Data)
		if err := s.Reg.DenyRequest(req.Filename, requester, req.Identity); err != nil {
			return errorResponse(wire.KindResponse, err)
		}
		return &wire.Frame{Kind: wire.KindResponse, Error: wire.CodeSuccess}

	default:
		return errorResponse(wire.KindResponse, errors.E(errors.Op("namenode.handleCommand"), errors.InvalidCommand))
	}
}

// pushACLGrant opens a short-lived control connection to node and
// sends an AddAccess command granting requester read permission on
// filename, per spec.md §4.6. This is the one place the Name Node
// sends a frame to a Storage Node; pingNode in heartbeat.go only dials
// and closes.
func (s *Server) pushACLGrant(node StorageNodeRecord, filename, requester string) error {
	const op = errors.Op("namenode.pushACLGrant")
	conn, err := s.dial(net.JoinHostPort(node.Address, strconv.Itoa(node.ControlPort)))
	if err != nil {
		return errors.E(op, filename, errors.Unavailable, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	reqFrame := &wire.Frame{
		Kind:     wire.KindSSCommand,
		Command:  wire.CmdAddAccess,
		Identity: "namenode",
		Filename: filename,
		Data:     []byte(requester + "|R"),
	}
	if err := wire.Encode(conn, reqFrame); err != nil {
		return errors.E(op, filename, errors.Internal, err)
	}
	resp, err := wire.Decode(conn)
	if err != nil {
		return errors.E(op, filename, errors.Internal, err)
	}
	if resp.Error != wire.CodeSuccess {
		return errors.E(op, filename, wire.KindForCode(resp.Error))
	}
	return nil
}
