package storagenode

import (
	"net"

	"sentedit.dev/sentedit/errors"
	"sentedit.dev/sentedit/rpclog"
	"sentedit.dev/sentedit/wire"
)

// Dispatcher binds a Server to the wire protocol, serving the client
// port (direct content operations, spec.md §4.7) and the control port
// (Name Node pushes, spec.md §4.6) on the same frame format.
type Dispatcher struct {
	Srv *Server
}

// NewDispatcher returns a Dispatcher over srv.
func NewDispatcher(srv *Server) *Dispatcher {
	return &Dispatcher{Srv: srv}
}

// ServeClients accepts client connections on ln, handling each on its
// own goroutine. Per spec.md §4.1, a client→SN hop is connection-per-
// request, so handleOneFrame serves exactly one frame per
// connection.
func (d *Dispatcher) ServeClients(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go d.handleOneFrame(conn, d.dispatchCommand)
	}
}

// ServeControl accepts Name Node control connections on ln (ACL
// pushes from approved access requests).
func (d *Dispatcher) ServeControl(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go d.handleOneFrame(conn, d.dispatchSSCommand)
	}
}

func (d *Dispatcher) handleOneFrame(conn net.Conn, handle func(*wire.Frame) *wire.Frame) {
	defer conn.Close()
	req, err := wire.Decode(conn)
	if err != nil {
		rpclog.Debug.Printf("storagenode: decode failed: %v", err)
		return
	}
	resp := handle(req)
	if err := wire.Encode(conn, resp); err != nil {
		rpclog.Error.Printf("storagenode: write failed: %v", err)
	}
}

func errorResponse(err error) *wire.Frame {
	return &wire.Frame{Kind: wire.KindResponse, Error: wire.CodeForError(err)}
}

func ok() *wire.Frame {
	return &wire.Frame{Kind: wire.KindResponse, Error: wire.CodeSuccess}
}

func okData(data []byte) *wire.Frame {
	return &wire.Frame{Kind: wire.KindResponse, Error: wire.CodeSuccess, Data: data}
}

func (d *Dispatcher) dispatchCommand(req *wire.Frame) *wire.Frame {
	s := d.Srv
	switch req.Command {
	case wire.CmdCreate:
		if err := s.Create(req.Filename, req.Identity); err != nil {
			return errorResponse(err)
		}
		return ok()

	case wire.CmdRead:
		body, err := s.Read(req.Filename, req.Identity)
		if err != nil {
			return errorResponse(err)
		}
		return okData([]byte(body))

	case wire.CmdWrite, wire.CmdWriteCommit:
		// No documented distinction between "write" and "write-commit"
		// survives into spec.md §4.7, which names only WriteCommit; both
		// command codes are served identically.
		if err := s.WriteCommit(req.Filename, req.Identity, string(req.Data)); err != nil {
			return errorResponse(err)
		}
		return ok()

	case wire.CmdDelete:
		if err := s.Delete(req.Filename, req.Identity); err != nil {
			return errorResponse(err)
		}
		return ok()

	case wire.CmdUndo:
		if err := s.Undo(req.Filename, req.Identity); err != nil {
			return errorResponse(err)
		}
		return ok()

	case wire.CmdInfo, wire.CmdFileInfo:
		info, err := s.Info(req.Filename, req.Identity)
		if err != nil {
			return errorResponse(err)
		}
		return okData(encodeFileInfo(info))

	case wire.CmdStream:
		words, err := s.Stream(req.Filename, req.Identity)
		if err != nil {
			return errorResponse(err)
		}
		var data []byte
		for _, w := range words {
			data = append(data, []byte(w)...)
			data = append(data, '|')
		}
		return okData(data)

	case wire.CmdCopy:
		src, dst, okParse := decodeCopyRequest(req.Data)
		if !okParse {
			return errorResponse(errors.E(errors.Op("storagenode.dispatchCommand"), errors.InvalidParameters))
		}
		if err := s.Copy(src, dst, req.Identity); err != nil {
			return errorResponse(err)
		}
		return ok()

	case wire.CmdAddAccess:
		target, perm, err := decodeAddAccessRequest(req.Data)
		if err != nil {
			return errorResponse(err)
		}
		if err := s.AddAccess(req.Filename, req.Identity, target, perm); err != nil {
			return errorResponse(err)
		}
		return ok()

	case wire.CmdRemAccess:
		if err := s.RemAccess(req.Filename, req.Identity, string(req.Data)); err != nil {
			return errorResponse(err)
		}
		return ok()

	case wire.CmdCheckpoint:
		if err := s.Checkpoint(req.Filename, req.Identity, string(req.Data)); err != nil {
			return errorResponse(err)
		}
		return ok()

	case wire.CmdViewCheckpoint:
		body, err := s.ViewCheckpoint(req.Filename, req.Identity, string(req.Data))
		if err != nil {
			return errorResponse(err)
		}
		return okData([]byte(body))

	case wire.CmdRevert:
		if err := s.Revert(req.Filename, req.Identity, string(req.Data)); err != nil {
			return errorResponse(err)
		}
		return ok()

	case wire.CmdListCheckpoints:
		cps, err := s.ListCheckpoints(req.Filename, req.Identity)
		if err != nil {
			return errorResponse(err)
		}
		return okData(encodeCheckpointList(cps))

	default:
		return errorResponse(errors.E(errors.Op("storagenode.dispatchCommand"), errors.InvalidCommand))
	}
}

// dispatchSSCommand handles frames arriving on the control port, sent
// by the Name Node on behalf of an approved access request (spec.md
// §4.6). Only AddAccess is accepted here, and it upgrades rather than
// rejects an existing grant so a re-run approval cannot corrupt the
// ACL (spec.md §4.6: "the SN is the source of truth for ACL
// membership").
func (d *Dispatcher) dispatchSSCommand(req *wire.Frame) *wire.Frame {
	if req.Command != wire.CmdAddAccess {
		return errorResponse(errors.E(errors.Op("storagenode.dispatchSSCommand"), errors.InvalidCommand))
	}
	target, perm, err := decodeAddAccessRequest(req.Data)
	if err != nil {
		return errorResponse(err)
	}
	if err := d.Srv.addOrUpgradeAccess(req.Filename, target, perm); err != nil {
		return errorResponse(err)
	}
	return ok()
}
