// Package client implements the driver side of the protocol described
// in spec.md: a stateless caller that holds one long-lived session to
// the Name Node and opens a short-lived, connection-per-request
// session to a Storage Node for every content-bearing operation,
// using the address the Name Node hands back.
package client

import (
	"net"
	"strconv"
	"sync"
	"time"

	"sentedit.dev/sentedit/acl"
	"sentedit.dev/sentedit/editengine"
	"sentedit.dev/sentedit/errors"
	"sentedit.dev/sentedit/flags"
	"sentedit.dev/sentedit/wire"
)

// connectRetries and connectBackoff implement spec.md §7: "Transient
// connect failures to the NN from the client retry up to three times
// with a 2-s delay."
const (
	connectRetries = 3
	connectBackoff = 2 * time.Second
)

// Client is a driver for one user identity against one Name Node.
// A Client is not safe for concurrent use by multiple goroutines: the
// NN session is a single ordered stream of request/response pairs,
// matching spec.md §5's "requests are serialised in arrival order."
type Client struct {
	identity string
	nnAddr   string
	timeout  time.Duration

	dialNN func(network, address string) (net.Conn, error)
	dialSS func(network, address string) (net.Conn, error)

	mu   sync.Mutex
	conn net.Conn
}

// New returns a Client that authenticates as identity and talks to
// the Name Node at nnAddr.
func New(identity, nnAddr string) *Client {
	return &Client{
		identity: identity,
		nnAddr:   nnAddr,
		timeout:  flags.SessionTimeout,
		dialNN:   net.Dial,
		dialSS:   net.Dial,
	}
}

// Register announces identity to the Name Node at the given advertised
// address, the address other users will be told to dial for
// identity-addressed operations such as access grants.
func (c *Client) Register(address string) error {
	_, err := c.callNN(&wire.Frame{Kind: wire.KindRegisterUser, Identity: c.identity, Data: []byte(address)})
	return err
}

// callNN sends req on the NN session, reconnecting with the retry
// policy of spec.md §7 if no session is currently open or the prior
// one failed.
func (c *Client) callNN(req *wire.Frame) (*wire.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, err := c.connectNN()
		if err != nil {
			return nil, err
		}
		c.conn = conn
	}

	resp, err := c.roundTrip(c.conn, req)
	if err != nil {
		c.conn.Close()
		c.conn = nil
		return nil, err
	}
	return resp, nil
}

func (c *Client) connectNN() (net.Conn, error) {
	const op = errors.Op("client.connectNN")
	var lastErr error
	for attempt := 0; attempt < connectRetries; attempt++ {
		conn, err := c.dialNN("tcp", c.nnAddr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if attempt < connectRetries-1 {
			time.Sleep(connectBackoff)
		}
	}
	return nil, errors.E(op, errors.Unavailable, lastErr)
}

// roundTrip writes req to conn and reads back exactly one frame,
// honoring the session send/receive timeout (spec.md §5).
func (c *Client) roundTrip(conn net.Conn, req *wire.Frame) (*wire.Frame, error) {
	const op = errors.Op("client.roundTrip")
	conn.SetDeadline(time.Now().Add(c.timeout))
	if err := wire.Encode(conn, req); err != nil {
		return nil, errors.E(op, errors.Internal, err)
	}
	resp, err := wire.Decode(conn)
	if err != nil {
		return nil, errors.E(op, errors.Unavailable, err)
	}
	return resp, nil
}

// callSS opens a new connection to address, sends req, and reads back
// one frame, then closes the connection: the client→SN hop is
// connection-per-request (spec.md §4.1).
func (c *Client) callSS(address string, req *wire.Frame) (*wire.Frame, error) {
	const op = errors.Op("client.callSS")
	conn, err := c.dialSS("tcp", address)
	if err != nil {
		return nil, errors.E(op, errors.Unavailable, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))
	if err := wire.Encode(conn, req); err != nil {
		return nil, errors.E(op, errors.Internal, err)
	}
	resp, err := wire.Decode(conn)
	if err != nil {
		return nil, errors.E(op, errors.Unavailable, err)
	}
	return resp, nil
}

// asError turns a non-success response frame into a *errors.Error,
// or returns nil if resp reports success.
func asError(op errors.Op, filename string, resp *wire.Frame) error {
	if resp.Error == wire.CodeSuccess {
		return nil
	}
	return errors.E(op, filename, wire.KindForCode(resp.Error))
}

// resolve asks the Name Node to resolve filename for the given
// command and returns the home Storage Node's client address. Every
// content-bearing operation goes through this two-hop pattern (spec.md
// §4.2).
func (c *Client) resolve(command wire.Command, filename string) (string, error) {
	const op = errors.Op("client.resolve")
	resp, err := c.callNN(&wire.Frame{Kind: wire.KindCommand, Command: command, Identity: c.identity, Filename: filename})
	if err != nil {
		return "", err
	}
	if err := asError(op, filename, resp); err != nil {
		return "", err
	}
	host, port, ok := wire.DecodeAddress(resp.Data)
	if !ok {
		return "", errors.E(op, filename, errors.Internal, errors.Str("malformed redirect"))
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// View lists every file in the namespace.
func (c *Client) View() ([]wire.ViewRow, error) {
	resp, err := c.callNN(&wire.Frame{Kind: wire.KindCommand, Command: wire.CmdView, Identity: c.identity})
	if err != nil {
		return nil, err
	}
	if err := asError(errors.Op("client.View"), "", resp); err != nil {
		return nil, err
	}
	return wire.DecodeView(resp.Data), nil
}

// ListUsers returns every registered identity and its advertised
// address.
func (c *Client) ListUsers() ([]string, []string, error) {
	resp, err := c.callNN(&wire.Frame{Kind: wire.KindCommand, Command: wire.CmdList, Identity: c.identity})
	if err != nil {
		return nil, nil, err
	}
	if err := asError(errors.Op("client.ListUsers"), "", resp); err != nil {
		return nil, nil, err
	}
	fields := splitPipe(resp.Data)
	var ids, addrs []string
	for i := 0; i+1 < len(fields); i += 2 {
		ids = append(ids, fields[i])
		addrs = append(addrs, fields[i+1])
	}
	return ids, addrs, nil
}

// Create creates an empty file named filename, owned by the caller's
// identity.
func (c *Client) Create(filename string) error {
	const op = errors.Op("client.Create")
	resp, err := c.callNN(&wire.Frame{Kind: wire.KindCommand, Command: wire.CmdCreate, Identity: c.identity, Filename: filename})
	if err != nil {
		return err
	}
	if err := asError(op, filename, resp); err != nil {
		return err
	}
	host, port, ok := wire.DecodeAddress(resp.Data)
	if !ok {
		return errors.E(op, filename, errors.Internal, errors.Str("malformed redirect"))
	}
	ssResp, err := c.callSS(net.JoinHostPort(host, strconv.Itoa(port)), &wire.Frame{Command: wire.CmdCreate, Identity: c.identity, Filename: filename})
	if err != nil {
		return err
	}
	return asError(op, filename, ssResp)
}

// Read returns the current body of filename.
func (c *Client) Read(filename string) (string, error) {
	const op = errors.Op("client.Read")
	addr, err := c.resolve(wire.CmdRead, filename)
	if err != nil {
		return "", err
	}
	resp, err := c.callSS(addr, &wire.Frame{Command: wire.CmdRead, Identity: c.identity, Filename: filename})
	if err != nil {
		return "", err
	}
	if err := asError(op, filename, resp); err != nil {
		return "", err
	}
	return string(resp.Data), nil
}

// Stream returns filename's body tokenised into words, in order,
// across all of its sentences.
func (c *Client) Stream(filename string) ([]string, error) {
	const op = errors.Op("client.Stream")
	addr, err := c.resolve(wire.CmdStream, filename)
	if err != nil {
		return nil, err
	}
	resp, err := c.callSS(addr, &wire.Frame{Command: wire.CmdStream, Identity: c.identity, Filename: filename})
	if err != nil {
		return nil, err
	}
	if err := asError(op, filename, resp); err != nil {
		return nil, err
	}
	return splitPipe(resp.Data), nil
}

// WriteCommit applies script to filename. Callers editing a specific
// sentence under lock should bracket this with LockAcquire/LockRelease
// (spec.md §4.8, scenario S2).
func (c *Client) WriteCommit(filename string, script editengine.Script) error {
	const op = errors.Op("client.WriteCommit")
	addr, err := c.resolve(wire.CmdWriteCommit, filename)
	if err != nil {
		return err
	}
	raw := editengine.EncodeScript(script)
	resp, err := c.callSS(addr, &wire.Frame{Command: wire.CmdWriteCommit, Identity: c.identity, Filename: filename, Data: []byte(raw)})
	if err != nil {
		return err
	}
	return asError(op, filename, resp)
}

// Undo reverts filename's last committed edit.
func (c *Client) Undo(filename string) error {
	const op = errors.Op("client.Undo")
	addr, err := c.resolve(wire.CmdUndo, filename)
	if err != nil {
		return err
	}
	resp, err := c.callSS(addr, &wire.Frame{Command: wire.CmdUndo, Identity: c.identity, Filename: filename})
	if err != nil {
		return err
	}
	return asError(op, filename, resp)
}

// FileInfo is the decoded form of a CmdInfo/CmdFileInfo reply.
type FileInfo struct {
	Owner          string
	Created        time.Time
	Modified       time.Time
	Accessed       time.Time
	LastAccessedBy string
	Words          int
	Chars          int
	ACL            []acl.Entry
}

// Info returns filename's metadata and ACL.
func (c *Client) Info(filename string) (FileInfo, error) {
	const op = errors.Op("client.Info")
	addr, err := c.resolve(wire.CmdFileInfo, filename)
	if err != nil {
		return FileInfo{}, err
	}
	resp, err := c.callSS(addr, &wire.Frame{Command: wire.CmdFileInfo, Identity: c.identity, Filename: filename})
	if err != nil {
		return FileInfo{}, err
	}
	if err := asError(op, filename, resp); err != nil {
		return FileInfo{}, err
	}
	return decodeFileInfo(resp.Data)
}

// Copy clones src's current content into a new file dst, owned by the
// caller.
func (c *Client) Copy(src, dst string) error {
	const op = errors.Op("client.Copy")
	addr, err := c.resolve(wire.CmdCopy, src)
	if err != nil {
		return err
	}
	resp, err := c.callSS(addr, &wire.Frame{Command: wire.CmdCopy, Identity: c.identity, Data: wire.EncodeCopyRequest(src, dst)})
	if err != nil {
		return err
	}
	return asError(op, src, resp)
}

// Delete removes filename. Per spec.md §4.3 the client, not the Name
// Node, is responsible for instructing the home Storage Node to
// discard its artifacts; Delete therefore resolves the home node
// before asking the Name Node to drop the namespace entry, then tells
// the Storage Node to delete its copy.
func (c *Client) Delete(filename string) error {
	const op = errors.Op("client.Delete")
	addr, err := c.resolve(wire.CmdFileInfo, filename)
	if err != nil {
		return err
	}
	resp, err := c.callNN(&wire.Frame{Kind: wire.KindCommand, Command: wire.CmdDelete, Identity: c.identity, Filename: filename})
	if err != nil {
		return err
	}
	if err := asError(op, filename, resp); err != nil {
		return err
	}
	ssResp, err := c.callSS(addr, &wire.Frame{Command: wire.CmdDelete, Identity: c.identity, Filename: filename})
	if err != nil {
		return err
	}
	return asError(op, filename, ssResp)
}

// AddAccess grants perm to target on filename. The caller must own
// filename.
func (c *Client) AddAccess(filename, target string, perm acl.Permission) error {
	const op = errors.Op("client.AddAccess")
	addr, err := c.resolve(wire.CmdAddAccess, filename)
	if err != nil {
		return err
	}
	resp, err := c.callSS(addr, &wire.Frame{
		Command:  wire.CmdAddAccess,
		Identity: c.identity,
		Filename: filename,
		Data:     []byte(target + "|" + perm.String()),
	})
	if err != nil {
		return err
	}
	return asError(op, filename, resp)
}

// RemAccess revokes target's access to filename. The caller must own
// filename.
func (c *Client) RemAccess(filename, target string) error {
	const op = errors.Op("client.RemAccess")
	addr, err := c.resolve(wire.CmdRemAccess, filename)
	if err != nil {
		return err
	}
	resp, err := c.callSS(addr, &wire.Frame{Command: wire.CmdRemAccess, Identity: c.identity, Filename: filename, Data: []byte(target)})
	if err != nil {
		return err
	}
	return asError(op, filename, resp)
}

// LockAcquire acquires the sentence lock (filename, sentenceIndex) for
// the caller, returning the home Storage Node's address so the caller
// can issue the scoped WriteCommit without a second resolve round
// trip.
func (c *Client) LockAcquire(filename string, sentenceIndex int) (string, error) {
	const op = errors.Op("client.LockAcquire")
	resp, err := c.callNN(&wire.Frame{
		Kind:     wire.KindCommand,
		Command:  wire.CmdLockAcquire,
		Identity: c.identity,
		Filename: filename,
		Data:     []byte(strconv.Itoa(sentenceIndex)),
	})
	if err != nil {
		return "", err
	}
	if err := asError(op, filename, resp); err != nil {
		return "", err
	}
	host, port, ok := wire.DecodeAddress(resp.Data)
	if !ok {
		return "", errors.E(op, filename, errors.Internal, errors.Str("malformed redirect"))
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// LockRelease releases the sentence lock (filename, sentenceIndex)
// held by the caller.
func (c *Client) LockRelease(filename string, sentenceIndex int) error {
	const op = errors.Op("client.LockRelease")
	resp, err := c.callNN(&wire.Frame{
		Kind:     wire.KindCommand,
		Command:  wire.CmdLockRelease,
		Identity: c.identity,
		Filename: filename,
		Data:     []byte(strconv.Itoa(sentenceIndex)),
	})
	if err != nil {
		return err
	}
	return asError(op, filename, resp)
}

// RequestAccess files an access request for filename on the caller's
// behalf, for the file's owner to approve or deny.
func (c *Client) RequestAccess(filename string) error {
	const op = errors.Op("client.RequestAccess")
	resp, err := c.callNN(&wire.Frame{Kind: wire.KindCommand, Command: wire.CmdRequestAccess, Identity: c.identity, Filename: filename})
	if err != nil {
		return err
	}
	return asError(op, filename, resp)
}

// AccessRequest is one pending request surfaced by ViewRequests.
type AccessRequest struct {
	Filename  string
	Requester string
}

// ViewRequests returns the pending access requests against files the
// caller owns.
func (c *Client) ViewRequests() ([]AccessRequest, error) {
	resp, err := c.callNN(&wire.Frame{Kind: wire.KindCommand, Command: wire.CmdViewRequests, Identity: c.identity})
	if err != nil {
		return nil, err
	}
	if err := asError(errors.Op("client.ViewRequests"), "", resp); err != nil {
		return nil, err
	}
	fields := splitPipe(resp.Data)
	var out []AccessRequest
	for i := 0; i+1 < len(fields); i += 2 {
		out = append(out, AccessRequest{Filename: fields[i], Requester: fields[i+1]})
	}
	return out, nil
}

// ApproveRequest grants requester read access to filename, pushing the
// grant through to the home Storage Node's ACL.
func (c *Client) ApproveRequest(filename, requester string) error {
	const op = errors.Op("client.ApproveRequest")
	resp, err := c.callNN(&wire.Frame{Kind: wire.KindCommand, Command: wire.CmdApproveRequest, Identity: c.identity, Filename: filename, Data: []byte(requester)})
	if err != nil {
		return err
	}
	return asError(op, filename, resp)
}

// DenyRequest rejects requester's pending access request on filename.
func (c *Client) DenyRequest(filename, requester string) error {
	const op = errors.Op("client.DenyRequest")
	resp, err := c.callNN(&wire.Frame{Kind: wire.KindCommand, Command: wire.CmdDenyRequest, Identity: c.identity, Filename: filename, Data: []byte(requester)})
	if err != nil {
		return err
	}
	return asError(op, filename, resp)
}

// CreateFolder declares folder as a valid destination for Move.
func (c *Client) CreateFolder(folder string) error {
	const op = errors.Op("client.CreateFolder")
	resp, err := c.callNN(&wire.Frame{Kind: wire.KindCommand, Command: wire.CmdCreateFolder, Identity: c.identity, Filename: folder})
	if err != nil {
		return err
	}
	return asError(op, folder, resp)
}

// Move tags filename with folder, or clears the tag if folder is "".
// The caller must own filename.
func (c *Client) Move(filename, folder string) error {
	const op = errors.Op("client.Move")
	resp, err := c.callNN(&wire.Frame{Kind: wire.KindCommand, Command: wire.CmdMove, Identity: c.identity, Filename: filename, Data: []byte(folder)})
	if err != nil {
		return err
	}
	return asError(op, filename, resp)
}

// ViewFolder lists the files tagged with folder.
func (c *Client) ViewFolder(folder string) ([]wire.ViewRow, error) {
	resp, err := c.callNN(&wire.Frame{Kind: wire.KindCommand, Command: wire.CmdViewFolder, Identity: c.identity, Filename: folder})
	if err != nil {
		return nil, err
	}
	if err := asError(errors.Op("client.ViewFolder"), folder, resp); err != nil {
		return nil, err
	}
	return wire.DecodeView(resp.Data), nil
}

// Checkpoint snapshots filename's current body under tag.
func (c *Client) Checkpoint(filename, tag string) error {
	const op = errors.Op("client.Checkpoint")
	addr, err := c.resolve(wire.CmdCheckpoint, filename)
	if err != nil {
		return err
	}
	resp, err := c.callSS(addr, &wire.Frame{Command: wire.CmdCheckpoint, Identity: c.identity, Filename: filename, Data: []byte(tag)})
	if err != nil {
		return err
	}
	return asError(op, filename, resp)
}

// ViewCheckpoint returns the body saved under tag.
func (c *Client) ViewCheckpoint(filename, tag string) (string, error) {
	const op = errors.Op("client.ViewCheckpoint")
	addr, err := c.resolve(wire.CmdViewCheckpoint, filename)
	if err != nil {
		return "", err
	}
	resp, err := c.callSS(addr, &wire.Frame{Command: wire.CmdViewCheckpoint, Identity: c.identity, Filename: filename, Data: []byte(tag)})
	if err != nil {
		return "", err
	}
	if err := asError(op, filename, resp); err != nil {
		return "", err
	}
	return string(resp.Data), nil
}

// Revert restores filename's body from the checkpoint tag, snapshotting
// the pre-revert body into the undo slot.
func (c *Client) Revert(filename, tag string) error {
	const op = errors.Op("client.Revert")
	addr, err := c.resolve(wire.CmdRevert, filename)
	if err != nil {
		return err
	}
	resp, err := c.callSS(addr, &wire.Frame{Command: wire.CmdRevert, Identity: c.identity, Filename: filename, Data: []byte(tag)})
	if err != nil {
		return err
	}
	return asError(op, filename, resp)
}

// CheckpointInfo is the decoded form of one ListCheckpoints entry.
type CheckpointInfo struct {
	Tag string
	At  time.Time
}

// ListCheckpoints lists the checkpoints saved against filename.
func (c *Client) ListCheckpoints(filename string) ([]CheckpointInfo, error) {
	const op = errors.Op("client.ListCheckpoints")
	addr, err := c.resolve(wire.CmdListCheckpoints, filename)
	if err != nil {
		return nil, err
	}
	resp, err := c.callSS(addr, &wire.Frame{Command: wire.CmdListCheckpoints, Identity: c.identity, Filename: filename})
	if err != nil {
		return nil, err
	}
	if err := asError(op, filename, resp); err != nil {
		return nil, err
	}
	fields := splitPipe(resp.Data)
	var out []CheckpointInfo
	for i := 0; i+1 < len(fields); i += 2 {
		at, _ := time.Parse(time.RFC3339, fields[i+1])
		out = append(out, CheckpointInfo{Tag: fields[i], At: at})
	}
	return out, nil
}

// Close tears down the client's Name Node session, if one is open.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
