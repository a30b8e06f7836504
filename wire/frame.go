// Package wire implements the fixed-layout request/response frame
// used on every hop of the system: client to Name Node, client to
// Storage Node, and Storage Node to Name Node. See spec.md §4.1 and
// §6.
//
// Unlike the reference implementation this frame is versioned and
// uses a fixed, portable encoding: network byte order and fixed-width
// int32 fields throughout (spec.md §9, "Byte-order and sizing on the
// wire"). A frame is read or written in full; a short read is fatal
// to the session (spec.md §4.1).
package wire

import (
	"encoding/binary"
	"io"

	"sentedit.dev/sentedit/errors"
)

// Version is the frame format version. A peer that does not
// understand the version should refuse the connection rather than
// attempt to parse a frame of different layout.
const Version int32 = 1

// Size limits for the fixed-width string fields, matching the layout
// in spec.md §6.
const (
	IdentityFieldSize = 64
	FilenameFieldSize = 256
)

// DefaultMaxPayload is the default bound on the variable payload,
// overridable via flags.MaxPayload.
const DefaultMaxPayload = 8192

// Kind identifies the category of a frame, mirroring spec.md §6's
// message kinds.
type Kind int32

// Message kinds.
const (
	KindRegisterSS Kind = iota + 1
	KindRegisterUser
	KindCommand
	KindResponse
	KindSSCommand
	KindHeartbeat
	KindAck
)

// Command identifies the operation requested by a Command or
// SSCommand frame, per spec.md §6's command codes.
type Command int32

// Command codes.
const (
	CmdView Command = iota + 1
	CmdRead
	CmdCreate
	CmdWrite
	CmdDelete
	CmdInfo
	CmdList
	CmdAddAccess
	CmdRemAccess
	CmdStream
	CmdUndo
	CmdCopy
	CmdFileInfo
	CmdExec
	CmdWriteCommit
	CmdLockAcquire
	CmdLockRelease
	CmdCreateFolder
	CmdMove
	CmdViewFolder
	CmdCheckpoint
	CmdViewCheckpoint
	CmdRevert
	CmdListCheckpoints
	CmdRequestAccess
	CmdViewRequests
	CmdApproveRequest
	CmdDenyRequest
)

// Code is the numeric error code carried in a response frame, per
// spec.md §6.
type Code int32

// Error codes.
const (
	CodeSuccess Code = iota
	CodeFileNotFound
	CodeUnauthorized
	CodeFileLocked
	CodeInvalidIndex
	CodeFileExists
	CodePermissionDenied
	CodeInvalidCommand
	CodeStorageServerDown
	CodeInternal
	CodeUserNotFound
	CodeNoStorageServers
	CodeInvalidParameters
	CodeExecFailed
)

// kindForCode maps a Code back to its errors.Kind. CodeSuccess has no
// corresponding Kind; callers must check the code for success first.
var kindForCode = map[Code]errors.Kind{
	CodeFileNotFound:      errors.NotFound,
	CodeUnauthorized:      errors.Unauthorized,
	CodeFileLocked:        errors.Locked,
	CodeInvalidIndex:      errors.InvalidIndex,
	CodeFileExists:        errors.Exist,
	CodePermissionDenied:  errors.PermissionDenied,
	CodeInvalidCommand:    errors.InvalidCommand,
	CodeStorageServerDown: errors.Unavailable,
	CodeInternal:          errors.Internal,
	CodeUserNotFound:      errors.UserNotFound,
	CodeNoStorageServers:  errors.NoStorageServers,
	CodeInvalidParameters: errors.InvalidParameters,
	CodeExecFailed:        errors.ExecFailed,
}

var codeForKind = func() map[errors.Kind]Code {
	m := make(map[errors.Kind]Code, len(kindForCode))
	for code, kind := range kindForCode {
		m[kind] = code
	}
	return m
}()

// CodeForError maps an error built with package errors onto its wire
// Code. A nil error maps to CodeSuccess; an error with Kind Other maps
// to CodeInternal since Other carries no wire representation of its
// own.
func CodeForError(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	kind := errors.KindOf(err)
	if code, ok := codeForKind[kind]; ok {
		return code
	}
	return CodeInternal
}

// KindForCode is the inverse of CodeForError's lookup: it reports the
// errors.Kind corresponding to a non-success Code.
func KindForCode(code Code) errors.Kind {
	if k, ok := kindForCode[code]; ok {
		return k
	}
	return errors.Internal
}

// Frame is the in-memory representation of the wire message described
// in spec.md §6:
//
//	{kind:int32, command:int32, error:int32, identity[64], filename[256], data[8192], data_len:int32}
//
// Identity and Filename are ordinary Go strings in memory; Encode/Decode
// handle the fixed-width, NUL-padded wire representation.
type Frame struct {
	Kind     Kind
	Command  Command
	Error    Code
	Identity string
	Filename string
	Data     []byte
}

// maxPayload is the payload bound used by Encode/Decode. It defaults
// to DefaultMaxPayload and can be adjusted via SetMaxPayload, which
// the binaries under cmd/ call from flags.MaxPayload at startup.
var maxPayload = DefaultMaxPayload

// SetMaxPayload adjusts the payload bound enforced by Encode and
// Decode. It is not safe to call concurrently with Encode/Decode.
func SetMaxPayload(n int) {
	if n > 0 {
		maxPayload = n
	}
}

// frameSize returns the total encoded size of a frame with the
// current maxPayload: the version, kind, command and error int32s,
// the two fixed-width string fields, the payload slot, and data_len.
func frameSize() int {
	return 4 + 4 + 4 + 4 + IdentityFieldSize + FilenameFieldSize + maxPayload + 4
}

// Encode writes f to w in the fixed wire layout. It returns an error
// if any field overflows its fixed-width slot.
func Encode(w io.Writer, f *Frame) error {
	if len(f.Identity) > IdentityFieldSize-1 {
		return errors.E(errors.Op("wire.Encode"), errors.InvalidParameters, errors.Str("identity too long"))
	}
	if len(f.Filename) > FilenameFieldSize-1 {
		return errors.E(errors.Op("wire.Encode"), errors.InvalidParameters, errors.Str("filename too long"))
	}
	if len(f.Data) > maxPayload {
		return errors.E(errors.Op("wire.Encode"), errors.InvalidParameters, errors.Str("payload too large"))
	}

	buf := make([]byte, frameSize())
	off := 0
	putInt32(buf[off:], int32(Version))
	off += 4
	putInt32(buf[off:], int32(f.Kind))
	off += 4
	putInt32(buf[off:], int32(f.Command))
	off += 4
	putInt32(buf[off:], int32(f.Error))
	off += 4
	putPadded(buf[off:off+IdentityFieldSize], f.Identity)
	off += IdentityFieldSize
	putPadded(buf[off:off+FilenameFieldSize], f.Filename)
	off += FilenameFieldSize
	copy(buf[off:off+maxPayload], f.Data)
	off += maxPayload
	putInt32(buf[off:], int32(len(f.Data)))

	_, err := w.Write(buf)
	if err != nil {
		return errors.E(errors.Op("wire.Encode"), errors.Internal, err)
	}
	return nil
}

// Decode reads a single fixed-layout frame from r. A partial frame
// (fewer bytes available than the fixed size) is reported as an
// Internal error; per spec.md §4.1 this is fatal to the session and
// the caller should close the connection.
func Decode(r io.Reader) (*Frame, error) {
	buf := make([]byte, frameSize())
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.E(errors.Op("wire.Decode"), errors.Internal, err)
	}
	off := 0
	version := getInt32(buf[off:])
	off += 4
	if version != Version {
		return nil, errors.E(errors.Op("wire.Decode"), errors.Internal, errors.Str("unsupported frame version"))
	}
	f := &Frame{}
	f.Kind = Kind(getInt32(buf[off:]))
	off += 4
	f.Command = Command(getInt32(buf[off:]))
	off += 4
	f.Error = Code(getInt32(buf[off:]))
	off += 4
	f.Identity = getPadded(buf[off : off+IdentityFieldSize])
	off += IdentityFieldSize
	f.Filename = getPadded(buf[off : off+FilenameFieldSize])
	off += FilenameFieldSize
	dataLenOffset := off + maxPayload
	dataLen := int(getInt32(buf[dataLenOffset:]))
	if dataLen < 0 || dataLen > maxPayload {
		return nil, errors.E(errors.Op("wire.Decode"), errors.Internal, errors.Str("corrupt data_len"))
	}
	f.Data = append([]byte(nil), buf[off:off+dataLen]...)
	return f, nil
}

func putInt32(b []byte, v int32) {
	binary.BigEndian.PutUint32(b, uint32(v))
}

func getInt32(b []byte) int32 {
	return int32(binary.BigEndian.Uint32(b))
}

// putPadded copies s into b, NUL-terminating and right-padding it.
// Precondition: len(s) < len(b).
func putPadded(b []byte, s string) {
	n := copy(b, s)
	for i := n; i < len(b); i++ {
		b[i] = 0
	}
}

// getPadded returns the NUL-terminated string stored in b.
func getPadded(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}
