// Package errors defines the structured error type used across the
// Name Node, Storage Node, and client. Every operation in this module
// returns errors built with E, so that the wire layer (package wire)
// can losslessly translate between an in-process error and the
// numeric error_code carried in a response frame.
package errors

import (
	"bytes"
	"fmt"
	"strings"
)

// Error is the type that implements the error interface.
// It contains a number of fields, each of different type.
// An Error value may leave some values unset.
type Error struct {
	// Filename is the name of the file being operated on, if any.
	Filename string
	// Identity is the asserted identity of the caller, if any.
	Identity string
	// Op is the operation being performed, usually the name of the
	// method being invoked (Create, WriteCommit, LockAcquire, ...).
	Op Op
	// Kind is the class of error, such as a namespace or
	// authorization failure, or Other if unknown.
	Kind Kind
	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Op describes the operation that produced an error, e.g. "Create".
type Op string

var zeroErr Error

// Separator is the string used to separate nested errors. By default,
// to make errors easier to read, nested errors are indented on a new
// line.
var Separator = ":\n\t"

// Kind defines the class of error. Kind maps 1:1 onto the numeric
// error codes of the wire protocol; see wire.CodeForError and
// wire.KindForCode.
type Kind uint8

// Kinds of errors, ordered to match the wire error codes in spec.md §6.
const (
	Other             Kind = iota // unclassified
	NotFound                      // file-not-found
	Unauthorized                  // caller is not owner/holder
	Locked                        // sentence-lock held by another user
	InvalidIndex                  // sentence or word index out of range
	Exist                         // file already exists
	PermissionDenied              // ACL does not grant the right
	InvalidCommand                // unrecognized command code
	Unavailable                   // storage-server-down
	Internal                      // disk/socket/internal failure
	UserNotFound                  // unknown user identity
	NoStorageServers              // placement found no connected SN
	InvalidParameters             // malformed request/edit script
	ExecFailed                    // exec command failed
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case NotFound:
		return "file not found"
	case Unauthorized:
		return "unauthorized"
	case Locked:
		return "file locked"
	case InvalidIndex:
		return "invalid index"
	case Exist:
		return "file exists"
	case PermissionDenied:
		return "permission denied"
	case InvalidCommand:
		return "invalid command"
	case Unavailable:
		return "storage server down"
	case Internal:
		return "internal error"
	case UserNotFound:
		return "user not found"
	case NoStorageServers:
		return "no storage servers"
	case InvalidParameters:
		return "invalid parameters"
	case ExecFailed:
		return "exec failed"
	}
	return "unknown error kind"
}

// E builds an error value from its arguments. The type of each
// argument determines its meaning. If more than one argument of a
// given type is presented, only the last one is recorded.
//
// The types are:
//	errors.Op
//		The operation being performed.
//	Kind
//		The class of error.
//	string
//		Recorded as the Filename, unless one is already set, in
//		which case it is recorded as the Identity.
//	error
//		The underlying error that triggered this one.
//
// If Kind is not specified or Other, it is set to the Kind of the
// wrapped error, if any.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E: called with no arguments")
	}
	e := &Error{}
	for _, arg := range args {
		switch arg := arg.(type) {
		case Op:
			e.Op = arg
		case Kind:
			e.Kind = arg
		case string:
			if e.Filename == "" {
				e.Filename = arg
			} else {
				e.Identity = arg
			}
		case *Error:
			cp := *arg
			e.Err = &cp
		case error:
			e.Err = arg
		default:
			panic(fmt.Sprintf("errors.E: bad call with arg of type %T: %v", arg, arg))
		}
	}
	prev, ok := e.Err.(*Error)
	if !ok {
		return e
	}
	// The previous error was also one of ours. Suppress duplication so
	// the message doesn't repeat the same filename/identity/kind twice.
	if prev.Filename == e.Filename {
		prev.Filename = ""
	}
	if prev.Identity == e.Identity {
		prev.Identity = ""
	}
	if prev.Kind == e.Kind {
		prev.Kind = Other
	}
	if e.Kind == Other {
		e.Kind = prev.Kind
		prev.Kind = Other
	}
	return e
}

func pad(b *bytes.Buffer, str string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(str)
}

func (e *Error) Error() string {
	b := new(bytes.Buffer)
	if e.Op != "" {
		b.WriteString(string(e.Op))
	}
	if e.Filename != "" {
		pad(b, ": ")
		b.WriteString(e.Filename)
	}
	if e.Identity != "" {
		pad(b, ", ")
		b.WriteString("user ")
		b.WriteString(e.Identity)
	}
	if e.Kind != Other {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		if prevErr, ok := e.Err.(*Error); ok {
			if *prevErr != zeroErr {
				pad(b, Separator)
				b.WriteString(e.Err.Error())
			}
		} else {
			pad(b, ": ")
			b.WriteString(e.Err.Error())
		}
	}
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

// Is reports whether err is an *Error of the given Kind.
func Is(kind Kind, err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	if e.Kind != Other {
		return e.Kind == kind
	}
	if e.Err != nil {
		return Is(kind, e.Err)
	}
	return false
}

// KindOf extracts the first non-Other Kind from err, walking wrapped
// *Error values, or Other if none is found.
func KindOf(err error) Kind {
	e, ok := err.(*Error)
	if !ok {
		return Other
	}
	if e.Kind != Other {
		return e.Kind
	}
	if e.Err != nil {
		return KindOf(e.Err)
	}
	return Other
}

// Match compares its two error arguments. It can be used to check
// that the error from a test contains the fields of the reference
// error. It only checks fields that are set in expect: if a field of
// expect is its zero value, it is not checked against got.
func Match(expect, got error) bool {
	e, ok := expect.(*Error)
	if !ok {
		return expect == got || (got != nil && strings.Contains(got.Error(), expect.Error()))
	}
	g, ok := got.(*Error)
	if !ok {
		return false
	}
	if e.Filename != "" && e.Filename != g.Filename {
		return false
	}
	if e.Identity != "" && e.Identity != g.Identity {
		return false
	}
	if e.Op != "" && e.Op != g.Op {
		return false
	}
	if e.Kind != Other && e.Kind != g.Kind {
		return false
	}
	if e.Err != nil {
		if g.Err == nil {
			return false
		}
		return Match(e.Err, g.Err)
	}
	return true
}

// Str returns an error that formats as the given text. It is intended
// to be used as the error-typed argument to E.
func Str(text string) error {
	return &errorString{text}
}

type errorString struct {
	s string
}

func (e *errorString) Error() string {
	return e.s
}

// Errorf is equivalent to fmt.Errorf, but returns a type that
// satisfies this package's conventions so clients need only import
// this one package for error handling.
func Errorf(format string, args ...interface{}) error {
	return &errorString{fmt.Sprintf(format, args...)}
}
