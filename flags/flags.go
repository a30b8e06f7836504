// Package flags defines command-line flags shared by the Name Node
// and Storage Node binaries, so that defaults (ports, timeouts,
// capacities) stay consistent between them. Binaries call Parse with
// the subset of variables they care about; passing an unrecognized
// variable panics, catching typos at startup rather than silently
// ignoring a flag.
package flags

import (
	"flag"
	"time"
)

// Network defaults, per spec.md §6.
var (
	// NNAddr is the address the Name Node listens on for clients.
	NNAddr = ":5000"

	// SSClientAddr is the address a Storage Node listens on for clients.
	SSClientAddr = ":7000"

	// SSControlAddr is the address a Storage Node listens on for Name
	// Node control connections (ACL-grant pushes and failure-confirmation
	// dials). Registration and heartbeats go the other way, from the
	// Storage Node to NNAddr.
	SSControlAddr = ":6000"
)

// Timing defaults, per spec.md §4.5 and §5.
var (
	// HeartbeatInterval is how often a Storage Node sends a heartbeat.
	HeartbeatInterval = 30 * time.Second

	// FailureThreshold is how stale a heartbeat may be before a node
	// is marked disconnected.
	FailureThreshold = 30 * time.Second

	// ScanInterval is how often the Name Node scans for failed nodes.
	ScanInterval = 10 * time.Second

	// SessionTimeout bounds blocking socket reads/writes on the
	// client's control channel.
	SessionTimeout = 5 * time.Second
)

// Sizing defaults, per spec.md §4.1, §4.10, §4.7.
var (
	// MaxPayload bounds the variable payload portion of a frame.
	MaxPayload = 8192

	// CacheSize is the capacity of the Name Node's FileRecord cache.
	CacheSize = 100

	// MaxACLEntries bounds the number of (identity, permission) pairs
	// an SN will store for a single file.
	MaxACLEntries = 32
)

// ContentDir is the directory a Storage Node uses for its content,
// metadata, undo, and checkpoint files when run with the default
// filesystem-backed storage backend.
var ContentDir = "./ssdata"

// Parse registers the given variables as command-line flags and
// calls flag.Parse. Each element of vars must be the address of one
// of the package-level variables above; passing anything else panics.
func Parse(vars ...interface{}) {
	for _, v := range vars {
		switch v := v.(type) {
		case *string:
			switch v {
			case &NNAddr:
				flag.StringVar(v, "nn_addr", NNAddr, "address for the Name Node to listen on")
			case &SSClientAddr:
				flag.StringVar(v, "ss_client_addr", SSClientAddr, "address for the Storage Node to accept clients on")
			case &SSControlAddr:
				flag.StringVar(v, "ss_control_addr", SSControlAddr, "address for the Storage Node to accept Name Node control connections on")
			case &ContentDir:
				flag.StringVar(v, "content_dir", ContentDir, "directory for Storage Node content and metadata")
			default:
				panic("flags.Parse: unknown *string flag variable")
			}
		case *time.Duration:
			switch v {
			case &HeartbeatInterval:
				flag.DurationVar(v, "heartbeat_interval", HeartbeatInterval, "interval between Storage Node heartbeats")
			case &FailureThreshold:
				flag.DurationVar(v, "failure_threshold", FailureThreshold, "heartbeat staleness before a node is marked disconnected")
			case &ScanInterval:
				flag.DurationVar(v, "scan_interval", ScanInterval, "interval between Name Node failure-detection scans")
			case &SessionTimeout:
				flag.DurationVar(v, "session_timeout", SessionTimeout, "send/receive timeout on client control sockets")
			default:
				panic("flags.Parse: unknown *time.Duration flag variable")
			}
		case *int:
			switch v {
			case &MaxPayload:
				flag.IntVar(v, "max_payload", MaxPayload, "maximum size in bytes of a frame's variable payload")
			case &CacheSize:
				flag.IntVar(v, "cache_size", CacheSize, "capacity of the Name Node's FileRecord cache")
			case &MaxACLEntries:
				flag.IntVar(v, "max_acl_entries", MaxACLEntries, "maximum number of ACL entries per file")
			default:
				panic("flags.Parse: unknown *int flag variable")
			}
		default:
			panic("flags.Parse: unknown flag variable type")
		}
	}
	flag.Parse()
}
