package storagenode

import (
	"strconv"
	"strings"
	"time"

	"sentedit.dev/sentedit/acl"
	"sentedit.dev/sentedit/errors"
)

const sep = "|"

// parsePermission parses "R", "W", or "RW" into an acl.Permission.
func parsePermission(s string) (acl.Permission, error) {
	var p acl.Permission
	for _, c := range s {
		switch c {
		case 'R':
			p |= acl.Read
		case 'W':
			p |= acl.Write
		default:
			return 0, errors.E(errors.Op("storagenode.parsePermission"), errors.InvalidParameters, errors.Str("unrecognized permission letter"))
		}
	}
	if p == 0 {
		return 0, errors.E(errors.Op("storagenode.parsePermission"), errors.InvalidParameters, errors.Str("empty permission"))
	}
	return p, nil
}

// encodeFileInfo renders a FileInfoResult as the `|`-delimited payload
// described in spec.md §6: timestamps in RFC3339, then repeated
// "<identity>:<perm>" ACL entries.
func encodeFileInfo(info FileInfoResult) []byte {
	var b strings.Builder
	b.WriteString(info.Owner)
	b.WriteString(sep)
	b.WriteString(info.Created.UTC().Format(time.RFC3339))
	b.WriteString(sep)
	b.WriteString(info.Modified.UTC().Format(time.RFC3339))
	b.WriteString(sep)
	b.WriteString(info.Accessed.UTC().Format(time.RFC3339))
	b.WriteString(sep)
	b.WriteString(info.LastAccessedBy)
	b.WriteString(sep)
	b.WriteString(strconv.Itoa(info.Words))
	b.WriteString(sep)
	b.WriteString(strconv.Itoa(info.Chars))
	for _, e := range info.ACL {
		b.WriteString(sep)
		b.WriteString(e.Identity)
		b.WriteString(":")
		b.WriteString(e.Perm.String())
	}
	return []byte(b.String())
}

// encodeCheckpointList renders a []Checkpoint as repeated
// "<tag>|<RFC3339>|" records.
func encodeCheckpointList(cps []Checkpoint) []byte {
	var b strings.Builder
	for _, cp := range cps {
		b.WriteString(cp.Tag)
		b.WriteString(sep)
		b.WriteString(cp.At.UTC().Format(time.RFC3339))
		b.WriteString(sep)
	}
	return []byte(b.String())
}

// decodeCopyRequest parses a "<src>|<dst>" payload.
func decodeCopyRequest(data []byte) (src, dst string, ok bool) {
	parts := strings.SplitN(string(data), sep, 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// decodeAddAccessRequest parses a "<target>|<perm>" payload.
func decodeAddAccessRequest(data []byte) (target string, perm acl.Permission, err error) {
	parts := strings.SplitN(string(data), sep, 2)
	if len(parts) != 2 {
		return "", 0, errors.E(errors.Op("storagenode.decodeAddAccessRequest"), errors.InvalidParameters)
	}
	p, err := parsePermission(parts[1])
	if err != nil {
		return "", 0, err
	}
	return parts[0], p, nil
}
