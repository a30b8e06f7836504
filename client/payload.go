package client

import (
	"strconv"
	"strings"
	"time"

	"sentedit.dev/sentedit/acl"
	"sentedit.dev/sentedit/errors"
)

const sep = "|"

// splitPipe splits a `|`-delimited payload and drops the single
// trailing empty field left by an encoder that terminates every
// record with a separator (wire.EncodeView, wire.EncodeUserList, and
// their storagenode counterparts).
func splitPipe(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	fields := strings.Split(string(data), sep)
	if len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}

// decodeFileInfo parses the payload produced by
// storagenode.encodeFileInfo: seven fixed fields followed by repeated
// "<identity>:<perm>" ACL entries.
func decodeFileInfo(data []byte) (FileInfo, error) {
	const op = errors.Op("client.decodeFileInfo")
	fields := strings.Split(string(data), sep)
	if len(fields) < 7 {
		return FileInfo{}, errors.E(op, errors.Internal, errors.Str("short file-info payload"))
	}
	created, err := time.Parse(time.RFC3339, fields[1])
	if err != nil {
		return FileInfo{}, errors.E(op, errors.Internal, err)
	}
	modified, err := time.Parse(time.RFC3339, fields[2])
	if err != nil {
		return FileInfo{}, errors.E(op, errors.Internal, err)
	}
	accessed, err := time.Parse(time.RFC3339, fields[3])
	if err != nil {
		return FileInfo{}, errors.E(op, errors.Internal, err)
	}
	words, _ := strconv.Atoi(fields[5])
	chars, _ := strconv.Atoi(fields[6])

	info := FileInfo{
		Owner:          fields[0],
		Created:        created,
		Modified:       modified,
		Accessed:       accessed,
		LastAccessedBy: fields[4],
		Words:          words,
		Chars:          chars,
	}
	for _, f := range fields[7:] {
		parts := strings.SplitN(f, ":", 2)
		if len(parts) != 2 {
			continue
		}
		perm, err := parsePermission(parts[1])
		if err != nil {
			return FileInfo{}, err
		}
		info.ACL = append(info.ACL, acl.Entry{Identity: parts[0], Perm: perm})
	}
	return info, nil
}

// parsePermission mirrors storagenode.parsePermission: it parses "R",
// "W", or "RW" into an acl.Permission.
func parsePermission(s string) (acl.Permission, error) {
	const op = errors.Op("client.parsePermission")
	var p acl.Permission
	for _, c := range s {
		switch c {
		case 'R':
			p |= acl.Read
		case 'W':
			p |= acl.Write
		default:
			return 0, errors.E(op, errors.InvalidParameters, errors.Str("unrecognized permission letter"))
		}
	}
	return p, nil
}
