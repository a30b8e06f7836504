package wire

import (
	"strconv"
	"strings"
)

// Field separator for the `|`-delimited sub-encodings carried inside
// a frame's Data payload, per spec.md §6.
const sep = "|"

// EncodeAddress encodes a Storage Node address as "<host>|<port>".
func EncodeAddress(host string, port int) []byte {
	return []byte(host + sep + strconv.Itoa(port))
}

// DecodeAddress parses the payload produced by EncodeAddress.
func DecodeAddress(data []byte) (host string, port int, ok bool) {
	parts := strings.SplitN(string(data), sep, 2)
	if len(parts) != 2 {
		return "", 0, false
	}
	p, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, false
	}
	return parts[0], p, true
}

// EncodeRegistration encodes a Storage Node's registration payload as
// "<host>|<controlPort>|<clientPort>", per spec.md §4.5: the Name
// Node needs both the client-facing address (to hand out on Create,
// lock, and resolve redirects) and the control address (to push ACL
// grants to, per spec.md §4.6).
func EncodeRegistration(host string, controlPort, clientPort int) []byte {
	return []byte(host + sep + strconv.Itoa(controlPort) + sep + strconv.Itoa(clientPort))
}

// DecodeRegistration parses the payload produced by EncodeRegistration.
func DecodeRegistration(data []byte) (host string, controlPort, clientPort int, ok bool) {
	parts := strings.SplitN(string(data), sep, 3)
	if len(parts) != 3 {
		return "", 0, 0, false
	}
	cp, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, false
	}
	clp, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, 0, false
	}
	return parts[0], cp, clp, true
}

// ViewRow is one entry of a View reply: a filename, its owner, and
// its cached counts.
type ViewRow struct {
	Filename string
	Owner    string
	Words    int
	Chars    int
}

// EncodeView encodes the rows of a View reply as repeated
// "<file>|<owner>|<words>|<chars>|" records, per spec.md §6.
func EncodeView(rows []ViewRow) []byte {
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(r.Filename)
		b.WriteString(sep)
		b.WriteString(r.Owner)
		b.WriteString(sep)
		b.WriteString(strconv.Itoa(r.Words))
		b.WriteString(sep)
		b.WriteString(strconv.Itoa(r.Chars))
		b.WriteString(sep)
	}
	return []byte(b.String())
}

// DecodeView parses the payload produced by EncodeView.
func DecodeView(data []byte) []ViewRow {
	fields := strings.Split(string(data), sep)
	var rows []ViewRow
	// Each row consumes 4 fields; the encoding leaves a trailing
	// empty field after the last row's separator.
	for i := 0; i+3 < len(fields); i += 4 {
		words, _ := strconv.Atoi(fields[i+2])
		chars, _ := strconv.Atoi(fields[i+3])
		rows = append(rows, ViewRow{
			Filename: fields[i],
			Owner:    fields[i+1],
			Words:    words,
			Chars:    chars,
		})
	}
	return rows
}

// EncodeCopyRequest encodes a Copy command's source/destination pair.
func EncodeCopyRequest(src, dst string) []byte {
	return []byte(src + sep + dst)
}

// DecodeCopyRequest parses the payload produced by EncodeCopyRequest.
func DecodeCopyRequest(data []byte) (src, dst string, ok bool) {
	parts := strings.SplitN(string(data), sep, 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// EncodeUserList encodes the user list reply as repeated
// "<identity>|<address>|" records.
func EncodeUserList(identities, addresses []string) []byte {
	var b strings.Builder
	for i := range identities {
		b.WriteString(identities[i])
		b.WriteString(sep)
		if i < len(addresses) {
			b.WriteString(addresses[i])
		}
		b.WriteString(sep)
	}
	return []byte(b.String())
}
