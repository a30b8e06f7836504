package wire

import (
	"bytes"
	"strings"
	"testing"

	"sentedit.dev/sentedit/errors"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := &Frame{
		Kind:     KindCommand,
		Command:  CmdWriteCommit,
		Error:    CodeSuccess,
		Identity: "alice",
		Filename: "doc1",
		Data:     []byte("0|1|cruel|"),
	}
	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Kind != f.Kind || got.Command != f.Command || got.Error != f.Error {
		t.Fatalf("got %+v, want %+v", got, f)
	}
	if got.Identity != f.Identity || got.Filename != f.Filename {
		t.Fatalf("got %+v, want %+v", got, f)
	}
	if string(got.Data) != string(f.Data) {
		t.Fatalf("Data = %q, want %q", got.Data, f.Data)
	}
}

func TestEncodeRejectsOversizedFields(t *testing.T) {
	long := strings.Repeat("a", IdentityFieldSize)
	f := &Frame{Identity: long}
	var buf bytes.Buffer
	if err := Encode(&buf, f); err == nil {
		t.Fatal("Encode accepted an oversized identity")
	}
}

func TestDecodePartialFrameIsFatal(t *testing.T) {
	r := bytes.NewReader([]byte{1, 2, 3})
	if _, err := Decode(r); err == nil {
		t.Fatal("Decode accepted a short read")
	}
}

func TestCodeForErrorRoundTrip(t *testing.T) {
	cases := []struct {
		kind errors.Kind
		code Code
	}{
		{errors.NotFound, CodeFileNotFound},
		{errors.Locked, CodeFileLocked},
		{errors.NoStorageServers, CodeNoStorageServers},
	}
	for _, c := range cases {
		err := errors.E(errors.Op("Test"), c.kind)
		if got := CodeForError(err); got != c.code {
			t.Errorf("CodeForError(kind=%v) = %v, want %v", c.kind, got, c.code)
		}
		if got := KindForCode(c.code); got != c.kind {
			t.Errorf("KindForCode(%v) = %v, want %v", c.code, got, c.kind)
		}
	}
	if CodeForError(nil) != CodeSuccess {
		t.Errorf("CodeForError(nil) != CodeSuccess")
	}
}

func TestPayloadHelpers(t *testing.T) {
	addr := EncodeAddress("10.0.0.1", 7000)
	host, port, ok := DecodeAddress(addr)
	if !ok || host != "10.0.0.1" || port != 7000 {
		t.Fatalf("DecodeAddress(%q) = %q, %d, %v", addr, host, port, ok)
	}

	rows := []ViewRow{{Filename: "doc1", Owner: "alice", Words: 2, Chars: 11}}
	data := EncodeView(rows)
	got := DecodeView(data)
	if len(got) != 1 || got[0] != rows[0] {
		t.Fatalf("DecodeView(EncodeView(%v)) = %v", rows, got)
	}

	src, dst, ok := DecodeCopyRequest(EncodeCopyRequest("a", "b"))
	if !ok || src != "a" || dst != "b" {
		t.Fatalf("DecodeCopyRequest = %q, %q, %v", src, dst, ok)
	}
}
