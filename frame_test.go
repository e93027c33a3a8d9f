// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package remoting

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		[]byte("hello"),
		bytes.Repeat([]byte("x"), 1<<16+7),
	}
	for i, body := range cases {
		wire, err := encodeFrame(body)
		if err != nil {
			t.Fatalf("case %d: encodeFrame: %v", i, err)
		}
		if len(wire) != frameHeaderLen+len(body) {
			t.Fatalf("case %d: wire len=%d want=%d", i, len(wire), frameHeaderLen+len(body))
		}
		var hdr [frameHeaderLen]byte
		copy(hdr[:], wire[:frameHeaderLen])
		length, err := decodeHeader(hdr, 0)
		if err != nil {
			t.Fatalf("case %d: decodeHeader: %v", i, err)
		}
		if length != len(body) {
			t.Fatalf("case %d: length=%d want=%d", i, length, len(body))
		}
		if !bytes.Equal(wire[frameHeaderLen:], body) {
			t.Fatalf("case %d: payload mismatch", i)
		}
	}
}

func TestDecodeHeaderRespectsCap(t *testing.T) {
	var hdr [frameHeaderLen]byte
	hdr[0] = 10 // length = 10, little-endian

	if _, err := decodeHeader(hdr, 0); err != nil {
		t.Fatalf("uncapped: unexpected error: %v", err)
	}
	if _, err := decodeHeader(hdr, 9); err != ErrTooLong {
		t.Fatalf("capped below length: got %v, want ErrTooLong", err)
	}
	if _, err := decodeHeader(hdr, 10); err != nil {
		t.Fatalf("capped at exact length: unexpected error: %v", err)
	}
}

func TestDecodeHeaderRejectsLengthFarAboveCap(t *testing.T) {
	// A header whose length far exceeds the configured cap, mirroring what
	// a malicious/buggy peer would put on the wire.
	var hdr [frameHeaderLen]byte
	hdr[0], hdr[1], hdr[2], hdr[3] = 0, 0, 0, 1 // length = 1<<24, little-endian
	if _, err := decodeHeader(hdr, 1000); err != ErrTooLong {
		t.Fatalf("got %v, want ErrTooLong", err)
	}
}
