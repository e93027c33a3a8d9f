// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package remoting

import "encoding/binary"

// frameHeaderLen is the fixed size, in bytes, of the length prefix. The
// wire format (spec §3/§6) is bit-exact: uint32_le length || length bytes
// of body. Unlike the teacher's framer, which self-describes its header
// width per message to support several transports, a remoting frame header
// is always exactly 4 bytes — the wire format here serves one transport
// (TCP) and one codec (opaque bytes), so there is nothing to negotiate.
const frameHeaderLen = 4

// maxFrameBytes is the largest body length representable in a uint32
// header, used as the hard ceiling regardless of any configured
// MaxFrameBytes cap.
const maxFrameBytes = 1<<32 - 1

// encodeFrame prepends the 4-byte little-endian length prefix to body and
// returns the combined wire bytes. It fails with ErrTooLong only when body
// is longer than maxFrameBytes, the most a uint32 header can represent.
func encodeFrame(body []byte) ([]byte, error) {
	if len(body) > maxFrameBytes {
		return nil, ErrTooLong
	}
	out := make([]byte, frameHeaderLen+len(body))
	binary.LittleEndian.PutUint32(out[:frameHeaderLen], uint32(len(body)))
	copy(out[frameHeaderLen:], body)
	return out, nil
}

// decodeHeader parses the 4-byte little-endian length prefix. cap, when
// positive, rejects a length above it with ErrTooLong; this is the
// "receiver MAY impose an upper bound and drop/close on violation" clause
// of spec §3.
func decodeHeader(hdr [frameHeaderLen]byte, cap int) (int, error) {
	length := binary.LittleEndian.Uint32(hdr[:])
	if length > maxFrameBytes {
		return 0, ErrTooLong
	}
	if cap > 0 && int64(length) > int64(cap) {
		return 0, ErrTooLong
	}
	return int(length), nil
}
