// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package remoting

import (
	"encoding/binary"
	"io"
	"math"
	"time"
)

// Request is immutable after creation (spec §3). Sequence is unique within
// one Client's lifetime.
type Request struct {
	Sequence  uint64
	Code      int32
	IsOneway  bool
	CreatedAt time.Time
	Body      []byte
}

// pingRequestCode is a reserved, never-application-assigned code for the
// one-way keep-alive frame Client.keepAlive sends on an idle connection. A
// Server never looks it up in the handler registry and never logs it as
// HandlerNotFoundError; receiving one only has the side effect every inbound
// frame already has, refreshing the connection's lastSeen.
const pingRequestCode int32 = math.MinInt32

// Response carries an application-defined status Code and opaque Body.
// Sequence must echo exactly one outstanding Request on the client that
// produced it.
type Response struct {
	Sequence uint64
	Code     int32
	Body     []byte
}

// Request body layout (a frame's payload, once length-prefixed by frame.go):
//
//	sequence  uint64 little-endian
//	code      int32  little-endian
//	is_oneway byte   (0 or 1)
//	created_at int64 little-endian, UnixNano
//	payload_len uint32 little-endian
//	payload   [payload_len]byte
const requestHeaderLen = 8 + 4 + 1 + 8 + 4

func encodeRequest(r *Request) []byte {
	buf := make([]byte, requestHeaderLen+len(r.Body))
	binary.LittleEndian.PutUint64(buf[0:8], r.Sequence)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(r.Code))
	if r.IsOneway {
		buf[12] = 1
	}
	binary.LittleEndian.PutUint64(buf[13:21], uint64(r.CreatedAt.UnixNano()))
	binary.LittleEndian.PutUint32(buf[21:25], uint32(len(r.Body)))
	copy(buf[25:], r.Body)
	return buf
}

func decodeRequest(body []byte) (*Request, error) {
	if len(body) < requestHeaderLen {
		return nil, io.ErrUnexpectedEOF
	}
	payloadLen := binary.LittleEndian.Uint32(body[21:25])
	if requestHeaderLen+int(payloadLen) != len(body) {
		return nil, io.ErrUnexpectedEOF
	}
	r := &Request{
		Sequence:  binary.LittleEndian.Uint64(body[0:8]),
		Code:      int32(binary.LittleEndian.Uint32(body[8:12])),
		IsOneway:  body[12] != 0,
		CreatedAt: time.Unix(0, int64(binary.LittleEndian.Uint64(body[13:21]))),
	}
	if payloadLen > 0 {
		r.Body = append([]byte(nil), body[requestHeaderLen:]...)
	}
	return r, nil
}

// Response body layout:
//
//	sequence    uint64 little-endian
//	code        int32  little-endian
//	payload_len uint32 little-endian
//	payload     [payload_len]byte
const responseHeaderLen = 8 + 4 + 4

func encodeResponse(r *Response) []byte {
	buf := make([]byte, responseHeaderLen+len(r.Body))
	binary.LittleEndian.PutUint64(buf[0:8], r.Sequence)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(r.Code))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(r.Body)))
	copy(buf[16:], r.Body)
	return buf
}

func decodeResponse(body []byte) (*Response, error) {
	if len(body) < responseHeaderLen {
		return nil, io.ErrUnexpectedEOF
	}
	payloadLen := binary.LittleEndian.Uint32(body[12:16])
	if responseHeaderLen+int(payloadLen) != len(body) {
		return nil, io.ErrUnexpectedEOF
	}
	resp := &Response{
		Sequence: binary.LittleEndian.Uint64(body[0:8]),
		Code:     int32(binary.LittleEndian.Uint32(body[8:12])),
	}
	if payloadLen > 0 {
		resp.Body = append([]byte(nil), body[responseHeaderLen:]...)
	}
	return resp, nil
}
