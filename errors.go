// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package remoting

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidArgument reports an invalid configuration or nil connection.
	ErrInvalidArgument = errors.New("remoting: invalid argument")

	// ErrTooLong reports that a frame length exceeds the configured cap.
	ErrTooLong = errors.New("remoting: message too long")

	// ErrClosed is returned by operations attempted after Close.
	ErrClosed = errors.New("remoting: connection closed")

	// ErrNoHandler is the sentinel a HandlerNotFoundError unwraps to. The
	// server logs such an error when a request code has no registered
	// handler; it never escapes to a remote caller and the connection stays
	// open.
	ErrNoHandler = errors.New("remoting: no handler registered for code")
)

// SendError reports that the frame could not be written to the peer: a
// socket error, or a disconnect observed mid-write. It wraps the underlying
// transport cause.
type SendError struct {
	Remote string
	Cause  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("remoting: send to %s failed: %v", e.Remote, e.Cause)
}

func (e *SendError) Unwrap() error { return e.Cause }

// TimeoutError reports that a pending call's deadline expired before a
// matching response arrived.
type TimeoutError struct {
	Remote    string
	Sequence  uint64
	Code      int32
	TimeoutMs int64
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("remoting: call %d (code=%d) to %s timed out after %dms",
		e.Sequence, e.Code, e.Remote, e.TimeoutMs)
}

// DuplicateSequenceError reports that Insert collided with an outstanding
// pending call. It signals a programmer error or sequence-counter
// corruption; the invocation that produced it fails immediately.
type DuplicateSequenceError struct {
	Sequence uint64
}

func (e *DuplicateSequenceError) Error() string {
	return fmt.Sprintf("remoting: duplicate sequence %d", e.Sequence)
}

// FramingError reports a receive-side parse failure: a frame body that does
// not decode as a Request (server side) or a Response (client side). The
// connection that produced it is closed. A frame length above the
// configured cap is not wrapped in a FramingError; the receive loop ends
// with ErrTooLong instead.
type FramingError struct {
	Remote string
	Cause  error
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("remoting: framing error on %s: %v", e.Remote, e.Cause)
}

func (e *FramingError) Unwrap() error { return e.Cause }

// HandlerNotFoundError reports that the server has no handler registered
// for a request code. The connection stays open; no response is sent.
type HandlerNotFoundError struct {
	Code int32
}

func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("remoting: no handler for code %d", e.Code)
}

func (e *HandlerNotFoundError) Unwrap() error { return ErrNoHandler }

func newTimeoutError(remote string, seq uint64, code int32, timeout time.Duration) *TimeoutError {
	return &TimeoutError{Remote: remote, Sequence: seq, Code: code, TimeoutMs: timeout.Milliseconds()}
}
