// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package remoting

import (
	"io"
	"runtime"
)

// receiver drives the per-connection state machine (C2) that turns an
// unbounded byte stream into an ordered sequence of complete frame bodies.
// It is the Go-idiomatic replacement for the source's single 4-byte read
// that assumed the OS always delivers a whole header at once; see spec §9
// "Short-read bug in the source" — this state machine loops until the
// header (and then the body) is fully in hand.
type receiver struct {
	r   io.Reader
	buf []byte // scratch, sized by ReceiveBufferSize, >= 4

	maxFrameBytes int // 0 means no cap beyond the wire format's own 4GiB ceiling

	header      [frameHeaderLen]byte
	headerRead  int   // bytes of header collected so far; 0 <=> ReadingHeader just started
	expected    int   // -1 while awaiting the header, else the body length
	accumulated []byte
}

func newReceiver(r io.Reader, bufSize, maxFrameBytes int) *receiver {
	if bufSize < frameHeaderLen {
		bufSize = frameHeaderLen
	}
	return &receiver{
		r:             r,
		buf:           make([]byte, bufSize),
		maxFrameBytes: maxFrameBytes,
		expected:      -1,
	}
}

// readOnce performs a single Read, retrying cooperatively on ErrWouldBlock.
// Blocking net.Conn reads never produce ErrWouldBlock; the retry exists so
// a caller-supplied non-blocking io.Reader is still handled correctly.
func (rv *receiver) readOnce(p []byte) (int, error) {
	for {
		n, err := rv.r.Read(p)
		if n > 0 {
			return n, err
		}
		if err != ErrWouldBlock {
			return n, err
		}
		runtime.Gosched()
	}
}

// next blocks until exactly one complete frame body has been reassembled,
// or the stream ends / errors (the Closed state of spec §4.2). Frames are
// returned in the exact order their last byte arrived, since a single
// goroutine owns this state machine per connection.
func (rv *receiver) next() ([]byte, error) {
	for {
		if rv.expected < 0 {
			// ReadingHeader: keep reading until 4 bytes are in hand,
			// handling arbitrarily short reads.
			for rv.headerRead < frameHeaderLen {
				n, err := rv.readOnce(rv.header[rv.headerRead:frameHeaderLen])
				rv.headerRead += n
				if err != nil {
					if err == io.EOF && rv.headerRead == 0 {
						return nil, io.EOF
					}
					if err == io.EOF {
						return nil, io.ErrUnexpectedEOF
					}
					return nil, err
				}
			}
			length, err := decodeHeader(rv.header, rv.maxFrameBytes)
			if err != nil {
				return nil, err
			}
			rv.expected = length
			rv.accumulated = make([]byte, 0, length)
			continue
		}

		// ReadingBody: request up to min(remaining, len(buf)) bytes.
		remaining := rv.expected - len(rv.accumulated)
		if remaining == 0 {
			body := rv.accumulated
			rv.expected = -1
			rv.headerRead = 0
			rv.accumulated = nil
			return body, nil
		}
		want := remaining
		if want > len(rv.buf) {
			want = len(rv.buf)
		}
		n, err := rv.readOnce(rv.buf[:want])
		if n > 0 {
			rv.accumulated = append(rv.accumulated, rv.buf[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}

// run loops next() until the stream closes or errors, delivering each
// frame to onFrame in arrival order. onClose is invoked exactly once with
// the terminal cause (io.EOF on a clean close).
func (rv *receiver) run(onFrame func([]byte) error, onClose func(error)) {
	for {
		body, err := rv.next()
		if err != nil {
			onClose(err)
			return
		}
		if ferr := onFrame(body); ferr != nil {
			onClose(ferr)
			return
		}
	}
}
