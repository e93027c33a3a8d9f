// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package remoting

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Client is the client engine of spec §4.5 (C5): it builds requests,
// allocates sequence numbers, routes inbound responses through the
// pending-call table, and exposes synchronous, asynchronous, and one-way
// invocation over a single TCP connection.
type Client struct {
	opts Options
	log  FieldLogger
	clk  clock

	remote string
	wc     *wireConn
	rv     *receiver

	seq     *sequencer
	pending *pendingTable

	scanTaskID      TaskID
	keepAliveTaskID TaskID
	group           errgroup.Group

	closeOnce sync.Once
}

// Dial connects to the configured address/port and starts the receiver
// loop and the timeout scanner. The caller owns the returned Client and
// must call Close when done with it.
func Dial(opts ...Option) (*Client, error) {
	o := applyOptions(opts)
	addr := net.JoinHostPort(o.Address, strconv.Itoa(o.Port))
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return newClient(nc, o), nil
}

// NewClient adapts an already-established connection (e.g. one obtained
// from a test harness via net.Pipe, as the teacher's examples/tcp_test.go
// does) into a Client.
func NewClient(nc net.Conn, opts ...Option) *Client {
	return newClient(nc, applyOptions(opts))
}

func newClient(nc net.Conn, o Options) *Client {
	c := &Client{
		opts:    o,
		log:     o.Logger,
		clk:     systemClock,
		remote:  nc.RemoteAddr().String(),
		wc:      newWireConn(nc),
		rv:      newReceiver(nc, o.ReceiveBufferSize, o.MaxFrameBytes),
		seq:     newSequencer(),
		pending: newPendingTable(),
	}
	c.group.Go(func() error {
		c.rv.run(c.onFrame, c.onClosed)
		return nil
	})
	c.scanTaskID = o.Scanner.Schedule(c.sweep, o.ScannerInitialDelay, o.ScannerPeriod)
	c.keepAliveTaskID = o.Scanner.Schedule(c.keepAlive, o.KeepAlivePeriod, o.KeepAlivePeriod)
	return c
}

func (c *Client) buildRequest(code int32, body []byte, oneway bool) *Request {
	return &Request{
		Sequence:  c.seq.allocate(),
		Code:      code,
		IsOneway:  oneway,
		CreatedAt: c.clk.now(),
		Body:      body,
	}
}

func (c *Client) sendRequest(req *Request, call *PendingCall) {
	c.wc.send(encodeRequest(req), func(r sendResult) {
		call.setSendResult(r.Success, r.Err)
		if !r.Success {
			// Send-completion callback (spec §4.5): remove and complete
			// with "no response". A concurrent response arrival or sweep
			// may already have won this race; complete() decides.
			if removed, ok := c.pending.remove(req.Sequence); ok {
				removed.complete(nil)
			}
		}
	})
}

// InvokeSync sends code/body and blocks for up to timeout for a matching
// response (spec §4.5 "Synchronous").
func (c *Client) InvokeSync(code int32, body []byte, timeout time.Duration) (*Response, error) {
	req := c.buildRequest(code, body, false)
	call := newPendingCall(req, timeout, c.clk.now().Add(timeout))
	if err := c.pending.insert(req.Sequence, call); err != nil {
		return nil, err
	}
	c.sendRequest(req, call)

	resp, waited := call.Wait(timeout)
	if !waited {
		// The bounded wait itself elapsed; the scanner will still reclaim
		// this entry on its next sweep.
		return nil, newTimeoutError(c.remote, req.Sequence, req.Code, timeout)
	}
	if resp != nil {
		return resp, nil
	}
	if st, sendErr := call.sendOutcome(); st == sendFailed {
		return nil, &SendError{Remote: c.remote, Cause: sendErr}
	}
	return nil, newTimeoutError(c.remote, req.Sequence, req.Code, timeout)
}

// InvokeAsync sends code/body and returns the PendingCall immediately; the
// caller observes the same three outcomes as InvokeSync through its
// completion sink (spec §4.5 "Asynchronous").
func (c *Client) InvokeAsync(code int32, body []byte, timeout time.Duration) (*PendingCall, error) {
	req := c.buildRequest(code, body, false)
	call := newPendingCall(req, timeout, c.clk.now().Add(timeout))
	if err := c.pending.insert(req.Sequence, call); err != nil {
		return nil, err
	}
	c.sendRequest(req, call)
	return call, nil
}

// InvokeOneway sends code/body without registering a pending call and
// never waits for a response. Send failure raises SendError synchronously
// (spec §4.5 "One-way"); sendTimeout only bounds the wait for the send
// itself, which normally completes immediately.
func (c *Client) InvokeOneway(code int32, body []byte, sendTimeout time.Duration) error {
	req := c.buildRequest(code, body, true)
	result := make(chan sendResult, 1)
	c.wc.send(encodeRequest(req), func(r sendResult) { result <- r })
	select {
	case r := <-result:
		if !r.Success {
			return &SendError{Remote: c.remote, Cause: r.Err}
		}
		return nil
	case <-time.After(sendTimeout):
		return newTimeoutError(c.remote, req.Sequence, req.Code, sendTimeout)
	}
}

// onFrame parses an inbound frame as a Response and completes the
// matching pending call (spec §4.5 "Response dispatch").
func (c *Client) onFrame(body []byte) error {
	resp, err := decodeResponse(body)
	if err != nil {
		return &FramingError{Remote: c.remote, Cause: err}
	}
	call, ok := c.pending.remove(resp.Sequence)
	if !ok {
		// The scanner already reclaimed this entry; drop and log, per
		// spec §4.5 and the testable property in §8.
		c.log.WithField("sequence", resp.Sequence).Errorf("remoting: dropped response for unknown sequence")
		return nil
	}
	call.complete(resp)
	return nil
}

// onClosed runs once the receiver loop exits (clean EOF, framing error, or
// socket error). The connection is closed, and every outstanding pending
// call is completed with "no response" so no caller blocks forever past a
// connection loss.
func (c *Client) onClosed(err error) {
	if err != nil {
		c.log.WithField("remote", c.remote).Debugf("remoting: client receive loop ended: %v", err)
	}
	_ = c.wc.close()
	for _, call := range c.pending.drain() {
		call.complete(nil)
	}
}

// sweep is the scanner action (C7): it expires overdue pending calls and
// completes each with "no response", racing safely against the response
// and send-failure paths via the at-most-once table.
func (c *Client) sweep() {
	for _, call := range c.pending.sweep(c.clk.now()) {
		call.complete(nil)
	}
}

// keepAlive is the scanner action that sends a reserved one-way ping when
// the connection has been quiet for at least KeepAlivePeriod, refreshing
// the server's connInfo.lastSeen on a live-but-idle connection. Without
// this, the server's liveness check (spec §4.3) cannot distinguish "no
// requests in flight" from "peer is gone" and would evict both alike.
func (c *Client) keepAlive() {
	if c.wc.idleSince() < c.opts.KeepAlivePeriod {
		return
	}
	req := c.buildRequest(pingRequestCode, nil, true)
	c.wc.send(encodeRequest(req), nil)
}

// Close stops the receiver loop and the scanner, closes the connection,
// and completes every outstanding pending call so no caller blocks
// forever on shutdown (spec §4.5 "Startup/shutdown").
func (c *Client) Close() error {
	var result *multierror.Error
	c.closeOnce.Do(func() {
		c.opts.Scanner.Cancel(c.scanTaskID)
		c.opts.Scanner.Cancel(c.keepAliveTaskID)
		if err := c.wc.close(); err != nil {
			result = multierror.Append(result, err)
		}
		_ = c.group.Wait()
		for _, call := range c.pending.drain() {
			call.complete(nil)
		}
	})
	return result.ErrorOrNil()
}

// PendingCount reports the number of outstanding pending calls; mainly
// useful for tests asserting the table drains to zero (spec §8 scenario 2).
func (c *Client) PendingCount() int { return c.pending.len() }
