// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package remoting

import (
	"sync"
	"sync/atomic"
	"time"
)

// sendState is the tri-state of PendingCall.send_succeeded (spec §3):
// unknown until the send-completion callback fires.
type sendState int32

const (
	sendUnknown sendState = iota
	sendSucceeded
	sendFailed
)

// PendingCall is the client-side record awaiting either a response, a
// timeout, or a send failure (spec §3 "Pending call"). It is removed, and
// its completion sink fired, by exactly one of those three races — the
// at-most-once invariant of §4.4 — via complete.
type PendingCall struct {
	Request  *Request
	Timeout  time.Duration
	Deadline time.Time

	sendState atomic.Int32
	sendErr   atomic.Value // error

	done      chan struct{}
	completed atomic.Bool
	response  *Response // valid only after completed is observed true
}

func newPendingCall(req *Request, timeout time.Duration, deadline time.Time) *PendingCall {
	return &PendingCall{
		Request:  req,
		Timeout:  timeout,
		Deadline: deadline,
		done:     make(chan struct{}),
	}
}

// setSendResult records the outcome of the send-completion callback
// (spec §4.5 "Send-completion callback"). It does not itself complete the
// call; the caller decides what to do with a failed send.
func (c *PendingCall) setSendResult(ok bool, err error) {
	if ok {
		c.sendState.Store(int32(sendSucceeded))
		return
	}
	c.sendState.Store(int32(sendFailed))
	if err != nil {
		c.sendErr.Store(err)
	}
}

func (c *PendingCall) sendOutcome() (sendState, error) {
	st := sendState(c.sendState.Load())
	err, _ := c.sendErr.Load().(error)
	return st, err
}

// complete is the single-shot sink: only the first caller among {response
// arrival, timeout sweep, send-failure callback} actually stores resp and
// closes done; all others are no-ops. resp == nil means "no response".
func (c *PendingCall) complete(resp *Response) bool {
	if !c.completed.CompareAndSwap(false, true) {
		return false
	}
	c.response = resp
	close(c.done)
	return true
}

// Wait blocks until complete() fires or the bounded wait elapses, whichever
// comes first. ok is false when the bounded wait itself expired without a
// completion (the deadline-sweeper will still reclaim the entry later).
func (c *PendingCall) Wait(timeout time.Duration) (resp *Response, ok bool) {
	select {
	case <-c.done:
		return c.response, true
	case <-time.After(timeout):
		return nil, false
	}
}

// Done exposes the completion sink directly, for InvokeAsync's future.
func (c *PendingCall) Done() <-chan struct{} { return c.done }

// Response returns the delivered response; valid only after Done() has
// fired and Wait/Done observed completion.
func (c *PendingCall) Response() *Response { return c.response }

// pendingTable is the sequence -> PendingCall map of spec §4.4. All three
// operations are atomic with respect to each other and to sweep.
type pendingTable struct {
	mu sync.Mutex
	m  map[uint64]*PendingCall
}

func newPendingTable() *pendingTable {
	return &pendingTable{m: make(map[uint64]*PendingCall)}
}

// insert is atomic insert-if-absent; a collision is a programmer error or
// sequence-counter corruption and is surfaced immediately.
func (t *pendingTable) insert(seq uint64, call *PendingCall) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.m[seq]; exists {
		return &DuplicateSequenceError{Sequence: seq}
	}
	t.m[seq] = call
	return nil
}

// remove is an atomic take: at most one caller observes a given entry.
func (t *pendingTable) remove(seq uint64) (*PendingCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	call, ok := t.m[seq]
	if ok {
		delete(t.m, seq)
	}
	return call, ok
}

// sweep atomically enumerates and removes every entry whose deadline has
// passed as of now. Concurrent with remove: an entry already taken by
// remove() (a response winning the race) is never returned here, because
// enumeration and removal happen under the same lock.
func (t *pendingTable) sweep(now time.Time) []*PendingCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	var expired []*PendingCall
	for seq, call := range t.m {
		if !now.Before(call.Deadline) {
			delete(t.m, seq)
			expired = append(expired, call)
		}
	}
	return expired
}

// drain atomically removes and returns every outstanding call, used on
// shutdown so no caller blocks forever (spec §4.5 "Startup/shutdown").
func (t *pendingTable) drain() []*PendingCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	all := make([]*PendingCall, 0, len(t.m))
	for seq, call := range t.m {
		delete(t.m, seq)
		all = append(all, call)
	}
	return all
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}
