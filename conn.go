// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package remoting

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// sendResult is the outcome handed to a send-completion callback (spec
// §4.3): {success: true} on a full write, else {success: false, error}.
type sendResult struct {
	Success bool
	Err     error
}

type sendJob struct {
	frame      []byte
	onComplete func(sendResult)
}

// wireConn serializes writes to one net.Conn behind a single writer
// goroutine, and exposes a non-blocking send: the caller hands off bytes
// and a completion callback and returns immediately, matching spec §4.3's
// "caller MUST NOT assume the completion callback runs on any particular
// thread/task". A dedicated writer goroutine (rather than one goroutine
// per send) keeps concurrent sends ordered without an explicit lock, per
// §5's "concurrent sends MUST be serialized".
type wireConn struct {
	nc     net.Conn
	remote string

	sendCh chan sendJob

	// lastWriteAt is UnixNano of the last frame this side actually wrote to
	// nc, including keep-alive pings. Client.keepAlive reads it to decide
	// whether the connection has been quiet long enough to need a ping;
	// os-level TCP keep-alive below only catches a truly dead peer (a
	// half-open socket), it does not substitute for this.
	lastWriteAt atomic.Int64

	closeOnce sync.Once
	closed    chan struct{}
}

func newWireConn(nc net.Conn) *wireConn {
	if tc, ok := nc.(*net.TCPConn); ok {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(30 * time.Second)
	}
	c := &wireConn{
		nc:     nc,
		remote: nc.RemoteAddr().String(),
		sendCh: make(chan sendJob, 64),
		closed: make(chan struct{}),
	}
	c.lastWriteAt.Store(time.Now().UnixNano())
	go c.writeLoop()
	return c
}

func (c *wireConn) writeLoop() {
	for {
		select {
		case job := <-c.sendCh:
			_, err := c.nc.Write(job.frame)
			if err == nil {
				c.lastWriteAt.Store(time.Now().UnixNano())
			}
			if job.onComplete == nil {
				continue
			}
			if err != nil {
				job.onComplete(sendResult{Success: false, Err: err})
				continue
			}
			job.onComplete(sendResult{Success: true})
		case <-c.closed:
			return
		}
	}
}

// idleSince reports how long it has been since this side last wrote
// anything to the connection.
func (c *wireConn) idleSince() time.Duration {
	return time.Since(time.Unix(0, c.lastWriteAt.Load()))
}

// send encodes body as a frame and enqueues it for the writer goroutine.
// onComplete may be nil for fire-and-forget sends (one-way replies).
func (c *wireConn) send(body []byte, onComplete func(sendResult)) {
	frame, err := encodeFrame(body)
	if err != nil {
		if onComplete != nil {
			onComplete(sendResult{Success: false, Err: err})
		}
		return
	}
	select {
	case c.sendCh <- sendJob{frame: frame, onComplete: onComplete}:
	case <-c.closed:
		if onComplete != nil {
			onComplete(sendResult{Success: false, Err: ErrClosed})
		}
	}
}

func (c *wireConn) close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.nc.Close()
	})
	return err
}

// connInfo is the server-side "connection state" entry of spec §3, keyed
// in the server's connection map by the remote endpoint string. id is a
// correlation id independent of that key, stamped for log lines.
type connInfo struct {
	id     string
	remote string
	nc     net.Conn
	wc     *wireConn

	lastSeen atomic.Int64 // UnixNano of the most recently observed inbound frame

	closeOnce sync.Once
}

func newConnInfo(nc net.Conn, clk clock) *connInfo {
	ci := &connInfo{
		id:     uuid.NewString(),
		remote: nc.RemoteAddr().String(),
		nc:     nc,
		wc:     newWireConn(nc),
	}
	ci.touch(clk)
	return ci
}

func (ci *connInfo) touch(clk clock) {
	ci.lastSeen.Store(clk.now().UnixNano())
}

func (ci *connInfo) idleFor(clk clock) time.Duration {
	return clk.now().Sub(time.Unix(0, ci.lastSeen.Load()))
}

func (ci *connInfo) close() error {
	var err error
	ci.closeOnce.Do(func() {
		err = ci.wc.close()
	})
	return err
}

// connTable is the concurrently mutated remote-endpoint -> connInfo map of
// spec §3 ("Connection state (server)"), mirroring aznet.Listener's
// sync.Map-backed conns registry and its ticker-driven janitor sweep.
type connTable struct {
	mu sync.RWMutex
	m  map[string]*connInfo
}

func newConnTable() *connTable {
	return &connTable{m: make(map[string]*connInfo)}
}

func (t *connTable) store(ci *connInfo) {
	t.mu.Lock()
	t.m[ci.remote] = ci
	t.mu.Unlock()
}

func (t *connTable) delete(remote string) (*connInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ci, ok := t.m[remote]
	if ok {
		delete(t.m, remote)
	}
	return ci, ok
}

func (t *connTable) snapshot() []*connInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*connInfo, 0, len(t.m))
	for _, ci := range t.m {
		out = append(out, ci)
	}
	return out
}

func (t *connTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}
