// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package remoting

import (
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Server is the server engine of spec §4.6 (C6): it accepts connections,
// dispatches inbound requests by code to a registered Handler, and writes
// back responses honoring one-way semantics.
type Server struct {
	opts Options
	log  FieldLogger
	clk  clock

	ln    net.Listener
	conns *connTable

	handlersMu sync.RWMutex
	handlers   map[int32]Handler

	// acceptCh decouples raw Accept() from connection registration. Go's
	// net package does not expose the kernel listen(2) backlog portably,
	// so ListenBacklog sizes this buffer instead: a burst of accepts can
	// queue here without stalling the accept loop.
	acceptCh chan net.Conn

	livenessTaskID TaskID
	group          errgroup.Group

	closeOnce sync.Once
	closed    chan struct{}
}

// Listen binds and starts listening per the configured Options, then
// starts the accept loop and the liveness-check scanner.
func Listen(opts ...Option) (*Server, error) {
	o := applyOptions(opts)
	addr := net.JoinHostPort(o.Address, strconv.Itoa(o.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return newServer(ln, o), nil
}

// NewServer adapts an already-bound net.Listener (e.g. net.Listen("tcp",
// "127.0.0.1:0") in a test) into a Server.
func NewServer(ln net.Listener, opts ...Option) *Server {
	return newServer(ln, applyOptions(opts))
}

func newServer(ln net.Listener, o Options) *Server {
	s := &Server{
		opts:     o,
		log:      o.Logger,
		clk:      systemClock,
		ln:       ln,
		conns:    newConnTable(),
		handlers: make(map[int32]Handler),
		acceptCh: make(chan net.Conn, o.ListenBacklog),
		closed:   make(chan struct{}),
	}
	s.group.Go(func() error { s.acceptLoop(); return nil })
	s.group.Go(func() error { s.dispatchLoop(); return nil })
	s.livenessTaskID = o.Scanner.Schedule(s.checkLiveness, o.ServerLivenessPeriod, o.ServerLivenessPeriod)
	return s
}

// Register installs h for code, overwriting any previous registration —
// "last registration wins" (spec §4.6).
func (s *Server) Register(code int32, h Handler) {
	s.handlersMu.Lock()
	s.handlers[code] = h
	s.handlersMu.Unlock()
}

// RegisterFunc is Register for a plain HandlerFunc.
func (s *Server) RegisterFunc(code int32, f func(ctx *Context, req *Request) (*Response, error)) {
	s.Register(code, HandlerFunc(f))
}

// Addr returns the listener's bound address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// ConnCount reports the number of tracked connections.
func (s *Server) ConnCount() int { return s.conns.len() }

func (s *Server) acceptLoop() {
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			return
		}
		select {
		case s.acceptCh <- nc:
		case <-s.closed:
			_ = nc.Close()
			return
		}
	}
}

func (s *Server) dispatchLoop() {
	for {
		select {
		case nc := <-s.acceptCh:
			// Re-check closed: a connection may have queued in acceptCh
			// just as Close() began tearing down tracked connections, and
			// spawning a fresh receiver goroutine after that point would
			// race with the group.Wait() below it.
			select {
			case <-s.closed:
				_ = nc.Close()
			default:
				s.handleAccept(nc)
			}
		case <-s.closed:
			return
		}
	}
}

func (s *Server) handleAccept(nc net.Conn) {
	ci := newConnInfo(nc, s.clk)
	s.conns.store(ci)
	s.opts.Listener.OnAccept(ci.remote)

	rv := newReceiver(nc, s.opts.ReceiveBufferSize, s.opts.MaxFrameBytes)
	s.group.Go(func() error {
		rv.run(
			func(body []byte) error { return s.onFrame(ci, body) },
			func(err error) { s.onConnClosed(ci, err) },
		)
		return nil
	})
}

// onFrame decodes an inbound frame as a Request and dispatches it by code.
// A slow handler here only delays further reads on this one connection —
// every other connection has its own receiver goroutine — satisfying
// spec §4.6's "must not stall receives on other connections".
func (s *Server) onFrame(ci *connInfo, body []byte) error {
	ci.touch(s.clk)
	req, err := decodeRequest(body)
	if err != nil {
		return &FramingError{Remote: ci.remote, Cause: err}
	}
	s.dispatch(ci, req)
	return nil
}

func (s *Server) dispatch(ci *connInfo, req *Request) {
	if req.Code == pingRequestCode {
		// Client.keepAlive's idle ping: ci.touch already ran in onFrame, so
		// there is nothing left to do. Never looked up in the handler
		// registry, never logged as HandlerNotFoundError.
		return
	}

	s.handlersMu.RLock()
	h, ok := s.handlers[req.Code]
	s.handlersMu.RUnlock()
	if !ok {
		s.log.WithField("code", req.Code).Errorf("remoting: %v", &HandlerNotFoundError{Code: req.Code})
		return
	}

	ctx := newContext(ci)
	resp, err := h.Handle(ctx, req)
	if err != nil {
		s.log.WithFields(logrus.Fields{"code": req.Code, "sequence": req.Sequence}).
			Errorf("remoting: handler error: %v", err)
	}
	if req.IsOneway || resp == nil {
		// One-way: discard any response. Non-one-way with a nil response:
		// no reply is sent, the client will time out (spec §4.6).
		return
	}
	resp.Sequence = req.Sequence
	ci.wc.send(encodeResponse(resp), nil)
}

func (s *Server) onConnClosed(ci *connInfo, err error) {
	s.conns.delete(ci.remote)
	_ = ci.close()
	if err != nil && !errors.Is(err, io.EOF) {
		wrapped := pkgerrors.Wrap(err, "receive loop ended")
		s.opts.Listener.OnReceiveError(ci.remote, wrapped)
	}
	s.opts.Listener.OnDisconnect(ci.remote)
}

// checkLiveness is the C7-driven liveness-check action (spec §4.3): any
// connection that has produced no frame within one ServerLivenessPeriod is
// considered dead and removed. This substitutes for the OS-level
// readable-zero-bytes probe the spec describes as a best-effort health
// probe (explicitly permitted by §4.3's design notes). It is only sound
// because Client.keepAlive refreshes a quiet-but-alive connection's
// lastSeen well inside this window; without that ping, a client that
// simply has no calls in flight for one ServerLivenessPeriod would be
// evicted exactly like a dead one. TCP keep-alive (enabled in newWireConn)
// is a much slower, OS-level backstop for a half-open socket — it does not
// do the job this check relies on.
func (s *Server) checkLiveness() {
	now := s.clk.now()
	for _, ci := range s.conns.snapshot() {
		if now.Sub(time.Unix(0, ci.lastSeen.Load())) <= s.opts.ServerLivenessPeriod {
			continue
		}
		if _, ok := s.conns.delete(ci.remote); !ok {
			continue // already removed by onConnClosed
		}
		_ = ci.close()
		s.opts.Listener.OnDisconnect(ci.remote)
	}
}

// Close stops accepting, stops the liveness scanner, and closes every
// tracked connection, aggregating any errors encountered along the way.
func (s *Server) Close() error {
	var result *multierror.Error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.opts.Scanner.Cancel(s.livenessTaskID)
		if err := s.ln.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		for _, ci := range s.conns.snapshot() {
			if err := ci.close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		_ = s.group.Wait()
		drainAccepted(s.acceptCh)
	})
	return result.ErrorOrNil()
}

func drainAccepted(ch chan net.Conn) {
	for {
		select {
		case nc := <-ch:
			_ = nc.Close()
		default:
			return
		}
	}
}

