// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package remoting

import (
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return NewServer(ln, opts...)
}

func dialTestServer(t *testing.T, srv *Server, opts ...Option) *Client {
	t.Helper()
	_, portStr, err := net.SplitHostPort(srv.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	cli, err := Dial(append([]Option{WithAddress("127.0.0.1"), WithPort(port)}, opts...)...)
	require.NoError(t, err)
	return cli
}

func TestServerDispatchesRegisteredHandler(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	srv.RegisterFunc(1, func(ctx *Context, req *Request) (*Response, error) {
		return &Response{Code: 0, Body: append([]byte("echo:"), req.Body...)}, nil
	})

	cli := dialTestServer(t, srv)
	defer cli.Close()

	resp, err := cli.InvokeSync(1, []byte("hi"), time.Second)
	require.NoError(t, err)
	require.Equal(t, "echo:hi", string(resp.Body))
}

func TestServerLastRegistrationWins(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	srv.RegisterFunc(1, func(ctx *Context, req *Request) (*Response, error) {
		return &Response{Code: 0, Body: []byte("first")}, nil
	})
	srv.RegisterFunc(1, func(ctx *Context, req *Request) (*Response, error) {
		return &Response{Code: 0, Body: []byte("second")}, nil
	})

	cli := dialTestServer(t, srv)
	defer cli.Close()

	resp, err := cli.InvokeSync(1, nil, time.Second)
	require.NoError(t, err)
	require.Equal(t, "second", string(resp.Body))
}

func TestServerUnregisteredCodeLeavesConnectionOpenAndTimesOut(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	cli := dialTestServer(t, srv)
	defer cli.Close()

	_, err := cli.InvokeSync(77, nil, 50*time.Millisecond)
	require.Error(t, err)
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)

	// The connection itself must still be usable afterward.
	srv.RegisterFunc(1, func(ctx *Context, req *Request) (*Response, error) {
		return &Response{Code: 0}, nil
	})
	_, err = cli.InvokeSync(1, nil, time.Second)
	require.NoError(t, err)
}

func TestServerOnewayRequestInvokesHandler(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	var called atomic.Bool
	srv.RegisterFunc(1, func(ctx *Context, req *Request) (*Response, error) {
		called.Store(true)
		return &Response{Code: 0, Body: []byte("ignored")}, nil
	})

	cli := dialTestServer(t, srv)
	defer cli.Close()

	require.NoError(t, cli.InvokeOneway(1, nil, time.Second))

	require.Eventually(t, called.Load, time.Second, 10*time.Millisecond)
}

func TestServerTracksConnectionCount(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	srv.RegisterFunc(1, func(ctx *Context, req *Request) (*Response, error) {
		return &Response{Code: 0}, nil
	})

	cli := dialTestServer(t, srv)
	// Ensure the server has actually registered the connection before
	// asserting, by completing one round trip first.
	_, err := cli.InvokeSync(1, nil, time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, srv.ConnCount())

	require.NoError(t, cli.Close())
	require.Eventually(t, func() bool { return srv.ConnCount() == 0 }, time.Second, 10*time.Millisecond)
}

// TestServerLivenessCheckSurvivesQuietClientWithKeepAlive pins down the
// maintainer-flagged failure mode: a client with no calls in flight for
// longer than ServerLivenessPeriod must not be evicted, because its
// keep-alive ping keeps connInfo.lastSeen fresh.
func TestServerLivenessCheckSurvivesQuietClientWithKeepAlive(t *testing.T) {
	srv := newTestServer(t, WithServerLivenessPeriod(150*time.Millisecond))
	defer srv.Close()
	srv.RegisterFunc(1, func(ctx *Context, req *Request) (*Response, error) {
		return &Response{Code: 0}, nil
	})

	cli := dialTestServer(t, srv, WithKeepAlivePeriod(40*time.Millisecond))
	defer cli.Close()

	_, err := cli.InvokeSync(1, nil, time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, srv.ConnCount())

	// Stay quiet well past several liveness windows; only the keep-alive
	// ping should be keeping this connection alive.
	time.Sleep(500 * time.Millisecond)
	require.Equal(t, 1, srv.ConnCount())

	resp, err := cli.InvokeSync(1, nil, time.Second)
	require.NoError(t, err)
	require.NotNil(t, resp)
}
