// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package remoting

// SocketEventListener receives server-side connection lifecycle
// notifications (spec §6). Callbacks are invoked synchronously: OnAccept on
// the goroutine that registers accepted connections, OnReceiveError and
// OnDisconnect on the connection's receive goroutine, or OnDisconnect on the
// liveness-check task when it evicts an idle connection. A slow listener
// therefore delays the loop that called it.
type SocketEventListener interface {
	OnAccept(remote string)
	OnDisconnect(remote string)
	OnReceiveError(remote string, err error)
}

type noopSocketEventListener struct{}

func (noopSocketEventListener) OnAccept(string)              {}
func (noopSocketEventListener) OnDisconnect(string)          {}
func (noopSocketEventListener) OnReceiveError(string, error) {}

// Handler processes one inbound Request and optionally produces a
// Response (spec §6 "Request-handler registry"). Returning a nil Response
// for a non-one-way request means no reply is sent; the client will time
// out. Any returned Response is discarded for one-way requests.
type Handler interface {
	Handle(ctx *Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a plain function to Handler, the way net/http adapts
// http.HandlerFunc — so callers registering a single-purpose handler don't
// need to declare a named type.
type HandlerFunc func(ctx *Context, req *Request) (*Response, error)

func (f HandlerFunc) Handle(ctx *Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Context is the "channel" of the GLOSSARY: the handle through which a
// handler learns the origin of a request and may send a response,
// including a deferred reply issued after Handle has already returned.
type Context struct {
	remote string
	ci     *connInfo
}

func newContext(ci *connInfo) *Context {
	return &Context{remote: ci.remote, ci: ci}
}

// RemoteAddr returns the channel identity of the request's origin.
func (c *Context) RemoteAddr() string { return c.remote }

// SendResponse writes resp back on the originating connection. Usable for
// deferred replies issued after Handle has already returned (spec §4.6).
func (c *Context) SendResponse(resp *Response) error {
	result := make(chan sendResult, 1)
	c.ci.wc.send(encodeResponse(resp), func(r sendResult) { result <- r })
	r := <-result
	if !r.Success {
		return &SendError{Remote: c.remote, Cause: r.Err}
	}
	return nil
}
