// Package rpc frames and correlates JSON-RPC 2.0 messages over a pair of
// byte streams, typically a language server subprocess's stdin/stdout,
// using the Content-Length-prefixed codec LSP inherits from its VS Code
// ancestry.
package rpc

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"sync/atomic"

	"github.com/sourcegraph/jsonrpc2"

	"codegate/internal/errs"
)

// RequestHandler answers a server-to-client LSP request such as
// workspace/configuration or window/workDoneProgress/create. Handlers must
// return synchronously; the reader goroutine blocks on them before writing
// the response frame.
type RequestHandler func(ctx context.Context, method string, params interface{}) (result interface{}, err error)

// NotificationHandler observes a server-to-client notification such as
// textDocument/publishDiagnostics or window/logMessage.
type NotificationHandler func(method string, params interface{})

// Conn is a framed JSON-RPC connection to a single language server
// subprocess. One Conn owns one reader goroutine; Call and Notify may be
// invoked concurrently from multiple goroutines, matching jsonrpc2.Conn's
// own concurrency contract.
type Conn struct {
	underlying *jsonrpc2.Conn
	log        *log.Logger
	nextID     int64
}

// rwc adapts a subprocess's separate stdin/stdout pipes into the single
// io.ReadWriteCloser jsonrpc2.NewBufferedStream expects.
type rwc struct {
	io.ReadCloser
	io.WriteCloser
}

func (c rwc) Close() error {
	werr := c.WriteCloser.Close()
	rerr := c.ReadCloser.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// dispatcher implements jsonrpc2.Handler, routing inbound requests and
// notifications to the registered callbacks. Per spec, unknown
// notifications are logged and dropped; a request with no registered
// handler fails with MethodNotFound so the server sees a protocol error
// rather than hanging.
type dispatcher struct {
	logger   *log.Logger
	onReq    RequestHandler
	onNotify NotificationHandler
}

func (d dispatcher) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if req.Notif {
		if d.onNotify != nil {
			d.onNotify(req.Method, decodeParams(req))
		} else {
			d.logger.Printf("rpc: dropped notification %s (no handler registered)", req.Method)
		}
		return
	}

	if d.onReq == nil {
		d.logger.Printf("rpc: rejecting request %s (no handler registered)", req.Method)
		if err := conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: "method not supported by client: " + req.Method,
		}); err != nil {
			d.logger.Printf("rpc: reply error for %s: %v", req.Method, err)
		}
		return
	}

	result, err := d.onReq(ctx, req.Method, decodeParams(req))
	if err != nil {
		rpcErr := &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
		if e, ok := err.(*errs.Error); ok && e.Code != 0 {
			rpcErr.Code = int64(e.Code)
		}
		if replyErr := conn.ReplyWithError(ctx, req.ID, rpcErr); replyErr != nil {
			d.logger.Printf("rpc: reply error for %s: %v", req.Method, replyErr)
		}
		return
	}
	if err := conn.Reply(ctx, req.ID, result); err != nil {
		d.logger.Printf("rpc: reply for %s: %v", req.Method, err)
	}
}

func decodeParams(req *jsonrpc2.Request) interface{} {
	if req.Params == nil {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(*req.Params, &v); err != nil {
		return nil
	}
	return v
}

// Dial wraps an already-started subprocess's stdio pipes into a framed
// JSON-RPC connection. The stderr reader, if non-nil, is drained into
// logger without blocking the protocol reader; a crashed or noisy server
// must never back up and wedge stdout reads.
func Dial(ctx context.Context, stdout io.ReadCloser, stdin io.WriteCloser, stderr io.Reader, logger *log.Logger, onReq RequestHandler, onNotify NotificationHandler) *Conn {
	stream := jsonrpc2.NewBufferedStream(rwc{ReadCloser: stdout, WriteCloser: stdin}, jsonrpc2.VSCodeObjectCodec{})
	h := dispatcher{logger: logger, onReq: onReq, onNotify: onNotify}
	underlying := jsonrpc2.NewConn(ctx, stream, h)

	if stderr != nil {
		go drainStderr(stderr, logger)
	}

	return &Conn{underlying: underlying, log: logger}
}

func drainStderr(r io.Reader, logger *log.Logger) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			logger.Printf("stderr: %s", buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// Call sends a JSON-RPC request and blocks for the matching response,
// decoding its result into v. A JSON-RPC error response is returned as an
// errs error classified via errs.WrapServerError.
func (c *Conn) Call(ctx context.Context, method string, params, v interface{}) error {
	_, err := c.CallWithID(ctx, method, params, v)
	return err
}

// NextID allocates a fresh request id; CallWithID uses it for every
// request so the id can later be echoed back in a $/cancelRequest
// notification.
func (c *Conn) NextID() jsonrpc2.ID {
	return jsonrpc2.ID{Num: uint64(atomic.AddInt64(&c.nextID, 1))}
}

// CallWithID behaves like Call but sends the request under an id allocated
// by NextID and returns that id alongside the result, so the caller can
// issue a matching $/cancelRequest if the call times out.
func (c *Conn) CallWithID(ctx context.Context, method string, params, v interface{}) (jsonrpc2.ID, error) {
	id := c.NextID()
	err := c.underlying.Call(ctx, method, params, v, jsonrpc2.PickID(id))
	if err != nil {
		if rpcErr, ok := err.(*jsonrpc2.Error); ok {
			return id, errs.WrapServerError(method, int(rpcErr.Code), rpcErr.Message)
		}
		if ctx.Err() != nil {
			return id, errs.Wrap(errs.Timeout, method, ctx.Err())
		}
		return id, errs.Wrap(errs.ProtocolError, method, err)
	}
	return id, nil
}

// Notify sends a JSON-RPC notification; there is no response to wait for.
func (c *Conn) Notify(ctx context.Context, method string, params interface{}) error {
	if err := c.underlying.Notify(ctx, method, params); err != nil {
		return errs.Wrap(errs.ProtocolError, method, err)
	}
	return nil
}

// CancelRequest sends the LSP $/cancelRequest notification for id, used by
// the wrapper when a call times out or is cancelled by its caller.
func (c *Conn) CancelRequest(ctx context.Context, id jsonrpc2.ID) error {
	return c.Notify(ctx, "$/cancelRequest", map[string]interface{}{"id": id})
}

// DisconnectNotify returns a channel closed when the underlying connection
// is closed, so a wrapper can observe the reader goroutine exiting after an
// I/O error or a clean shutdown.
func (c *Conn) DisconnectNotify() <-chan struct{} {
	return c.underlying.DisconnectNotify()
}

// Close closes the underlying connection and, transitively, the stdio
// pipes it was built from.
func (c *Conn) Close() error {
	return c.underlying.Close()
}
