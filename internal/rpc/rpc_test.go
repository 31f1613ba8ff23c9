package rpc

import (
	"context"
	"io"
	"log"
	"testing"
	"time"
)

func newConnPair(t *testing.T, serverReq RequestHandler, serverNotify NotificationHandler) (client, server *Conn) {
	t.Helper()
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()

	discard := log.New(io.Discard, "", 0)
	server = Dial(context.Background(), sr, sw, nil, discard, serverReq, serverNotify)
	client = Dial(context.Background(), cr, cw, nil, discard, nil, nil)
	return client, server
}

func TestCallRoundTrip(t *testing.T) {
	client, server := newConnPair(t, func(ctx context.Context, method string, params interface{}) (interface{}, error) {
		if method != "ping" {
			t.Fatalf("unexpected method %q", method)
		}
		return map[string]string{"pong": "ok"}, nil
	}, nil)
	defer client.Close()
	defer server.Close()

	var result struct {
		Pong string `json:"pong"`
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Call(ctx, "ping", map[string]string{}, &result); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.Pong != "ok" {
		t.Fatalf("got %+v", result)
	}
}

func TestNotifyDelivered(t *testing.T) {
	received := make(chan string, 1)
	client, server := newConnPair(t, nil, func(method string, params interface{}) {
		received <- method
	})
	defer client.Close()
	defer server.Close()

	if err := client.Notify(context.Background(), "textDocument/didOpen", map[string]string{}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	select {
	case m := <-received:
		if m != "textDocument/didOpen" {
			t.Fatalf("got method %q", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestCallServerError(t *testing.T) {
	client, server := newConnPair(t, func(ctx context.Context, method string, params interface{}) (interface{}, error) {
		return nil, &jsonServerError{}
	}, nil)
	defer client.Close()
	defer server.Close()

	var result interface{}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := client.Call(ctx, "willfail", nil, &result)
	if err == nil {
		t.Fatal("expected error")
	}
}

type jsonServerError struct{}

func (e *jsonServerError) Error() string { return "boom" }
