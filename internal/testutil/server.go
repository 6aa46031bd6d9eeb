package testutil

import (
	"context"
	"net"
	"testing"
)

// listenLoopback opens a TCP listener on an ephemeral loopback port.
func listenLoopback(t *testing.T, ctx context.Context) net.Listener {
	t.Helper()

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen loopback: %v", err)
	}
	return ln
}

// StartSingleAcceptServer serves one connection with handler. The returned
// func closes the listener and blocks until handler has returned.
func StartSingleAcceptServer(t *testing.T, ctx context.Context, handler func(net.Conn)) (net.Listener, func()) {
	t.Helper()

	ln := listenLoopback(t, ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		handler(c)
	}()

	return ln, func() {
		_ = ln.Close()
		<-done
	}
}
