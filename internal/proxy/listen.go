package proxy

import (
	"context"
	"fmt"
	"net"
	"strings"
)

// ListenTCP binds the gateway's client-facing socket. Accepted connections
// get keepAlive applied before they reach Gateway.Serve.
func ListenTCP(ctx context.Context, network, addr string, keepAlive net.KeepAliveConfig) (net.Listener, error) {
	if !strings.HasPrefix(network, "tcp") {
		return nil, fmt.Errorf("listen %s %s: unsupported network", network, addr)
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s %s: %w", network, addr, err)
	}
	return &KeepAliveListener{Listener: ln, KeepAlive: keepAlive}, nil
}

// KeepAliveListener wraps a TCP listener and sets KeepAlive on each
// accepted connection. Errors from SetKeepAliveConfig are ignored; the
// connection is still usable without it.
type KeepAliveListener struct {
	net.Listener
	KeepAlive net.KeepAliveConfig
}

func (l *KeepAliveListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetKeepAliveConfig(l.KeepAlive)
	}
	return c, nil
}
