package testutil

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/die-net/rabbithole/internal/socks5"
)

// SOCKS5Proxy is a loopback SOCKS5 server that forwards CONNECT requests
// directly. It stands in for a public proxy in tests.
type SOCKS5Proxy struct {
	ln       net.Listener
	auth     socks5.Auth
	sessions atomic.Int64
}

// StartSOCKS5Proxy starts a forwarding SOCKS5 server on loopback. It stops
// when t ends.
func StartSOCKS5Proxy(t *testing.T, ctx context.Context, auth socks5.Auth) *SOCKS5Proxy {
	t.Helper()

	ln := listenLoopback(t, ctx)
	p := &SOCKS5Proxy{ln: ln, auth: auth}

	var wg sync.WaitGroup
	t.Cleanup(func() {
		_ = ln.Close()
		wg.Wait()
	})

	wg.Go(func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go p.serve(ctx, c)
		}
	})

	return p
}

// Addr returns the proxy's host:port.
func (p *SOCKS5Proxy) Addr() string {
	return p.ln.Addr().String()
}

// URI returns the proxy as a socks5:// URI, with credentials if configured.
func (p *SOCKS5Proxy) URI() string {
	if p.auth.Enabled() {
		return "socks5://" + p.auth.Username + ":" + p.auth.Password + "@" + p.Addr()
	}
	return "socks5://" + p.Addr()
}

// Sessions returns the number of CONNECT requests that reached the target.
func (p *SOCKS5Proxy) Sessions() int64 {
	return p.sessions.Load()
}

func (p *SOCKS5Proxy) serve(ctx context.Context, c net.Conn) {
	defer c.Close()

	if err := socks5.ServerNegotiate(c, p.auth); err != nil {
		return
	}
	req, err := socks5.ServerReadRequest(c)
	if err != nil {
		return
	}
	if req.Cmd != socks5.CmdConnect {
		socks5.WriteCommandNotSupportedReply(c, req.Atyp)
		return
	}

	d := net.Dialer{}
	dst, err := d.DialContext(ctx, "tcp", req.Address())
	if err != nil {
		socks5.WriteHostUnreachableReply(c, req.Atyp)
		return
	}
	defer dst.Close()

	if err := socks5.WriteSuccessReply(c, dst.LocalAddr()); err != nil {
		return
	}
	p.sessions.Add(1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = io.Copy(dst, c)
		closeWrite(dst)
	}()
	_, _ = io.Copy(c, dst)
	closeWrite(c)
	<-done
}

func closeWrite(c net.Conn) {
	if cw, ok := c.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
		return
	}
	_ = c.Close()
}
