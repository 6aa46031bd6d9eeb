package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/die-net/rabbithole/internal/dialer"
	"github.com/die-net/rabbithole/internal/pool"
	"github.com/die-net/rabbithole/internal/socks5"
	"github.com/die-net/rabbithole/internal/testutil"
)

func startGateway(t *testing.T, cfg Config, upstreams ...string) (*Gateway, string, <-chan Report) {
	t.Helper()

	p, err := pool.New(upstreams)
	if err != nil {
		t.Fatal(err)
	}

	reports := make(chan Report, 1024)
	cfg.OnClose = func(r Report) { reports <- r }
	if cfg.Dialer.DialTimeout == 0 {
		cfg.Dialer.DialTimeout = 2 * time.Second
	}

	g, err := NewGateway(cfg, p)
	if err != nil {
		t.Fatal(err)
	}

	ln, err := ListenTCP(context.Background(), "tcp", "127.0.0.1:0", net.KeepAliveConfig{Enable: false})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() { _ = g.Serve(ln) }()

	return g, ln.Addr().String(), reports
}

func gatewayClient(t *testing.T, addr string, auth socks5.Auth) dialer.Dialer {
	t.Helper()

	d, err := dialer.NewSOCKS5ProxyDialer(dialer.Config{DialTimeout: 2 * time.Second, NegotiationTimeout: 2 * time.Second}, addr, auth.Username, auth.Password)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func waitReport(t *testing.T, reports <-chan Report) Report {
	t.Helper()

	select {
	case r := <-reports:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for connection report")
		return Report{}
	}
}

func deadAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func TestNewGatewayEmptyPool(t *testing.T) {
	if _, err := NewGateway(Config{}, nil); !errors.Is(err, pool.ErrEmptyPool) {
		t.Fatalf("got err %v want %v", err, pool.ErrEmptyPool)
	}
	if _, err := NewGateway(Config{}, &pool.Pool{}); !errors.Is(err, pool.ErrEmptyPool) {
		t.Fatalf("got err %v want %v", err, pool.ErrEmptyPool)
	}
}

func TestGatewayRelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	up := testutil.StartSOCKS5Proxy(t, ctx, socks5.Auth{})
	g, addr, reports := startGateway(t, Config{NegotiationTimeout: 2 * time.Second}, up.URI())

	conn, err := gatewayClient(t, addr, socks5.Auth{}).DialContext(ctx, "tcp", echoLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	msg := bytes.Repeat([]byte("rabbithole"), 10000)
	go func() {
		_, _ = conn.Write(msg)
		_ = conn.(closeWriter).CloseWrite()
	}()

	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("echoed %d bytes, want %d identical bytes", len(got), len(msg))
	}

	rep := waitReport(t, reports)
	if rep.Err != nil {
		t.Fatalf("unexpected error %v", rep.Err)
	}
	if rep.State != Closed {
		t.Fatalf("got state %v want %v", rep.State, Closed)
	}
	if rep.Sent != int64(len(msg)) || rep.Received != int64(len(msg)) {
		t.Fatalf("got sent %d received %d want %d each", rep.Sent, rep.Received, len(msg))
	}
	if rep.Upstream != up.URI() {
		t.Fatalf("got upstream %q want %q", rep.Upstream, up.URI())
	}
	if rep.Target != echoLn.Addr().String() {
		t.Fatalf("got target %q want %q", rep.Target, echoLn.Addr().String())
	}
	if rep.ID == "" {
		t.Fatal("missing connection id")
	}
	if g.Active() != 0 || g.Served() != 1 {
		t.Fatalf("got active %d served %d", g.Active(), g.Served())
	}
}

func TestGatewaySelectsUniformly(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)

	ups := make([]*testutil.SOCKS5Proxy, 3)
	uris := make([]string, len(ups))
	for i := range ups {
		ups[i] = testutil.StartSOCKS5Proxy(t, ctx, socks5.Auth{})
		uris[i] = ups[i].URI()
	}
	_, addr, reports := startGateway(t, Config{}, uris...)
	client := gatewayClient(t, addr, socks5.Auth{})

	const conns = 300
	counts := make(map[string]int)
	for range conns {
		conn, err := client.DialContext(ctx, "tcp", echoLn.Addr().String())
		if err != nil {
			t.Fatal(err)
		}
		testutil.AssertEcho(t, conn, conn, []byte("ping"))
		_ = conn.Close()

		counts[waitReport(t, reports).Upstream]++
	}

	for i, up := range ups {
		// Expected 100 each; the bounds are five standard deviations.
		if c := counts[uris[i]]; c < 60 || c > 140 {
			t.Errorf("upstream %d picked %d of %d times", i, c, conns)
		}
		if got := up.Sessions(); got != int64(counts[uris[i]]) {
			t.Errorf("upstream %d saw %d sessions, reports say %d", i, got, counts[uris[i]])
		}
	}
}

func TestGatewayAuth(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	auth := socks5.Auth{Username: "user", Password: "pass"}

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	up := testutil.StartSOCKS5Proxy(t, ctx, socks5.Auth{})
	_, addr, reports := startGateway(t, Config{Auth: auth}, up.URI())

	good, err := gatewayClient(t, addr, auth).DialContext(ctx, "tcp", echoLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer good.Close()
	testutil.AssertEcho(t, good, good, []byte("before"))

	tests := []struct {
		name    string
		auth    socks5.Auth
		wantErr error
	}{
		{name: "no_credentials"},
		{name: "wrong_password", auth: socks5.Auth{Username: "user", Password: "wrong"}, wantErr: socks5.ErrAuthFailed},
	}

	for _, tt := range tests {
		if _, err := gatewayClient(t, addr, tt.auth).DialContext(ctx, "tcp", echoLn.Addr().String()); err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}

		rep := waitReport(t, reports)
		var ce *ConnError
		if !errors.As(rep.Err, &ce) || ce.State != Accepted || rep.State != Accepted {
			t.Fatalf("%s: got state %v err %v, want *ConnError in state accepted", tt.name, rep.State, rep.Err)
		}
		if tt.wantErr != nil && !errors.Is(rep.Err, tt.wantErr) {
			t.Fatalf("%s: got err %v want %v", tt.name, rep.Err, tt.wantErr)
		}
		if rep.Upstream != "" {
			t.Fatalf("%s: rejected client reached upstream selection: %q", tt.name, rep.Upstream)
		}
	}

	testutil.AssertEcho(t, good, good, []byte("after"))
	if got := up.Sessions(); got != 1 {
		t.Fatalf("got %d upstream sessions want 1", got)
	}
}

func TestGatewayBadUpstreamIsolated(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	up := testutil.StartSOCKS5Proxy(t, ctx, socks5.Auth{})
	dead := "socks5://" + deadAddr(t)
	_, addr, reports := startGateway(t, Config{}, dead, up.URI())
	client := gatewayClient(t, addr, socks5.Auth{})

	var failed, relayed int
	for i := 0; i < 100 && (failed == 0 || relayed == 0); i++ {
		conn, err := client.DialContext(ctx, "tcp", echoLn.Addr().String())
		if err == nil {
			testutil.AssertEcho(t, conn, conn, []byte("ok"))
			_ = conn.Close()
		}

		rep := waitReport(t, reports)
		switch rep.Upstream {
		case dead:
			if err == nil {
				t.Fatal("connection through dead upstream succeeded")
			}
			if rep.State != ProxySelected {
				t.Fatalf("got state %v want %v", rep.State, ProxySelected)
			}
			failed++
		case up.URI():
			if err != nil {
				t.Fatalf("connection through live upstream failed: %v", err)
			}
			relayed++
		default:
			t.Fatalf("unexpected upstream %q", rep.Upstream)
		}
	}

	if failed == 0 || relayed == 0 {
		t.Fatalf("got %d failed and %d relayed, want both", failed, relayed)
	}
}

func TestGatewayResolvesTargets(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	up := testutil.StartSOCKS5Proxy(t, ctx, socks5.Auth{})

	r := NewResolver(time.Minute)
	r.lookup = func(_ context.Context, host string) ([]netip.Addr, error) {
		if host == "echo.test" {
			return []netip.Addr{netip.MustParseAddr("127.0.0.1")}, nil
		}
		return nil, errors.New("no such host")
	}
	_, addr, reports := startGateway(t, Config{Resolver: r}, up.URI())
	client := gatewayClient(t, addr, socks5.Auth{})

	port := strconv.Itoa(echoLn.Addr().(*net.TCPAddr).Port)

	conn, err := client.DialContext(ctx, "tcp", net.JoinHostPort("echo.test", port))
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEcho(t, conn, conn, []byte("resolved"))
	_ = conn.Close()
	if rep := waitReport(t, reports); rep.Target != "echo.test:"+port {
		t.Fatalf("got target %q", rep.Target)
	}

	if _, err := client.DialContext(ctx, "tcp", "nowhere.test:80"); err == nil {
		t.Fatal("expected error")
	}
	rep := waitReport(t, reports)
	if rep.State != HandshakeComplete {
		t.Fatalf("got state %v want %v", rep.State, HandshakeComplete)
	}
	if got := up.Sessions(); got != 1 {
		t.Fatalf("got %d upstream sessions want 1", got)
	}
}

func TestGatewayNegotiationTimeout(t *testing.T) {
	up := testutil.StartSOCKS5Proxy(t, context.Background(), socks5.Auth{})
	_, addr, reports := startGateway(t, Config{NegotiationTimeout: 100 * time.Millisecond}, up.URI())

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Fatal("expected the gateway to close the connection")
	}

	rep := waitReport(t, reports)
	if rep.State != Accepted || rep.Err == nil {
		t.Fatalf("got state %v err %v", rep.State, rep.Err)
	}
}

func TestGatewayConcurrentConnections(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	up := testutil.StartSOCKS5Proxy(t, ctx, socks5.Auth{})
	g, addr, reports := startGateway(t, Config{}, up.URI())
	client := gatewayClient(t, addr, socks5.Auth{})

	const conns = 20
	opened := make([]net.Conn, conns)
	for i := range opened {
		c, err := client.DialContext(ctx, "tcp", echoLn.Addr().String())
		if err != nil {
			t.Fatal(err)
		}
		opened[i] = c
	}
	if got := g.Active(); got != conns {
		t.Fatalf("got %d active want %d", got, conns)
	}

	var wg sync.WaitGroup
	for i, c := range opened {
		wg.Go(func() {
			defer c.Close()
			msg := []byte("conn " + strconv.Itoa(i))
			if _, err := c.Write(msg); err != nil {
				t.Error(err)
				return
			}
			buf := make([]byte, len(msg))
			if _, err := io.ReadFull(c, buf); err != nil || !bytes.Equal(buf, msg) {
				t.Errorf("conn %d: got %q, %v", i, buf, err)
			}
		})
	}
	wg.Wait()

	for range conns {
		waitReport(t, reports)
	}
	if g.Active() != 0 || g.Served() != conns {
		t.Fatalf("got active %d served %d", g.Active(), g.Served())
	}
}
