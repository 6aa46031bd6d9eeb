package dialer

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	internalsocks5 "github.com/die-net/rabbithole/internal/socks5"
	"github.com/die-net/rabbithole/internal/testutil"
)

func startConnectProxy(t *testing.T, ctx context.Context, wantAuth string) (net.Listener, func()) {
	t.Helper()

	return testutil.StartSingleAcceptServer(t, ctx, func(c net.Conn) {
		br := bufio.NewReader(c)
		req, err := http.ReadRequest(br)
		if err != nil {
			return
		}
		_ = req.Body.Close()
		if req.Method != http.MethodConnect {
			_, _ = io.WriteString(c, "HTTP/1.1 405 Method Not Allowed\r\n\r\n")
			return
		}
		if req.Header.Get("Proxy-Authorization") != wantAuth {
			_, _ = io.WriteString(c, "HTTP/1.1 407 Proxy Authentication Required\r\n\r\n")
			return
		}

		d := net.Dialer{}
		dst, err := d.DialContext(ctx, "tcp", req.Host)
		if err != nil {
			_, _ = io.WriteString(c, "HTTP/1.1 502 Bad Gateway\r\n\r\n")
			return
		}
		defer dst.Close()

		_, _ = io.WriteString(c, "HTTP/1.1 200 Connection Established\r\n\r\n")

		go func() {
			_, _ = io.Copy(dst, br)
			_ = dst.Close()
		}()
		_, _ = io.Copy(c, dst)
	})
}

func TestHTTPProxyDialerDialSuccess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	upLn, waitUp := startConnectProxy(t, ctx, "Basic dXNlcjpwYXNz")

	f, err := New(Config{DialTimeout: 2 * time.Second, NegotiationTimeout: 2 * time.Second}, "http://user:pass@"+upLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	conn, err := f.DialContext(ctx, "tcp", echoLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	testutil.AssertEcho(t, conn, conn, []byte("hello"))
	_ = conn.Close()

	waitUp()
}

func TestHTTPProxyDialerDialNon2xx(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	upLn, waitUp := startConnectProxy(t, ctx, "Basic c2VjcmV0")

	f, err := NewHTTPProxyDialer(Config{DialTimeout: 2 * time.Second}, &url.URL{Scheme: "http", Host: upLn.Addr().String()}, "", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.DialContext(ctx, "tcp", "127.0.0.1:1"); err == nil {
		t.Fatalf("expected error")
	}

	waitUp()
}

func TestNewHTTPClientThroughSOCKS5(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	up := testutil.StartSOCKS5Proxy(t, ctx, internalsocks5.Auth{})

	d, err := New(Config{DialTimeout: time.Second}, up.URI())
	if err != nil {
		t.Fatal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := NewHTTPClient(d, time.Second).Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "ok" {
		t.Fatalf("got %q want ok", body)
	}
	if got := up.Sessions(); got != 1 {
		t.Fatalf("got %d sessions want 1", got)
	}
}
