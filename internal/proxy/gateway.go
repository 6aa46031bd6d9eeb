package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/die-net/rabbithole/internal/dialer"
	"github.com/die-net/rabbithole/internal/pool"
	"github.com/die-net/rabbithole/internal/socks5"
)

// Gateway is a SOCKS5 server that relays every CONNECT through an upstream
// proxy picked from a pool.
type Gateway struct {
	cfg      Config
	pool     *pool.Pool
	resolver *Resolver
	log      zerolog.Logger

	active atomic.Int64
	served atomic.Uint64
}

// NewGateway returns a Gateway relaying through p. It refuses an empty pool.
func NewGateway(cfg Config, p *pool.Pool) (*Gateway, error) {
	if p == nil || p.Len() == 0 {
		return nil, pool.ErrEmptyPool
	}

	r := cfg.Resolver
	if r == nil {
		r = NewResolver(DefaultResolveTTL)
	}

	return &Gateway{
		cfg:      cfg,
		pool:     p,
		resolver: r,
		log:      cfg.Log,
	}, nil
}

// Serve accepts connections on ln and handles each in its own goroutine.
// Accept errors such as EMFILE are logged and retried with backoff; Serve
// returns only once ln is closed.
func (g *Gateway) Serve(ln net.Listener) error {
	g.log.Info().Str("addr", ln.Addr().String()).Int("upstreams", g.pool.Len()).Bool("auth", g.cfg.Auth.Enabled()).Msg("gateway listening")

	var delay time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			delay = acceptBackoff(delay)
			g.log.Error().Err(err).Dur("retry", delay).Msg("accept error")
			time.Sleep(delay)
			continue
		}
		delay = 0

		n := g.active.Add(1)
		g.log.Debug().Int64("active", n).Str("client", c.RemoteAddr().String()).Msg("accepted")

		go func() {
			rep := g.handleConn(c)

			g.active.Add(-1)
			g.served.Add(1)

			if g.cfg.OnClose != nil {
				g.cfg.OnClose(rep)
			}
		}()
	}
}

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// acceptBackoff doubles prev, starting at minAcceptDelay and capped at
// maxAcceptDelay.
func acceptBackoff(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptDelay
	}
	return min(2*prev, maxAcceptDelay)
}

// Active returns the number of connections currently being handled.
func (g *Gateway) Active() int64 {
	return g.active.Load()
}

// Served returns the number of connections that have finished.
func (g *Gateway) Served() uint64 {
	return g.served.Load()
}

func (g *Gateway) handleConn(conn net.Conn) Report {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer conn.Close()

	rep := Report{ID: uuid.NewString(), State: Accepted}
	log := g.log.With().Str("conn", rep.ID).Str("client", conn.RemoteAddr().String()).Logger()

	if err := g.serveConn(ctx, log, conn, &rep); err != nil {
		rep.Err = &ConnError{State: rep.State, Err: err}
	}

	ev := log.Debug()
	if rep.Err != nil && !IsExpectedDisconnect(rep.Err) {
		ev = log.Warn()
	}
	ev.Err(rep.Err).
		Stringer("state", rep.State).
		Str("target", rep.Target).
		Str("upstream", redact(rep.Upstream)).
		Int64("sent", rep.Sent).
		Int64("received", rep.Received).
		Msg("connection closed")

	return rep
}

// serveConn advances rep through the connection states. A returned error
// belongs to rep.State.
func (g *Gateway) serveConn(ctx context.Context, log zerolog.Logger, conn net.Conn, rep *Report) error {
	if g.cfg.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(g.cfg.NegotiationTimeout))
	}

	if err := socks5.ServerNegotiate(conn, g.cfg.Auth); err != nil {
		return err
	}
	req, err := socks5.ServerReadRequest(conn)
	if err != nil {
		return err
	}
	if req.Cmd != socks5.CmdConnect {
		socks5.WriteCommandNotSupportedReply(conn, req.Atyp)
		return fmt.Errorf("unsupported command %d", req.Cmd)
	}
	rep.Target = req.Address()
	rep.State = HandshakeComplete

	host, port, err := net.SplitHostPort(rep.Target)
	if err != nil {
		socks5.WriteHostUnreachableReply(conn, req.Atyp)
		return err
	}
	ip, err := g.resolver.Resolve(ctx, host)
	if err != nil {
		socks5.WriteHostUnreachableReply(conn, req.Atyp)
		return err
	}
	addr := net.JoinHostPort(ip, port)
	rep.State = TargetResolved

	rep.Upstream = g.pool.Pick()
	rep.State = ProxySelected
	log.Debug().Str("target", rep.Target).Str("addr", addr).Str("upstream", redact(rep.Upstream)).Msg("relaying")

	d, err := dialer.New(g.cfg.Dialer, rep.Upstream)
	if err != nil {
		socks5.WriteConnectionRefusedReply(conn, req.Atyp)
		return err
	}
	up, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		socks5.WriteConnectionRefusedReply(conn, req.Atyp)
		return err
	}
	defer up.Close()
	rep.State = UpstreamConnected

	if err := socks5.WriteSuccessReply(conn, up.LocalAddr()); err != nil {
		return err
	}
	_ = conn.SetDeadline(time.Time{})
	rep.State = Relaying

	rep.Sent, rep.Received, err = CopyBidirectional(conn, up)
	if err != nil {
		return err
	}
	rep.State = Closed
	return nil
}

// redact hides credentials in an upstream URI for logging.
func redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return u.Redacted()
}
