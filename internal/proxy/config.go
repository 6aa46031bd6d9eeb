package proxy

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/die-net/rabbithole/internal/dialer"
	"github.com/die-net/rabbithole/internal/socks5"
)

type Config struct {
	// NegotiationTimeout bounds the inbound SOCKS5 handshake. Zero means no
	// deadline.
	NegotiationTimeout time.Duration

	// Auth, when enabled, is required from every client.
	Auth socks5.Auth

	// Dialer configures the connection to each upstream proxy.
	Dialer dialer.Config

	// Resolver resolves CONNECT targets. Nil means a resolver with
	// DefaultResolveTTL.
	Resolver *Resolver

	Log zerolog.Logger

	// OnClose, if set, receives the outcome of every connection after it
	// has been closed.
	OnClose func(Report)
}
