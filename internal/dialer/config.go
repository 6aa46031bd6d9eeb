package dialer

import (
	"net"
	"time"
)

type Config struct {
	// DialTimeout bounds DNS lookup and TCP connect to the first hop.
	DialTimeout time.Duration
	// NegotiationTimeout bounds the proxy handshake (SOCKS5 negotiation,
	// TLS, HTTP CONNECT). Zero means no deadline.
	NegotiationTimeout time.Duration
	KeepAlive          net.KeepAliveConfig
}
