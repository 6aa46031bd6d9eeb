// Package proxy implements the forwarding gateway: a SOCKS5 server that
// relays each accepted connection through an upstream proxy picked at
// random from the verified pool.
//
// It also holds the connection plumbing the gateway is built from, such as
// keepalive listeners, the caching resolver and bidirectional copy.
package proxy
