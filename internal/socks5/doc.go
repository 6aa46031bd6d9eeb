// Package socks5 is the SOCKS5 protocol layer shared by the rabbithole
// gateway and its upstream dialer.
//
// It wraps the low-level message types in github.com/txthinking/socks5 so the
// gateway can negotiate inbound sessions (with optional username/password
// auth), read CONNECT requests and write replies, while the dialer can open
// outbound CONNECT sessions through a pooled proxy.
//
// It is not a full SOCKS5 implementation: only CONNECT is supported and the
// BIND/UDP ASSOCIATE commands are refused.
package socks5
