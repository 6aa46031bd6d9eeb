// Package dialer provides the outbound dialers used by rabbithole.
//
// Dialers implement a small interface (DialContext) and are used in three
// places: the search phase reaches providers through an optional egress
// proxy, the verifier probes each candidate by using it as a forward proxy,
// and the gateway opens one upstream session per client connection through
// a proxy drawn from the pool.
package dialer
