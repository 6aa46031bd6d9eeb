package proxy

import "fmt"

// ConnState is a step in the lifecycle of a gateway connection. States are
// only ever entered in increasing order.
type ConnState int

const (
	Accepted ConnState = iota
	HandshakeComplete
	TargetResolved
	ProxySelected
	UpstreamConnected
	Relaying
	// Closed is reached only when relaying ended without error.
	Closed
)

func (s ConnState) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case HandshakeComplete:
		return "handshake-complete"
	case TargetResolved:
		return "target-resolved"
	case ProxySelected:
		return "proxy-selected"
	case UpstreamConnected:
		return "upstream-connected"
	case Relaying:
		return "relaying"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Report describes a finished gateway connection.
type Report struct {
	ID string
	// Upstream is the pool URI the connection was relayed through, empty
	// if it failed before selection.
	Upstream string
	// Target is the address the client asked to CONNECT to.
	Target string
	// State is the last state reached.
	State ConnState
	// Sent counts bytes from the client to the upstream, Received the
	// reverse.
	Sent     int64
	Received int64
	// Err is a *ConnError, or nil.
	Err error
}

// ConnError is a connection failure annotated with the state it occurred in.
type ConnError struct {
	State ConnState
	Err   error
}

func (e *ConnError) Error() string {
	return e.State.String() + ": " + e.Err.Error()
}

func (e *ConnError) Unwrap() error {
	return e.Err
}
