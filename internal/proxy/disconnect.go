package proxy

import (
	"errors"
	"io"
	"net"
)

// IsExpectedDisconnect reports whether err is an ordinary way for a relayed
// connection to end: EOF, a closed connection, or a reset, broken pipe or
// abort from the peer.
func IsExpectedDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return isDisconnectErrno(err)
}
