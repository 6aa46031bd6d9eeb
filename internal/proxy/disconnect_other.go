//go:build !unix

package proxy

func isDisconnectErrno(error) bool {
	return false
}
