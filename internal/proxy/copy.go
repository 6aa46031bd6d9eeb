package proxy

import (
	"io"
	"net"
	"sync"
)

type closeWriter interface {
	CloseWrite() error
}

// CopyBidirectional relays between left and right until both directions
// reach EOF or either fails. EOF from one side is passed on as a half-close
// of the other when the connection supports it. Any error closes both
// connections so the opposite direction unblocks. It returns the bytes
// copied from left to right (sent) and from right to left (received), and
// the first error seen.
func CopyBidirectional(left, right net.Conn) (sent, received int64, err error) {
	var (
		once  sync.Once
		first error
	)
	fail := func(err error) {
		once.Do(func() {
			first = err
			_ = left.Close()
			_ = right.Close()
		})
	}

	var wg sync.WaitGroup
	wg.Go(func() {
		n, err := io.Copy(right, left)
		sent = n
		if err != nil {
			fail(err)
			return
		}
		closeWrite(right)
	})
	wg.Go(func() {
		n, err := io.Copy(left, right)
		received = n
		if err != nil {
			fail(err)
			return
		}
		closeWrite(left)
	})
	wg.Wait()

	return sent, received, first
}

// closeWrite half-closes c, or closes it fully if it cannot be half-closed.
func closeWrite(c net.Conn) {
	if cw, ok := c.(closeWriter); ok {
		if err := cw.CloseWrite(); err == nil {
			return
		}
	}
	_ = c.Close()
}
