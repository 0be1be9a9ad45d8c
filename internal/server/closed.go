package server

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// isExpectedCloseError reports whether err is an ordinary end of a
// connection: EOF, a closed socket, a broken pipe or a reset peer.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
