package relay

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// IsDisconnect reports whether err means a peer went away rather than a
// genuine failure.
func IsDisconnect(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, ErrClientGone),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	}
	return false
}
