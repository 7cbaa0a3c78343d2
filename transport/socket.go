package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrTimeout is returned by Receive when no frame arrived in time.
	ErrTimeout = errors.New("receive timed out")

	// ErrSocketClosed indicates the socket was closed locally.
	ErrSocketClosed = errors.New("socket closed")

	// ErrPeerClosed indicates the remote end closed a stream connection.
	ErrPeerClosed = errors.New("connection closed by peer")

	// ErrNotDialed indicates Send on a socket with no remote address.
	ErrNotDialed = errors.New("socket has no remote address")

	// ErrUnsupported indicates an operation the socket kind cannot perform.
	ErrUnsupported = errors.New("operation not supported by socket")

	// ErrUnknownNetwork indicates a network other than "udp" or "tcp".
	ErrUnknownNetwork = errors.New("unknown network")

	// ErrStreamCorrupt indicates a stream carried an invalid length prefix.
	// Framing is lost and the socket cannot be read further.
	ErrStreamCorrupt = errors.New("stream framing corrupt")
)

// Socket carries whole frames to and from one remote endpoint.
//
// Send and Receive may be called concurrently from different goroutines, but
// Receive itself must only be called from one goroutine at a time.
type Socket interface {
	// Send writes one frame to the remote address.
	Send(frame []byte) error

	// SendTo writes one frame to an arbitrary address. Stream sockets return
	// ErrUnsupported.
	SendTo(frame []byte, addr net.Addr) error

	// Receive waits up to timeout for the next frame and returns it with the
	// address it came from. It returns ErrTimeout when nothing arrived.
	Receive(timeout time.Duration) ([]byte, net.Addr, error)

	// RemoteAddr returns the dialed address, or nil for a listening socket.
	RemoteAddr() net.Addr

	// LocalAddr returns the bound local address.
	LocalAddr() net.Addr

	// Close releases the socket. Pending Receive calls return ErrSocketClosed.
	Close() error
}

// Dial opens a socket to address over network ("udp" or "tcp").
func Dial(ctx context.Context, network, address string) (Socket, error) {
	logrus.WithFields(logrus.Fields{
		"function": "Dial",
		"package":  "transport",
		"network":  network,
		"address":  address,
	}).Debug("Dialing")

	switch network {
	case "udp":
		return DialUDP(ctx, address)
	case "tcp":
		return DialTCP(ctx, address)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, network)
	}
}

// IsTimeout reports whether err is a receive timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// SameAddr reports whether a and b name the same endpoint.
func SameAddr(a, b net.Addr) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Network() == b.Network() && a.String() == b.String()
}

// mapReadError translates net errors into the package sentinels.
func mapReadError(err error) error {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrTimeout
	case errors.Is(err, net.ErrClosed):
		return ErrSocketClosed
	default:
		return err
	}
}
