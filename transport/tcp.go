package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/gamenet/limits"
)

// lengthPrefixSize is the big-endian u32 that precedes every stream frame.
const lengthPrefixSize = 4

// TCPSocket is a stream Socket that frames messages with a 4-byte length
// prefix.
type TCPSocket struct {
	conn net.Conn

	writeMu sync.Mutex

	// Receive state. A read deadline may expire halfway through a frame, so
	// partial data is kept until the rest arrives.
	readMu  sync.Mutex
	pending []byte
	chunk   []byte
	corrupt error

	closeOnce sync.Once
}

// DialTCP connects to address.
func DialTCP(ctx context.Context, address string) (*TCPSocket, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "DialTCP",
		"package":  "transport",
		"local":    conn.LocalAddr().String(),
		"remote":   conn.RemoteAddr().String(),
	}).Debug("TCP socket connected")

	return NewTCPSocket(conn), nil
}

// NewTCPSocket wraps an established stream connection.
func NewTCPSocket(conn net.Conn) *TCPSocket {
	return &TCPSocket{
		conn:  conn,
		chunk: make([]byte, 32*1024),
	}
}

// Send writes the length prefix and frame in a single write.
func (s *TCPSocket) Send(frame []byte) error {
	if err := limits.ValidateStreamFrame(frame); err != nil {
		return err
	}

	data := make([]byte, lengthPrefixSize+len(frame))
	binary.BigEndian.PutUint32(data, uint32(len(frame)))
	copy(data[lengthPrefixSize:], frame)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return mapReadError(err)
	}
	if _, err := s.conn.Write(data); err != nil {
		return mapReadError(err)
	}
	return nil
}

// SendTo is not available on a stream.
func (s *TCPSocket) SendTo([]byte, net.Addr) error {
	return ErrUnsupported
}

// Receive returns the next complete frame. A bad length prefix poisons the
// socket: that call and every later one fail with ErrStreamCorrupt and no
// address.
func (s *TCPSocket) Receive(timeout time.Duration) ([]byte, net.Addr, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	if s.corrupt != nil {
		return nil, nil, s.corrupt
	}

	_ = s.conn.SetReadDeadline(time.Now().Add(timeout))

	for {
		frame, err := s.nextFrame()
		if err != nil {
			return nil, nil, s.poison(err)
		}
		if frame != nil {
			return frame, s.conn.RemoteAddr(), nil
		}

		n, err := s.conn.Read(s.chunk)
		s.pending = append(s.pending, s.chunk[:n]...)
		if err == nil {
			continue
		}

		frame, ferr := s.nextFrame()
		if ferr != nil {
			return nil, nil, s.poison(ferr)
		}
		if frame != nil {
			return frame, s.conn.RemoteAddr(), nil
		}
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrPeerClosed
		}
		return nil, nil, mapReadError(err)
	}
}

// poison records a framing error. The caller holds readMu.
func (s *TCPSocket) poison(err error) error {
	s.corrupt = fmt.Errorf("%w: %w", ErrStreamCorrupt, err)
	s.pending = nil
	return s.corrupt
}

// nextFrame pops a complete frame off pending, or returns nil if more bytes
// are needed.
func (s *TCPSocket) nextFrame() ([]byte, error) {
	if len(s.pending) < lengthPrefixSize {
		return nil, nil
	}

	length := binary.BigEndian.Uint32(s.pending)
	if length == 0 {
		return nil, limits.ErrFrameEmpty
	}
	if length > limits.MaxStreamFrame {
		return nil, fmt.Errorf("%w: length prefix %d exceeds limit %d", limits.ErrFrameTooLarge, length, limits.MaxStreamFrame)
	}

	end := lengthPrefixSize + int(length)
	if len(s.pending) < end {
		return nil, nil
	}

	frame := make([]byte, length)
	copy(frame, s.pending[lengthPrefixSize:end])
	s.pending = append(s.pending[:0], s.pending[end:]...)
	return frame, nil
}

// RemoteAddr returns the connected peer.
func (s *TCPSocket) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// LocalAddr returns the local end of the connection.
func (s *TCPSocket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Close closes the connection. It is safe to call more than once.
func (s *TCPSocket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}
