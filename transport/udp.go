package transport

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/gamenet/limits"
)

// UDPSocket is a datagram Socket. The underlying PacketConn is unconnected so
// that the same socket can ping other servers with SendTo while a session is
// open.
type UDPSocket struct {
	conn   net.PacketConn
	remote net.Addr

	// buf is only touched by Receive.
	buf []byte

	closeOnce sync.Once
}

// DialUDP resolves address and binds a local UDP socket of the matching
// address family.
func DialUDP(ctx context.Context, address string) (*UDPSocket, error) {
	remote, err := resolveUDP(ctx, address)
	if err != nil {
		return nil, err
	}

	network := "udp4"
	if remote.Addr().Is6() {
		network = "udp6"
	}

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, network, ":0")
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "DialUDP",
		"package":  "transport",
		"local":    conn.LocalAddr().String(),
		"remote":   remote.String(),
	}).Debug("UDP socket ready")

	return newUDPSocket(conn, net.UDPAddrFromAddrPort(remote)), nil
}

// ListenUDP binds a UDP socket to address without a remote peer. Send fails
// with ErrNotDialed; replies go through SendTo.
func ListenUDP(ctx context.Context, address string) (*UDPSocket, error) {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", address)
	if err != nil {
		return nil, err
	}
	return newUDPSocket(conn, nil), nil
}

func newUDPSocket(conn net.PacketConn, remote net.Addr) *UDPSocket {
	return &UDPSocket{
		conn:   conn,
		remote: remote,
		buf:    make([]byte, limits.MaxDatagramSize+1),
	}
}

// resolveUDP picks an IPv4 address for host when one exists.
func resolveUDP(ctx context.Context, address string) (netip.AddrPort, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return netip.AddrPort{}, err
	}

	port, err := net.DefaultResolver.LookupPort(ctx, "udp", portStr)
	if err != nil {
		return netip.AddrPort{}, err
	}

	ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return netip.AddrPort{}, err
	}
	if len(ips) == 0 {
		return netip.AddrPort{}, fmt.Errorf("no addresses for %q", host)
	}

	ip := ips[0]
	for _, candidate := range ips {
		if candidate.Unmap().Is4() {
			ip = candidate
			break
		}
	}
	return netip.AddrPortFrom(ip.Unmap(), uint16(port)), nil
}

// Send writes frame to the dialed address.
func (s *UDPSocket) Send(frame []byte) error {
	if s.remote == nil {
		return ErrNotDialed
	}
	return s.SendTo(frame, s.remote)
}

// SendTo writes frame to addr as a single datagram.
func (s *UDPSocket) SendTo(frame []byte, addr net.Addr) error {
	if err := limits.ValidateDatagram(frame); err != nil {
		return err
	}
	if _, err := s.conn.WriteTo(frame, addr); err != nil {
		return mapReadError(err)
	}
	return nil
}

// Receive reads the next datagram from any sender.
func (s *UDPSocket) Receive(timeout time.Duration) ([]byte, net.Addr, error) {
	_ = s.conn.SetReadDeadline(time.Now().Add(timeout))

	n, addr, err := s.conn.ReadFrom(s.buf)
	if err != nil {
		return nil, nil, mapReadError(err)
	}
	if n > limits.MaxDatagramSize {
		return nil, addr, fmt.Errorf("%w: datagram from %s", limits.ErrFrameTooLarge, addr)
	}

	frame := make([]byte, n)
	copy(frame, s.buf[:n])
	return frame, addr, nil
}

// RemoteAddr returns the dialed address.
func (s *UDPSocket) RemoteAddr() net.Addr {
	return s.remote
}

// LocalAddr returns the bound local address.
func (s *UDPSocket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Close releases the socket. It is safe to call more than once.
func (s *UDPSocket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}
