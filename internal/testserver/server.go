// Package testserver runs the server side of the game protocol in-process.
// It answers handshakes, logins, keepalives and pings, and records every
// packet it receives so tests can assert on them.
package testserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/gamenet/crypto"
	"github.com/opd-ai/gamenet/packet"
	"github.com/opd-ai/gamenet/transport"
)

// Config controls how the server responds.
type Config struct {
	// Network is "udp" (default) or "tcp".
	Network string
	// Protocol is the version announced in handshake responses.
	Protocol uint16
	TPS      uint32
	Players  uint32

	// Token is accepted by Login. ExpiredToken is answered with a
	// token-expired failure; anything else is rejected.
	Token        string
	ExpiredToken string

	// IgnoreLogin leaves Login packets unanswered.
	IgnoreLogin bool

	// Registry decodes client packets. Nil means packet.DefaultRegistry().
	Registry *packet.Registry

	// OnFrame, if set, sees every raw frame before it is decoded.
	OnFrame func(frame []byte)
}

// Server is a single-client game server.
type Server struct {
	cfg Config
	box *crypto.Box

	udp      *transport.UDPSocket
	listener net.Listener

	mu       sync.Mutex
	reply    func(frame []byte) error
	stream   *transport.TCPSocket
	received []packet.Packet
	arrived  chan struct{}

	silent  atomic.Bool
	running atomic.Bool
	group   errgroup.Group
}

// Start listens on a random loopback port.
func Start(cfg Config) (*Server, error) {
	if cfg.Network == "" {
		cfg.Network = "udp"
	}
	if cfg.Protocol == 0 {
		cfg.Protocol = 1
	}
	if cfg.TPS == 0 {
		cfg.TPS = 30
	}
	if cfg.Registry == nil {
		cfg.Registry = packet.DefaultRegistry()
	}

	box, err := crypto.NewBox()
	if err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, box: box, arrived: make(chan struct{})}
	s.running.Store(true)

	switch cfg.Network {
	case "udp":
		s.udp, err = transport.ListenUDP(context.Background(), "127.0.0.1:0")
		if err != nil {
			return nil, err
		}
		s.group.Go(func() error {
			s.serve(s.udp, true)
			return nil
		})
	case "tcp":
		s.listener, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, err
		}
		s.group.Go(s.accept)
	default:
		return nil, fmt.Errorf("testserver: unknown network %q", cfg.Network)
	}

	return s, nil
}

// Host returns the listening IP.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.localAddr().String())
	return host
}

// Port returns the listening port.
func (s *Server) Port() uint16 {
	_, port, _ := net.SplitHostPort(s.localAddr().String())
	n, _ := strconv.ParseUint(port, 10, 16)
	return uint16(n)
}

// Address returns host:port.
func (s *Server) Address() string {
	return s.localAddr().String()
}

func (s *Server) localAddr() net.Addr {
	if s.udp != nil {
		return s.udp.LocalAddr()
	}
	return s.listener.Addr()
}

// PublicKey returns the server's current public key.
func (s *Server) PublicKey() [crypto.KeySize]byte {
	return s.box.PublicKey()
}

// SetSilent stops (or resumes) all replies. Incoming packets are still
// recorded.
func (s *Server) SetSilent(silent bool) {
	s.silent.Store(silent)
}

// Close stops the server and waits for its goroutines.
func (s *Server) Close() error {
	s.running.Store(false)
	if s.udp != nil {
		_ = s.udp.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Lock()
	if s.stream != nil {
		_ = s.stream.Close()
	}
	s.mu.Unlock()
	return s.group.Wait()
}

func (s *Server) accept() error {
	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			return nil
		}
		sock := transport.NewTCPSocket(conn)

		s.mu.Lock()
		if s.stream != nil {
			_ = s.stream.Close()
		}
		s.stream = sock
		s.mu.Unlock()

		s.group.Go(func() error {
			s.serve(sock, false)
			return nil
		})
	}
	return nil
}

func (s *Server) serve(sock transport.Socket, datagram bool) {
	for s.running.Load() {
		frame, from, err := sock.Receive(50 * time.Millisecond)
		if transport.IsTimeout(err) {
			continue
		}
		if err != nil {
			if datagram && from != nil {
				continue
			}
			return
		}

		if s.cfg.OnFrame != nil {
			s.cfg.OnFrame(frame)
		}

		reply := func(out []byte) error { return sock.Send(out) }
		if datagram {
			reply = func(out []byte) error { return sock.SendTo(out, from) }
		}
		s.handle(frame, reply)
	}
}

func (s *Server) handle(frame []byte, reply func([]byte) error) {
	p, err := packet.Unmarshal(frame, s.box, s.cfg.Registry)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handle",
			"package":  "testserver",
			"error":    err.Error(),
		}).Debug("Dropping client frame")
		return
	}
	s.record(p)

	if s.silent.Load() {
		return
	}

	switch req := p.(type) {
	case *packet.CryptoHandshakeStartPacket:
		s.handshake(req, reply)
	case *packet.LoginPacket:
		if !s.cfg.IgnoreLogin {
			s.respond(reply, s.loginResult(req.Token))
		}
	case *packet.KeepalivePacket:
		s.respond(reply, &packet.KeepaliveResponsePacket{TPS: s.cfg.TPS, PlayerCount: s.cfg.Players})
	case *packet.PingPacket:
		s.respond(reply, &packet.PingResponsePacket{PingID: req.PingID, PlayerCount: s.cfg.Players})
	case *packet.DisconnectPacket:
		s.mu.Lock()
		s.reply = nil
		s.mu.Unlock()
	}
}

func (s *Server) handshake(req *packet.CryptoHandshakeStartPacket, reply func([]byte) error) {
	if err := s.box.SetPeerKey(req.PublicKey[:]); err != nil {
		return
	}

	s.mu.Lock()
	s.reply = reply
	s.mu.Unlock()

	s.respond(reply, &packet.CryptoHandshakeResponsePacket{
		Protocol:  s.cfg.Protocol,
		PublicKey: s.box.PublicKey(),
		TPS:       s.cfg.TPS,
	})
}

func (s *Server) loginResult(token string) packet.Packet {
	switch {
	case s.cfg.Token != "" && token == s.cfg.Token:
		return &packet.LoggedInPacket{TPS: s.cfg.TPS}
	case s.cfg.ExpiredToken != "" && token == s.cfg.ExpiredToken:
		return &packet.LoginFailedPacket{Reason: packet.LoginTokenExpired, Message: "token expired"}
	default:
		return &packet.LoginFailedPacket{Reason: packet.LoginRejected, Message: "bad credentials"}
	}
}

func (s *Server) respond(reply func([]byte) error, p packet.Packet) {
	frame, err := packet.Marshal(p, s.box)
	if err != nil {
		return
	}
	_ = reply(frame)
}

func (s *Server) record(p packet.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, p)
	close(s.arrived)
	s.arrived = make(chan struct{})
}

// ErrNoClient is returned by Send before any client has completed a
// handshake.
var ErrNoClient = errors.New("testserver: no client")

// Send pushes p to the current client, encrypting it if its type requires.
func (s *Server) Send(p packet.Packet) error {
	frame, err := packet.Marshal(p, s.box)
	if err != nil {
		return err
	}
	return s.SendRaw(frame)
}

// SendRaw pushes an arbitrary frame to the current client.
func (s *Server) SendRaw(frame []byte) error {
	s.mu.Lock()
	reply := s.reply
	s.mu.Unlock()
	if reply == nil {
		return ErrNoClient
	}
	return reply(frame)
}

// Kick ends the session with a server disconnect message.
func (s *Server) Kick(message string) error {
	return s.Send(&packet.ServerDisconnectPacket{Message: message})
}

// Received returns a copy of every packet decoded so far.
func (s *Server) Received() []packet.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]packet.Packet(nil), s.received...)
}

// WaitFor blocks until a packet with the given ID has been received, or the
// timeout elapses.
func (s *Server) WaitFor(id packet.ID, timeout time.Duration) (packet.Packet, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		s.mu.Lock()
		for _, p := range s.received {
			if p.Meta().ID == id {
				s.mu.Unlock()
				return p, true
			}
		}
		arrived := s.arrived
		s.mu.Unlock()

		select {
		case <-arrived:
		case <-deadline.C:
			return nil, false
		}
	}
}
