package gamenet

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/gamenet/crypto"
	"github.com/opd-ai/gamenet/packet"
	"github.com/opd-ai/gamenet/transport"
)

// session is one connection attempt. It owns the socket and the two network
// goroutines; the Manager outlives it.
type session struct {
	id         string
	sock       transport.Socket
	addr       string
	standalone bool
	peerKey    []byte // pre-shared server key, nil when learned from the handshake

	stop     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
	group    errgroup.Group

	// lastReceived is UnixNano of the last authenticated frame from the peer.
	lastReceived atomic.Int64
	// lastKeepalive is only touched by the send goroutine.
	lastKeepalive time.Time
}

func newSession(id string, sock transport.Socket, addr string, standalone bool, peerKey []byte) *session {
	s := &session{
		id:         id,
		sock:       sock,
		addr:       addr,
		standalone: standalone,
		peerKey:    peerKey,
		stop:       make(chan struct{}),
	}
	s.running.Store(true)
	return s
}

func (s *session) alive() bool {
	return s.running.Load()
}

// shutdown stops the session and closes its socket. It reports whether this
// call was the one that did so.
func (s *session) shutdown() bool {
	first := false
	s.stopOnce.Do(func() {
		first = true
		s.running.Store(false)
		close(s.stop)
		_ = s.sock.Close()
	})
	return first
}

func (m *Manager) start(s *session) {
	s.lastKeepalive = m.clock.Now()
	s.group.Go(func() error {
		m.sendLoop(s)
		return nil
	})
	s.group.Go(func() error {
		m.receiveLoop(s)
		return nil
	})
}

// sendLoop drains the queues, keeps the session alive and watches for a
// silent peer.
func (m *Manager) sendLoop(s *session) {
	timer := time.NewTimer(m.opts.TickInterval)
	defer timer.Stop()

	for s.alive() {
		if err := m.flushPackets(s); err != nil {
			m.fail(s, err)
			return
		}
		m.runTasks(s)
		if err := m.maintain(s); err != nil {
			m.fail(s, err)
			return
		}

		select {
		case <-s.stop:
			return
		case <-m.wake:
		case <-timer.C:
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(m.opts.TickInterval)
	}
}

// flushPackets writes queued packets in order. It stops at the first packet
// the session is not ready for and leaves it, and everything after it,
// queued.
func (m *Manager) flushPackets(s *session) error {
	pending := m.packets.popAll()
	for i, p := range pending {
		if !m.readyFor(p) {
			m.packets.pushFront(pending[i:])
			return nil
		}
		if err := m.sendPacket(s, p); err != nil {
			return err
		}
	}
	return nil
}

// readyFor reports whether p may be sent in the current state. Connection
// packets only need keys when they are encrypted; game packets wait for an
// established session.
func (m *Manager) readyFor(p packet.Packet) bool {
	meta := p.Meta()
	if meta.Bookkeeping {
		return !meta.Encrypted || m.box.HasPeerKey()
	}
	return m.State().Established()
}

// sendPacket encodes p and writes it to the peer. Encoding failures drop the
// packet; only socket failures are returned.
func (m *Manager) sendPacket(s *session, p packet.Packet) error {
	meta := p.Meta()
	log := m.logger("sendPacket").WithFields(logrus.Fields{
		"session":   s.id,
		"packet_id": meta.ID,
		"packet":    meta.Name,
	})

	frame, err := packet.Marshal(p, m.box)
	if err != nil {
		if s.alive() {
			log.WithError(err, "marshal").Warn("Dropping packet that could not be encoded")
		}
		return nil
	}

	if err := s.sock.Send(frame); err != nil {
		if !s.alive() {
			return nil
		}
		return transportError("send", s.addr, err)
	}

	log.WithField("size", len(frame)).Debug("Packet sent")
	return nil
}

func (m *Manager) runTasks(s *session) {
	for _, t := range m.tasks.popAll() {
		switch t {
		case taskPingServers:
			m.pingServers(s)
		}
	}
}

// maintain sends keepalives and enforces DisconnectAfter.
func (m *Manager) maintain(s *session) error {
	state := m.State()

	if state.Established() && m.clock.Since(s.lastKeepalive) >= m.opts.KeepaliveInterval {
		s.lastKeepalive = m.clock.Now()
		if err := m.sendPacket(s, &packet.KeepalivePacket{}); err != nil {
			return err
		}
	}

	if sinceStamp(m.clock, s.lastReceived.Load()) >= m.opts.DisconnectAfter {
		return timeoutError(state, s.standalone)
	}
	return nil
}

// timeoutError names what the session was waiting for when it went silent.
func timeoutError(state State, standalone bool) error {
	switch {
	case state == StateConnecting:
		return ErrHandshakeTimeout
	case state == StateHandshaken && !standalone:
		return &AuthError{Reason: AuthTimeout}
	default:
		return ErrDeadPeer
	}
}

// receiveLoop reads frames until the session stops.
func (m *Manager) receiveLoop(s *session) {
	for s.alive() {
		frame, from, err := s.sock.Receive(m.opts.ReceiveTimeout)
		if err != nil {
			if transport.IsTimeout(err) {
				continue
			}
			if !s.alive() {
				return
			}
			if from != nil && !errors.Is(err, transport.ErrStreamCorrupt) {
				// A bad datagram does not break the socket.
				m.logger("receiveLoop").WithField("session", s.id).WithError(err, "receive").
					Warn("Dropping unreadable datagram")
				continue
			}
			m.logger("receiveLoop").WithField("session", s.id).WithError(err, "receive").
				Error("Socket failed")
			m.fail(s, transportError("receive", s.addr, err))
			return
		}

		m.handleFrame(s, frame, from)
	}
}

// handleFrame decodes one inbound frame and routes it.
func (m *Manager) handleFrame(s *session, frame []byte, from net.Addr) {
	fromPeer := transport.SameAddr(from, s.sock.RemoteAddr())
	if !fromPeer {
		// Only ping replies may come from other servers.
		hdr, err := packet.ParseHeader(frame)
		if err != nil || hdr.ID != packet.PingResponseID {
			m.logger("handleFrame").WithFields(logrus.Fields{
				"session": s.id,
				"from":    addrString(from),
			}).Debug("Dropping frame from unknown sender")
			return
		}
	}

	p, err := packet.Unmarshal(frame, m.box, m.registry)
	if err != nil {
		m.dropFrame(s, err)
		return
	}

	if fromPeer {
		s.lastReceived.Store(stampNow(m.clock))
	}
	m.dispatch(s, p)
}

func (m *Manager) dropFrame(s *session, err error) {
	log := m.logger("handleFrame").WithField("session", s.id).WithError(err, "unmarshal")

	var unknown *packet.UnknownPacketError
	switch {
	case errors.As(err, &unknown):
		log.WithField("packet_id", unknown.ID).Debug("Dropping unknown packet")
	case errors.Is(err, crypto.ErrAuthenticationFailure):
		log.Warn("Dropping frame that failed authentication")
	case errors.Is(err, crypto.ErrNoPeerKey):
		log.Warn("Dropping encrypted frame received before key exchange")
	default:
		log.Warn("Dropping malformed frame")
	}
}

// dispatch runs a builtin handler inline, or hands the packet to the main
// loop if a user callback wants it.
func (m *Manager) dispatch(s *session, p packet.Packet) {
	meta := p.Meta()

	if fn, ok := m.listeners.builtinFor(meta.ID); ok {
		fn(s, p)
		return
	}

	if _, ok := m.listeners.userFor(meta.ID); !ok {
		m.logger("dispatch").WithFields(logrus.Fields{
			"session":   s.id,
			"packet_id": meta.ID,
			"packet":    meta.Name,
		}).Debug("No listener for packet")
		return
	}

	// Looked up again so a listener removed in the meantime does not fire.
	m.mainQueue.push(func() {
		if cb, ok := m.listeners.userFor(meta.ID); ok {
			cb(p)
		}
	})
}

// pingServers sends a PingPacket to every server in the directory.
func (m *Manager) pingServers(s *session) {
	dir := m.opts.Servers
	if dir == nil {
		m.logger("pingServers").Debug("No server directory configured")
		return
	}

	m.pings.prune(m.clock.Now().Add(-m.opts.DisconnectAfter))

	for _, server := range dir.Servers() {
		log := m.logger("pingServers").WithFields(logrus.Fields{
			"session": s.id,
			"server":  server.ID,
			"addr":    server.Address,
		})

		addr, err := resolveLike(s.sock.RemoteAddr(), server.Address)
		if err != nil {
			log.WithError(err, "resolve").Warn("Skipping server with bad address")
			continue
		}

		id := m.pings.add(server.ID, m.clock.Now())
		frame, err := packet.Marshal(&packet.PingPacket{PingID: id}, nil)
		if err != nil {
			m.pings.take(id)
			continue
		}

		if transport.SameAddr(addr, s.sock.RemoteAddr()) {
			err = s.sock.Send(frame)
		} else {
			err = s.sock.SendTo(frame, addr)
		}
		switch {
		case errors.Is(err, transport.ErrUnsupported):
			m.pings.take(id)
			log.Debug("Socket cannot reach other servers")
		case err != nil:
			m.pings.take(id)
			log.WithError(err, "send ping").Warn("Ping failed")
		default:
			log.WithField("ping_id", id).Debug("Ping sent")
		}
	}
}

// resolveLike resolves address on the same network as peer, so the result
// compares equal to peer when both name the same server.
func resolveLike(peer net.Addr, address string) (net.Addr, error) {
	if peer != nil && peer.Network() == "tcp" {
		return net.ResolveTCPAddr("tcp", address)
	}
	return net.ResolveUDPAddr("udp", address)
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

type pendingPing struct {
	serverID string
	sent     time.Time
}

// pingTracker matches ping replies to the server they were sent to.
type pingTracker struct {
	mu      sync.Mutex
	next    uint32
	pending map[uint32]pendingPing
}

func newPingTracker() *pingTracker {
	return &pingTracker{pending: make(map[uint32]pendingPing)}
}

func (t *pingTracker) add(serverID string, sent time.Time) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.pending[t.next] = pendingPing{serverID: serverID, sent: sent}
	return t.next
}

func (t *pingTracker) take(id uint32) (pendingPing, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[id]
	delete(t.pending, id)
	return p, ok
}

// prune forgets pings sent before cutoff.
func (t *pingTracker) prune(cutoff time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, p := range t.pending {
		if p.sent.Before(cutoff) {
			delete(t.pending, id)
		}
	}
}

func (t *pingTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = make(map[uint32]pendingPing)
}
