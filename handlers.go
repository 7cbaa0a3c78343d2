package gamenet

import (
	"bytes"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/gamenet/internal/logging"
	"github.com/opd-ai/gamenet/packet"
)

var errNoCredentials = errors.New("no credential provider configured")

// connectionPacketIDs are the server packets handled by registerBuiltins.
var connectionPacketIDs = []packet.ID{
	packet.CryptoHandshakeResponseID,
	packet.LoggedInID,
	packet.LoginFailedID,
	packet.KeepaliveResponseID,
	packet.PingResponseID,
	packet.ServerDisconnectID,
	packet.ProtocolMismatchID,
}

// handlerFor adapts a typed handler to the builtin table.
func handlerFor[P packet.Packet](fn func(*session, P)) builtinListener {
	return func(s *session, p packet.Packet) {
		if typed, ok := p.(P); ok {
			fn(s, typed)
		}
	}
}

func (m *Manager) registerBuiltins() {
	m.addBuiltinListener(packet.CryptoHandshakeResponseID, handlerFor(m.handleHandshakeResponse))
	m.addBuiltinListener(packet.LoggedInID, handlerFor(m.handleLoggedIn))
	m.addBuiltinListener(packet.LoginFailedID, handlerFor(m.handleLoginFailed))
	m.addBuiltinListener(packet.KeepaliveResponseID, handlerFor(m.handleKeepaliveResponse))
	m.addBuiltinListener(packet.PingResponseID, handlerFor(m.handlePingResponse))
	m.addBuiltinListener(packet.ServerDisconnectID, handlerFor(m.handleServerDisconnect))
	m.addBuiltinListener(packet.ProtocolMismatchID, handlerFor(m.handleProtocolMismatch))
}

// handleHandshakeResponse completes the key exchange and, on the central
// path, starts the login.
func (m *Manager) handleHandshakeResponse(s *session, p *packet.CryptoHandshakeResponsePacket) {
	log := m.logger("handleHandshakeResponse").WithField("session", s.id)

	if m.State() != StateConnecting {
		log.WithField("state", m.State().String()).Debug("Ignoring duplicate handshake response")
		return
	}

	if p.Protocol != m.opts.ProtocolVersion {
		m.fail(s, &ProtocolMismatchError{Client: m.opts.ProtocolVersion, Server: p.Protocol})
		return
	}

	if s.peerKey != nil && !bytes.Equal(s.peerKey, p.PublicKey[:]) {
		log.WithFields(logging.SecureFieldHash(p.PublicKey[:], "server_key")).Warn("Server key does not match pre-shared key")
		m.fail(s, &ConnectionError{Op: "handshake", Addr: s.addr, Err: ErrPeerKeyMismatch})
		return
	}

	if err := m.box.SetPeerKey(p.PublicKey[:]); err != nil {
		m.fail(s, &ConnectionError{Op: "handshake", Addr: s.addr, Err: err})
		return
	}
	m.serverTPS.Store(p.TPS)

	if !m.transition(s, StateHandshaken) {
		return
	}

	if s.standalone {
		m.transition(s, StateStandalone)
		m.packets.signal()
		return
	}

	m.login(s)
}

// login sends the account credentials to a central server.
func (m *Manager) login(s *session) {
	creds := m.opts.Credentials
	if creds == nil {
		m.fail(s, &AuthError{Reason: AuthTokenMissing, Err: errNoCredentials})
		return
	}

	token, err := creds.AuthToken()
	if err != nil || token == "" {
		m.fail(s, &AuthError{Reason: AuthTokenMissing, Err: err})
		return
	}

	m.logger("login").WithFields(logrus.Fields{
		"session":    s.id,
		"account_id": creds.AccountID(),
	}).Debug("Sending login")

	// Sent from here rather than queued so it precedes any game packet.
	login := &packet.LoginPacket{
		AccountID:   creds.AccountID(),
		AccountName: creds.AccountName(),
		Token:       token,
	}
	if err := m.sendPacket(s, login); err != nil {
		m.fail(s, err)
	}
}

func (m *Manager) handleLoggedIn(s *session, p *packet.LoggedInPacket) {
	if s.standalone || m.State() != StateHandshaken {
		m.logger("handleLoggedIn").WithField("session", s.id).Debug("Ignoring unexpected login confirmation")
		return
	}
	m.serverTPS.Store(p.TPS)
	if m.transition(s, StateAuthenticated) {
		m.packets.signal()
	}
}

func (m *Manager) handleLoginFailed(s *session, p *packet.LoginFailedPacket) {
	m.fail(s, &AuthError{Reason: authReasonFor(p.Reason), Message: p.Message})
}

func (m *Manager) handleKeepaliveResponse(s *session, p *packet.KeepaliveResponsePacket) {
	m.serverTPS.Store(p.TPS)
	m.logger("handleKeepaliveResponse").WithFields(logrus.Fields{
		"session": s.id,
		"tps":     p.TPS,
		"players": p.PlayerCount,
	}).Debug("Keepalive acknowledged")
}

func (m *Manager) handlePingResponse(s *session, p *packet.PingResponsePacket) {
	pending, ok := m.pings.take(p.PingID)
	if !ok {
		m.logger("handlePingResponse").WithField("ping_id", p.PingID).Debug("Ignoring unsolicited ping response")
		return
	}

	dir := m.opts.Servers
	if dir == nil {
		return
	}
	rtt := m.clock.Since(pending.sent)
	players := p.PlayerCount
	m.mainQueue.push(func() {
		dir.UpdatePing(pending.serverID, rtt, players)
	})
}

func (m *Manager) handleServerDisconnect(s *session, p *packet.ServerDisconnectPacket) {
	m.fail(s, &ServerDisconnectError{Message: p.Message})
}

func (m *Manager) handleProtocolMismatch(s *session, p *packet.ProtocolMismatchPacket) {
	m.fail(s, &ProtocolMismatchError{Client: m.opts.ProtocolVersion, Server: p.ServerProtocol})
}
