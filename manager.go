package gamenet

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/gamenet/crypto"
	"github.com/opd-ai/gamenet/internal/logging"
	"github.com/opd-ai/gamenet/packet"
	"github.com/opd-ai/gamenet/transport"
)

// task is a control job executed by the send goroutine.
type task uint8

const (
	taskPingServers task = iota
)

// Manager owns the connection to one game server.
//
// All methods are safe for concurrent use. Callbacks registered with
// AddListener and OnDisconnect only run inside Iterate, on the caller's
// goroutine.
type Manager struct {
	opts     *Options
	box      *crypto.Box
	registry *packet.Registry
	clock    TimeProvider

	listeners *listenerTable
	wake      chan struct{}
	packets   *messageQueue[packet.Packet]
	tasks     *messageQueue[task]
	mainQueue *messageQueue[func()]
	pings     *pingTracker

	// mu serializes Connect and Disconnect.
	mu   sync.Mutex
	sess *session

	// stateMu orders state transitions against session teardown.
	stateMu sync.Mutex
	state   atomic.Int32
	changed chan struct{}
	lastErr error

	standalone atomic.Bool
	serverTPS  atomic.Uint32

	cbMu         sync.RWMutex
	onDisconnect func(error)
}

// NewManager creates a Manager. Passing nil uses NewOptions().
func NewManager(opts *Options) (*Manager, error) {
	opts = opts.normalize()
	if err := opts.validate(); err != nil {
		logging.NewLogger("gamenet", "NewManager").WithError(err, "options").Error("Invalid options")
		return nil, err
	}

	box, err := crypto.NewBox()
	if err != nil {
		logging.NewLogger("gamenet", "NewManager").WithError(err, "crypto init").Error("Failed to create crypto box")
		return nil, err
	}

	wake := make(chan struct{}, 1)
	m := &Manager{
		opts:      opts,
		box:       box,
		registry:  opts.Registry,
		clock:     opts.TimeProvider,
		listeners: newListenerTable(),
		wake:      wake,
		packets:   newMessageQueue[packet.Packet](wake),
		tasks:     newMessageQueue[task](wake),
		mainQueue: newMessageQueue[func()](nil),
		pings:     newPingTracker(),
		changed:   make(chan struct{}),
	}
	m.registerBuiltins()

	m.logger("NewManager").WithFields(logrus.Fields{
		"network":  opts.Network,
		"protocol": opts.ProtocolVersion,
	}).Debug("Manager created")

	return m, nil
}

func (m *Manager) logger(function string) *logging.LoggerHelper {
	return logging.NewLogger("gamenet", function)
}

// Connect opens a session to addr:port. Any existing session is torn down
// quietly first. Connect returns once the handshake has been sent; use
// WaitEstablished or the predicates to follow progress.
func (m *Manager) Connect(addr string, port uint16, standalone bool) error {
	return m.connect(addr, port, standalone, nil)
}

// ConnectStandalone opens a standalone session to a server whose public key
// is already known. The session fails with ErrPeerKeyMismatch if the server
// presents a different key.
func (m *Manager) ConnectStandalone(addr string, port uint16, peerKey []byte) error {
	if len(peerKey) != crypto.KeySize {
		return fmt.Errorf("%w: peer key must be %d bytes, got %d", crypto.ErrInvalidKey, crypto.KeySize, len(peerKey))
	}
	return m.connect(addr, port, true, append([]byte(nil), peerKey...))
}

func (m *Manager) connect(addr string, port uint16, standalone bool, peerKey []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.teardownLocked(true, false)

	if err := m.box.Reset(); err != nil {
		return err
	}
	if peerKey != nil {
		if err := m.box.SetPeerKey(peerKey); err != nil {
			return err
		}
	}

	address := net.JoinHostPort(addr, strconv.Itoa(int(port)))
	log := m.logger("Connect").WithFields(logrus.Fields{
		"addr":       address,
		"network":    m.opts.Network,
		"standalone": standalone,
	})

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.DialTimeout)
	defer cancel()

	sock, err := transport.Dial(ctx, m.opts.Network, address)
	if err != nil {
		cerr := transportError("dial", address, err)
		log.WithError(err, "dial").Error("Failed to open socket")
		m.box.ClearPeerKey()
		m.setDisconnected(cerr)
		return cerr
	}

	s := newSession(uuid.NewString(), sock, address, standalone, peerKey)
	s.lastReceived.Store(stampNow(m.clock))

	m.packets.clear()
	m.tasks.clear()
	m.pings.reset()
	m.serverTPS.Store(0)
	m.standalone.Store(standalone)
	m.beginSession()

	hello := &packet.CryptoHandshakeStartPacket{
		Protocol:   m.opts.ProtocolVersion,
		PublicKey:  m.box.PublicKey(),
		Standalone: standalone,
	}
	if err := m.sendPacket(s, hello); err != nil {
		log.WithError(err, "handshake").Error("Failed to send handshake")
		s.shutdown()
		m.finish(s, err, false)
		return err
	}

	m.sess = s
	m.start(s)

	log.WithField("session", s.id).Info("Connecting")
	return nil
}

// Disconnect ends the current session. Unless quiet, the server is told
// first on a best-effort basis. Disconnect blocks until both network
// goroutines have exited and is a no-op when there is no session.
func (m *Manager) Disconnect(quiet bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked(quiet, true)
}

// teardownLocked stops and joins the current session. A session that
// already failed on its own is only joined.
func (m *Manager) teardownLocked(quiet, notify bool) {
	s := m.sess
	if s == nil {
		return
	}
	m.sess = nil

	if !quiet && s.alive() {
		if err := m.sendPacket(s, &packet.DisconnectPacket{}); err != nil {
			m.logger("Disconnect").WithField("session", s.id).WithError(err, "send disconnect").
				Warn("Could not notify server")
		}
	}

	first := s.shutdown()
	_ = s.group.Wait()

	if first {
		m.finish(s, nil, notify)
	}
}

// fail ends s from inside one of its goroutines. It does not join; the next
// Connect or Disconnect does.
func (m *Manager) fail(s *session, err error) {
	if !s.shutdown() {
		return
	}
	m.finish(s, err, true)
}

// finish resets per-session state after s has been shut down.
func (m *Manager) finish(s *session, reason error, notify bool) {
	if err := m.box.Reset(); err != nil {
		m.logger("finish").WithError(err, "reset box").Error("Failed to regenerate keys")
	}
	m.standalone.Store(false)
	m.serverTPS.Store(0)
	m.setDisconnected(reason)

	log := m.logger("finish").WithField("session", s.id).WithField("addr", s.addr)
	if reason != nil {
		log.WithError(reason, "session").Info("Session ended")
	} else {
		log.Info("Session closed")
	}

	if notify {
		m.mainQueue.push(func() {
			if cb := m.disconnectCallback(); cb != nil {
				cb(reason)
			}
		})
	}
}

// beginSession moves to Connecting and forgets the previous failure.
func (m *Manager) beginSession() {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.state.Store(int32(StateConnecting))
	m.lastErr = nil
	m.notifyLocked()
}

func (m *Manager) setDisconnected(reason error) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.state.Store(int32(StateDisconnected))
	m.lastErr = reason
	m.notifyLocked()
}

// transition moves to state to if s is still the live session.
func (m *Manager) transition(s *session, to State) bool {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	if !s.alive() {
		return false
	}
	from := State(m.state.Load())
	m.state.Store(int32(to))
	m.notifyLocked()

	m.logger("transition").WithFields(logrus.Fields{
		"session": s.id,
		"from":    from.String(),
		"to":      to.String(),
	}).Info("Connection state changed")
	return true
}

func (m *Manager) notifyLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

// Send queues p for the send goroutine. Packets are written in the order
// they were queued. Game packets wait until the session is established.
func (m *Manager) Send(p packet.Packet) error {
	if !m.State().Connected() {
		return ErrNotConnected
	}
	m.packets.push(p)
	return nil
}

// TaskPingServers pings every server in Options.Servers over the session
// socket. Results are delivered through ServerDirectory.UpdatePing from
// Iterate.
func (m *Manager) TaskPingServers() error {
	if !m.State().Connected() {
		return ErrNotConnected
	}
	m.tasks.push(taskPingServers)
	return nil
}

// Iterate runs every callback queued by the network goroutines, in order.
// Call it regularly from the host main loop.
func (m *Manager) Iterate() {
	for _, fn := range m.mainQueue.popAll() {
		fn()
	}
}

// IterationInterval returns how often Iterate should be called.
func (m *Manager) IterationInterval() time.Duration {
	return m.opts.IterationInterval
}

// OnDisconnect sets the callback invoked when a session ends. The error is
// nil for a Disconnect requested by the host.
func (m *Manager) OnDisconnect(callback func(error)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onDisconnect = callback
}

func (m *Manager) disconnectCallback() func(error) {
	m.cbMu.RLock()
	defer m.cbMu.RUnlock()
	return m.onDisconnect
}

// WaitEstablished blocks until the session is established, the session
// ends, or ctx is done. It returns the reason the session ended, or
// ErrNotConnected if there was no session.
func (m *Manager) WaitEstablished(ctx context.Context) error {
	for {
		m.stateMu.Lock()
		state := State(m.state.Load())
		changed := m.changed
		reason := m.lastErr
		m.stateMu.Unlock()

		switch {
		case state.Established():
			return nil
		case state == StateDisconnected && reason != nil:
			return reason
		case state == StateDisconnected:
			return ErrNotConnected
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Connected reports whether a session exists.
func (m *Manager) Connected() bool {
	return m.State().Connected()
}

// Handshaken reports whether the key exchange has completed.
func (m *Manager) Handshaken() bool {
	return m.State().Handshaken()
}

// Established reports whether the session is ready for game traffic.
func (m *Manager) Established() bool {
	return m.State().Established()
}

// Standalone reports whether the current session targets a standalone
// server.
func (m *Manager) Standalone() bool {
	return m.standalone.Load()
}

// ServerTPS returns the tick rate announced by the server, or 0 when not
// known.
func (m *Manager) ServerTPS() uint32 {
	return m.serverTPS.Load()
}

// PublicKey returns the key announced in the current handshake.
func (m *Manager) PublicKey() [crypto.KeySize]byte {
	return m.box.PublicKey()
}
